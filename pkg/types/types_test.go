package types

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChunk(content string, start, end int) *Chunk {
	c := &Chunk{Kind: ChunkTopLevel, Content: content, StartLine: start, EndLine: end}
	c.ComputeContentHash()
	c.ComputeTokenCount()
	return c
}

func TestChunk_Validate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		c := newChunk("SET TALK OFF\nSELECT orders", 0, 2)
		assert.NoError(t, c.Validate())
		assert.Equal(t, 2, c.LineCount())
		assert.Equal(t, "top-level", c.DisplayName())
	})

	t.Run("empty range", func(t *testing.T) {
		c := newChunk("x", 3, 3)
		assert.ErrorIs(t, c.Validate(), ErrInvalidLineRange)
	})

	t.Run("content does not match range", func(t *testing.T) {
		c := newChunk("one line", 0, 2)
		assert.Error(t, c.Validate())
	})

	t.Run("named block without name", func(t *testing.T) {
		c := newChunk("ENDPROC", 5, 6)
		c.Kind = ChunkNamedBlock
		assert.Error(t, c.Validate())
		c.Name = "SaveOrder"
		assert.NoError(t, c.Validate())
		assert.Equal(t, "SaveOrder", c.DisplayName())
	})

	t.Run("hash required", func(t *testing.T) {
		c := &Chunk{Kind: ChunkTopLevel, Content: "x", StartLine: 0, EndLine: 1}
		assert.Error(t, c.Validate())
	})

	t.Run("unknown kind", func(t *testing.T) {
		c := newChunk("x", 0, 1)
		c.Kind = "fragment"
		assert.Error(t, c.Validate())
	})
}

func TestChunk_TokenCount(t *testing.T) {
	c := newChunk("12345678", 0, 1)
	assert.Equal(t, 2, c.TokenCount)
}

func TestChunk_BlockName(t *testing.T) {
	assert.Equal(t, "SaveOrder", (&Chunk{Name: "SaveOrder"}).BlockName())
	assert.Equal(t, "SaveOrder", (&Chunk{Name: "SaveOrder_part3", Part: 3}).BlockName())
	assert.Equal(t, "Calc_part2", (&Chunk{Name: "Calc_part2"}).BlockName(), "unsplit names are kept")
	assert.Equal(t, string(ChunkTopLevel), (&Chunk{Kind: ChunkTopLevel}).BlockName())
}

func TestProcessingResult_SuccessRate(t *testing.T) {
	tests := []struct {
		name   string
		chunks []AnnotatedChunk
		want   float64
	}{
		{"no chunks", nil, 1},
		{"only passthrough", []AnnotatedChunk{{Passthrough: true, Success: true}}, 1},
		{
			"passthrough excluded",
			[]AnnotatedChunk{{Success: true}, {Passthrough: true, Success: true}, {Success: false}},
			0.5,
		},
		{"all annotated", []AnnotatedChunk{{Success: true}, {Success: true}}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &ProcessingResult{Chunks: tt.chunks}
			assert.InDelta(t, tt.want, r.SuccessRate(), 1e-9)
		})
	}
}

func TestProcessingResult_Fail(t *testing.T) {
	r := &ProcessingResult{
		Success:  true,
		Document: "* header\nSET TALK OFF",
		FileIssues: []Issue{
			NewIssue(LayerAssembly, IssueThreshold, SeverityError, "rate %.2f", 0.25),
		},
		ChunkIssues: map[int][]Issue{
			0: {NewIssue(LayerBackend, IssueBackendUnavailable, SeverityError, "timeout")},
			2: {NewIssue(LayerRelevance, IssueLowRelevance, SeverityWarning, "low"), NewIssue(LayerSyntax, IssueAutoCorrected, SeverityInfo, "fixed")},
		},
	}
	assert.Equal(t, 4, r.IssueCount())

	got := r.Fail("below threshold")
	assert.Same(t, r, got)
	assert.False(t, r.Success)
	assert.Equal(t, "below threshold", r.Reason)
	assert.Empty(t, r.Document)
}

func TestIssue(t *testing.T) {
	is := NewIssue(LayerInsertion, IssueOutOfRange, SeverityWarning, "line %d beyond %d", 9, 4)
	assert.Equal(t, "[insertion/insertion_out_of_range] line 9 beyond 4", is.String())

	assert.False(t, HasErrors([]Issue{is}))
	assert.True(t, HasErrors([]Issue{is, NewIssue(LayerBackend, IssueSchemaViolation, SeverityError, "bad json")}))

	stamped := WithAttempt([]Issue{is}, 2)
	assert.Equal(t, 2, stamped[0].Attempt)
	assert.Zero(t, is.Attempt)
}

func TestAnnotationSet_Clone(t *testing.T) {
	orig := &AnnotationSet{
		Header: HeaderInfo{Purpose: "Saves orders", KeyFunctions: []string{"SaveOrder"}},
		Comments: []CommentBlock{
			{InsertBeforeLine: 1, Lines: []string{"* Opens the table", "* and locks it"}},
			{InsertBeforeLine: 3, Lines: []string{"* Writes the total"}},
		},
	}
	clone := orig.Clone()
	if diff := cmp.Diff(orig, clone); diff != "" {
		t.Fatalf("clone differs (-orig +clone):\n%s", diff)
	}

	clone.Comments[0].Lines[0] = "changed"
	clone.Header.KeyFunctions[0] = "changed"
	assert.Equal(t, "* Opens the table", orig.Comments[0].Lines[0])
	assert.Equal(t, "SaveOrder", orig.Header.KeyFunctions[0])

	assert.Equal(t, 3, orig.CommentLineCount())
	assert.Equal(t, []string{"Saves orders", "SaveOrder", "* Opens the table", "* and locks it", "* Writes the total"}, orig.Text())

	var nilSet *AnnotationSet
	assert.Nil(t, nilSet.Clone())
	assert.Zero(t, nilSet.CommentLineCount())
}

func TestFileContext(t *testing.T) {
	fc := &FileContext{
		Overview:     "Order entry",
		NamedBlocks:  []NamedBlock{{Name: "SaveOrder", StartLine: 3}},
		Dependencies: []string{"orders", "customers", "items"},
		TotalLines:   40,
	}
	require.NoError(t, fc.Validate())

	b, ok := fc.Block("saveorder")
	require.True(t, ok)
	assert.Equal(t, 3, b.StartLine)
	_, ok = fc.Block("Missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"orders", "customers"}, fc.TopDependencies(2))
	assert.Len(t, fc.TopDependencies(10), 3)
	assert.Nil(t, fc.TopDependencies(0))

	clone := fc.Clone()
	clone.Dependencies[0] = "changed"
	assert.Equal(t, "orders", fc.Dependencies[0])

	assert.ErrorIs(t, (&FileContext{Overview: "  "}).Validate(), ErrEmptyOverview)
	assert.ErrorIs(t, (&FileContext{Overview: "x", NamedBlocks: []NamedBlock{{Name: ""}}}).Validate(), ErrUnnamedBlock)
}
