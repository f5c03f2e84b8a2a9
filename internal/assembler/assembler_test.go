package assembler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codenotate/internal/language"
	"github.com/dshills/codenotate/internal/validator"
	"github.com/dshills/codenotate/pkg/types"
)

var originals = []string{
	"PROCEDURE One\n  x = 1\nENDPROC",
	"PROCEDURE Two\n  y = 2\nENDPROC",
	"PROCEDURE Three\n  z = 3\nENDPROC",
	"PROCEDURE Four\n  w = 4\nENDPROC",
}

// fourChunks returns chunks where the first ok are annotated
func fourChunks(ok int) []types.AnnotatedChunk {
	names := []string{"One", "Two", "Three", "Four"}
	out := make([]types.AnnotatedChunk, len(originals))
	for i, orig := range originals {
		out[i] = types.AnnotatedChunk{ChunkIndex: i, Name: names[i], Content: orig, Attempts: 3}
		if i < ok {
			lines := strings.Split(orig, "\n")
			out[i].Content = lines[0] + "\n\n  * Sets a value\n" + strings.Join(lines[1:], "\n")
			out[i].Success = true
			out[i].Attempts = 1
			out[i].CommentLines = 1
			out[i].CommentChars = len("* Sets a value")
			out[i].Relevance = 0.5
			out[i].Business = 1
			out[i].Header.Purpose = "Sets a value for " + names[i]
		}
	}
	return out
}

func newAssembler(cfg Config) *Assembler {
	return New(validator.New(language.VFP(), validator.DefaultConfig(), nil), cfg, nil)
}

func fileContext() *types.FileContext {
	return &types.FileContext{
		Overview: "Four small procedures.",
		NamedBlocks: []types.NamedBlock{
			{Name: "One", StartLine: 1, Description: "first"},
			{Name: "Two", StartLine: 4},
		},
		Dependencies: []string{"orders"},
		TotalLines:   12,
	}
}

func TestAssemble_LenientThreshold(t *testing.T) {
	original := strings.Join(originals, "\n")

	tests := []struct {
		name      string
		threshold float64
		accepted  bool
	}{
		{"at threshold", 0.5, true},
		{"above rate", 0.6, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newAssembler(Config{Policy: PolicyLenient, SuccessThreshold: tt.threshold})
			chunks := fourChunks(2)
			got := a.Assemble(Input{Path: "a.prg", Original: original, Chunks: chunks})

			assert.Equal(t, tt.accepted, got.Accepted)
			assert.Equal(t, 0.5, got.SuccessRate)
			if tt.accepted {
				parts := strings.Split(got.Document, "\n")
				assert.Equal(t, originals[2], strings.Join(parts[len(parts)-6:len(parts)-3], "\n"))
				assert.True(t, strings.HasSuffix(got.Document, originals[3]))
				assert.Empty(t, got.Reason)
			} else {
				assert.Empty(t, got.Document)
				assert.Contains(t, got.Reason, "below threshold")
				assert.True(t, types.HasErrors(got.Issues))
			}
		})
	}
}

func TestAssemble_Strict(t *testing.T) {
	original := strings.Join(originals, "\n")
	a := newAssembler(Config{Policy: PolicyStrict})

	got := a.Assemble(Input{Path: "a.prg", Original: original, Chunks: fourChunks(3)})
	assert.False(t, got.Accepted)
	assert.Empty(t, got.Document)
	assert.Contains(t, got.Reason, "Four")

	got = a.Assemble(Input{Path: "a.prg", Original: original, Chunks: fourChunks(4)})
	assert.True(t, got.Accepted)
	assert.Equal(t, 1.0, got.SuccessRate)
}

func TestAssemble_PassthroughNotCounted(t *testing.T) {
	chunks := []types.AnnotatedChunk{
		{ChunkIndex: 0, Name: "top_level", Passthrough: true, Success: true, Content: ""},
		fourChunks(1)[0],
	}
	chunks[1].ChunkIndex = 1
	original := "\n" + originals[0]

	got := newAssembler(Config{Policy: PolicyStrict}).Assemble(Input{Path: "a.prg", Original: original, Chunks: chunks})
	require.True(t, got.Accepted)
	assert.Equal(t, 1, got.Metrics.ChunksEligible)
	assert.Equal(t, 2, got.Metrics.ChunksTotal)
}

func TestAssemble_CoarseCheckRejects(t *testing.T) {
	original := strings.Join(originals, "\n")
	chunks := fourChunks(4)
	chunks[1].Content = "PROCEDURE Two\n  y = 3\nENDPROC"

	got := newAssembler(DefaultConfig()).Assemble(Input{Path: "a.prg", Original: original, Chunks: chunks})
	assert.False(t, got.Accepted)
	assert.Empty(t, got.Document)
	assert.Contains(t, got.Reason, "coarse")
	found := false
	for _, is := range got.Issues {
		found = found || is.Code == types.IssueContentViolation
	}
	assert.True(t, found)
}

func TestAssemble_HeaderPrepended(t *testing.T) {
	original := strings.Join(originals, "\n")
	got := newAssembler(DefaultConfig()).Assemble(Input{
		Path:     "forms/a.prg",
		Original: original,
		Chunks:   fourChunks(4),
		Context:  fileContext(),
	})
	require.True(t, got.Accepted)

	rule := "* " + strings.Repeat("=", 68)
	want := strings.Join([]string{
		rule,
		"* FILE: a.prg",
		"* LOCATION: forms/a.prg",
		rule,
		"*",
		"* OVERVIEW: Four small procedures.",
		"*",
		"* NAMED BLOCKS:",
		"*   - One (Line 1): first",
		"*   - Two (Line 4): Sets a value for Two",
		"*",
		"* DEPENDENCIES:",
		"*   - orders",
		"*",
		"* TOTAL LINES: 12",
		rule,
		"",
		"PROCEDURE One",
	}, "\n")
	assert.True(t, strings.HasPrefix(got.Document, want), got.Document)
	assert.Equal(t, 1, strings.Count(got.Document, "* FILE:"))
}

func TestAssemble_HeaderCollapsesDependencies(t *testing.T) {
	original := strings.Join(originals, "\n")
	fc := fileContext()
	fc.Dependencies = []string{"orders\nDELETE ALL", "  ", "customers ;"}

	got := newAssembler(DefaultConfig()).Assemble(Input{Path: "a.prg", Original: original, Chunks: fourChunks(4), Context: fc})
	require.True(t, got.Accepted, got.Reason)
	assert.Contains(t, got.Document, "*   - orders DELETE ALL\n*   - customers\n*\n")

	h := newAssembler(DefaultConfig()).Header("a.prg", fc, nil)
	for _, line := range strings.Split(h, "\n") {
		assert.True(t, language.VFP().IsLineComment(line), line)
		assert.False(t, language.VFP().EndsWithContinuation(line), line)
	}
}

func TestHeader_WrapsOverview(t *testing.T) {
	a := newAssembler(DefaultConfig())
	fc := &types.FileContext{Overview: strings.Repeat("word ", 60), TotalLines: 1}
	h := a.Header("a.prg", fc, nil)
	for _, line := range strings.Split(h, "\n") {
		assert.LessOrEqual(t, len(line), DefaultWrapWidth)
		assert.True(t, strings.HasPrefix(line, "*"))
	}
	assert.Greater(t, strings.Count(h, "word"), 59)
}

func TestHeader_UsesPolicyPrefix(t *testing.T) {
	a := New(validator.New(language.CSharp(), validator.DefaultConfig(), nil), DefaultConfig(), nil)
	h := a.Header("Order.cs", &types.FileContext{Overview: "Order model.", TotalLines: 3}, nil)
	for _, line := range strings.Split(h, "\n") {
		assert.True(t, strings.HasPrefix(line, "//"), line)
	}
}

func TestAssemble_Metrics(t *testing.T) {
	original := strings.Join(originals, "\n")
	got := newAssembler(DefaultConfig()).Assemble(Input{Path: "a.prg", Original: original, Chunks: fourChunks(2)})

	m := got.Metrics
	assert.Equal(t, 12, m.TotalLines)
	assert.Equal(t, 16, m.OutputLines)
	assert.Equal(t, 2, m.CommentLines)
	assert.Equal(t, 4, m.ChunksEligible)
	assert.Equal(t, 2, m.ChunksAnnotated)
	assert.InDelta(t, 0.5, m.CoverageRatio, 1e-9)
	assert.InDelta(t, 2.0/16.0, m.CommentDensity, 1e-9)
	assert.InDelta(t, float64(len("* Sets a value")), m.AvgCommentLength, 1e-9)
	assert.InDelta(t, 0.5, m.MeanRelevance, 1e-9)
	assert.InDelta(t, 1.0, m.MeanBusinessTerms, 1e-9)
}

func TestParseFailurePolicy(t *testing.T) {
	p, err := ParseFailurePolicy("STRICT")
	require.NoError(t, err)
	assert.Equal(t, PolicyStrict, p)

	p, err = ParseFailurePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyLenient, p)

	_, err = ParseFailurePolicy("maybe")
	assert.Error(t, err)
}

func TestPartSuffix(t *testing.T) {
	assert.Equal(t, "_part2", partSuffix("Big_part2"))
	assert.Equal(t, "", partSuffix("Big_partial"))
	assert.Equal(t, "", partSuffix("Big"))
}
