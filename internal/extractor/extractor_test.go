package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codenotate/internal/backend"
	"github.com/dshills/codenotate/internal/language"
	"github.com/dshills/codenotate/pkg/types"
)

// largeVFP builds a file with a procedure every 100 lines
func largeVFP(total int) []string {
	lines := make([]string, 0, total)
	for len(lines) < total {
		n := len(lines) / 100
		lines = append(lines, fmt.Sprintf("PROCEDURE Step%d", n))
		for i := 0; i < 97; i++ {
			lines = append(lines, fmt.Sprintf("  lnTotal = lnTotal + %d", i))
		}
		lines = append(lines, "ENDPROC", "")
	}
	return lines[:total]
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RetryDelay = 0
	return cfg
}

func contextReply(fc types.FileContext) backend.MockHandler {
	return func(req backend.Request, call int) (json.RawMessage, error) {
		return backend.JSON(fc), nil
	}
}

func TestBuildSample_SmallFileIsWhole(t *testing.T) {
	lines := largeVFP(300)
	sample, sampled := BuildSample(lines, language.VFP(), DefaultConfig())
	assert.False(t, sampled)
	assert.Equal(t, strings.Join(lines, "\n"), sample)
}

func TestBuildSample_ContainsEverySignature(t *testing.T) {
	lines := largeVFP(5000)
	cfg := Config{SampleThreshold: 1000, HeadLines: 200, TailLines: 100}
	sample, sampled := BuildSample(lines, language.VFP(), cfg)
	require.True(t, sampled)

	for i, line := range lines {
		if strings.HasPrefix(line, "PROCEDURE ") {
			assert.Contains(t, sample, fmt.Sprintf("Line %d: %s", i+1, line))
		}
	}
	assert.Contains(t, sample, "Line 2501: PROCEDURE Step25")
	assert.Contains(t, sample, "... lines 201-4900 omitted ...")
	assert.Less(t, strings.Count(sample, "\n"), 500)
}

func TestBuildSample_OverlappingWindowsFallBackToWhole(t *testing.T) {
	lines := largeVFP(1200)
	cfg := Config{SampleThreshold: 1000, HeadLines: 800, TailLines: 500}
	_, sampled := BuildSample(lines, language.VFP(), cfg)
	assert.False(t, sampled)
}

func TestExtract_ReconcilesWithDetectedBlocks(t *testing.T) {
	text := strings.Join([]string{
		"* order module",
		"PROCEDURE LoadOrder",
		"  USE orders",
		"ENDPROC",
		"",
		"FUNCTION SaveOrder",
		"  REPLACE orders.total WITH 1",
		"ENDFUNC",
	}, "\n")

	mock := backend.NewMock(contextReply(types.FileContext{
		Overview: "  Loads and saves orders.  ",
		NamedBlocks: []types.NamedBlock{
			{Name: "saveorder", StartLine: 99, Description: "Writes the order"},
			{Name: "Ghost", StartLine: 3, Description: "not real"},
		},
		Dependencies: []string{"orders", "Orders", " ", "customers", "order\n  lines"},
		TotalLines:   3,
	}))

	ex, err := New(mock, nil, testConfig(), nil)
	require.NoError(t, err)

	fc, issues, err := ex.Extract(context.Background(), language.VFP(), "orders.prg", text)
	require.NoError(t, err)
	assert.Empty(t, issues)

	assert.Equal(t, "Loads and saves orders.", fc.Overview)
	assert.Equal(t, 8, fc.TotalLines)
	assert.Equal(t, []string{"orders", "customers", "order lines"}, fc.Dependencies)
	assert.Equal(t, []types.NamedBlock{
		{Name: "LoadOrder", StartLine: 2},
		{Name: "SaveOrder", StartLine: 6, Description: "Writes the order"},
	}, fc.NamedBlocks)

	calls := mock.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, backend.SchemaFileContext, calls[0].SchemaName)
	assert.Contains(t, calls[0].Prompt, "PROCEDURE LoadOrder")
}

func TestExtract_RetriesThenFails(t *testing.T) {
	mock := backend.NewMock(func(req backend.Request, call int) (json.RawMessage, error) {
		if call == 0 {
			return json.RawMessage(`{"overview": ""}`), nil
		}
		return nil, fmt.Errorf("dial: %w", backend.ErrBackendUnavailable)
	})

	cfg := testConfig()
	cfg.Attempts = 2
	ex, err := New(mock, nil, cfg, nil)
	require.NoError(t, err)

	fc, issues, err := ex.Extract(context.Background(), language.VFP(), "a.prg", "x = 1")
	assert.Nil(t, fc)
	assert.ErrorIs(t, err, backend.ErrBackendUnavailable)
	require.Len(t, issues, 2)
	assert.Equal(t, types.IssueSchemaViolation, issues[0].Code)
	assert.Equal(t, 1, issues[0].Attempt)
	assert.Equal(t, types.IssueBackendUnavailable, issues[1].Code)
	assert.Equal(t, 2, issues[1].Attempt)
}

func TestExtract_RecoversOnRetry(t *testing.T) {
	mock := backend.NewMock(func(req backend.Request, call int) (json.RawMessage, error) {
		if call == 0 {
			return json.RawMessage(`not json`), nil
		}
		return backend.JSON(types.FileContext{Overview: "ok"}), nil
	})

	ex, err := New(mock, nil, testConfig(), nil)
	require.NoError(t, err)

	fc, issues, err := ex.Extract(context.Background(), language.VFP(), "a.prg", "x = 1")
	require.NoError(t, err)
	assert.Equal(t, "ok", fc.Overview)
	assert.Len(t, issues, 1)
	assert.Equal(t, 2, mock.CallCount())
}

func TestExtract_UsesCache(t *testing.T) {
	mock := backend.NewMock(contextReply(types.FileContext{Overview: "cached", Dependencies: []string{"a"}}))
	cache := NewCache(8)
	ex, err := New(mock, cache, testConfig(), nil)
	require.NoError(t, err)

	first, _, err := ex.Extract(context.Background(), language.VFP(), "a.prg", "x = 1")
	require.NoError(t, err)
	first.Dependencies[0] = "mutated"

	second, _, err := ex.Extract(context.Background(), language.VFP(), "a.prg", "x = 1")
	require.NoError(t, err)
	assert.Equal(t, "a", second.Dependencies[0])
	assert.Equal(t, 1, mock.CallCount())
	assert.Equal(t, 1, cache.Size())

	// Same text under another language is a different entry
	_, _, err = ex.Extract(context.Background(), language.CSharp(), "a.cs", "x = 1")
	require.NoError(t, err)
	assert.Equal(t, 2, mock.CallCount())
}

func TestExtract_SampledPrompt(t *testing.T) {
	lines := largeVFP(3000)
	mock := backend.NewMock(contextReply(types.FileContext{Overview: "big"}))
	ex, err := New(mock, nil, testConfig(), nil)
	require.NoError(t, err)

	fc, _, err := ex.Extract(context.Background(), language.VFP(), "big.prg", strings.Join(lines, "\n"))
	require.NoError(t, err)
	assert.Equal(t, 3000, fc.TotalLines)
	assert.Len(t, fc.NamedBlocks, 30)

	p := mock.Calls()[0].Prompt
	assert.Contains(t, p, "SAMPLE")
	assert.Contains(t, p, "Line 1501: PROCEDURE Step15")
}

func TestNew_NilBackend(t *testing.T) {
	_, err := New(nil, nil, Config{}, nil)
	assert.ErrorIs(t, err, ErrNilBackend)
}

func TestKey(t *testing.T) {
	assert.Equal(t, Key("vfp", "a"), Key("vfp", "a"))
	assert.NotEqual(t, Key("vfp", "a"), Key("go", "a"))
	assert.Len(t, Key("vfp", ""), 64)
}
