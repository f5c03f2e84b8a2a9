package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dshills/codenotate/internal/assembler"
	"github.com/dshills/codenotate/internal/backend"
	"github.com/dshills/codenotate/internal/chunker"
	"github.com/dshills/codenotate/internal/language"
	"github.com/dshills/codenotate/internal/sink"
	"github.com/dshills/codenotate/internal/source"
	"github.com/dshills/codenotate/internal/storage"
	"github.com/dshills/codenotate/pkg/types"
)

func TestMain(m *testing.M) {
	// genai's auth dependency starts the opencensus view worker from init
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

const ordersPRG = `* Orders module
SET TALK OFF
PROCEDURE SaveOrder
  SELECT orders
  REPLACE total WITH lnTotal
ENDPROC

PROCEDURE Broken
  lnX = 1
ENDPROC`

// scripted answers both phases. Chunk prompts containing failChunk and
// context prompts containing failContext get a backend error.
func scripted(failChunk, failContext string) *backend.Mock {
	return backend.NewMock(func(req backend.Request, call int) (json.RawMessage, error) {
		switch req.SchemaName {
		case backend.SchemaFileContext:
			if failContext != "" && strings.Contains(req.Prompt, failContext) {
				return nil, fmt.Errorf("%w: timeout", backend.ErrBackendUnavailable)
			}
			return backend.JSON(types.FileContext{
				Overview:     "Order maintenance routines for the sales desk",
				Dependencies: []string{"orders"},
			}), nil
		default:
			if failChunk != "" && strings.Contains(req.Prompt, failChunk) {
				return nil, fmt.Errorf("%w: connection refused", backend.ErrBackendUnavailable)
			}
			return backend.JSON(types.AnnotationSet{
				Header: types.HeaderInfo{Purpose: "Maintains the orders table totals"},
				Comments: []types.CommentBlock{
					{InsertBeforeLine: 1, Lines: []string{"* Explains this step of the orders workflow"}},
				},
			}), nil
		}
	})
}

func testConfig(policy assembler.FailurePolicy, workers int) Config {
	cfg := DefaultConfig()
	cfg.Chunker = chunker.Config{WholeFileThreshold: 5}
	cfg.Extractor.Attempts = 1
	cfg.Extractor.RetryDelay = 0
	cfg.Annotator.Attempts = 2
	cfg.Annotator.RetryDelay = 0
	cfg.Assembler.Policy = policy
	cfg.Workers = workers
	return cfg
}

func newProcessor(t *testing.T, b backend.Backend, cfg Config) *Processor {
	t.Helper()
	p, err := NewProcessor(b, nil, cfg, nil)
	require.NoError(t, err)
	return p
}

func TestNewProcessor_NilBackend(t *testing.T) {
	_, err := NewProcessor(nil, nil, DefaultConfig(), nil)
	assert.ErrorIs(t, err, ErrNilBackend)
}

func TestPlan(t *testing.T) {
	plan := Plan(language.VFP(), chunker.Config{WholeFileThreshold: 5}, ordersPRG, nil)
	assert.Equal(t, 10, plan.TotalLines)
	assert.Equal(t, 100, plan.TargetSize)
	require.Len(t, plan.Chunks, 4)
	assert.Equal(t, "SaveOrder", plan.Chunks[1].Name)
	assert.Equal(t, "Broken", plan.Chunks[3].Name)
	assert.Contains(t, plan.Summary(), "4 chunks")
}

func TestProcessFile_AllChunksAnnotated(t *testing.T) {
	mock := scripted("", "")
	p := newProcessor(t, mock, testConfig(assembler.PolicyLenient, 1))

	res := p.ProcessFile(context.Background(), language.VFP(), source.FromText("orders.prg", ordersPRG))
	require.True(t, res.Success, res.Reason)
	assert.Equal(t, "vfp", res.Language)
	require.Len(t, res.Chunks, 4)

	// The blank gap between procedures never reaches the backend
	assert.True(t, res.Chunks[2].Passthrough)
	assert.Equal(t, 4, mock.CallCount())

	assert.Contains(t, res.Document, "* FILE: orders.prg")
	assert.Contains(t, res.Document, "* Explains this step of the orders workflow\nPROCEDURE SaveOrder")
	assert.True(t, strings.HasSuffix(res.Document, "ENDPROC"))
	assert.Equal(t, 1.0, res.SuccessRate())
	assert.Equal(t, 3, res.Metrics.ChunksAnnotated)
	assert.Greater(t, res.Duration.Nanoseconds(), int64(0))
}

func TestProcessFile_LenientKeepsFailedChunkOriginal(t *testing.T) {
	mock := scripted("PROCEDURE Broken", "")
	p := newProcessor(t, mock, testConfig(assembler.PolicyLenient, 1))

	res := p.ProcessFile(context.Background(), language.VFP(), source.FromText("orders.prg", ordersPRG))
	require.True(t, res.Success, res.Reason)

	broken := res.Chunks[3]
	assert.False(t, broken.Success)
	assert.Equal(t, 2, broken.Attempts)
	assert.Equal(t, "PROCEDURE Broken\n  lnX = 1\nENDPROC", broken.Content)
	assert.True(t, strings.HasSuffix(res.Document, broken.Content))
	assert.NotEmpty(t, res.ChunkIssues[3])
	assert.InDelta(t, 2.0/3.0, res.SuccessRate(), 0.001)
}

func TestProcessFile_StrictRejects(t *testing.T) {
	mock := scripted("PROCEDURE Broken", "")
	p := newProcessor(t, mock, testConfig(assembler.PolicyStrict, 1))

	res := p.ProcessFile(context.Background(), language.VFP(), source.FromText("orders.prg", ordersPRG))
	assert.False(t, res.Success)
	assert.Contains(t, res.Reason, "strict policy")
	assert.Contains(t, res.Reason, "Broken")
	assert.Empty(t, res.Document)
	assert.True(t, types.HasErrors(res.FileIssues))
}

func TestProcessFile_ContextFailureFailsFile(t *testing.T) {
	mock := scripted("", "orders.prg")
	p := newProcessor(t, mock, testConfig(assembler.PolicyLenient, 1))

	res := p.ProcessFile(context.Background(), language.VFP(), source.FromText("orders.prg", ordersPRG))
	assert.False(t, res.Success)
	assert.Contains(t, res.Reason, "file context extraction failed")
	assert.Nil(t, res.Context)
	assert.Empty(t, res.Chunks)
	assert.Equal(t, 1, mock.CallCount())
	require.NotEmpty(t, res.FileIssues)
	assert.Equal(t, types.IssueBackendUnavailable, res.FileIssues[len(res.FileIssues)-1].Code)
}

func TestProcessFile_ConcurrentWorkers(t *testing.T) {
	mock := scripted("", "")
	serial := newProcessor(t, scripted("", ""), testConfig(assembler.PolicyLenient, 1))
	parallel := newProcessor(t, mock, testConfig(assembler.PolicyLenient, 4))

	f := source.FromText("orders.prg", ordersPRG)
	want := serial.ProcessFile(context.Background(), language.VFP(), f)
	got := parallel.ProcessFile(context.Background(), language.VFP(), f)
	require.True(t, got.Success, got.Reason)
	assert.Equal(t, want.Document, got.Document)
	assert.Equal(t, 4, mock.CallCount())
}

func TestProcessFile_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := newProcessor(t, scripted("", ""), testConfig(assembler.PolicyLenient, 2))
	res := p.ProcessFile(ctx, language.VFP(), source.FromText("orders.prg", ordersPRG))
	assert.False(t, res.Success)
	assert.Empty(t, res.Document)
}

func writeTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "forms"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "forms", "orders.prg"), []byte(ordersPRG), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "forms", "orders_backup.prg"), []byte(ordersPRG), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.txt"), []byte("not source"), 0o644))
	return root
}

func newRunner(t *testing.T, b backend.Backend, store storage.Storage) *Runner {
	t.Helper()
	p := newProcessor(t, b, testConfig(assembler.PolicyLenient, 1))
	return NewRunner(p, language.Default(), source.Config{}, sink.New(sink.Config{}, nil), store, nil)
}

func outcomeFor(stats *RunStats, path string) (FileOutcome, bool) {
	for _, fo := range stats.Files {
		if fo.Path == path {
			return fo, true
		}
	}
	return FileOutcome{}, false
}

func TestRunner_Run(t *testing.T) {
	root := writeTree(t)
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer store.Close()

	var notified int
	r := newRunner(t, scripted("", ""), store)
	r.OnFile = func(FileOutcome, *Progress) { notified++ }

	stats, err := r.Run(context.Background(), RunOptions{Root: root})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Succeeded)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 0, stats.Failed)
	assert.Equal(t, 2, notified)

	fo, ok := outcomeFor(stats, "forms/orders.prg")
	require.True(t, ok)
	assert.Equal(t, storage.FileSucceeded, fo.Status)
	assert.Equal(t, filepath.Join(root, "forms", "orders_commented.prg"), fo.OutputPath)

	written, err := os.ReadFile(fo.OutputPath)
	require.NoError(t, err)
	assert.Contains(t, string(written), "PROCEDURE SaveOrder")
	assert.Contains(t, string(written), "* Explains this step")

	run, err := store.GetRun(context.Background(), stats.RunID)
	require.NoError(t, err)
	assert.Equal(t, storage.RunCompleted, run.Status)
	assert.Equal(t, 1, run.FilesSucceeded)
	assert.Equal(t, "mock", run.Provider)

	rec, err := store.GetLatestFile(context.Background(), "forms/orders.prg")
	require.NoError(t, err)
	assert.Equal(t, storage.FileSucceeded, rec.Status)
	assert.Equal(t, 3, rec.ChunksAnnotated)
	chunks, err := store.ListChunkResults(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Len(t, chunks, 4)
	assert.Equal(t, 2, chunks[1].StartLine)
	assert.Equal(t, 6, chunks[1].EndLine)
}

func TestRunner_ResumeSkipsUnchanged(t *testing.T) {
	root := writeTree(t)
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer store.Close()

	mock := scripted("", "")
	r := newRunner(t, mock, store)
	_, err = r.Run(context.Background(), RunOptions{Root: root})
	require.NoError(t, err)
	calls := mock.CallCount()

	stats, err := r.Run(context.Background(), RunOptions{Root: root, Resume: true, Force: true})
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Succeeded)
	assert.Equal(t, calls, mock.CallCount())

	fo, ok := outcomeFor(stats, "forms/orders.prg")
	require.True(t, ok)
	assert.Equal(t, storage.FileSkipped, fo.Status)
	assert.Equal(t, "unchanged since last successful run", fo.Reason)

	// The skip recorded above must not hide the earlier success
	stats, err = r.Run(context.Background(), RunOptions{Root: root, Resume: true, Force: true})
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Succeeded)
	assert.Equal(t, 0, stats.Failed)
	assert.Equal(t, calls, mock.CallCount())
}

func TestRunner_ForceOverwritesOutput(t *testing.T) {
	root := writeTree(t)
	out := filepath.Join(root, "forms", "orders_commented.prg")
	require.NoError(t, os.WriteFile(out, []byte("old"), 0o644))

	mock := scripted("", "")
	stats, err := newRunner(t, mock, nil).Run(context.Background(), RunOptions{Root: root, Force: true})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Succeeded)
	assert.Equal(t, 0, stats.Failed)

	fo, ok := outcomeFor(stats, "forms/orders.prg")
	require.True(t, ok)
	assert.Equal(t, storage.FileSucceeded, fo.Status)

	written, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(written), "PROCEDURE SaveOrder")
}

func TestRunner_ExistingOutputSkipped(t *testing.T) {
	root := writeTree(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "forms", "orders_commented.prg"), []byte("old"), 0o644))

	mock := scripted("", "")
	stats, err := newRunner(t, mock, nil).Run(context.Background(), RunOptions{Root: root})
	require.NoError(t, err)
	fo, ok := outcomeFor(stats, "forms/orders.prg")
	require.True(t, ok)
	assert.Equal(t, "output already exists", fo.Reason)
	assert.Equal(t, 0, mock.CallCount())
}

func TestRunner_DryRun(t *testing.T) {
	root := writeTree(t)
	mock := scripted("", "")

	stats, err := newRunner(t, mock, nil).Run(context.Background(), RunOptions{Root: root, DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 0, mock.CallCount())

	fo, ok := outcomeFor(stats, "forms/orders.prg")
	require.True(t, ok)
	assert.Equal(t, storage.FileSkipped, fo.Status)
	assert.Equal(t, 4, fo.Chunks)
	assert.Contains(t, fo.Reason, "dry run")
	_, err = os.Stat(filepath.Join(root, "forms", "orders_commented.prg"))
	assert.True(t, os.IsNotExist(err))
}

func TestRunner_FailedFileIsolated(t *testing.T) {
	root := writeTree(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "forms", "bad.prg"), []byte(ordersPRG), 0o644))

	r := newRunner(t, scripted("", "forms/bad.prg"), nil)
	stats, err := r.Run(context.Background(), RunOptions{Root: root, Language: "csharp"})
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Total)

	stats, err = r.Run(context.Background(), RunOptions{Root: root, Workers: 2})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Succeeded)
	assert.Equal(t, 1, stats.Failed)
	fo, ok := outcomeFor(stats, "forms/bad.prg")
	require.True(t, ok)
	assert.Equal(t, storage.FileFailed, fo.Status)
}

func TestRunner_MaxFiles(t *testing.T) {
	root := writeTree(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "forms", "zeta.prg"), []byte(ordersPRG), 0o644))

	stats, err := newRunner(t, scripted("", ""), nil).Run(context.Background(), RunOptions{Root: root, MaxFiles: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Succeeded)
	_, ok := outcomeFor(stats, "forms/zeta.prg")
	assert.False(t, ok)
}

func TestRunner_RunInProgress(t *testing.T) {
	r := newRunner(t, scripted("", ""), nil)
	require.True(t, r.lock.TryAcquire())
	defer r.lock.Release()

	assert.True(t, r.Busy())
	_, err := r.Run(context.Background(), RunOptions{Root: t.TempDir()})
	assert.ErrorIs(t, err, ErrRunInProgress)
}

func TestRunner_UnknownLanguage(t *testing.T) {
	_, err := newRunner(t, scripted("", ""), nil).Run(context.Background(), RunOptions{Root: t.TempDir(), Language: "cobol"})
	assert.ErrorIs(t, err, language.ErrUnknownLanguage)
}
