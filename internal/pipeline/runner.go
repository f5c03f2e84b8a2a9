package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/codenotate/internal/language"
	"github.com/dshills/codenotate/internal/sink"
	"github.com/dshills/codenotate/internal/source"
	"github.com/dshills/codenotate/internal/storage"
	"github.com/dshills/codenotate/pkg/types"
)

// ErrRunInProgress is returned when Run is called while another run is active
var ErrRunInProgress = errors.New("a run is already in progress")

// RunOptions controls one batch run
type RunOptions struct {
	Root     string
	Language string // Force one policy; empty selects by extension
	DryRun   bool   // Plan chunks only; no backend calls, no writes
	MaxFiles int    // 0 means unlimited
	Resume   bool   // Skip files whose latest ledger record succeeded with the same hash
	Force    bool   // Process and overwrite files whose output already exists
	Workers  int    // Files processed concurrently (default: 1)
}

// Progress tracks run progress. Fields are updated atomically.
type Progress struct {
	TotalFiles     atomic.Int32
	SucceededFiles atomic.Int32
	FailedFiles    atomic.Int32
	SkippedFiles   atomic.Int32
}

// Done returns the number of files finished so far
func (p *Progress) Done() int32 {
	return p.SucceededFiles.Load() + p.FailedFiles.Load() + p.SkippedFiles.Load()
}

// FileOutcome is the result of one file within a run
type FileOutcome struct {
	Path       string
	Status     storage.FileStatus
	Reason     string
	OutputPath string
	Chunks     int
	Result     *types.ProcessingResult // Nil for skipped files
}

// RunStats summarises a finished run
type RunStats struct {
	RunID     string
	Root      string
	Total     int
	Succeeded int
	Failed    int
	Skipped   int
	Files     []FileOutcome
	Duration  time.Duration
	Cancelled bool
}

// Runner processes a directory tree file by file
type Runner struct {
	proc     *Processor
	registry *language.Registry
	source   source.Config
	sink     *sink.Sink
	store    storage.Storage // Optional
	lock     RunLock
	logger   *zap.Logger

	// OnFile is called after each file finishes, from the worker goroutine
	OnFile func(FileOutcome, *Progress)
}

// NewRunner creates a Runner. store may be nil to run without a ledger.
func NewRunner(proc *Processor, registry *language.Registry, src source.Config, snk *sink.Sink, store storage.Storage, logger *zap.Logger) *Runner {
	if registry == nil {
		registry = language.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		proc:     proc,
		registry: registry,
		source:   src,
		sink:     snk,
		store:    store,
		logger:   logger,
	}
}

// Busy reports whether a run is active
func (r *Runner) Busy() bool {
	return r.lock.Held()
}

// Run discovers files under opts.Root and processes each one. A failing
// file never stops the run; only cancellation or an unusable root does.
func (r *Runner) Run(ctx context.Context, opts RunOptions) (*RunStats, error) {
	if !r.lock.TryAcquire() {
		return nil, ErrRunInProgress
	}
	defer r.lock.Release()

	start := time.Now()
	var forced *language.Policy
	scanCfg := r.source
	if opts.Language != "" {
		p, err := r.registry.Lookup(opts.Language)
		if err != nil {
			return nil, err
		}
		forced = &p
		scanCfg.Extensions = p.Extensions
	} else if len(scanCfg.Extensions) == 0 {
		scanCfg.Extensions = r.registry.Extensions()
	}
	scanner := source.New(scanCfg)

	paths, skipped, err := scanner.Discover(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to discover files: %w", err)
	}
	if opts.MaxFiles > 0 && len(paths) > opts.MaxFiles {
		paths = paths[:opts.MaxFiles]
	}

	run := &storage.Run{
		RootPath:      opts.Root,
		Language:      opts.Language,
		Provider:      r.proc.Backend().Name(),
		Model:         r.proc.Backend().Model(),
		FailurePolicy: string(r.proc.FailurePolicy()),
		DryRun:        opts.DryRun,
	}
	if r.store != nil {
		if err := r.store.CreateRun(ctx, run); err != nil {
			return nil, fmt.Errorf("failed to create run: %w", err)
		}
	}

	log := r.logger.With(zap.String("run_id", run.ID), zap.String("root", opts.Root))
	log.Info("run started",
		zap.Int("files", len(paths)),
		zap.Int("skipped_by_scan", len(skipped)),
		zap.Bool("dry_run", opts.DryRun))

	progress := &Progress{}
	progress.TotalFiles.Store(int32(len(paths) + len(skipped)))

	outcomes := make([]FileOutcome, 0, len(paths)+len(skipped))
	for _, s := range skipped {
		fo := FileOutcome{Path: source.RelPath(opts.Root, s.Path), Status: storage.FileSkipped, Reason: s.Reason}
		r.finish(ctx, run, fo, nil, progress)
		outcomes = append(outcomes, fo)
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	results := make([]FileOutcome, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range paths {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			fo, f := r.processPath(gctx, opts, forced, scanner, path)
			results[i] = fo
			r.finish(gctx, run, fo, f, progress)
			return nil
		})
	}
	waitErr := g.Wait()
	for _, fo := range results {
		if fo.Path != "" {
			outcomes = append(outcomes, fo)
		}
	}

	stats := &RunStats{
		RunID:     run.ID,
		Root:      opts.Root,
		Total:     int(progress.TotalFiles.Load()),
		Succeeded: int(progress.SucceededFiles.Load()),
		Failed:    int(progress.FailedFiles.Load()),
		Skipped:   int(progress.SkippedFiles.Load()),
		Files:     outcomes,
		Duration:  time.Since(start),
		Cancelled: ctx.Err() != nil || waitErr != nil,
	}

	if r.store != nil {
		run.FilesTotal = stats.Total
		run.FilesSucceeded = stats.Succeeded
		run.FilesFailed = stats.Failed
		run.FilesSkipped = stats.Skipped
		run.Status = storage.RunCompleted
		if stats.Cancelled {
			run.Status = storage.RunCancelled
			run.Error = "cancelled"
		}
		// The run context may already be done; the final update must still land
		if err := r.store.FinishRun(context.WithoutCancel(ctx), run); err != nil {
			log.Error("failed to finish run", zap.Error(err))
		}
	}

	log.Info("run finished",
		zap.Int("succeeded", stats.Succeeded),
		zap.Int("failed", stats.Failed),
		zap.Int("skipped", stats.Skipped),
		zap.Duration("duration", stats.Duration))

	if stats.Cancelled {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		return stats, waitErr
	}
	return stats, nil
}

// processPath handles one discovered file in isolation
func (r *Runner) processPath(ctx context.Context, opts RunOptions, forced *language.Policy, scanner *source.Scanner, path string) (FileOutcome, *source.File) {
	fo := FileOutcome{Path: source.RelPath(opts.Root, path)}

	var policy language.Policy
	if forced != nil {
		policy = *forced
	} else {
		p, ok := r.registry.ForPath(path)
		if !ok {
			fo.Status, fo.Reason = storage.FileSkipped, "no language policy for extension"
			return fo, nil
		}
		policy = p
	}

	f, err := scanner.Read(opts.Root, path, policy.Encoding)
	if err != nil {
		fo.Status, fo.Reason = storage.FileFailed, err.Error()
		return fo, nil
	}

	if opts.Resume && r.store != nil {
		prev, err := r.store.GetLatestSuccess(ctx, f.RelPath)
		if err == nil && prev.ContentHash == f.Hash {
			fo.Status, fo.Reason = storage.FileSkipped, "unchanged since last successful run"
			return fo, f
		}
	}

	snk := r.sink.WithOverwrite(opts.Force)
	if !opts.DryRun && !opts.Force && snk.Exists(f) {
		fo.Status, fo.Reason = storage.FileSkipped, "output already exists"
		fo.OutputPath = snk.OutputPath(f)
		return fo, f
	}

	if opts.DryRun {
		plan := r.proc.Plan(policy, f.Text)
		fo.Status = storage.FileSkipped
		fo.Reason = fmt.Sprintf("dry run: %d chunks planned", len(plan.Chunks))
		fo.Chunks = len(plan.Chunks)
		fo.OutputPath = snk.OutputPath(f)
		return fo, f
	}

	res := r.proc.ProcessFile(ctx, policy, f)
	fo.Result = res
	fo.Chunks = len(res.Chunks)
	if !res.Success {
		fo.Status, fo.Reason = storage.FileFailed, res.Reason
		return fo, f
	}

	out, err := snk.Write(f, res.Document)
	if err != nil {
		fo.Status, fo.Reason = storage.FileFailed, fmt.Sprintf("write failed: %v", err)
		return fo, f
	}
	fo.Status = storage.FileSucceeded
	fo.OutputPath = out
	return fo, f
}

// finish counts the outcome, records it in the ledger and notifies OnFile
func (r *Runner) finish(ctx context.Context, run *storage.Run, fo FileOutcome, f *source.File, progress *Progress) {
	switch fo.Status {
	case storage.FileSucceeded:
		progress.SucceededFiles.Add(1)
	case storage.FileFailed:
		progress.FailedFiles.Add(1)
	default:
		progress.SkippedFiles.Add(1)
	}

	log := r.logger.With(zap.String("path", fo.Path), zap.String("status", string(fo.Status)))
	if fo.Reason != "" {
		log = log.With(zap.String("reason", fo.Reason))
	}
	if fo.Status == storage.FileFailed {
		log.Warn("file finished")
	} else {
		log.Info("file finished")
	}

	if r.store != nil && !run.DryRun {
		file, chunks := ledgerRecords(run.ID, fo, f)
		if err := r.store.RecordFile(context.WithoutCancel(ctx), file, chunks); err != nil {
			log.Error("failed to record file", zap.Error(err))
		}
	}

	if r.OnFile != nil {
		r.OnFile(fo, progress)
	}
}

// ledgerRecords converts an outcome into ledger rows
func ledgerRecords(runID string, fo FileOutcome, f *source.File) (*storage.FileRecord, []*storage.ChunkRecord) {
	file := &storage.FileRecord{
		RunID:      runID,
		FilePath:   fo.Path,
		Status:     fo.Status,
		Reason:     fo.Reason,
		OutputPath: fo.OutputPath,
	}
	if f != nil {
		file.ContentHash = f.Hash
		file.SizeBytes = f.SizeBytes
	}

	res := fo.Result
	if res == nil {
		return file, nil
	}
	file.Language = res.Language
	file.ChunksTotal = len(res.Chunks)
	file.SuccessRate = res.SuccessRate()
	file.CommentLines = res.Metrics.CommentLines
	file.Duration = res.Duration

	chunks := make([]*storage.ChunkRecord, 0, len(res.Chunks))
	for _, ac := range res.Chunks {
		if ac.Success && !ac.Passthrough {
			file.ChunksAnnotated++
		}
		rec := &storage.ChunkRecord{
			ChunkIndex: ac.ChunkIndex,
			Name:       ac.Name,
			StartLine:  ac.StartLine,
			EndLine:    ac.EndLine,
			Success:    ac.Success,
			Attempts:   ac.Attempts,
			Issues:     res.ChunkIssues[ac.ChunkIndex],
		}
		chunks = append(chunks, rec)
	}
	return file, chunks
}
