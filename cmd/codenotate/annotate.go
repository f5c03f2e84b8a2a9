package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dshills/codenotate/internal/assembler"
	"github.com/dshills/codenotate/internal/extractor"
	"github.com/dshills/codenotate/internal/pipeline"
	"github.com/dshills/codenotate/internal/sink"
	"github.com/dshills/codenotate/internal/source"
	"github.com/dshills/codenotate/internal/storage"
)

type annotateFlags struct {
	dryRun    bool
	maxFiles  int
	resume    bool
	force     bool
	language  string
	workers   int
	stdout    bool
	outputDir string
	inPlace   bool
	backup    bool
	strict    bool
}

func (a *app) annotateCmd() *cobra.Command {
	var f annotateFlags
	cmd := &cobra.Command{
		Use:   "annotate [path]",
		Short: "Annotate a file or every supported file under a directory",
		Long: `Annotates source files. Each file is split into chunks, the backend is asked
for a file overview and then for comments on each chunk, and every comment is
validated before it is merged. A file is written only when its code is
byte-for-byte unchanged after removing the added comments.

Examples:
  codenotate annotate ./legacy
  codenotate annotate --dry-run --max-files 10 ./legacy
  codenotate annotate --stdout orders.prg`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := f.apply(a); err != nil {
				return err
			}
			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			if f.stdout {
				return a.annotateToStdout(path, f)
			}
			return a.annotateTree(path, f)
		},
	}

	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "plan chunks only; no backend calls and no writes")
	cmd.Flags().IntVar(&f.maxFiles, "max-files", 0, "maximum number of files to process (0 for no limit)")
	cmd.Flags().BoolVar(&f.resume, "resume", true, "skip files that already succeeded with identical content")
	cmd.Flags().BoolVar(&f.force, "force", false, "process and overwrite files whose output already exists")
	cmd.Flags().StringVarP(&f.language, "language", "l", "", "force a language policy instead of selecting by extension")
	cmd.Flags().IntVarP(&f.workers, "workers", "w", 0, "files processed concurrently (default from config)")
	cmd.Flags().BoolVar(&f.stdout, "stdout", false, "print the annotated document of a single file instead of writing it")
	cmd.Flags().StringVarP(&f.outputDir, "output-dir", "o", "", "mirror the source tree into this directory")
	cmd.Flags().BoolVar(&f.inPlace, "in-place", false, "replace the source files")
	cmd.Flags().BoolVar(&f.backup, "backup", false, "copy each source to <name>_backup before replacing it (with --in-place)")
	cmd.Flags().BoolVar(&f.strict, "strict", false, "reject a file when any chunk fails")
	return cmd
}

// apply folds command-line overrides into the loaded config
func (f annotateFlags) apply(a *app) error {
	cfg := a.cfg
	if f.language != "" {
		cfg.Language = f.language
	}
	if f.workers > 0 {
		cfg.Annotation.FileWorkers = f.workers
	}
	if f.outputDir != "" {
		cfg.Output.Dir = f.outputDir
	}
	if f.inPlace {
		cfg.Output.InPlace = true
	}
	if f.backup {
		cfg.Output.Backup = true
	}
	if f.force {
		cfg.Output.Overwrite = true
	}
	if f.strict {
		cfg.Assembly.FailurePolicy = string(assembler.PolicyStrict)
	}
	if f.maxFiles < 0 {
		return errors.New("--max-files cannot be negative")
	}
	return cfg.Validate()
}

func (a *app) newProcessor(ctx context.Context) (*pipeline.Processor, error) {
	b, err := a.newBackend(ctx)
	if err != nil {
		return nil, err
	}
	return pipeline.NewProcessor(b, extractor.NewCache(a.cfg.Context.CacheSize), a.cfg.PipelineConfig(), a.logger)
}

// annotateToStdout processes one file and prints the document
func (a *app) annotateToStdout(path string, f annotateFlags) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return errors.New("--stdout needs a single file")
	}

	policy, err := resolvePolicy(a.cfg.Registry(), a.cfg.Language, path)
	if err != nil {
		return err
	}

	file, err := source.New(a.cfg.SourceConfig()).Read(filepath.Dir(path), path, policy.Encoding)
	if err != nil {
		return err
	}

	ctx, cancel := a.signalContext()
	defer cancel()

	if f.dryRun {
		plan := pipeline.Plan(policy, a.cfg.PipelineConfig().Chunker, file.Text, a.logger)
		fmt.Fprint(a.out, plan.Summary())
		return nil
	}

	proc, err := a.newProcessor(ctx)
	if err != nil {
		return err
	}
	res := proc.ProcessFile(ctx, policy, file)
	if !res.Success {
		return fmt.Errorf("%s rejected: %s", file.RelPath, res.Reason)
	}
	fmt.Fprintln(a.out, res.Document)
	return nil
}

// annotateTree runs the batch runner over path
func (a *app) annotateTree(path string, f annotateFlags) error {
	ctx, cancel := a.signalContext()
	defer cancel()

	proc, err := a.newProcessor(ctx)
	if err != nil {
		return err
	}
	store, err := a.openStore(false)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	runner := pipeline.NewRunner(proc, a.cfg.Registry(), a.cfg.SourceConfig(), sink.New(a.cfg.SinkConfig(), a.logger), store, a.logger)
	var mu sync.Mutex
	runner.OnFile = func(fo pipeline.FileOutcome, p *pipeline.Progress) {
		mu.Lock()
		defer mu.Unlock()
		line := fmt.Sprintf("[%d/%d] %s %s", p.Done(), p.TotalFiles.Load(), statusLabel(fo.Status), fo.Path)
		if fo.Reason != "" {
			line += mutedStyle.Render("  " + fo.Reason)
		}
		fmt.Fprintln(a.out, line)
	}

	fmt.Fprintln(a.out, titleStyle.Render("Annotating "+path))
	stats, err := runner.Run(ctx, pipeline.RunOptions{
		Root:     path,
		Language: a.cfg.Language,
		DryRun:   f.dryRun,
		MaxFiles: f.maxFiles,
		Resume:   f.resume && !f.force,
		Force:    f.force,
		Workers:  a.cfg.Annotation.FileWorkers,
	})
	if stats != nil {
		a.printRunStats(stats, proc)
	}
	if err != nil {
		return err
	}
	if stats.Failed > 0 {
		return fmt.Errorf("%d of %d files failed", stats.Failed, stats.Total)
	}
	return nil
}

func (a *app) printRunStats(stats *pipeline.RunStats, proc *pipeline.Processor) {
	var written int64
	for _, fo := range stats.Files {
		if fo.Status != storage.FileSucceeded || fo.OutputPath == "" {
			continue
		}
		if info, err := os.Stat(fo.OutputPath); err == nil {
			written += info.Size()
		}
	}

	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, titleStyle.Render("Summary"))
	if stats.RunID != "" {
		fmt.Fprintln(a.out, field("Run", stats.RunID))
	}
	fmt.Fprintln(a.out, field("Backend", proc.Backend().Name()+" / "+proc.Backend().Model()))
	fmt.Fprintln(a.out, field("Files", stats.Total))
	fmt.Fprintln(a.out, field("Succeeded", okStyle.Render(fmt.Sprint(stats.Succeeded))))
	if stats.Failed > 0 {
		fmt.Fprintln(a.out, field("Failed", errorStyle.Render(fmt.Sprint(stats.Failed))))
	} else {
		fmt.Fprintln(a.out, field("Failed", 0))
	}
	fmt.Fprintln(a.out, field("Skipped", stats.Skipped))
	fmt.Fprintln(a.out, field("Written", humanize.Bytes(uint64(written))))
	fmt.Fprintln(a.out, field("Duration", stats.Duration.Round(time.Millisecond)))
	if stats.Cancelled {
		fmt.Fprintln(a.out, warnStyle.Render("Run cancelled before all files were processed"))
	}
}
