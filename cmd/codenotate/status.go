package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/codenotate/internal/storage"
)

func (a *app) statusCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "status [run-id]",
		Short: "Show ledger statistics, recent runs, or the files of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore(true)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			if len(args) == 1 {
				return a.printRun(cmd, store, args[0])
			}

			st, err := store.GetStatus(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, titleStyle.Render("Ledger"))
			fmt.Fprintln(a.out, field("Path", a.cfg.Ledger.Path))
			fmt.Fprintln(a.out, field("Size", fmt.Sprintf("%.2f MB", st.DatabaseSizeMB)))
			fmt.Fprintln(a.out, field("Runs", st.Runs))
			fmt.Fprintln(a.out, field("Files tracked", st.FilesTracked))
			fmt.Fprintln(a.out, field("Succeeded", okStyle.Render(fmt.Sprint(st.FilesSucceeded))))
			fmt.Fprintln(a.out, field("Failed", st.FilesFailed))
			fmt.Fprintln(a.out, field("Skipped", st.FilesSkipped))
			fmt.Fprintln(a.out, field("Chunks recorded", st.ChunksRecorded))

			runs, err := store.ListRuns(ctx, limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				return nil
			}
			fmt.Fprintln(a.out)
			fmt.Fprintln(a.out, titleStyle.Render("Recent runs"))
			for _, r := range runs {
				fmt.Fprintf(a.out, "%s  %-9s %s  %d ok / %d failed / %d skipped  %s\n",
					r.ID, r.Status, r.StartedAt.Format(time.DateTime),
					r.FilesSucceeded, r.FilesFailed, r.FilesSkipped, mutedStyle.Render(r.RootPath))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "number of recent runs to list")
	return cmd
}

func (a *app) printRun(cmd *cobra.Command, store storage.Storage, id string) error {
	run, err := store.GetRun(cmd.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("run %s not found", id)
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(a.out, titleStyle.Render("Run "+run.ID))
	fmt.Fprintln(a.out, field("Root", run.RootPath))
	fmt.Fprintln(a.out, field("Status", run.Status))
	fmt.Fprintln(a.out, field("Backend", run.Provider+" / "+run.Model))
	fmt.Fprintln(a.out, field("Policy", run.FailurePolicy))
	fmt.Fprintln(a.out, field("Started", run.StartedAt.Format(time.DateTime)))
	if !run.FinishedAt.IsZero() {
		fmt.Fprintln(a.out, field("Duration", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond)))
	}

	files, err := store.ListFilesByRun(cmd.Context(), id)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out)
	for _, f := range files {
		line := statusLabel(f.Status) + " " + f.FilePath
		if f.Status == storage.FileSucceeded {
			line += mutedStyle.Render(fmt.Sprintf("  %d/%d chunks, %d comment lines", f.ChunksAnnotated, f.ChunksTotal, f.CommentLines))
		} else if f.Reason != "" {
			line += mutedStyle.Render("  " + f.Reason)
		}
		fmt.Fprintln(a.out, line)
	}
	return nil
}
