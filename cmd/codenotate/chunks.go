package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dshills/codenotate/internal/language"
	"github.com/dshills/codenotate/internal/pipeline"
	"github.com/dshills/codenotate/internal/source"
)

func (a *app) chunksCmd() *cobra.Command {
	var lang string
	cmd := &cobra.Command{
		Use:   "chunks [file]",
		Short: "Show how a file would be split into chunks",
		Long: `Prints the chunk plan for a file: the adaptive target size, every chunk with
its line range, and any block boundary warnings. No backend is contacted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			if lang == "" {
				lang = a.cfg.Language
			}
			policy, err := resolvePolicy(a.cfg.Registry(), lang, path)
			if err != nil {
				return err
			}

			f, err := source.New(a.cfg.SourceConfig()).Read(filepath.Dir(path), path, policy.Encoding)
			if err != nil {
				return err
			}

			plan := pipeline.Plan(policy, a.cfg.PipelineConfig().Chunker, f.Text, a.logger)
			fmt.Fprintln(a.out, titleStyle.Render(f.RelPath)+mutedStyle.Render(
				fmt.Sprintf("  %s, %s", policy.Name, humanize.Bytes(uint64(f.SizeBytes)))))
			fmt.Fprint(a.out, plan.Summary())
			for _, is := range plan.Issues {
				fmt.Fprintln(a.out, warnStyle.Render("warning: ")+is.Message)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&lang, "language", "l", "", "force a language policy instead of selecting by extension")
	return cmd
}

func (a *app) languagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List the built-in language policies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := a.cfg.Registry()
			for _, name := range registry.Names() {
				p, err := registry.Lookup(name)
				if err != nil {
					return err
				}
				fmt.Fprintln(a.out, titleStyle.Render(p.Name))
				fmt.Fprintln(a.out, field("  Extensions", strings.Join(p.Extensions, " ")))
				enc := p.Encoding
				if enc == "" {
					enc = "utf-8"
				}
				fmt.Fprintln(a.out, field("  Encoding", enc))
				fmt.Fprintln(a.out, field("  Comment prefix", strings.TrimSpace(p.CommentPrefix)))
				kinds := make([]string, 0, len(p.Blocks))
				for _, b := range p.Blocks {
					kinds = append(kinds, b.Kind)
				}
				fmt.Fprintln(a.out, field("  Blocks", strings.Join(kinds, ", ")))
				fmt.Fprintln(a.out, field("  Stacked comments", p.AllowDuplicateInsertionPoints))
			}
			return nil
		},
	}
}

// resolvePolicy picks the named policy, or the one matching the extension
func resolvePolicy(registry *language.Registry, name, path string) (language.Policy, error) {
	if name != "" {
		return registry.Lookup(name)
	}
	p, ok := registry.ForPath(path)
	if !ok {
		return language.Policy{}, fmt.Errorf("no language policy for %q (known extensions: %s)",
			filepath.Ext(path), strings.Join(registry.Extensions(), " "))
	}
	return p, nil
}
