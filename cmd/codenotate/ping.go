package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/codenotate/internal/extractor"
)

// pingSamples are tiny programs used to exercise the context request
var pingSamples = map[string]string{
	"vfp": `* Customer lookup
PROCEDURE FindCustomer
  LPARAMETERS tcCode
  SELECT customers
  LOCATE FOR cust_code = tcCode
  RETURN FOUND()
ENDPROC`,
	"csharp": `public class CustomerLookup
{
    public bool Find(string code)
    {
        return _customers.ContainsKey(code);
    }
}`,
	"go": `package lookup

func FindCustomer(customers map[string]string, code string) bool {
	_, ok := customers[code]
	return ok
}`,
}

func (a *app) pingCmd() *cobra.Command {
	var lang string
	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Send a small file-context request to check the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if lang == "" {
				lang = a.cfg.Language
			}
			if lang == "" {
				lang = "vfp"
			}
			policy, err := a.cfg.Registry().Lookup(lang)
			if err != nil {
				return err
			}
			sample, ok := pingSamples[policy.Name]
			if !ok {
				return fmt.Errorf("no ping sample for %s", policy.Name)
			}

			ctx, cancel := a.signalContext()
			defer cancel()

			b, err := a.newBackend(ctx)
			if err != nil {
				return err
			}
			cfg := a.cfg.PipelineConfig().Extractor
			cfg.Attempts = 1
			ext, err := extractor.New(b, nil, cfg, a.logger)
			if err != nil {
				return err
			}

			fmt.Fprintln(a.out, field("Backend", b.Name()+" / "+b.Model()))
			start := time.Now()
			fc, _, err := ext.Extract(ctx, policy, "ping"+policy.Extensions[0], sample)
			elapsed := time.Since(start).Round(time.Millisecond)
			if err != nil {
				fmt.Fprintln(a.out, field("Result", errorStyle.Render("failed")))
				return err
			}
			fmt.Fprintln(a.out, field("Result", okStyle.Render("ok")))
			fmt.Fprintln(a.out, field("Latency", elapsed))
			fmt.Fprintln(a.out, field("Overview", strings.TrimSpace(fc.Overview)))
			names := make([]string, 0, len(fc.NamedBlocks))
			for _, nb := range fc.NamedBlocks {
				names = append(names, nb.Name)
			}
			fmt.Fprintln(a.out, field("Named blocks", strings.Join(names, ", ")))
			return nil
		},
	}
	cmd.Flags().StringVarP(&lang, "language", "l", "", "language of the ping sample (default: vfp)")
	return cmd
}
