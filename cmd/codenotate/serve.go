package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/codenotate/internal/mcp"
	"github.com/dshills/codenotate/internal/storage"
)

func (a *app) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdio",
		Long: `Starts a Model Context Protocol server on standard input and output.
Logs go to stderr; stdout is reserved for the protocol.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.signalContext()
			defer cancel()

			b, err := a.newBackend(ctx)
			if err != nil {
				return err
			}
			store, err := a.openStore(false)
			if err != nil {
				return err
			}

			server, err := mcp.NewServer(a.cfg, b, store, a.logger)
			if err != nil {
				if store != nil {
					_ = store.Close()
				}
				return fmt.Errorf("failed to create MCP server: %w", err)
			}

			a.logger.Info("codenotate MCP server starting",
				zap.String("version", version),
				zap.String("build_mode", storage.BuildMode),
				zap.String("driver", storage.DriverName),
				zap.Bool("ledger", store != nil))

			errCh := make(chan error, 1)
			go func() {
				errCh <- server.Serve(ctx)
			}()

			select {
			case <-ctx.Done():
				a.logger.Info("server stopped")
				return nil
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("server error: %w", err)
				}
				return nil
			}
		},
	}
}
