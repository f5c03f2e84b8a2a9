package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/codenotate/internal/backend"
	"github.com/dshills/codenotate/internal/config"
	"github.com/dshills/codenotate/internal/logging"
	"github.com/dshills/codenotate/internal/storage"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

// app carries the state shared by every command
type app struct {
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
	out    io.Writer
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out, logger: zap.NewNop()}

	root := &cobra.Command{
		Use:   "codenotate",
		Short: "Add explanatory comments to legacy source without touching the code",
		Long: `codenotate splits source files into coherent chunks, asks a language model
for comments on each one, and merges only comments that provably leave the
code unchanged.

Run "codenotate config init" to write a starting configuration file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			if a.verbose {
				cfg.Logging.Level = "debug"
			}
			logger, err := logging.New(cfg.Logging)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			a.cfg = cfg
			a.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
	}
	root.SetOut(out)

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file (default: ./"+config.DefaultFileName+" when present)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		a.annotateCmd(),
		a.chunksCmd(),
		a.serveCmd(),
		a.statusCmd(),
		a.configCmd(),
		a.languagesCmd(),
		a.pingCmd(),
		a.versionCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: ")+err.Error())
		os.Exit(1)
	}
}

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(a.out, "codenotate %s\n", version)
			fmt.Fprintf(a.out, "Build Time: %s\n", buildTime)
			fmt.Fprintf(a.out, "Build Mode: %s\n", storage.BuildMode)
			fmt.Fprintf(a.out, "SQLite Driver: %s\n", storage.DriverName)
			return nil
		},
	}
}

// signalContext returns a context cancelled on SIGINT or SIGTERM
func (a *app) signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			a.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

// newBackend builds the configured generation backend
func (a *app) newBackend(ctx context.Context) (backend.Backend, error) {
	b, err := backend.New(ctx, a.cfg.BackendConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize backend: %w", err)
	}
	a.logger.Debug("backend ready", zap.String("provider", b.Name()), zap.String("model", b.Model()))
	return b, nil
}

var errLedgerDisabled = errors.New("the processing ledger is disabled (ledger.enabled: false)")

// openStore opens the ledger. It returns a nil Storage when the ledger is
// disabled and the caller can run without one.
func (a *app) openStore(required bool) (storage.Storage, error) {
	if !a.cfg.Ledger.Enabled {
		if required {
			return nil, errLedgerDisabled
		}
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(a.cfg.Ledger.Path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}
	store, err := storage.NewSQLiteStorage(a.cfg.Ledger.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	return store, nil
}
