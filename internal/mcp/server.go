package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/dshills/codenotate/internal/backend"
	"github.com/dshills/codenotate/internal/config"
	"github.com/dshills/codenotate/internal/extractor"
	"github.com/dshills/codenotate/internal/language"
	"github.com/dshills/codenotate/internal/pipeline"
	"github.com/dshills/codenotate/internal/sink"
	"github.com/dshills/codenotate/internal/source"
	"github.com/dshills/codenotate/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "codenotate"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	cfg      *config.Config
	registry *language.Registry
	proc     *pipeline.Processor
	runner   *pipeline.Runner
	scanner  *source.Scanner
	sink     *sink.Sink
	storage  storage.Storage // Nil when the ledger is disabled
	logger   *zap.Logger
}

// NewServer creates a new MCP server instance. The server takes ownership of
// store and closes it when Serve returns.
func NewServer(cfg *config.Config, b backend.Backend, store storage.Storage, logger *zap.Logger) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	proc, err := pipeline.NewProcessor(b, extractor.NewCache(cfg.Context.CacheSize), cfg.PipelineConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize processor: %w", err)
	}

	registry := cfg.Registry()
	snk := sink.New(cfg.SinkConfig(), logger)
	runner := pipeline.NewRunner(proc, registry, cfg.SourceConfig(), snk, store, logger)

	s := &Server{
		mcp:      server.NewMCPServer(ServerName, ServerVersion),
		cfg:      cfg,
		registry: registry,
		proc:     proc,
		runner:   runner,
		scanner:  source.New(cfg.SourceConfig()),
		sink:     snk,
		storage:  store,
		logger:   logger,
	}

	// Register tools
	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer func() {
		if s.storage != nil {
			_ = s.storage.Close()
		}
	}()
	s.logger.Info("mcp server started",
		zap.String("provider", s.proc.Backend().Name()),
		zap.String("model", s.proc.Backend().Model()))
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() error {
	s.mcp.AddTool(annotateFileTool(), s.handleAnnotateFile)
	s.mcp.AddTool(annotateDirectoryTool(), s.handleAnnotateDirectory)
	s.mcp.AddTool(previewChunksTool(), s.handlePreviewChunks)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
	return nil
}
