package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/codenotate/internal/language"
	"github.com/dshills/codenotate/internal/pipeline"
	"github.com/dshills/codenotate/internal/storage"
	"github.com/dshills/codenotate/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams       = -32602 // Invalid method parameters
	ErrorCodeInternalError       = -32603 // Internal JSON-RPC error
	ErrorCodeUnsupportedLanguage = -32001 // No language policy for the file
	ErrorCodeRunInProgress       = -32002 // Another directory run is active
	ErrorCodeNotFound            = -32003 // Unknown run
	ErrorCodeLedgerDisabled      = -32004 // Status requested without a ledger
)

// maxIssuesReported caps the issue list in tool responses
const maxIssuesReported = 20

// handleAnnotateFile handles the annotate_file tool invocation
func (s *Server) handleAnnotateFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, err := requirePath(args, false)
	if err != nil {
		return nil, err
	}
	policy, err := s.resolvePolicy(args, path)
	if err != nil {
		return nil, err
	}

	f, err := s.scanner.Read(filepath.Dir(path), path, policy.Encoding)
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "failed to read file", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}

	res := s.proc.ProcessFile(ctx, policy, f)
	response := map[string]interface{}{
		"path":         path,
		"language":     policy.Name,
		"success":      res.Success,
		"success_rate": res.SuccessRate(),
		"chunks":       len(res.Chunks),
		"duration_ms":  res.Duration.Milliseconds(),
		"metrics":      res.Metrics,
		"issue_count":  res.IssueCount(),
		"issues":       collectIssues(res),
	}
	if !res.Success {
		response["reason"] = res.Reason
		return mcp.NewToolResultText(formatJSON(response)), nil
	}

	if getBoolDefault(args, "write", false) {
		out, err := s.sink.Write(f, res.Document)
		if err != nil {
			return nil, newMCPError(ErrorCodeInternalError, "failed to write annotated file", map[string]interface{}{
				"error": err.Error(),
			})
		}
		response["output_path"] = out
	} else {
		response["document"] = res.Document
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleAnnotateDirectory handles the annotate_directory tool invocation
func (s *Server) handleAnnotateDirectory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, err := requirePath(args, true)
	if err != nil {
		return nil, err
	}

	maxFiles := getIntDefault(args, "max_files", 0)
	if maxFiles < 0 {
		return nil, newMCPError(ErrorCodeInvalidParams, "max_files cannot be negative", map[string]interface{}{
			"param": "max_files",
			"value": maxFiles,
		})
	}

	lang := getStringDefault(args, "language", s.cfg.Language)
	if lang != "" {
		if _, err := s.registry.Lookup(lang); err != nil {
			return nil, newMCPError(ErrorCodeUnsupportedLanguage, "unknown language", map[string]interface{}{
				"param":   "language",
				"value":   lang,
				"allowed": s.registry.Names(),
			})
		}
	}

	stats, err := s.runner.Run(ctx, pipeline.RunOptions{
		Root:     path,
		Language: lang,
		DryRun:   getBoolDefault(args, "dry_run", false),
		MaxFiles: maxFiles,
		Resume:   getBoolDefault(args, "resume", true),
		Force:    getBoolDefault(args, "force", false),
		Workers:  s.cfg.Annotation.FileWorkers,
	})
	if errors.Is(err, pipeline.ErrRunInProgress) {
		return nil, newMCPError(ErrorCodeRunInProgress, "another annotation run is in progress", nil)
	}
	if err != nil && stats == nil {
		return nil, newMCPError(ErrorCodeInternalError, "annotation run failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	files := make([]map[string]interface{}, 0, len(stats.Files))
	for _, fo := range stats.Files {
		entry := map[string]interface{}{
			"path":   fo.Path,
			"status": string(fo.Status),
		}
		if fo.Reason != "" {
			entry["reason"] = fo.Reason
		}
		if fo.OutputPath != "" {
			entry["output_path"] = fo.OutputPath
		}
		files = append(files, entry)
	}

	response := map[string]interface{}{
		"run_id":      stats.RunID,
		"total":       stats.Total,
		"succeeded":   stats.Succeeded,
		"failed":      stats.Failed,
		"skipped":     stats.Skipped,
		"cancelled":   stats.Cancelled,
		"duration_ms": stats.Duration.Milliseconds(),
		"files":       files,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handlePreviewChunks handles the preview_chunks tool invocation
func (s *Server) handlePreviewChunks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, err := requirePath(args, false)
	if err != nil {
		return nil, err
	}
	policy, err := s.resolvePolicy(args, path)
	if err != nil {
		return nil, err
	}

	f, err := s.scanner.Read(filepath.Dir(path), path, policy.Encoding)
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "failed to read file", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}

	plan := s.proc.Plan(policy, f.Text)
	chunks := make([]map[string]interface{}, 0, len(plan.Chunks))
	for _, ch := range plan.Chunks {
		chunks = append(chunks, map[string]interface{}{
			"index":      ch.Index,
			"name":       ch.DisplayName(),
			"kind":       string(ch.Kind),
			"start_line": ch.StartLine + 1,
			"end_line":   ch.EndLine,
			"tokens":     ch.TokenCount,
		})
	}
	warnings := make([]string, 0, len(plan.Issues))
	for _, is := range plan.Issues {
		warnings = append(warnings, is.Message)
	}

	response := map[string]interface{}{
		"path":        path,
		"language":    policy.Name,
		"total_lines": plan.TotalLines,
		"target_size": plan.TargetSize,
		"chunks":      chunks,
		"warnings":    warnings,
		"summary":     plan.Summary(),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		args = map[string]interface{}{}
	}

	if s.storage == nil {
		return nil, newMCPError(ErrorCodeLedgerDisabled, "the processing ledger is disabled", nil)
	}

	limit := getIntDefault(args, "limit", 5)
	if limit < 1 || limit > 100 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	if runID := getStringDefault(args, "run_id", ""); runID != "" {
		return s.runStatus(ctx, runID)
	}

	status, err := s.storage.GetStatus(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}
	runs, err := s.storage.ListRuns(ctx, limit)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to list runs", map[string]interface{}{
			"error": err.Error(),
		})
	}

	recent := make([]map[string]interface{}, 0, len(runs))
	for _, r := range runs {
		recent = append(recent, runSummary(r))
	}

	response := map[string]interface{}{
		"backend": map[string]interface{}{
			"provider": s.proc.Backend().Name(),
			"model":    s.proc.Backend().Model(),
		},
		"statistics": map[string]interface{}{
			"runs":            status.Runs,
			"files_tracked":   status.FilesTracked,
			"files_succeeded": status.FilesSucceeded,
			"files_failed":    status.FilesFailed,
			"files_skipped":   status.FilesSkipped,
			"chunks_recorded": status.ChunksRecorded,
			"ledger_size_mb":  fmt.Sprintf("%.2f", status.DatabaseSizeMB),
		},
		"run_in_progress": s.runner.Busy(),
		"recent_runs":     recent,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

func (s *Server) runStatus(ctx context.Context, runID string) (*mcp.CallToolResult, error) {
	run, err := s.storage.GetRun(ctx, runID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, newMCPError(ErrorCodeNotFound, "run not found", map[string]interface{}{
			"param": "run_id",
			"value": runID,
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get run", map[string]interface{}{
			"error": err.Error(),
		})
	}

	files, err := s.storage.ListFilesByRun(ctx, runID)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to list files", map[string]interface{}{
			"error": err.Error(),
		})
	}

	entries := make([]map[string]interface{}, 0, len(files))
	for _, f := range files {
		entries = append(entries, map[string]interface{}{
			"path":             f.FilePath,
			"status":           string(f.Status),
			"reason":           f.Reason,
			"chunks_total":     f.ChunksTotal,
			"chunks_annotated": f.ChunksAnnotated,
			"success_rate":     f.SuccessRate,
			"comment_lines":    f.CommentLines,
		})
	}

	response := runSummary(run)
	response["files"] = entries
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

func runSummary(r *storage.Run) map[string]interface{} {
	out := map[string]interface{}{
		"run_id":          r.ID,
		"root":            r.RootPath,
		"status":          string(r.Status),
		"provider":        r.Provider,
		"model":           r.Model,
		"failure_policy":  r.FailurePolicy,
		"dry_run":         r.DryRun,
		"files_total":     r.FilesTotal,
		"files_succeeded": r.FilesSucceeded,
		"files_failed":    r.FilesFailed,
		"files_skipped":   r.FilesSkipped,
		"started_at":      r.StartedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if !r.FinishedAt.IsZero() {
		out["finished_at"] = r.FinishedAt.Format("2006-01-02T15:04:05Z07:00")
	}
	return out
}

// resolvePolicy picks the language from the argument, the config, then the
// file extension
func (s *Server) resolvePolicy(args map[string]interface{}, path string) (language.Policy, error) {
	name := getStringDefault(args, "language", s.cfg.Language)
	if name != "" {
		p, err := s.registry.Lookup(name)
		if err != nil {
			return language.Policy{}, newMCPError(ErrorCodeUnsupportedLanguage, "unknown language", map[string]interface{}{
				"param":   "language",
				"value":   name,
				"allowed": s.registry.Names(),
			})
		}
		return p, nil
	}
	p, ok := s.registry.ForPath(path)
	if !ok {
		return language.Policy{}, newMCPError(ErrorCodeUnsupportedLanguage, "no language policy for file extension", map[string]interface{}{
			"param":      "path",
			"extension":  filepath.Ext(path),
			"extensions": s.registry.Extensions(),
		})
	}
	return p, nil
}

// collectIssues flattens the non-info issues of a result
func collectIssues(res *types.ProcessingResult) []string {
	var out []string
	add := func(prefix string, issues []types.Issue) {
		for _, is := range issues {
			if is.Severity == types.SeverityInfo || len(out) >= maxIssuesReported {
				continue
			}
			out = append(out, prefix+is.String())
		}
	}
	add("", res.FileIssues)
	for i := range res.Chunks {
		add(fmt.Sprintf("chunk %d: ", i+1), res.ChunkIssues[i])
	}
	return out
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// requirePath extracts and validates the path argument
func requirePath(args map[string]interface{}, wantDir bool) (string, error) {
	path, ok := args["path"].(string)
	if !ok || path == "" {
		return "", newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}
	if err := validatePath(path, wantDir); err != nil {
		return "", newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}
	return path, nil
}

// validatePath checks if a path exists and has the expected kind
func validatePath(path string, wantDir bool) error {
	if path == "" {
		return ErrPathRequired
	}

	// Check if path is absolute
	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}

	// Check if path exists
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}

	if wantDir && !info.IsDir() {
		return ErrNotDirectory
	}
	if !wantDir && info.IsDir() {
		return ErrNotFile
	}

	f, err := os.Open(path)
	if err != nil {
		return ErrPathNotReadable
	}
	_ = f.Close()

	return nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok && val != "" {
		return val
	}
	return defaultValue
}

// Validation helpers

var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
	ErrNotFile         = errors.New("path is a directory, expected a file")
)
