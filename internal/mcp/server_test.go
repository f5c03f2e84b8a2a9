package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codenotate/internal/backend"
	"github.com/dshills/codenotate/internal/config"
	"github.com/dshills/codenotate/internal/storage"
	"github.com/dshills/codenotate/pkg/types"
)

const ordersPRG = `* Orders module
SET TALK OFF
PROCEDURE SaveOrder
  SELECT orders
  REPLACE total WITH lnTotal
ENDPROC`

func mockBackend() *backend.Mock {
	return backend.NewMock(func(req backend.Request, call int) (json.RawMessage, error) {
		if req.SchemaName == backend.SchemaFileContext {
			return backend.JSON(types.FileContext{
				Overview:     "Order maintenance routines for the sales desk",
				Dependencies: []string{"orders"},
			}), nil
		}
		return backend.JSON(types.AnnotationSet{
			Header: types.HeaderInfo{Purpose: "Maintains the orders table totals"},
			Comments: []types.CommentBlock{
				{InsertBeforeLine: 1, Lines: []string{"* Explains this step of the orders workflow"}},
			},
		}), nil
	})
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Backend.Attempts = 1
	cfg.Backend.RetryDelay = "0s"
	cfg.Ledger.Enabled = false
	return cfg
}

func newTestServer(t *testing.T, withLedger bool) *Server {
	t.Helper()
	var store storage.Storage
	if withLedger {
		s, err := storage.NewSQLiteStorage(":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		store = s
	}
	srv, err := NewServer(testConfig(), mockBackend(), store, nil)
	require.NoError(t, err)
	return srv
}

func writeSource(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(ordersPRG), 0o644))
	return path
}

func call(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func decode(t *testing.T, result *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &out))
	return out
}

func requireCode(t *testing.T, err error, code int) {
	t.Helper()
	var mErr *MCPError
	require.ErrorAs(t, err, &mErr)
	assert.Equal(t, code, mErr.Code)
}

func TestNewServer(t *testing.T) {
	t.Run("requires config", func(t *testing.T) {
		_, err := NewServer(nil, mockBackend(), nil, nil)
		assert.Error(t, err)
	})

	t.Run("requires backend", func(t *testing.T) {
		_, err := NewServer(testConfig(), nil, nil, nil)
		assert.Error(t, err)
	})

	t.Run("server has all required components", func(t *testing.T) {
		srv := newTestServer(t, true)
		assert.NotNil(t, srv.mcp)
		assert.NotNil(t, srv.proc)
		assert.NotNil(t, srv.runner)
		assert.NotNil(t, srv.storage)
	})
}

func TestHandleAnnotateFile(t *testing.T) {
	ctx := context.Background()

	t.Run("returns document", func(t *testing.T) {
		srv := newTestServer(t, false)
		path := writeSource(t, t.TempDir(), "orders.prg")

		result, err := srv.handleAnnotateFile(ctx, call("annotate_file", map[string]interface{}{"path": path}))
		require.NoError(t, err)
		out := decode(t, result)
		assert.Equal(t, true, out["success"])
		assert.Equal(t, "vfp", out["language"])
		assert.Contains(t, out["document"], "* Explains this step of the orders workflow")
		assert.NotContains(t, out, "output_path")

		_, statErr := os.Stat(filepath.Join(filepath.Dir(path), "orders_commented.prg"))
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("writes output", func(t *testing.T) {
		srv := newTestServer(t, false)
		path := writeSource(t, t.TempDir(), "orders.prg")

		result, err := srv.handleAnnotateFile(ctx, call("annotate_file", map[string]interface{}{
			"path":  path,
			"write": true,
		}))
		require.NoError(t, err)
		out := decode(t, result)
		want := filepath.Join(filepath.Dir(path), "orders_commented.prg")
		assert.Equal(t, want, out["output_path"])
		assert.NotContains(t, out, "document")

		written, err := os.ReadFile(want)
		require.NoError(t, err)
		assert.Contains(t, string(written), "PROCEDURE SaveOrder")

		original, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, ordersPRG, string(original))
	})

	t.Run("language argument overrides extension", func(t *testing.T) {
		srv := newTestServer(t, false)
		path := writeSource(t, t.TempDir(), "orders.txt")

		result, err := srv.handleAnnotateFile(ctx, call("annotate_file", map[string]interface{}{
			"path":     path,
			"language": "vfp",
		}))
		require.NoError(t, err)
		assert.Equal(t, true, decode(t, result)["success"])
	})

	t.Run("unknown extension", func(t *testing.T) {
		srv := newTestServer(t, false)
		path := writeSource(t, t.TempDir(), "orders.txt")

		_, err := srv.handleAnnotateFile(ctx, call("annotate_file", map[string]interface{}{"path": path}))
		requireCode(t, err, ErrorCodeUnsupportedLanguage)
	})

	t.Run("unknown language", func(t *testing.T) {
		srv := newTestServer(t, false)
		path := writeSource(t, t.TempDir(), "orders.prg")

		_, err := srv.handleAnnotateFile(ctx, call("annotate_file", map[string]interface{}{
			"path":     path,
			"language": "cobol",
		}))
		requireCode(t, err, ErrorCodeUnsupportedLanguage)
	})

	t.Run("invalid paths", func(t *testing.T) {
		srv := newTestServer(t, false)
		tests := []struct {
			name string
			args map[string]interface{}
		}{
			{"missing", map[string]interface{}{}},
			{"relative", map[string]interface{}{"path": "orders.prg"}},
			{"not found", map[string]interface{}{"path": filepath.Join(t.TempDir(), "nope.prg")}},
			{"directory", map[string]interface{}{"path": t.TempDir()}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := srv.handleAnnotateFile(ctx, call("annotate_file", tt.args))
				requireCode(t, err, ErrorCodeInvalidParams)
			})
		}
	})
}

func TestHandleAnnotateDirectory(t *testing.T) {
	ctx := context.Background()

	t.Run("records run", func(t *testing.T) {
		srv := newTestServer(t, true)
		root := t.TempDir()
		writeSource(t, root, "forms/orders.prg")
		writeSource(t, root, "forms/invoices.prg")

		result, err := srv.handleAnnotateDirectory(ctx, call("annotate_directory", map[string]interface{}{"path": root}))
		require.NoError(t, err)
		out := decode(t, result)
		assert.EqualValues(t, 2, out["total"])
		assert.EqualValues(t, 2, out["succeeded"])
		assert.NotEmpty(t, out["run_id"])

		run, err := srv.storage.GetRun(ctx, out["run_id"].(string))
		require.NoError(t, err)
		assert.Equal(t, storage.RunCompleted, run.Status)

		// The second pass skips the unchanged sources and the outputs of the first
		result, err = srv.handleAnnotateDirectory(ctx, call("annotate_directory", map[string]interface{}{"path": root}))
		require.NoError(t, err)
		out = decode(t, result)
		assert.EqualValues(t, 0, out["succeeded"])
		assert.EqualValues(t, 4, out["skipped"])
	})

	t.Run("dry run writes nothing", func(t *testing.T) {
		srv := newTestServer(t, false)
		root := t.TempDir()
		writeSource(t, root, "orders.prg")

		result, err := srv.handleAnnotateDirectory(ctx, call("annotate_directory", map[string]interface{}{
			"path":    root,
			"dry_run": true,
		}))
		require.NoError(t, err)
		out := decode(t, result)
		assert.EqualValues(t, 1, out["skipped"])

		_, statErr := os.Stat(filepath.Join(root, "orders_commented.prg"))
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("rejects file path", func(t *testing.T) {
		srv := newTestServer(t, false)
		path := writeSource(t, t.TempDir(), "orders.prg")

		_, err := srv.handleAnnotateDirectory(ctx, call("annotate_directory", map[string]interface{}{"path": path}))
		requireCode(t, err, ErrorCodeInvalidParams)
	})

	t.Run("negative max files", func(t *testing.T) {
		srv := newTestServer(t, false)
		_, err := srv.handleAnnotateDirectory(ctx, call("annotate_directory", map[string]interface{}{
			"path":      t.TempDir(),
			"max_files": float64(-1),
		}))
		requireCode(t, err, ErrorCodeInvalidParams)
	})
}

func TestHandlePreviewChunks(t *testing.T) {
	srv := newTestServer(t, false)
	path := writeSource(t, t.TempDir(), "orders.prg")

	result, err := srv.handlePreviewChunks(context.Background(), call("preview_chunks", map[string]interface{}{"path": path}))
	require.NoError(t, err)
	out := decode(t, result)
	assert.EqualValues(t, 6, out["total_lines"])
	chunks, ok := out["chunks"].([]interface{})
	require.True(t, ok)
	require.NotEmpty(t, chunks)
	assert.EqualValues(t, 1, chunks[0].(map[string]interface{})["start_line"])
	assert.Contains(t, out["summary"], "total lines: 6")
}

func TestHandleGetStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("ledger disabled", func(t *testing.T) {
		srv := newTestServer(t, false)
		_, err := srv.handleGetStatus(ctx, call("get_status", map[string]interface{}{}))
		requireCode(t, err, ErrorCodeLedgerDisabled)
	})

	t.Run("statistics after run", func(t *testing.T) {
		srv := newTestServer(t, true)
		root := t.TempDir()
		writeSource(t, root, "orders.prg")
		_, err := srv.handleAnnotateDirectory(ctx, call("annotate_directory", map[string]interface{}{"path": root}))
		require.NoError(t, err)

		result, err := srv.handleGetStatus(ctx, call("get_status", map[string]interface{}{}))
		require.NoError(t, err)
		out := decode(t, result)
		stats := out["statistics"].(map[string]interface{})
		assert.EqualValues(t, 1, stats["runs"])
		assert.EqualValues(t, 1, stats["files_succeeded"])
		assert.Equal(t, false, out["run_in_progress"])

		runs := out["recent_runs"].([]interface{})
		require.Len(t, runs, 1)
		runID := runs[0].(map[string]interface{})["run_id"].(string)

		result, err = srv.handleGetStatus(ctx, call("get_status", map[string]interface{}{"run_id": runID}))
		require.NoError(t, err)
		detail := decode(t, result)
		files := detail["files"].([]interface{})
		require.Len(t, files, 1)
		assert.Equal(t, "orders.prg", files[0].(map[string]interface{})["path"])
	})

	t.Run("unknown run", func(t *testing.T) {
		srv := newTestServer(t, true)
		_, err := srv.handleGetStatus(ctx, call("get_status", map[string]interface{}{"run_id": "missing"}))
		requireCode(t, err, ErrorCodeNotFound)
	})

	t.Run("limit out of range", func(t *testing.T) {
		srv := newTestServer(t, true)
		_, err := srv.handleGetStatus(ctx, call("get_status", map[string]interface{}{"limit": float64(0)}))
		requireCode(t, err, ErrorCodeInvalidParams)
	})
}

func TestValidatePath(t *testing.T) {
	dir := t.TempDir()
	file := writeSource(t, dir, "orders.prg")

	assert.NoError(t, validatePath(dir, true))
	assert.NoError(t, validatePath(file, false))
	assert.ErrorIs(t, validatePath("", false), ErrPathRequired)
	assert.ErrorIs(t, validatePath("rel/path", true), ErrPathNotAbsolute)
	assert.ErrorIs(t, validatePath(filepath.Join(dir, "missing"), true), ErrPathNotFound)
	assert.ErrorIs(t, validatePath(file, true), ErrNotDirectory)
	assert.ErrorIs(t, validatePath(dir, false), ErrNotFile)
}

func TestGetIntDefault(t *testing.T) {
	args := map[string]interface{}{"f": float64(7), "i": 3, "s": "x"}
	assert.Equal(t, 7, getIntDefault(args, "f", 0))
	assert.Equal(t, 3, getIntDefault(args, "i", 0))
	assert.Equal(t, 9, getIntDefault(args, "s", 9))
	assert.Equal(t, 5, getIntDefault(args, "missing", 5))
}
