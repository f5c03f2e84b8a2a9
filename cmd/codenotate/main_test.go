package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codenotate/internal/backend"
	"github.com/dshills/codenotate/internal/config"
)

const ordersPRG = `* Orders module
SET TALK OFF
PROCEDURE SaveOrder
  SELECT orders
  REPLACE total WITH lnTotal
ENDPROC`

// sandbox isolates a command run from the caller's environment and files
func sandbox(t *testing.T) string {
	t.Helper()
	for _, k := range []string{
		backend.EnvProvider, backend.EnvModel, backend.EnvEndpoint,
		backend.EnvGeminiAPIKey, backend.EnvGoogleAPIKey, backend.EnvOpenAIAPIKey,
		config.EnvLanguage,
	} {
		t.Setenv(k, "")
	}
	dir := t.TempDir()
	t.Setenv(config.EnvDBPath, filepath.Join(dir, "ledger.db"))
	t.Setenv(config.EnvLogLevel, "error")
	t.Chdir(dir)
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	sandbox(t)
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "codenotate dev")
	assert.Contains(t, out, "SQLite Driver:")
}

func TestLanguagesCmd(t *testing.T) {
	sandbox(t)
	out, err := execute(t, "languages")
	require.NoError(t, err)
	for _, want := range []string{"vfp", ".prg", "csharp", ".cs", "go"} {
		assert.Contains(t, out, want)
	}
}

func TestChunksCmd(t *testing.T) {
	dir := sandbox(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "orders.prg"), []byte(ordersPRG), 0o644))

	out, err := execute(t, "chunks", "orders.prg")
	require.NoError(t, err)
	assert.Contains(t, out, "orders.prg")
	assert.Contains(t, out, "1 chunks")

	_, err = execute(t, "chunks", "--language", "cobol", "orders.prg")
	assert.Error(t, err)
}

func TestChunksCmd_UnknownExtension(t *testing.T) {
	dir := sandbox(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0o644))

	_, err := execute(t, "chunks", "notes.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no language policy")
}

func TestConfigInitAndShow(t *testing.T) {
	dir := sandbox(t)

	out, err := execute(t, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, config.DefaultFileName)
	assert.FileExists(t, filepath.Join(dir, config.DefaultFileName))

	_, err = execute(t, "config", "init")
	assert.Error(t, err)

	_, err = execute(t, "config", "init", "--force")
	assert.NoError(t, err)

	out, err = execute(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "failure_policy: lenient")
	assert.Contains(t, out, "ledger.db")
}

func TestAnnotateCmd_DryRunToStdout(t *testing.T) {
	dir := sandbox(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "orders.prg"), []byte(ordersPRG), 0o644))

	out, err := execute(t, "annotate", "--stdout", "--dry-run", "orders.prg")
	require.NoError(t, err)
	assert.Contains(t, out, "total lines: 6")

	_, statErr := os.Stat(filepath.Join(dir, "orders_commented.prg"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestAnnotateCmd_InvalidFlags(t *testing.T) {
	dir := sandbox(t)

	_, err := execute(t, "annotate", "--max-files", "-1", dir)
	assert.Error(t, err)

	_, err = execute(t, "annotate", "--stdout", dir)
	assert.Error(t, err)

	_, err = execute(t, "annotate", "--in-place", "--output-dir", "out", dir)
	assert.Error(t, err)
}

func TestStatusCmd(t *testing.T) {
	sandbox(t)

	out, err := execute(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Ledger")
	assert.Contains(t, out, "ledger.db")

	_, err = execute(t, "status", "no-such-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
