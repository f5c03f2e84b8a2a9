// Package sink persists annotated documents.
//
// Output goes next to the source as <stem>_commented<ext>, under a separate
// output directory mirroring the source tree, or over the source itself.
// Every write goes to a temporary file in the target directory and is
// renamed into place, so a crash never leaves a half-written file.
package sink

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/dshills/codenotate/internal/source"
)

// Defaults
const (
	DefaultSuffix       = "_commented"
	DefaultBackupSuffix = "_backup"
)

// ErrExists is returned when the output exists and overwriting is off
var ErrExists = errors.New("output file already exists")

// Config controls where and how documents are written
type Config struct {
	Suffix    string // Appended to the file stem (default: _commented)
	OutputDir string // Mirror the source tree here instead of writing beside it
	InPlace   bool   // Replace the source file
	Overwrite bool   // Replace an existing output file
	Backup    bool   // Copy the source to <stem>_backup<ext> before replacing it
}

// Sink writes annotated documents
type Sink struct {
	cfg    Config
	logger *zap.Logger
}

// New creates a Sink
func New(cfg Config, logger *zap.Logger) *Sink {
	if cfg.Suffix == "" {
		cfg.Suffix = DefaultSuffix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{cfg: cfg, logger: logger}
}

// WithOverwrite returns a Sink that shares s's settings but replaces existing outputs when overwrite is set
func (s *Sink) WithOverwrite(overwrite bool) *Sink {
	cp := *s
	cp.cfg.Overwrite = cp.cfg.Overwrite || overwrite
	return &cp
}

// OutputPath returns where the document for f will be written
func (s *Sink) OutputPath(f *source.File) string {
	if s.cfg.InPlace {
		return f.Path
	}
	dir := filepath.Dir(f.Path)
	if s.cfg.OutputDir != "" {
		dir = filepath.Join(s.cfg.OutputDir, filepath.Dir(filepath.FromSlash(f.RelPath)))
	}
	return filepath.Join(dir, withSuffix(filepath.Base(f.Path), s.cfg.Suffix))
}

// Exists reports whether the output for f is already present
func (s *Sink) Exists(f *source.File) bool {
	if s.cfg.InPlace {
		return false
	}
	_, err := os.Stat(s.OutputPath(f))
	return err == nil
}

// Write encodes document in the source file's encoding and writes it
// atomically. It returns the path written.
func (s *Sink) Write(f *source.File, document string) (string, error) {
	out := s.OutputPath(f)
	if !s.cfg.InPlace && !s.cfg.Overwrite && s.Exists(f) {
		return "", fmt.Errorf("%s: %w", out, ErrExists)
	}

	data, err := source.Encode(document, f.Encoding, f.BOM)
	if err != nil {
		return "", err
	}

	if s.cfg.InPlace && s.cfg.Backup {
		backup, err := s.backup(f.Path)
		if err != nil {
			return "", fmt.Errorf("failed to back up %s: %w", f.Path, err)
		}
		s.logger.Debug("backup created", zap.String("path", backup))
	}

	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := atomicWrite(out, data, fileMode(f.Path)); err != nil {
		return "", err
	}
	s.logger.Info("document written", zap.String("path", out), zap.Int("bytes", len(data)))
	return out, nil
}

// backup copies path to <stem>_backup<ext>, replacing any older backup
func (s *Sink) backup(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	dst := filepath.Join(filepath.Dir(path), withSuffix(filepath.Base(path), DefaultBackupSuffix))
	return dst, atomicWrite(dst, data, fileMode(path))
}

// atomicWrite writes data to a temp file beside path and renames it over path
func atomicWrite(path string, data []byte, mode os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	name := tmp.Name()
	defer func() { _ = os.Remove(name) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(name, mode); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(name, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

func fileMode(path string) os.FileMode {
	if info, err := os.Stat(path); err == nil {
		return info.Mode().Perm()
	}
	return 0o644
}

func withSuffix(base, suffix string) string {
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext) + suffix + ext
}
