package source

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// DefaultMaxFileSize is the largest file read (10 MB)
const DefaultMaxFileSize = 10 << 20

var (
	// ErrTooLarge is returned for files above the size cap
	ErrTooLarge = errors.New("file exceeds size limit")

	// ErrNotText is returned for UTF-8 files that fail to decode
	ErrNotText = errors.New("file is not valid text")
)

// DefaultSkipPatterns marks files produced by earlier runs or editors
func DefaultSkipPatterns() []string {
	return []string{"_commented", "_pretty", "_backup", "_temp"}
}

// DefaultSkipDirs are build output and dependency directories
func DefaultSkipDirs() []string {
	return []string{"bin", "obj", "vendor", "node_modules"}
}

// File is one source file ready for processing
type File struct {
	Path      string // As found on disk
	RelPath   string // Relative to the scan root, slash separated
	Text      string // Decoded UTF-8 text
	Encoding  string
	BOM       bool // Raw bytes began with a UTF-8 byte order mark
	SizeBytes int64
	Hash      [32]byte // SHA-256 of the raw bytes
	ModTime   time.Time
}

// Skipped records a file discovery passed over
type Skipped struct {
	Path   string
	Reason string
}

// Config contains discovery settings
type Config struct {
	Extensions   []string // Lower-case, with leading dot
	SkipPatterns []string // Substrings of the file stem that exclude a file
	SkipDirs     []string
	MaxFileSize  int64
}

// Scanner discovers and reads source files
type Scanner struct {
	cfg  Config
	exts map[string]struct{}
}

// New creates a Scanner. Nil skip lists use the defaults.
func New(cfg Config) *Scanner {
	if cfg.SkipPatterns == nil {
		cfg.SkipPatterns = DefaultSkipPatterns()
	}
	if cfg.SkipDirs == nil {
		cfg.SkipDirs = DefaultSkipDirs()
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	exts := make(map[string]struct{}, len(cfg.Extensions))
	for _, e := range cfg.Extensions {
		exts[strings.ToLower(e)] = struct{}{}
	}
	return &Scanner{cfg: cfg, exts: exts}
}

// Discover walks root and returns matching files in lexical order, along
// with the files it skipped and why. A root that is a file is returned as is.
func (s *Scanner) Discover(root string) ([]string, []Skipped, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, nil, err
	}
	if !info.IsDir() {
		if reason := s.skipReason(root, info.Size()); reason != "" {
			return nil, []Skipped{{Path: root, Reason: reason}}, nil
		}
		return []string{root}, nil, nil
	}

	var (
		files   []string
		skipped []Skipped
	)
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path == root {
				return nil
			}
			if strings.HasPrefix(d.Name(), ".") || s.skipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		if _, ok := s.exts[strings.ToLower(filepath.Ext(path))]; !ok {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		if reason := s.skipReason(path, fi.Size()); reason != "" {
			skipped = append(skipped, Skipped{Path: path, Reason: reason})
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}

	sort.Strings(files)
	return files, skipped, nil
}

func (s *Scanner) skipDir(name string) bool {
	for _, d := range s.cfg.SkipDirs {
		if strings.EqualFold(d, name) {
			return true
		}
	}
	return false
}

func (s *Scanner) skipReason(path string, size int64) string {
	base := filepath.Base(path)
	stem := strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))
	for _, p := range s.cfg.SkipPatterns {
		if strings.Contains(stem, strings.ToLower(p)) {
			return fmt.Sprintf("name matches %q", p)
		}
	}
	if size > s.cfg.MaxFileSize {
		return fmt.Sprintf("size %d exceeds %d", size, s.cfg.MaxFileSize)
	}
	if size == 0 {
		return "empty file"
	}
	return ""
}

// Read loads and decodes one file. root is used to compute RelPath and may
// be empty.
func (s *Scanner) Read(root, path, enc string) (*File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > s.cfg.MaxFileSize {
		return nil, fmt.Errorf("%s: %w", path, ErrTooLarge)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	text, err := Decode(raw, enc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &File{
		Path:      path,
		RelPath:   RelPath(root, path),
		Text:      text,
		Encoding:  enc,
		BOM:       bytes.HasPrefix(raw, utf8BOM),
		SizeBytes: info.Size(),
		Hash:      sha256.Sum256(raw),
		ModTime:   info.ModTime(),
	}, nil
}

// RelPath returns path relative to root with forward slashes, falling back
// to the base name when root is empty or path is root itself.
func RelPath(root, path string) string {
	if root == "" {
		return filepath.ToSlash(filepath.Base(path))
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(filepath.Base(path))
	}
	return filepath.ToSlash(rel)
}

// FromText builds a File from in-memory text, for callers that do not read
// from disk.
func FromText(path, text string) *File {
	return &File{
		Path:      path,
		RelPath:   filepath.ToSlash(path),
		Text:      text,
		SizeBytes: int64(len(text)),
		Hash:      sha256.Sum256([]byte(text)),
		ModTime:   time.Now(),
	}
}
