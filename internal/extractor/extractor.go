package extractor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/codenotate/internal/backend"
	"github.com/dshills/codenotate/internal/chunker"
	"github.com/dshills/codenotate/internal/language"
	"github.com/dshills/codenotate/internal/prompt"
	"github.com/dshills/codenotate/pkg/types"
)

// Sampling defaults
const (
	DefaultSampleThreshold = 1000
	DefaultHeadLines       = 500
	DefaultTailLines       = 200
	DefaultTemperature     = 0.1
	DefaultMaxTokens       = 4000
)

// ErrNilBackend is returned when an Extractor is built without a backend
var ErrNilBackend = errors.New("extractor: backend is nil")

// Config controls Phase 1 sampling and retries
type Config struct {
	SampleThreshold int // Files with more lines are sampled
	HeadLines       int
	TailLines       int

	Attempts    int
	RetryDelay  time.Duration
	Temperature float32
	MaxTokens   int
}

// DefaultConfig returns the standard extractor settings
func DefaultConfig() Config {
	return Config{
		SampleThreshold: DefaultSampleThreshold,
		HeadLines:       DefaultHeadLines,
		TailLines:       DefaultTailLines,
		Attempts:        backend.DefaultAttempts,
		RetryDelay:      backend.DefaultRetryDelay,
		Temperature:     DefaultTemperature,
		MaxTokens:       DefaultMaxTokens,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SampleThreshold <= 0 {
		c.SampleThreshold = d.SampleThreshold
	}
	if c.HeadLines <= 0 {
		c.HeadLines = d.HeadLines
	}
	if c.TailLines <= 0 {
		c.TailLines = d.TailLines
	}
	if c.Attempts <= 0 {
		c.Attempts = d.Attempts
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = d.MaxTokens
	}
	return c
}

// Extractor runs Phase 1 for one file at a time. It is safe for concurrent use.
type Extractor struct {
	backend backend.Backend
	cache   *Cache
	cfg     Config
	logger  *zap.Logger
}

// New creates an Extractor. cache may be nil to disable caching.
func New(b backend.Backend, cache *Cache, cfg Config, logger *zap.Logger) (*Extractor, error) {
	if b == nil {
		return nil, ErrNilBackend
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		backend: b,
		cache:   cache,
		cfg:     cfg.withDefaults(),
		logger:  logger,
	}, nil
}

// Extract returns the FileContext for text. Every failed attempt is reported
// as an issue; when all attempts fail the last error is returned and the
// caller must not proceed to chunk annotation.
func (e *Extractor) Extract(ctx context.Context, policy language.Policy, path, text string) (*types.FileContext, []types.Issue, error) {
	key := Key(policy.Name, text)
	if e.cache != nil {
		if fc, ok := e.cache.Get(key); ok {
			e.logger.Debug("file context cache hit", zap.String("path", path))
			return fc, nil, nil
		}
	}

	lines := strings.Split(text, "\n")
	sample, sampled := BuildSample(lines, policy, e.cfg)
	if sampled {
		e.logger.Info("using sampled text for file context",
			zap.String("path", path),
			zap.Int("total_lines", len(lines)),
			zap.Int("sample_lines", strings.Count(sample, "\n")+1))
	}

	req := backend.Request{
		System: prompt.ContextSystem(policy),
		Prompt: prompt.ContextRequest(prompt.ContextInput{
			Path:       path,
			Language:   policy.Name,
			Text:       sample,
			Sampled:    sampled,
			TotalLines: len(lines),
		}),
		Schema:      backend.FileContextSchema(),
		SchemaName:  backend.SchemaFileContext,
		Temperature: e.cfg.Temperature,
		MaxTokens:   e.cfg.MaxTokens,
	}

	var (
		issues []types.Issue
		fc     *types.FileContext
	)
	retry := backend.RetryConfig{Attempts: e.cfg.Attempts, Delay: e.cfg.RetryDelay}
	err := backend.Retry(ctx, retry, func(attempt int) error {
		got, err := e.request(ctx, req)
		if err != nil {
			is := types.NewIssue(types.LayerContext, backend.Classify(err), types.SeverityError, "attempt %d: %v", attempt, err)
			is.Attempt = attempt
			issues = append(issues, is)
			e.logger.Warn("file context attempt failed",
				zap.String("path", path),
				zap.Int("attempt", attempt),
				zap.Error(err))
			return err
		}
		fc = got
		return nil
	})
	if err != nil {
		return nil, issues, fmt.Errorf("extract context for %s: %w", path, err)
	}

	reconcile(fc, lines, policy)
	if e.cache != nil {
		e.cache.Set(key, fc)
	}
	e.logger.Debug("file context extracted",
		zap.String("path", path),
		zap.Int("named_blocks", len(fc.NamedBlocks)),
		zap.Int("dependencies", len(fc.Dependencies)))
	return fc, issues, nil
}

func (e *Extractor) request(ctx context.Context, req backend.Request) (*types.FileContext, error) {
	raw, err := e.backend.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	var fc types.FileContext
	if err := backend.Decode(raw, &fc); err != nil {
		return nil, err
	}
	if err := fc.Validate(); err != nil {
		return nil, errors.Join(backend.ErrSchemaViolation, err)
	}
	return &fc, nil
}

// reconcile makes the detected block structure authoritative. Names and start
// lines come from the scan; descriptions are taken from the backend by name.
// TotalLines always reflects the real file, never the sample.
func reconcile(fc *types.FileContext, lines []string, policy language.Policy) {
	fc.TotalLines = len(lines)
	fc.Overview = strings.TrimSpace(fc.Overview)
	fc.Dependencies = dedupe(fc.Dependencies)

	scan := chunker.FindBlocks(lines, policy)
	if len(scan.Blocks) == 0 {
		kept := fc.NamedBlocks[:0]
		for _, b := range fc.NamedBlocks {
			if b.StartLine >= 1 && b.StartLine <= fc.TotalLines {
				kept = append(kept, b)
			}
		}
		fc.NamedBlocks = kept
		return
	}

	reported := fc.NamedBlocks
	fc.NamedBlocks = make([]types.NamedBlock, 0, len(scan.Blocks))
	for _, b := range scan.Blocks {
		nb := types.NamedBlock{Name: b.Name, StartLine: b.StartLine + 1}
		for _, r := range reported {
			if strings.EqualFold(r.Name, b.Name) {
				nb.Description = strings.TrimSpace(r.Description)
				break
			}
		}
		fc.NamedBlocks = append(fc.NamedBlocks, nb)
	}
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.Join(strings.Fields(s), " ")
		k := strings.ToLower(s)
		if s == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, s)
	}
	return out
}
