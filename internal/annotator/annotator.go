package annotator

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/codenotate/internal/backend"
	"github.com/dshills/codenotate/internal/inserter"
	"github.com/dshills/codenotate/internal/prompt"
	"github.com/dshills/codenotate/internal/validator"
	"github.com/dshills/codenotate/pkg/types"
)

// Defaults
const (
	DefaultTemperature = 0.1
	DefaultMaxTokens   = 4000
)

var (
	// ErrNilBackend is returned when an Annotator is built without a backend
	ErrNilBackend = errors.New("annotator: backend is nil")

	// ErrNilValidator is returned when an Annotator is built without a validator
	ErrNilValidator = errors.New("annotator: validator is nil")

	errRejected = errors.New("attempt rejected by validation")
)

// Config controls Phase 2 requests
type Config struct {
	Attempts    int
	RetryDelay  time.Duration
	NumberLines bool // Send line-numbered chunk text
	Temperature float32
	MaxTokens   int
}

// DefaultConfig returns the standard annotator settings
func DefaultConfig() Config {
	return Config{
		Attempts:    backend.DefaultAttempts,
		RetryDelay:  backend.DefaultRetryDelay,
		NumberLines: true,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
	}
}

// Input is one chunk plus the read-only file material its prompt needs
type Input struct {
	Path        string
	Chunk       *types.Chunk
	TotalChunks int
	Context     *types.FileContext
	Siblings    []string
}

// Outcome is the result of annotating one chunk
type Outcome struct {
	Success  bool
	Content  string // Merged text on success, the original chunk text otherwise
	Set      *types.AnnotationSet
	Attempts int
	Issues   []types.Issue // Every attempt's issues, stamped with the attempt number

	Relevance float64
	Business  float64
}

// AnnotatedChunk converts the outcome into the reassembler's input
func (o Outcome) AnnotatedChunk(ch *types.Chunk) types.AnnotatedChunk {
	ac := types.AnnotatedChunk{
		ChunkIndex: ch.Index,
		Name:       ch.DisplayName(),
		StartLine:  ch.StartLine,
		EndLine:    ch.EndLine,
		Success:    o.Success,
		Content:    o.Content,
		Attempts:   o.Attempts,
		Relevance:  o.Relevance,
		Business:   o.Business,
	}
	if o.Success && o.Set != nil {
		ac.Header = o.Set.Header
		ac.CommentLines = o.Set.CommentLineCount()
		for _, c := range o.Set.Comments {
			for _, l := range c.Lines {
				ac.CommentChars += len(l)
			}
		}
	}
	return ac
}

// Annotator runs the Phase 2 retry loop. It is safe for concurrent use.
type Annotator struct {
	backend   backend.Backend
	validator *validator.Validator
	cfg       Config
	logger    *zap.Logger
}

// New creates an Annotator for the validator's language policy
func New(b backend.Backend, v *validator.Validator, cfg Config, logger *zap.Logger) (*Annotator, error) {
	if b == nil {
		return nil, ErrNilBackend
	}
	if v == nil {
		return nil, ErrNilValidator
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = backend.DefaultAttempts
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Annotator{backend: b, validator: v, cfg: cfg, logger: logger}, nil
}

// Annotate requests comments for in.Chunk up to Config.Attempts times. Each
// attempt's prompt carries the previous attempt's issues. The chunk's
// original content is returned unless an attempt passes every blocking check.
func (a *Annotator) Annotate(ctx context.Context, in Input) Outcome {
	out := Outcome{Content: in.Chunk.Content}
	policy := a.validator.Policy()
	log := a.logger.With(zap.String("path", in.Path), zap.String("chunk", in.Chunk.DisplayName()))

	var prior []types.Issue
	retry := backend.RetryConfig{Attempts: a.cfg.Attempts, Delay: a.cfg.RetryDelay}
	err := backend.Retry(ctx, retry, func(attempt int) error {
		out.Attempts = attempt
		req := backend.Request{
			System: prompt.AnnotateSystem(policy),
			Prompt: prompt.ChunkRequest(prompt.ChunkInput{
				Path:        in.Path,
				Policy:      policy,
				Chunk:       in.Chunk,
				TotalChunks: in.TotalChunks,
				Context:     in.Context,
				Siblings:    in.Siblings,
				NumberLines: a.cfg.NumberLines,
			}, attempt, prior),
			Schema:      backend.AnnotationSetSchema(),
			SchemaName:  backend.SchemaAnnotationSet,
			Temperature: a.cfg.Temperature,
			MaxTokens:   a.cfg.MaxTokens,
		}

		res, issues := a.attempt(ctx, in, req)
		issues = types.WithAttempt(issues, attempt)
		out.Issues = append(out.Issues, issues...)
		prior = issues

		for _, is := range issues {
			if is.Severity != types.SeverityInfo {
				log.Warn("chunk issue",
					zap.Int("attempt", attempt),
					zap.String("layer", string(is.Layer)),
					zap.String("code", string(is.Code)),
					zap.String("message", is.Message))
			}
		}

		if res == nil {
			return errRejected
		}
		out.Success = true
		out.Content = res.content
		out.Set = res.set
		out.Relevance = res.relevance
		out.Business = res.business
		return nil
	})

	if err != nil {
		out.Content = in.Chunk.Content
		if !errors.Is(err, errRejected) {
			out.Issues = append(out.Issues, types.NewIssue(types.LayerBackend, types.IssueBackendUnavailable, types.SeverityError,
				"annotation stopped: %v", err))
		}
		log.Warn("chunk annotation failed", zap.Int("attempts", out.Attempts), zap.Error(err))
		return out
	}
	log.Debug("chunk annotated",
		zap.Int("attempts", out.Attempts),
		zap.Int("comment_lines", out.Set.CommentLineCount()))
	return out
}

type accepted struct {
	content   string
	set       *types.AnnotationSet
	relevance float64
	business  float64
}

// attempt performs one request and validation pass. A nil result means the
// attempt was rejected; the issues explain why.
func (a *Annotator) attempt(ctx context.Context, in Input, req backend.Request) (*accepted, []types.Issue) {
	raw, err := a.backend.Generate(ctx, req)
	if err != nil {
		return nil, []types.Issue{types.NewIssue(types.LayerBackend, backend.Classify(err), types.SeverityError, "%v", err)}
	}
	var set types.AnnotationSet
	if err := backend.Decode(raw, &set); err != nil {
		return nil, []types.Issue{types.NewIssue(types.LayerBackend, types.IssueSchemaViolation, types.SeverityError, "%v", err)}
	}

	v := a.validator
	var issues []types.Issue

	fixed, syntax := v.Syntax(&set)
	issues = append(issues, syntax.Issues...)
	if syntax.Blocking() {
		return nil, issues
	}

	pre := v.PreInsertion(in.Chunk, fixed.Comments)
	issues = append(issues, pre.Issues...)
	if pre.Blocking() {
		return nil, issues
	}

	merged := inserter.Merge(in.Chunk.Content, fixed.Comments)
	post := v.PostInsertion(in.Chunk.Content, merged)
	issues = append(issues, post.Issues...)
	if post.Blocking() {
		return nil, issues
	}

	relevance := v.Relevance(in.Chunk, fixed)
	completeness := v.Completeness(fixed)
	business := v.BusinessTerms(fixed, in.Context)
	blocked := false
	for _, r := range []validator.LayerResult{relevance, completeness, business} {
		issues = append(issues, r.Issues...)
		blocked = blocked || r.Blocking()
	}
	if blocked {
		return nil, issues
	}

	return &accepted{
		content:   merged,
		set:       fixed,
		relevance: relevance.Score,
		business:  business.Score,
	}, issues
}
