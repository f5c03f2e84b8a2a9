package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/codenotate/internal/annotator"
	"github.com/dshills/codenotate/internal/assembler"
	"github.com/dshills/codenotate/internal/backend"
	"github.com/dshills/codenotate/internal/chunker"
	"github.com/dshills/codenotate/internal/extractor"
	"github.com/dshills/codenotate/internal/language"
	"github.com/dshills/codenotate/internal/source"
	"github.com/dshills/codenotate/internal/validator"
	"github.com/dshills/codenotate/pkg/types"
)

// DefaultChunkWorkers matches the one-request-at-a-time behaviour backends
// with strict rate limits expect
const DefaultChunkWorkers = 1

// ErrNilBackend is returned when a Processor is built without a backend
var ErrNilBackend = errors.New("pipeline: backend is nil")

// Config contains the per-component settings of a Processor
type Config struct {
	Chunker   chunker.Config
	Extractor extractor.Config
	Annotator annotator.Config
	Validator validator.Config
	Assembler assembler.Config

	Workers int // Concurrent chunk requests per file (default: 1)
}

// DefaultConfig returns the standard pipeline settings
func DefaultConfig() Config {
	return Config{
		Extractor: extractor.DefaultConfig(),
		Annotator: annotator.DefaultConfig(),
		Validator: validator.DefaultConfig(),
		Assembler: assembler.DefaultConfig(),
		Workers:   DefaultChunkWorkers,
	}
}

// Processor runs the two-phase protocol for single files. It is safe for
// concurrent use; per-file state lives on the stack of ProcessFile.
type Processor struct {
	backend   backend.Backend
	extractor *extractor.Extractor
	cfg       Config
	logger    *zap.Logger
}

// NewProcessor creates a Processor. cache may be nil to disable context caching.
func NewProcessor(b backend.Backend, cache *extractor.Cache, cfg Config, logger *zap.Logger) (*Processor, error) {
	if b == nil {
		return nil, ErrNilBackend
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultChunkWorkers
	}
	ext, err := extractor.New(b, cache, cfg.Extractor, logger)
	if err != nil {
		return nil, err
	}
	return &Processor{backend: b, extractor: ext, cfg: cfg, logger: logger}, nil
}

// Backend returns the generation backend in use
func (p *Processor) Backend() backend.Backend {
	return p.backend
}

// FailurePolicy returns the configured reassembly policy
func (p *Processor) FailurePolicy() assembler.FailurePolicy {
	if p.cfg.Assembler.Policy == "" {
		return assembler.PolicyLenient
	}
	return p.cfg.Assembler.Policy
}

// ChunkPlan describes how a file would be split without calling the backend
type ChunkPlan struct {
	TotalLines int
	TargetSize int
	Chunks     []*types.Chunk
	Issues     []types.Issue
}

// Summary renders the plan for humans
func (cp ChunkPlan) Summary() string {
	return fmt.Sprintf("total lines: %d, target chunk size: %d\n%s",
		cp.TotalLines, cp.TargetSize, chunker.Summary(cp.Chunks))
}

// Plan chunks text under policy
func (p *Processor) Plan(policy language.Policy, text string) ChunkPlan {
	return Plan(policy, p.cfg.Chunker, text, p.logger)
}

// Plan chunks text under policy with an explicit chunker config
func Plan(policy language.Policy, cfg chunker.Config, text string, logger *zap.Logger) ChunkPlan {
	c := chunker.New(policy, cfg, logger)
	total := strings.Count(text, "\n") + 1
	chunks, issues := c.Chunk(text)
	return ChunkPlan{
		TotalLines: total,
		TargetSize: c.TargetSize(total),
		Chunks:     chunks,
		Issues:     issues,
	}
}

// ProcessFile annotates one file. The returned result is never nil; a
// rejected file has Success false and a Reason.
func (p *Processor) ProcessFile(ctx context.Context, policy language.Policy, f *source.File) *types.ProcessingResult {
	start := time.Now()
	res := &types.ProcessingResult{
		Path:        f.RelPath,
		Language:    policy.Name,
		ChunkIssues: make(map[int][]types.Issue),
	}
	defer func() { res.Duration = time.Since(start) }()

	log := p.logger.With(zap.String("path", f.RelPath), zap.String("language", policy.Name))

	plan := p.Plan(policy, f.Text)
	res.FileIssues = append(res.FileIssues, plan.Issues...)
	for _, is := range plan.Issues {
		log.Warn("chunk boundary", zap.String("code", string(is.Code)), zap.String("message", is.Message))
	}
	log.Info("chunk plan",
		zap.Int("chunks", len(plan.Chunks)),
		zap.Int("total_lines", plan.TotalLines),
		zap.Int("target_size", plan.TargetSize))

	fc, ctxIssues, err := p.extractor.Extract(ctx, policy, f.RelPath, f.Text)
	res.FileIssues = append(res.FileIssues, ctxIssues...)
	if err != nil {
		log.Warn("file context failed", zap.Error(err))
		return res.Fail(fmt.Sprintf("file context extraction failed: %v", err))
	}
	res.Context = fc

	v := validator.New(policy, p.cfg.Validator, p.logger)
	ann, err := annotator.New(p.backend, v, p.cfg.Annotator, p.logger)
	if err != nil {
		return res.Fail(err.Error())
	}

	chunks, chunkIssues, err := p.annotateChunks(ctx, ann, f.RelPath, policy, plan.Chunks, fc)
	res.Chunks = chunks
	for i, is := range chunkIssues {
		if len(is) > 0 {
			res.ChunkIssues[i] = is
		}
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return res.Fail(fmt.Sprintf("cancelled: %v", ctxErr))
	}
	if err != nil {
		res.FileIssues = append(res.FileIssues, types.NewIssue(types.LayerAssembly, types.IssueChunkFailed, types.SeverityError, "%v", err))
		log.Info("file rejected", zap.Error(err))
		return res.Fail(fmt.Sprintf("strict policy: %v", err))
	}

	asm := assembler.New(v, p.cfg.Assembler, p.logger).Assemble(assembler.Input{
		Path:     f.RelPath,
		Original: f.Text,
		Chunks:   chunks,
		Context:  fc,
	})
	res.FileIssues = append(res.FileIssues, asm.Issues...)
	res.Metrics = asm.Metrics
	if !asm.Accepted {
		return res.Fail(asm.Reason)
	}
	res.Success = true
	res.Document = asm.Document
	return res
}

// annotateChunks runs Phase 2 for every chunk under the worker limit.
// Chunks without code pass through untouched. Under the strict policy the
// first failed chunk cancels the remaining requests.
func (p *Processor) annotateChunks(ctx context.Context, ann *annotator.Annotator, path string, policy language.Policy,
	chunks []*types.Chunk, fc *types.FileContext) ([]types.AnnotatedChunk, [][]types.Issue, error) {
	out := make([]types.AnnotatedChunk, len(chunks))
	issues := make([][]types.Issue, len(chunks))
	var siblings []string
	seen := make(map[string]bool)
	for i, ch := range chunks {
		if name := ch.BlockName(); ch.Kind == types.ChunkNamedBlock && !seen[name] {
			seen[name] = true
			siblings = append(siblings, name)
		}
		out[i] = types.AnnotatedChunk{
			ChunkIndex: ch.Index,
			Name:       ch.DisplayName(),
			StartLine:  ch.StartLine,
			EndLine:    ch.EndLine,
			Content:    ch.Content,
		}
	}

	strict := p.FailurePolicy() == assembler.PolicyStrict
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)

	for i, ch := range chunks {
		if !policy.HasCode(ch.Lines()) {
			out[i].Success = true
			out[i].Passthrough = true
			continue
		}

		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			o := ann.Annotate(gctx, annotator.Input{
				Path:        path,
				Chunk:       ch,
				TotalChunks: len(chunks),
				Context:     fc,
				Siblings:    siblings,
			})
			out[i] = o.AnnotatedChunk(ch)
			issues[i] = o.Issues
			if strict && !o.Success {
				return fmt.Errorf("chunk %d (%s) failed after %d attempts", ch.Index+1, ch.DisplayName(), o.Attempts)
			}
			return nil
		})
	}

	err := g.Wait()
	return out, issues, err
}
