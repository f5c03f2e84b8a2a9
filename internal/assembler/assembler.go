package assembler

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-wordwrap"
	"go.uber.org/zap"

	"github.com/dshills/codenotate/internal/validator"
	"github.com/dshills/codenotate/pkg/types"
)

// FailurePolicy decides how chunks that exhausted their retries affect the file
type FailurePolicy string

const (
	PolicyStrict  FailurePolicy = "strict"
	PolicyLenient FailurePolicy = "lenient"
)

const (
	// DefaultSuccessThreshold is the lenient policy's minimum success rate
	DefaultSuccessThreshold = 0.5

	// DefaultWrapWidth is the header's overview line width
	DefaultWrapWidth = 76

	ruleWidth = 68
)

// ParseFailurePolicy converts a config string into a FailurePolicy
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case PolicyStrict:
		return PolicyStrict, nil
	case PolicyLenient, "":
		return PolicyLenient, nil
	default:
		return "", fmt.Errorf("unknown failure policy %q (want strict or lenient)", s)
	}
}

// Config contains reassembly settings
type Config struct {
	Policy           FailurePolicy
	SuccessThreshold float64 // Lenient only; fraction of eligible chunks in [0, 1]
	Header           bool    // Prepend the file header
	WrapWidth        uint
}

// DefaultConfig returns lenient reassembly with a header
func DefaultConfig() Config {
	return Config{
		Policy:           PolicyLenient,
		SuccessThreshold: DefaultSuccessThreshold,
		Header:           true,
		WrapWidth:        DefaultWrapWidth,
	}
}

// Input is everything the assembler needs for one file
type Input struct {
	Path     string // Location shown in the header
	Original string
	Chunks   []types.AnnotatedChunk // In chunk order
	Context  *types.FileContext
}

// Assembly is the file-level outcome
type Assembly struct {
	Accepted    bool
	Document    string // Empty when rejected
	Reason      string
	SuccessRate float64
	Issues      []types.Issue
	Metrics     types.Metrics
}

// Assembler applies a failure policy and builds the final document
type Assembler struct {
	validator *validator.Validator
	cfg       Config
	logger    *zap.Logger
}

// New creates an Assembler for the validator's language policy
func New(v *validator.Validator, cfg Config, logger *zap.Logger) *Assembler {
	if cfg.Policy == "" {
		cfg.Policy = PolicyLenient
	}
	if cfg.WrapWidth == 0 {
		cfg.WrapWidth = DefaultWrapWidth
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assembler{validator: v, cfg: cfg, logger: logger}
}

// Assemble applies the failure policy, concatenates chunks in order, prepends
// the header, and runs the coarse check against the original text.
func (a *Assembler) Assemble(in Input) Assembly {
	out := Assembly{SuccessRate: successRate(in.Chunks)}
	log := a.logger.With(zap.String("path", in.Path), zap.String("policy", string(a.cfg.Policy)))

	var failed []string
	for _, ch := range in.Chunks {
		if ch.Eligible() && !ch.Success {
			failed = append(failed, ch.Name)
			out.Issues = append(out.Issues, types.NewIssue(types.LayerAssembly, types.IssueChunkFailed, types.SeverityWarning,
				"chunk %d (%s) kept its original text after %d attempts", ch.ChunkIndex+1, ch.Name, ch.Attempts))
		}
	}

	parts := make([]string, len(in.Chunks))
	for i, ch := range in.Chunks {
		parts[i] = ch.Content
	}
	body := strings.Join(parts, "\n")
	document := body
	if a.cfg.Header && in.Context != nil {
		document = a.Header(in.Path, in.Context, in.Chunks) + "\n\n" + body
	}
	out.Metrics = a.metrics(in, document)

	switch {
	case a.cfg.Policy == PolicyStrict && len(failed) > 0:
		out.Reason = fmt.Sprintf("strict policy: %d chunk(s) failed: %s", len(failed), strings.Join(failed, ", "))
		out.Issues = append(out.Issues, types.NewIssue(types.LayerAssembly, types.IssueChunkFailed, types.SeverityError, "%s", out.Reason))
		log.Info("file rejected", zap.String("reason", out.Reason))
		return out
	case a.cfg.Policy == PolicyLenient && out.SuccessRate < a.cfg.SuccessThreshold:
		out.Reason = fmt.Sprintf("success rate %.0f%% below threshold %.0f%%", out.SuccessRate*100, a.cfg.SuccessThreshold*100)
		out.Issues = append(out.Issues, types.NewIssue(types.LayerAssembly, types.IssueThreshold, types.SeverityError, "%s", out.Reason))
		log.Info("file rejected", zap.String("reason", out.Reason))
		return out
	}

	coarse := a.validator.Coarse(in.Original, document)
	if !coarse.Passed {
		out.Issues = append(out.Issues, coarse.Issues...)
		out.Reason = "coarse content check failed: code changed during assembly"
		log.Error("file rejected", zap.String("reason", out.Reason))
		return out
	}

	out.Accepted = true
	out.Document = document
	log.Info("file accepted",
		zap.Float64("success_rate", out.SuccessRate),
		zap.Int("comment_lines", out.Metrics.CommentLines))
	return out
}

// Header renders the file-level header from the file context. Blocks with no
// description fall back to the purpose reported for their chunk.
func (a *Assembler) Header(path string, fc *types.FileContext, chunks []types.AnnotatedChunk) string {
	p := a.validator.Policy()
	rule := p.Comment(strings.Repeat("=", ruleWidth))
	blank := p.Comment("")

	lines := []string{
		rule,
		p.Comment("FILE: " + filepath.Base(path)),
		p.Comment("LOCATION: " + filepath.ToSlash(path)),
		rule,
		blank,
	}

	width := a.cfg.WrapWidth - uint(len(p.CommentPrefix))
	overview := strings.Split(wordwrap.WrapString("OVERVIEW: "+strings.Join(strings.Fields(fc.Overview), " "), width), "\n")
	for _, l := range overview {
		lines = append(lines, p.Comment(l))
	}
	lines = append(lines, blank)

	if len(fc.NamedBlocks) > 0 {
		lines = append(lines, p.Comment("NAMED BLOCKS:"))
		for _, b := range fc.NamedBlocks {
			desc := b.Description
			if desc == "" {
				desc = purposeOf(b.Name, chunks)
			}
			entry := fmt.Sprintf("  - %s (Line %d)", b.Name, b.StartLine)
			if desc != "" {
				entry += ": " + strings.Join(strings.Fields(desc), " ")
			}
			lines = append(lines, p.Comment(entry))
		}
		lines = append(lines, blank)
	}

	if len(fc.Dependencies) > 0 {
		lines = append(lines, p.Comment("DEPENDENCIES:"))
		for _, d := range fc.Dependencies {
			if d = strings.Join(strings.Fields(d), " "); d != "" {
				lines = append(lines, p.Comment("  - "+d))
			}
		}
		lines = append(lines, blank)
	}

	lines = append(lines, p.Comment(fmt.Sprintf("TOTAL LINES: %d", fc.TotalLines)), rule)
	for i, l := range lines {
		lines[i] = p.StripContinuation(l)
	}
	return strings.Join(lines, "\n")
}

func purposeOf(name string, chunks []types.AnnotatedChunk) string {
	for _, ch := range chunks {
		if ch.Success && strings.EqualFold(strings.TrimSuffix(ch.Name, partSuffix(ch.Name)), name) {
			return ch.Header.Purpose
		}
	}
	return ""
}

// partSuffix returns the "_partN" suffix of a sub-chunk name, if any
func partSuffix(name string) string {
	i := strings.LastIndex(name, "_part")
	if i < 0 {
		return ""
	}
	for _, r := range name[i+len("_part"):] {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return name[i:]
}

func (a *Assembler) metrics(in Input, document string) types.Metrics {
	m := types.Metrics{
		TotalLines:  len(strings.Split(in.Original, "\n")),
		OutputLines: len(strings.Split(document, "\n")),
		ChunksTotal: len(in.Chunks),
	}

	chars := 0
	for _, ch := range in.Chunks {
		if !ch.Eligible() {
			continue
		}
		m.ChunksEligible++
		if !ch.Success {
			continue
		}
		m.ChunksAnnotated++
		m.CommentLines += ch.CommentLines
		chars += ch.CommentChars
		m.MeanRelevance += ch.Relevance
		m.MeanBusinessTerms += ch.Business
	}

	if m.OutputLines > 0 {
		m.CommentDensity = float64(m.CommentLines) / float64(m.OutputLines)
	}
	m.CoverageRatio = 1
	if m.ChunksEligible > 0 {
		m.CoverageRatio = float64(m.ChunksAnnotated) / float64(m.ChunksEligible)
	}
	if m.CommentLines > 0 {
		m.AvgCommentLength = float64(chars) / float64(m.CommentLines)
	}
	if m.ChunksAnnotated > 0 {
		m.MeanRelevance /= float64(m.ChunksAnnotated)
		m.MeanBusinessTerms /= float64(m.ChunksAnnotated)
	}
	return m
}

func successRate(chunks []types.AnnotatedChunk) float64 {
	r := types.ProcessingResult{Chunks: chunks}
	return r.SuccessRate()
}
