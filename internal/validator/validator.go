package validator

import (
	"go.uber.org/zap"

	"github.com/dshills/codenotate/internal/language"
	"github.com/dshills/codenotate/pkg/types"
)

const (
	// DefaultMinRelevance is the minimum fraction of code identifiers that
	// should reappear in comment text
	DefaultMinRelevance = 0.10

	// DefaultMinBusinessCoverage is the minimum fraction of file dependencies
	// that should be mentioned in comment text
	DefaultMinBusinessCoverage = 0.5

	// DefaultMinPurposeChars is the length the header purpose must exceed
	DefaultMinPurposeChars = 10
)

// Config contains validator thresholds. Only the syntax and insertion layers
// block by default; the Strict flags promote advisory layers.
type Config struct {
	MinRelevance        float64
	MinBusinessCoverage float64
	MinPurposeChars     int
	MinCommentBlocks    int

	StrictRelevance     bool
	StrictCompleteness  bool
	StrictBusinessTerms bool
}

// DefaultConfig returns the standard thresholds
func DefaultConfig() Config {
	return Config{
		MinRelevance:        DefaultMinRelevance,
		MinBusinessCoverage: DefaultMinBusinessCoverage,
		MinPurposeChars:     DefaultMinPurposeChars,
		MinCommentBlocks:    1,
	}
}

// LayerResult is the (passed, issues) pair every layer returns
type LayerResult struct {
	Layer  types.Layer
	Passed bool
	Score  float64 // Layer-specific ratio; 1 when not applicable
	Issues []types.Issue
}

// Blocking reports whether a failed result must reject the attempt
func (r LayerResult) Blocking() bool {
	return !r.Passed && types.HasErrors(r.Issues)
}

// Validator runs the comment and insertion checks for one language policy
type Validator struct {
	policy language.Policy
	cfg    Config
	logger *zap.Logger
}

// New creates a validator. Zero thresholds fall back to defaults.
func New(policy language.Policy, cfg Config, logger *zap.Logger) *Validator {
	def := DefaultConfig()
	if cfg.MinRelevance <= 0 {
		cfg.MinRelevance = def.MinRelevance
	}
	if cfg.MinBusinessCoverage <= 0 {
		cfg.MinBusinessCoverage = def.MinBusinessCoverage
	}
	if cfg.MinPurposeChars <= 0 {
		cfg.MinPurposeChars = def.MinPurposeChars
	}
	if cfg.MinCommentBlocks <= 0 {
		cfg.MinCommentBlocks = def.MinCommentBlocks
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{policy: policy, cfg: cfg, logger: logger}
}

// Policy returns the language policy the validator checks against
func (v *Validator) Policy() language.Policy {
	return v.policy
}

// advisory builds a result whose failure severity depends on strict
func advisory(layer types.Layer, passed bool, score float64, strict bool, code types.IssueCode, format string, args ...interface{}) LayerResult {
	res := LayerResult{Layer: layer, Passed: passed, Score: score}
	if passed {
		return res
	}
	sev := types.SeverityWarning
	if strict {
		sev = types.SeverityError
	}
	res.Issues = []types.Issue{types.NewIssue(layer, code, sev, format, args...)}
	return res
}
