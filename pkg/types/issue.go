package types

import "fmt"

// Severity grades an issue
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Layer names the pipeline stage that raised an issue
type Layer string

const (
	LayerChunker      Layer = "chunker"
	LayerContext      Layer = "context"
	LayerBackend      Layer = "backend"
	LayerSyntax       Layer = "syntax"
	LayerRelevance    Layer = "relevance"
	LayerCompleteness Layer = "completeness"
	LayerBusiness     Layer = "business_terms"
	LayerInsertion    Layer = "insertion"
	LayerCoarse       Layer = "coarse"
	LayerAssembly     Layer = "assembly"
)

// IssueCode classifies an issue
type IssueCode string

const (
	IssueBackendUnavailable IssueCode = "backend_unavailable"
	IssueSchemaViolation    IssueCode = "schema_violation"
	IssueContentViolation   IssueCode = "content_violation"
	IssueBoundaryAmbiguity  IssueCode = "boundary_ambiguity"

	IssueAutoCorrected    IssueCode = "auto_corrected"
	IssueNotComment       IssueCode = "not_a_comment"
	IssueEmptyBlock       IssueCode = "empty_comment_block"
	IssueLowRelevance     IssueCode = "low_relevance"
	IssueIncomplete       IssueCode = "incomplete"
	IssueLowBusinessTerms IssueCode = "low_business_coverage"
	IssueOutOfRange       IssueCode = "insertion_out_of_range"
	IssueDuplicatePoint   IssueCode = "duplicate_insertion_point"
	IssueContinuation     IssueCode = "insertion_splits_statement"
	IssueInsideLiteral    IssueCode = "insertion_inside_literal"
	IssueThreshold        IssueCode = "below_success_threshold"
	IssueChunkFailed      IssueCode = "chunk_failed"
)

// Issue is one finding raised while processing a chunk or a file
type Issue struct {
	Code     IssueCode `json:"code"`
	Severity Severity  `json:"severity"`
	Layer    Layer     `json:"layer"`
	Message  string    `json:"message"`
	Attempt  int       `json:"attempt,omitempty"`
}

// NewIssue builds an issue with a formatted message
func NewIssue(layer Layer, code IssueCode, sev Severity, format string, args ...interface{}) Issue {
	return Issue{
		Code:     code,
		Severity: sev,
		Layer:    layer,
		Message:  fmt.Sprintf(format, args...),
	}
}

func (i Issue) String() string {
	return fmt.Sprintf("[%s/%s] %s", i.Layer, i.Code, i.Message)
}

// HasErrors reports whether any issue is error severity
func HasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

// WithAttempt stamps every issue with the attempt that produced it
func WithAttempt(issues []Issue, attempt int) []Issue {
	out := make([]Issue, len(issues))
	for i, is := range issues {
		is.Attempt = attempt
		out[i] = is
	}
	return out
}
