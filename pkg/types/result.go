package types

import "time"

// AnnotatedChunk is the outcome for one chunk: either the chunk text with
// comments merged in, or the untouched original text.
type AnnotatedChunk struct {
	ChunkIndex  int
	Name        string
	StartLine   int // Zero-based, inclusive
	EndLine     int // Exclusive
	Success     bool
	Passthrough bool // No code lines; never sent to the backend
	Content     string
	Attempts    int

	Header       HeaderInfo
	CommentLines int
	CommentChars int // Total length of inserted comment lines
	Relevance    float64
	Business     float64
}

// Eligible reports whether the chunk counts toward the success rate
func (a *AnnotatedChunk) Eligible() bool {
	return !a.Passthrough
}

// Metrics summarises annotation quality for a file
type Metrics struct {
	TotalLines        int     `json:"total_lines"`
	OutputLines       int     `json:"output_lines"`
	CommentLines      int     `json:"comment_lines"`
	CommentDensity    float64 `json:"comment_density"`
	ChunksTotal       int     `json:"chunks_total"`
	ChunksEligible    int     `json:"chunks_eligible"`
	ChunksAnnotated   int     `json:"chunks_annotated"`
	CoverageRatio     float64 `json:"coverage_ratio"`
	AvgCommentLength  float64 `json:"avg_comment_length"`
	MeanRelevance     float64 `json:"mean_relevance"`
	MeanBusinessTerms float64 `json:"mean_business_terms"`
}

// ProcessingResult is the aggregate outcome of processing one file
type ProcessingResult struct {
	Path     string
	Language string
	Success  bool
	Reason   string // Human-readable reason when Success is false

	Document string // Final annotated text; empty when rejected
	Chunks   []AnnotatedChunk
	Context  *FileContext

	ChunkIssues map[int][]Issue // Keyed by chunk index
	FileIssues  []Issue

	Metrics  Metrics
	Duration time.Duration
}

// SuccessRate returns the fraction of eligible chunks that were annotated
func (r *ProcessingResult) SuccessRate() float64 {
	eligible, ok := 0, 0
	for i := range r.Chunks {
		if !r.Chunks[i].Eligible() {
			continue
		}
		eligible++
		if r.Chunks[i].Success {
			ok++
		}
	}
	if eligible == 0 {
		return 1
	}
	return float64(ok) / float64(eligible)
}

// IssueCount returns the total number of chunk and file issues
func (r *ProcessingResult) IssueCount() int {
	n := len(r.FileIssues)
	for _, is := range r.ChunkIssues {
		n += len(is)
	}
	return n
}

// Fail marks the result failed with the given reason
func (r *ProcessingResult) Fail(reason string) *ProcessingResult {
	r.Success = false
	r.Reason = reason
	r.Document = ""
	return r
}
