package validator

import (
	"strings"

	"github.com/dshills/codenotate/pkg/types"
)

// Relevance measures the fraction of the chunk's code identifiers that
// reappear anywhere in the produced comment text.
func (v *Validator) Relevance(chunk *types.Chunk, set *types.AnnotationSet) LayerResult {
	code := identifiers(v.policy.CodeLines(chunk.Lines())...)
	if len(code) == 0 {
		return LayerResult{Layer: types.LayerRelevance, Passed: true, Score: 1}
	}
	comments := identifiers(set.Text()...)

	hits := 0
	for tok := range code {
		if _, ok := comments[tok]; ok {
			hits++
		}
	}
	score := float64(hits) / float64(len(code))
	return advisory(types.LayerRelevance, score >= v.cfg.MinRelevance, score, v.cfg.StrictRelevance,
		types.IssueLowRelevance, "comments mention %d of %d code identifiers (%.0f%%, minimum %.0f%%)",
		hits, len(code), score*100, v.cfg.MinRelevance*100)
}

// Completeness requires a meaningful purpose and at least one comment block
func (v *Validator) Completeness(set *types.AnnotationSet) LayerResult {
	res := LayerResult{Layer: types.LayerCompleteness, Passed: true, Score: 1}
	sev := types.SeverityWarning
	if v.cfg.StrictCompleteness {
		sev = types.SeverityError
	}

	purpose := strings.TrimSpace(set.Header.Purpose)
	if len(purpose) <= v.cfg.MinPurposeChars {
		res.Issues = append(res.Issues, types.NewIssue(types.LayerCompleteness, types.IssueIncomplete, sev,
			"header purpose must exceed %d characters, got %d", v.cfg.MinPurposeChars, len(purpose)))
	}
	if len(set.Comments) < v.cfg.MinCommentBlocks {
		res.Issues = append(res.Issues, types.NewIssue(types.LayerCompleteness, types.IssueIncomplete, sev,
			"expected at least %d comment blocks, got %d", v.cfg.MinCommentBlocks, len(set.Comments)))
	}
	if len(res.Issues) > 0 {
		res.Passed = false
		res.Score = 0
	}
	return res
}

// BusinessTerms requires that enough of the file's dependencies are named
// somewhere in the comments. It passes trivially without a file context.
func (v *Validator) BusinessTerms(set *types.AnnotationSet, fc *types.FileContext) LayerResult {
	if fc == nil || len(fc.Dependencies) == 0 {
		return LayerResult{Layer: types.LayerBusiness, Passed: true, Score: 1}
	}
	comments := identifiers(set.Text()...)
	text := strings.ToLower(strings.Join(set.Text(), " "))

	matched := 0
	for _, dep := range fc.Dependencies {
		if mentions(dep, comments, text) {
			matched++
		}
	}
	score := float64(matched) / float64(len(fc.Dependencies))
	return advisory(types.LayerBusiness, score >= v.cfg.MinBusinessCoverage, score, v.cfg.StrictBusinessTerms,
		types.IssueLowBusinessTerms, "comments mention %d of %d file dependencies (minimum %.0f%%)",
		matched, len(fc.Dependencies), v.cfg.MinBusinessCoverage*100)
}

// mentions reports whether a dependency name or any of its tokens appears in the comments
func mentions(dep string, tokens map[string]struct{}, text string) bool {
	dep = strings.ToLower(strings.TrimSpace(dep))
	if dep == "" {
		return false
	}
	if strings.Contains(text, dep) {
		return true
	}
	for tok := range identifiers(dep) {
		if _, ok := tokens[tok]; ok {
			return true
		}
	}
	return false
}
