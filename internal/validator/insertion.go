package validator

import (
	"strings"

	"github.com/dshills/codenotate/pkg/types"
)

// PreInsertion checks insertion points before merge: every point must lie in
// [1, lineCount+1], duplicates are rejected unless the policy allows them,
// and no comment may split a statement that continues onto the next line or
// land inside a multi-line string or text block.
func (v *Validator) PreInsertion(chunk *types.Chunk, blocks []types.CommentBlock) LayerResult {
	res := LayerResult{Layer: types.LayerInsertion, Passed: true, Score: 1}
	lines := chunk.Lines()
	limit := len(lines) + 1
	literal := v.policy.LiteralOpen(lines)
	seen := make(map[int]int)

	for i, b := range blocks {
		pos := b.InsertBeforeLine
		if pos < 1 || pos > limit {
			res.Issues = append(res.Issues, types.NewIssue(types.LayerInsertion, types.IssueOutOfRange, types.SeverityError,
				"comment block %d targets line %d; valid range is 1-%d", i+1, pos, limit))
			continue
		}
		if first, dup := seen[pos]; dup && !v.policy.AllowDuplicateInsertionPoints {
			res.Issues = append(res.Issues, types.NewIssue(types.LayerInsertion, types.IssueDuplicatePoint, types.SeverityError,
				"comment blocks %d and %d both target line %d", first+1, i+1, pos))
			continue
		}
		if _, dup := seen[pos]; !dup {
			seen[pos] = i
		}
		if pos < 2 {
			continue
		}
		// The comment lands after lines[pos-2]; pos == limit appends
		prev := pos - 2
		switch {
		case v.policy.EndsWithContinuation(lines[prev]):
			res.Issues = append(res.Issues, types.NewIssue(types.LayerInsertion, types.IssueContinuation, types.SeverityError,
				"comment block %d at line %d would split a continued statement", i+1, pos))
		case literal[prev]:
			res.Issues = append(res.Issues, types.NewIssue(types.LayerInsertion, types.IssueInsideLiteral, types.SeverityError,
				"comment block %d at line %d would land inside a multi-line literal", i+1, pos))
		}
	}

	if len(res.Issues) > 0 {
		res.Passed = false
		res.Score = 0
	}
	return res
}

// PostInsertion re-extracts the non-blank, non-comment lines of the original
// chunk and the merged text and requires them to match pairwise after
// normalization. A mismatch means code was changed, dropped or reordered.
func (v *Validator) PostInsertion(original, merged string) LayerResult {
	res := LayerResult{Layer: types.LayerInsertion, Passed: true, Score: 1}
	before := v.policy.CodeLines(strings.Split(original, "\n"))
	after := v.policy.CodeLines(strings.Split(merged, "\n"))

	if len(before) != len(after) {
		res.Passed = false
		res.Score = 0
		res.Issues = append(res.Issues, types.NewIssue(types.LayerInsertion, types.IssueContentViolation, types.SeverityError,
			"code line count changed from %d to %d", len(before), len(after)))
		v.logger.Error("post-insertion check failed: code line count changed")
		return res
	}

	for i := range before {
		if normalize(before[i]) != normalize(after[i]) {
			res.Passed = false
			res.Score = 0
			res.Issues = append(res.Issues, types.NewIssue(types.LayerInsertion, types.IssueContentViolation, types.SeverityError,
				"code line %d changed: %q became %q", i+1, strings.TrimSpace(before[i]), strings.TrimSpace(after[i])))
			v.logger.Error("post-insertion check failed: code line changed")
			return res
		}
	}
	return res
}
