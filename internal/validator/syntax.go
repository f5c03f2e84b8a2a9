package validator

import (
	"regexp"
	"strings"

	"github.com/dshills/codenotate/pkg/types"
)

var assignmentPattern = regexp.MustCompile(`^[A-Za-z_][\w.\[\]]*\s*(=|:=|\+=|-=)\s*\S+$`)

// Syntax checks every comment line against the policy's line comment forms.
//
// Lines that merely lack the marker are prefixed with it. A block comment
// with nothing after its close is rewritten as a line comment; one followed
// by more text is an error. Lines that look like code are errors, and
// trailing continuation markers are stripped so a comment never swallows
// the next line. Embedded newlines are split and blank lines dropped; a
// block left with no lines is removed. The returned set is a corrected copy.
func (v *Validator) Syntax(set *types.AnnotationSet) (*types.AnnotationSet, LayerResult) {
	res := LayerResult{Layer: types.LayerSyntax, Passed: true, Score: 1}
	out := set.Clone()
	if out == nil {
		out = &types.AnnotationSet{}
	}

	corrected := 0
	blocks := make([]types.CommentBlock, 0, len(out.Comments))
	for bi, block := range out.Comments {
		var lines []string
		for _, raw := range block.Lines {
			for _, line := range strings.Split(raw, "\n") {
				line = strings.TrimSpace(line)
				if line == "" {
					continue
				}
				fixed, ok := v.lineComment(line)
				if !ok {
					res.Issues = append(res.Issues, types.NewIssue(types.LayerSyntax, types.IssueNotComment, types.SeverityError,
						"comment block %d contains a line that is not a safe comment: %q", bi+1, line))
					continue
				}
				if fixed != line {
					corrected++
				}
				lines = append(lines, fixed)
			}
		}
		if len(lines) == 0 {
			res.Issues = append(res.Issues, types.NewIssue(types.LayerSyntax, types.IssueEmptyBlock, types.SeverityWarning,
				"comment block %d has no usable lines and was dropped", bi+1))
			continue
		}
		block.Lines = lines
		blocks = append(blocks, block)
	}
	out.Comments = blocks

	if corrected > 0 {
		res.Issues = append(res.Issues, types.NewIssue(types.LayerSyntax, types.IssueAutoCorrected, types.SeverityInfo,
			"corrected %d comment lines to %q line comments", corrected, strings.TrimSpace(v.policy.CommentPrefix)))
	}
	if types.HasErrors(res.Issues) {
		res.Passed = false
		res.Score = 0
	}
	return out, res
}

// lineComment returns line as a line comment that runs to end of line, or
// false when it cannot be made one without keeping code live.
func (v *Validator) lineComment(line string) (string, bool) {
	p := v.policy
	switch {
	case p.IsLineComment(line):
	case p.BlockCommentOpen != "" && (p.IsComment(line) || strings.Contains(line, p.BlockCommentClose)):
		text, ok := v.unwrapBlockComment(line)
		if !ok {
			return "", false
		}
		line = p.Comment(text)
	case v.looksLikeCode(line):
		return "", false
	default:
		line = p.Comment(line)
	}

	stripped := p.StripContinuation(line)
	if !p.IsLineComment(stripped) {
		// Nothing but the marker and the continuation was left
		stripped = strings.TrimRight(p.CommentPrefix, " ")
	}
	return stripped, true
}

// unwrapBlockComment returns the text of a block comment line. It fails
// when anything follows the close.
func (v *Validator) unwrapBlockComment(line string) (string, bool) {
	p := v.policy
	text := strings.TrimPrefix(line, p.BlockCommentOpen)
	if idx := strings.Index(text, p.BlockCommentClose); idx >= 0 {
		if strings.TrimSpace(text[idx+len(p.BlockCommentClose):]) != "" {
			return "", false
		}
		text = text[:idx]
	}
	text = strings.TrimLeft(strings.TrimSpace(text), "*")
	return strings.TrimSpace(text), true
}

// looksLikeCode reports whether an unmarked line has the shape of a statement
func (v *Validator) looksLikeCode(line string) bool {
	if _, ok := v.policy.MatchAnyEnd(line); ok {
		return true
	}
	if _, _, ok := v.policy.MatchStart(line); ok && len(strings.Fields(line)) <= 3 {
		return true
	}
	if v.policy.HasBraces() {
		if strings.HasSuffix(line, "{") || strings.HasSuffix(line, "}") || strings.HasSuffix(line, ";") {
			return true
		}
	}
	if v.policy.EndsWithContinuation(line) {
		return true
	}
	return assignmentPattern.MatchString(line)
}
