package language

import (
	"regexp"
	"strings"
)

// BlockRule describes one kind of named block.
//
// Keyword-delimited rules set End; the block closes on the matching end line.
// Brace-delimited rules leave End nil and set Braces; the block opens at the
// first '{' after the start line and closes when brace depth returns to the
// depth at which it opened.
type BlockRule struct {
	Kind   string
	Start  *regexp.Regexp // must capture the block name in a group called "name"
	End    *regexp.Regexp
	Braces bool
}

// Policy is the immutable per-language configuration consumed by every
// pipeline stage. Policies are values; helpers return modified copies.
type Policy struct {
	Name       string
	Extensions []string
	Encoding   string // Source file encoding; empty means UTF-8

	// Comment syntax
	LineComment       *regexp.Regexp // matched against the trimmed line
	EOLComment        *regexp.Regexp // line comment forms that run to end of line; generated lines must use one
	TrailingComment   string         // marker that starts a comment after code on the same line
	CommentPrefix     string         // marker used for generated comment lines
	BlockCommentOpen  string
	BlockCommentClose string
	Continuation      string // trailing marker that joins a statement with the next line

	// Literals that may span lines. Nothing may be inserted inside them.
	MultilineStrings []StringRule
	TextBlockStart   *regexp.Regexp // whole line opening a verbatim text block
	TextBlockEnd     *regexp.Regexp

	// Block structure
	Blocks []BlockRule

	// AllowDuplicateInsertionPoints permits several comment blocks to target
	// the same line (e.g. a doc comment stacked on a plain comment).
	AllowDuplicateInsertionPoints bool

	// Coarse validation
	StructuralKeywords []string
	CaseInsensitive    bool
}

// WithDuplicateInsertionPoints returns a copy with the duplicate rule replaced
func (p Policy) WithDuplicateInsertionPoints(allow bool) Policy {
	p.AllowDuplicateInsertionPoints = allow
	return p
}

// HasBraces reports whether any rule is brace-delimited
func (p Policy) HasBraces() bool {
	for _, r := range p.Blocks {
		if r.Braces {
			return true
		}
	}
	return false
}

// IsComment reports whether a single line, on its own, is a comment line
func (p Policy) IsComment(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	if p.LineComment != nil && p.LineComment.MatchString(trimmed) {
		return true
	}
	if p.BlockCommentOpen != "" && strings.HasPrefix(trimmed, p.BlockCommentOpen) {
		return true
	}
	return false
}

// MatchStart reports whether line opens a block and returns the rule and name
func (p Policy) MatchStart(line string) (BlockRule, string, bool) {
	if p.IsComment(line) {
		return BlockRule{}, "", false
	}
	for _, r := range p.Blocks {
		m := r.Start.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		name := ""
		if idx := r.Start.SubexpIndex("name"); idx >= 0 && idx < len(m) {
			name = sanitizeName(m[idx])
		}
		if name == "" {
			name = r.Kind
		}
		return r, name, true
	}
	return BlockRule{}, "", false
}

// MatchAnyEnd returns the kind of the first keyword rule whose end pattern matches line
func (p Policy) MatchAnyEnd(line string) (string, bool) {
	if p.IsComment(line) {
		return "", false
	}
	for _, r := range p.Blocks {
		if r.End != nil && r.End.MatchString(line) {
			return r.Kind, true
		}
	}
	return "", false
}

// CodeLines returns the non-blank, non-comment lines of text in order.
//
// Lines inside a multi-line string or text block are code, blank or not.
// A block comment line is code when text follows its close, and a line
// comment ending in the continuation marker swallows the next line too.
func (p Policy) CodeLines(lines []string) []string {
	out := make([]string, 0, len(lines))
	lx := p.NewLexer()
	continued := false
	for _, line := range lines {
		literal, comment := lx.InLiteral(), lx.InComment()
		lx.Scan(line)
		trimmed := strings.TrimSpace(line)
		switch {
		case literal:
			out = append(out, line)
		case continued:
			continued = p.EndsWithContinuation(line)
		case trimmed == "":
		case comment:
			if p.codeAfterClose(trimmed) {
				out = append(out, line)
			}
		case p.IsLineComment(trimmed):
			continued = p.EndsWithContinuation(trimmed)
		case p.BlockCommentOpen != "" && strings.HasPrefix(trimmed, p.BlockCommentOpen):
			if p.codeAfterClose(trimmed[len(p.BlockCommentOpen):]) {
				out = append(out, line)
			}
		default:
			out = append(out, line)
		}
	}
	return out
}

// codeAfterClose reports whether s, which starts inside a block comment,
// has code after the comment closes.
func (p Policy) codeAfterClose(s string) bool {
	idx := strings.Index(s, p.BlockCommentClose)
	if p.BlockCommentClose == "" || idx < 0 {
		return false
	}
	after := strings.TrimSpace(s[idx+len(p.BlockCommentClose):])
	switch {
	case after == "", p.IsLineComment(after):
		return false
	case strings.HasPrefix(after, p.BlockCommentOpen):
		return p.codeAfterClose(after[len(p.BlockCommentOpen):])
	}
	return true
}

// IsLineComment reports whether line is a comment that runs to end of line.
// These are the only forms a generated comment line may take.
func (p Policy) IsLineComment(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	re := p.EOLComment
	if re == nil {
		re = p.LineComment
	}
	return re != nil && re.MatchString(trimmed)
}

// HasCode reports whether any line of text is code
func (p Policy) HasCode(lines []string) bool {
	return len(p.CodeLines(lines)) > 0
}

// Comment prefixes text with the policy's comment marker
func (p Policy) Comment(text string) string {
	if text == "" {
		return strings.TrimRight(p.CommentPrefix, " ")
	}
	return p.CommentPrefix + text
}

// EndsWithContinuation reports whether line continues onto the next line
func (p Policy) EndsWithContinuation(line string) bool {
	if p.Continuation == "" {
		return false
	}
	return strings.HasSuffix(strings.TrimRight(line, " \t\r"), p.Continuation)
}

// StripContinuation removes trailing continuation markers from line
func (p Policy) StripContinuation(line string) string {
	for p.EndsWithContinuation(line) {
		line = strings.TrimSuffix(strings.TrimRight(line, " \t\r"), p.Continuation)
	}
	return strings.TrimRight(line, " \t\r")
}

var nameCleaner = regexp.MustCompile(`[^\w.]+`)

func sanitizeName(s string) string {
	s = strings.TrimSpace(s)
	s = nameCleaner.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}
