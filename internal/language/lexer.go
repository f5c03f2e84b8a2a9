package language

import "strings"

// StringRule describes a string literal that may span lines
type StringRule struct {
	Open   string
	Close  string
	Escape string // Sequence inside the literal that does not close it
}

// Lexer follows block comments, multi-line strings and text blocks across
// lines. It is fed one line at a time and reports the structural punctuation
// it finds outside them.
type Lexer struct {
	policy    Policy
	inComment bool
	inText    bool
	str       *StringRule
}

// NewLexer returns a lexer positioned before the first line
func (p Policy) NewLexer() *Lexer {
	return &Lexer{policy: p}
}

// InComment reports whether a block comment is open
func (l *Lexer) InComment() bool {
	return l.inComment
}

// InLiteral reports whether a multi-line string or text block is open
func (l *Lexer) InLiteral() bool {
	return l.inText || l.str != nil
}

// Scan consumes one line and returns the braces and semicolons found
// outside strings and comments, in order.
func (l *Lexer) Scan(line string) []byte {
	p := l.policy
	if l.inText {
		if p.TextBlockEnd != nil && p.TextBlockEnd.MatchString(line) {
			l.inText = false
		}
		return nil
	}
	if l.str == nil && !l.inComment {
		if p.TextBlockStart != nil && p.TextBlockStart.MatchString(line) {
			l.inText = true
			return nil
		}
		if p.EOLComment != nil && p.EOLComment.MatchString(strings.TrimSpace(line)) {
			return nil
		}
	}
	if p.BlockCommentOpen == "" && len(p.MultilineStrings) == 0 {
		return nil
	}

	var events []byte
	for i := 0; i < len(line); i++ {
		rest := line[i:]
		switch {
		case l.str != nil:
			if l.str.Escape != "" && strings.HasPrefix(rest, l.str.Escape) {
				i += len(l.str.Escape) - 1
			} else if strings.HasPrefix(rest, l.str.Close) {
				i += len(l.str.Close) - 1
				l.str = nil
			}
		case l.inComment:
			if strings.HasPrefix(rest, p.BlockCommentClose) {
				i += len(p.BlockCommentClose) - 1
				l.inComment = false
			}
		case p.TrailingComment != "" && strings.HasPrefix(rest, p.TrailingComment):
			return events
		case p.BlockCommentOpen != "" && strings.HasPrefix(rest, p.BlockCommentOpen):
			i += len(p.BlockCommentOpen) - 1
			l.inComment = true
		default:
			if r := p.openString(rest); r != nil {
				i += len(r.Open) - 1
				l.str = r
				continue
			}
			switch c := line[i]; c {
			case '"', '\'':
				i = skipQuoted(line, i)
			case '{', '}', ';':
				events = append(events, c)
			}
		}
	}
	return events
}

// LiteralOpen reports, for each line, whether a multi-line string or text
// block is still open after it.
func (p Policy) LiteralOpen(lines []string) []bool {
	lx := p.NewLexer()
	open := make([]bool, len(lines))
	for i, line := range lines {
		lx.Scan(line)
		open[i] = lx.InLiteral()
	}
	return open
}

func (p Policy) openString(rest string) *StringRule {
	for i := range p.MultilineStrings {
		if strings.HasPrefix(rest, p.MultilineStrings[i].Open) {
			return &p.MultilineStrings[i]
		}
	}
	return nil
}

// skipQuoted returns the index of the closing quote matching line[start]
func skipQuoted(line string, start int) int {
	quote := line[start]
	for i := start + 1; i < len(line); i++ {
		switch line[i] {
		case '\\':
			i++
		case quote:
			return i
		}
	}
	return len(line)
}
