package chunker

import (
	"strings"

	"github.com/dshills/codenotate/internal/language"
)

// Block is a named block detected by FindBlocks. Lines are zero-based and
// EndLine is inclusive.
type Block struct {
	Kind      string
	Name      string
	StartLine int
	EndLine   int
	Depth     int    // Number of enclosing open blocks when this one started
	Signature string // The start line as written

	Unterminated bool // No terminator before EOF; extended to the last line
	Implicit     bool // Closed by an enclosing block's terminator
}

// Stray records a terminator that matched no open block
type Stray struct {
	Line int
	Text string
}

// Scan holds the result of a block scan
type Scan struct {
	Blocks []Block
	Strays []Stray
}

// TopLevel returns blocks that were opened outside any other block
func (s Scan) TopLevel() []Block {
	out := make([]Block, 0, len(s.Blocks))
	for _, b := range s.Blocks {
		if b.Depth == 0 {
			out = append(out, b)
		}
	}
	return out
}

type openBlock struct {
	index      int // into blocks
	rule       language.BlockRule
	braceDepth int // brace depth just outside the block's '{'
}

// FindBlocks scans lines once and returns every block the policy can see.
//
// Keyword blocks use a nesting stack: each start pushes, each matching end
// pops, so the innermost open block closes first. Brace blocks open at the
// first '{' after their start line and close when the brace depth returns to
// where it was. A block with no terminator extends to the last line.
func FindBlocks(lines []string, policy language.Policy) Scan {
	var (
		blocks  []Block
		dropped = make(map[int]bool)
		strays  []Stray
		stack   []openBlock
		pending *openBlock
		depth   int
		lexer   = policy.NewLexer()
	)
	braces := policy.HasBraces()

	// closeAt closes stack[pos] at line; anything opened inside it closes implicitly.
	closeAt := func(pos int, line int) {
		for len(stack) > pos+1 {
			top := stack[len(stack)-1]
			blocks[top.index].EndLine = line
			blocks[top.index].Implicit = true
			stack = stack[:len(stack)-1]
		}
		top := stack[pos]
		blocks[top.index].EndLine = line
		stack = stack[:pos]
	}

	for i, line := range lines {
		quiet := lexer.InComment() || lexer.InLiteral()
		events := lexer.Scan(line)

		if kind, ok := policy.MatchAnyEnd(line); ok && !quiet {
			pos := -1
			for j := len(stack) - 1; j >= 0; j-- {
				if !stack[j].rule.Braces && stack[j].rule.Kind == kind {
					pos = j
					break
				}
			}
			if pos < 0 {
				strays = append(strays, Stray{Line: i, Text: strings.TrimSpace(line)})
			} else {
				closeAt(pos, i)
			}
			continue
		}

		if !quiet {
			if rule, name, ok := policy.MatchStart(line); ok {
				if pending != nil {
					dropped[pending.index] = true
					pending = nil
				}
				blocks = append(blocks, Block{
					Kind:      rule.Kind,
					Name:      name,
					StartLine: i,
					EndLine:   -1,
					Depth:     len(stack),
					Signature: line,
				})
				ob := openBlock{index: len(blocks) - 1, rule: rule}
				if rule.Braces {
					pending = &ob
				} else {
					stack = append(stack, ob)
				}
			}
		}

		if !braces {
			continue
		}
		for _, ev := range events {
			switch ev {
			case '{':
				if pending != nil {
					pending.braceDepth = depth
					stack = append(stack, *pending)
					pending = nil
				}
				depth++
			case '}':
				if depth > 0 {
					depth--
				}
				for j := len(stack) - 1; j >= 0; j-- {
					if !stack[j].rule.Braces {
						continue
					}
					if depth <= stack[j].braceDepth {
						closeAt(j, i)
					}
					break
				}
			case ';':
				if pending != nil {
					dropped[pending.index] = true
					pending = nil
				}
			}
		}
	}

	if pending != nil {
		dropped[pending.index] = true
	}
	last := len(lines) - 1
	for _, ob := range stack {
		blocks[ob.index].EndLine = last
		blocks[ob.index].Unterminated = true
	}

	out := make([]Block, 0, len(blocks))
	for i, b := range blocks {
		if dropped[i] {
			continue
		}
		out = append(out, b)
	}
	return Scan{Blocks: out, Strays: strays}
}
