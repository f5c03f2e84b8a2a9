// Package inserter merges validated comment blocks into chunk text.
//
// Merge reads only comment strings from the blocks and original lines from
// the chunk. Code never flows from the backend into the output.
package inserter

import (
	"sort"
	"strings"

	"github.com/dshills/codenotate/pkg/types"
)

// Merge inserts comment blocks into content and returns the merged text.
//
// Blocks are stable-sorted by InsertBeforeLine; blocks sharing a line are
// emitted in submission order. A blank separator precedes each block when
// the previously emitted line is non-blank. Comment lines take the
// indentation of the line they annotate. Merging no blocks returns content
// unchanged.
func Merge(content string, blocks []types.CommentBlock) string {
	if len(blocks) == 0 {
		return content
	}

	lines := strings.Split(content, "\n")
	sorted := make([]types.CommentBlock, len(blocks))
	copy(sorted, blocks)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].InsertBeforeLine < sorted[j].InsertBeforeLine
	})

	out := make([]string, 0, len(lines)+countLines(sorted)*2)
	next := 0
	emitBlocks := func(pos int) {
		indent, eol := style(lines, pos)
		for next < len(sorted) && sorted[next].InsertBeforeLine == pos {
			if len(out) > 0 && strings.TrimSpace(out[len(out)-1]) != "" {
				out = append(out, eol)
			}
			for _, l := range sorted[next].Lines {
				out = append(out, indent+l+eol)
			}
			next++
		}
	}

	for i, line := range lines {
		emitBlocks(i + 1)
		out = append(out, line)
	}
	emitBlocks(len(lines) + 1)

	return strings.Join(out, "\n")
}

// style returns the indentation and line ending for comments placed before
// the 1-based line pos. Appended comments follow the last non-blank line.
func style(lines []string, pos int) (indent, eol string) {
	ref := ""
	if pos-1 < len(lines) {
		for i := pos - 1; i < len(lines); i++ {
			if strings.TrimSpace(lines[i]) != "" {
				ref = lines[i]
				break
			}
		}
	} else {
		for i := len(lines) - 1; i >= 0; i-- {
			if strings.TrimSpace(lines[i]) != "" {
				ref = lines[i]
				break
			}
		}
	}
	if strings.HasSuffix(ref, "\r") {
		eol = "\r"
	}
	return leadingWhitespace(ref), eol
}

func leadingWhitespace(s string) string {
	return s[:len(s)-len(strings.TrimLeft(s, " \t"))]
}

func countLines(blocks []types.CommentBlock) int {
	n := 0
	for _, b := range blocks {
		n += len(b.Lines)
	}
	return n
}
