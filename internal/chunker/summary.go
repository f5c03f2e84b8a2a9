package chunker

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/dshills/codenotate/pkg/types"
)

// Summary renders a human-readable chunk plan
func Summary(chunks []*types.Chunk) string {
	var b strings.Builder
	totalLines, totalBytes := 0, 0
	for _, ch := range chunks {
		totalLines += ch.LineCount()
		totalBytes += len(ch.Content)
	}
	fmt.Fprintf(&b, "%d chunks, %d lines, %s\n", len(chunks), totalLines, humanize.Bytes(uint64(totalBytes)))
	for _, ch := range chunks {
		fmt.Fprintf(&b, "  %3d  %-11s %-32s lines %d-%d (%d lines, ~%d tokens)\n",
			ch.Index+1, ch.Kind, ch.DisplayName(), ch.StartLine+1, ch.EndLine, ch.LineCount(), ch.TokenCount)
	}
	return b.String()
}
