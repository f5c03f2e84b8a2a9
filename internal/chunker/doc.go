// Package chunker splits source files into ordered, bounded chunks aligned
// with the block structure a language policy describes.
//
// # Basic Usage
//
//	c := chunker.New(language.VFP(), chunker.Config{}, logger)
//	chunks, issues := c.Chunk(text)
//	for _, ch := range chunks {
//	    fmt.Printf("%s lines %d-%d\n", ch.DisplayName(), ch.StartLine+1, ch.EndLine)
//	}
//
// # Chunking Strategy
//
// Lines are scanned once. Keyword-delimited blocks (PROCEDURE ... ENDPROC)
// are tracked with a nesting stack, so a nested start closes on the first
// terminator and its parent on the second. Brace-delimited blocks close when
// the brace depth returns to where they opened.
//
// Blocks opened at depth zero become named-block chunks. Text before, between
// and after them becomes top-level chunks. A block without a terminator runs
// to end of file; that is reported as a boundary-ambiguity warning, never an
// error.
//
// # Chunk Sizing
//
// Files below the whole-file threshold (default 100 lines) are one chunk.
// Larger files pick a target size from the tiers:
//   - fewer than 500 lines: 100
//   - fewer than 2000 lines: 150
//   - otherwise: 200
//
// Any chunk longer than the target is sliced into name_part1, name_part2, ...
//
// # Coverage
//
// Chunks are contiguous, never overlap, and cover [0, totalLines) exactly.
// Joining chunk contents with "\n" reproduces the input byte for byte.
package chunker
