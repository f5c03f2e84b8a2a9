// Package assembler combines annotated chunks into the final document.
//
// Chunks are concatenated in original order under a single file header.
// The failure policy decides what happens when chunks could not be
// annotated: strict rejects the file, lenient keeps the original text of
// failed chunks and accepts the file if enough chunks succeeded. The coarse
// hash and keyword check runs on every assembled document.
package assembler
