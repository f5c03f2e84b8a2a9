// Package types provides shared type definitions for the codenotate pipeline.
//
// The types flow through the pipeline in this order:
//
//	Chunk          produced by the chunker, one per line range
//	FileContext    produced once per file by the context extractor
//	AnnotationSet  returned by the generation backend for one chunk
//	AnnotatedChunk merged (or original) chunk text
//	ProcessingResult aggregate outcome for one file
//
// # Line Numbering
//
// Chunk line ranges are zero-based and half-open: a chunk covers
// [StartLine, EndLine). CommentBlock.InsertBeforeLine is 1-based and relative
// to its chunk, so a value of LineCount()+1 appends after the last line.
//
// # Invariants
//
// An AnnotationSet never carries code. Comment text is the only thing the
// backend contributes; every code line in the output comes from the original
// chunk, untouched.
package types
