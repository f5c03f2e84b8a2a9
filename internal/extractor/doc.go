// Package extractor produces the whole-file FileContext (Phase 1).
//
// Small files are sent whole. Files above the sampling threshold are reduced
// to a representative sample: the first lines, every detected block
// signature with its line number, and the last lines. Block names and start
// lines found by the chunker's scan are authoritative; the backend supplies
// the overview, dependencies, and block descriptions.
//
// Results are cached by content hash so re-runs over unchanged files and
// repeated MCP previews do not repeat the Phase 1 call.
package extractor
