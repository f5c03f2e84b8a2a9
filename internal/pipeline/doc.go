// Package pipeline orchestrates annotation of files.
//
// Processor handles one file: chunk, extract the file context (Phase 1),
// annotate chunks concurrently under a worker limit (Phase 2), then
// reassemble under the configured failure policy. A Processor never returns
// a Go error for a file-level failure; the ProcessingResult carries it.
//
// Runner drives a Processor over a directory tree, writes accepted documents
// through the sink and records every outcome in the ledger. Only one run may
// be active per Runner.
package pipeline
