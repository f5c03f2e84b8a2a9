// Package annotator requests comments for one chunk (Phase 2) and accepts a
// response only after it passes validation and merges without touching code.
package annotator
