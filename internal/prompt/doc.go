// Package prompt builds the text sent to the generation backend.
//
// Every function here is pure: the same inputs always produce the same
// prompt. Retry escalation is expressed as ChunkRequest(in, attempt, prior),
// so the retry loop in the annotator carries no hidden state.
package prompt
