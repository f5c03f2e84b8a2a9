// Package validator proves that generated comments never touch code.
//
// Four comment layers each return a LayerResult (passed, issues):
//   - Syntax: every line must be a comment; missing markers are added,
//     code-shaped lines are errors. Hard-blocking.
//   - Relevance: fraction of code identifiers mentioned in comments.
//   - Completeness: header purpose length and comment block count.
//   - BusinessTerms: fraction of file dependencies mentioned in comments.
//
// Relevance, Completeness and BusinessTerms are advisory unless their Strict
// flag is set.
//
// The insertion checks bracket the merge. PreInsertion bounds-checks the
// insertion points and applies the duplicate rule; PostInsertion compares
// normalized code lines of the original and merged text. Coarse is an
// independent whole-document check on a code hash and keyword counts.
package validator
