// Package backend talks to the generation backend that proposes comments.
//
// A Backend accepts a system prompt, a user prompt and a response Schema and
// returns the raw JSON object the model produced. Schema conformance is the
// provider's job (Gemini response schemas, OpenAI json_schema response
// formats); callers only check semantic invariants.
//
// # Providers
//
//   - gemini: Google GenAI SDK; needs GEMINI_API_KEY or GOOGLE_API_KEY
//   - openai: any OpenAI-compatible chat completions endpoint; defaults to a
//     local LM Studio server at http://127.0.0.1:1234
//
// # Errors
//
// Failures are wrapped with ErrBackendUnavailable (connectivity, timeouts,
// non-200 responses) or ErrSchemaViolation (non-JSON or unusable payloads).
// Classify maps either onto an issue code; both are retried by callers.
package backend
