// Package gemini provides an implementation of the generation.Provider interface
// backed by Google's Gemini API.
//
// This package is an infrastructure adapter. It translates between the
// application's conversation types and the google.golang.org/genai client and
// classifies every API failure into a generation.Failure:
//
//   - HTTP 429 or RESOURCE_EXHAUSTED: rate limited, with the retry delay taken
//     from the google.rpc.RetryInfo error detail when present
//   - HTTP 5xx: transient
//   - anything else, including blocked content and empty candidates: fatal
//
// Retrying itself is left to generation.Executor.
package gemini
