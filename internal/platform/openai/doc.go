// Package openai provides a generation.Provider backed by OpenAI-compatible
// chat completion APIs through github.com/sashabaranov/go-openai.
//
// HTTP 429 responses are rate limited (the SDK exposes no retry metadata),
// 5xx responses are transient and everything else is fatal.
package openai
