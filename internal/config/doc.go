// Package config handles configuration loading, parsing, and validation
// from various sources (environment variables, files). It provides type-safe
// access to worker settings: logging, database, LLM provider and retry policy,
// and background task processing.
package config
