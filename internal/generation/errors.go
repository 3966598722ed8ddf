package generation

import "errors"

// Common errors returned by the generation package
var (
	// ErrRetriesExhausted is returned when every allowed attempt failed with a retryable failure
	ErrRetriesExhausted = errors.New("retries exhausted")

	// ErrInvalidRequest is returned when a request fails boundary validation
	ErrInvalidRequest = errors.New("invalid generation request")

	// ErrInvalidResponse is returned when the provider response cannot be used
	ErrInvalidResponse = errors.New("invalid response from language model")

	// ErrContentBlocked is returned when the provider blocks the content due to safety filters
	ErrContentBlocked = errors.New("content blocked by language model safety filters")

	// ErrInvalidConfig is returned when a provider or executor configuration is invalid
	ErrInvalidConfig = errors.New("invalid generator configuration")

	// ErrCancelled is returned when the call is cancelled while waiting between attempts
	ErrCancelled = errors.New("generation cancelled")
)
