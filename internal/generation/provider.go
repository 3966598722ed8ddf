package generation

import "context"

// Provider is a remote text-generation service.
//
// Implementations must return a *Failure (see RateLimited, Transient, Fatal)
// for every error they can classify. Unclassified errors are treated as fatal.
// Implementations must stop early when ctx is cancelled.
type Provider interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

