// Package generation drives calls to external text-generation providers.
//
// It owns the boundary types exchanged with a provider (Turn, ModelDescriptor,
// Request, Response), the closed classification of provider failures
// (RateLimited, Transient, Fatal) and the Executor, which runs a single
// provider call under a bounded exponential backoff policy.
//
// Provider adapters live under internal/platform and are responsible for
// translating their SDK errors into a *Failure. The Executor never inspects
// provider-specific error shapes.
package generation
