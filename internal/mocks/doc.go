// Package mocks provides centralized mock implementations for testing.
//
// Each mock exposes function fields for its interface methods and records
// its calls behind a mutex so that tests can assert on them after running
// concurrent code.
//
// Usage:
//
//	provider := &mocks.MockProvider{
//	    Errors: []error{generation.Transient(503, errors.New("unavailable"))},
//	}
//	executor, _ := generation.NewExecutor(provider, logger)
//
// When adding a new mock to this package:
//  1. Create a new file named after the interface being mocked
//  2. Implement the mock struct with function fields for each interface method
//  3. Track calls behind a mutex and expose them through accessor methods
package mocks
