// Package store defines interfaces for data persistence operations.
// These interfaces abstract the underlying data storage mechanism from
// the worker's core logic: conversations feed iterations, and responses
// record what each iteration produced.
package store
