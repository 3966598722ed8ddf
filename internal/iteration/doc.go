// Package iteration runs one processing cycle of a conversation task: a
// primary generation call followed, when requested, by a summarization call.
// Both calls go through the generation executor and share the orchestrator's
// cancellation context.
package iteration
