// Package task manages background job queuing, processing, and lifecycle.
// Tasks are persisted before they run so that a restarted worker can recover
// them; the IterationTask runs one generation iteration for a stored
// conversation.
package task
