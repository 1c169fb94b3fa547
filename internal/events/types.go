// Package events provides bus subjects and the event bus provider for a2ad.
package events

// Subjects for task lifecycle notifications. The monitor socket and any
// external NATS consumer subscribe to these with "task.>".
const (
	TaskStarted       = "task.started"
	TaskStatusChanged = "task.status_changed"
	TaskFinished      = "task.finished"

	// TaskAll matches every task lifecycle subject.
	TaskAll = "task.>"
)
