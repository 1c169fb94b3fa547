package a2a

import (
	"encoding/json"
	"fmt"
)

// Event kind discriminators used on the wire.
const (
	KindTask           = "task"
	KindMessage        = "message"
	KindStatusUpdate   = "status-update"
	KindArtifactUpdate = "artifact-update"
)

// Event is anything an executor can emit through the event processor:
// a Task snapshot, a standalone Message, a status update, or an artifact
// update.
type Event interface {
	EventKind() string
}

func (t *Task) EventKind() string    { return KindTask }
func (m *Message) EventKind() string { return KindMessage }

// MarshalJSON adds the kind discriminator.
func (t *Task) MarshalJSON() ([]byte, error) {
	type alias Task
	return json.Marshal(struct {
		Kind string `json:"kind"`
		*alias
	}{KindTask, (*alias)(t)})
}

// TaskStatusUpdateEvent reports a status transition of a task. A final
// update terminates the task's event stream.
type TaskStatusUpdateEvent struct {
	TaskID    string                 `json:"taskId"`
	ContextID string                 `json:"contextId"`
	Status    TaskStatus             `json:"status"`
	Final     bool                   `json:"final"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

func (e *TaskStatusUpdateEvent) EventKind() string { return KindStatusUpdate }

// MarshalJSON adds the kind discriminator.
func (e *TaskStatusUpdateEvent) MarshalJSON() ([]byte, error) {
	type alias TaskStatusUpdateEvent
	return json.Marshal(struct {
		Kind string `json:"kind"`
		*alias
	}{KindStatusUpdate, (*alias)(e)})
}

// TaskArtifactUpdateEvent carries a new or extended artifact. Append
// selects concatenation onto an existing artifact of the same id instead
// of replacement.
type TaskArtifactUpdateEvent struct {
	TaskID    string                 `json:"taskId"`
	ContextID string                 `json:"contextId"`
	Artifact  *Artifact              `json:"artifact"`
	Append    bool                   `json:"append,omitempty"`
	LastChunk bool                   `json:"lastChunk,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

func (e *TaskArtifactUpdateEvent) EventKind() string { return KindArtifactUpdate }

// MarshalJSON adds the kind discriminator.
func (e *TaskArtifactUpdateEvent) MarshalJSON() ([]byte, error) {
	type alias TaskArtifactUpdateEvent
	return json.Marshal(struct {
		Kind string `json:"kind"`
		*alias
	}{KindArtifactUpdate, (*alias)(e)})
}

// UnmarshalEvent decodes one event by its kind discriminator.
func UnmarshalEvent(data []byte) (Event, error) {
	var probe struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("failed to decode event: %w", err)
	}
	switch probe.Kind {
	case KindTask:
		var t Task
		if err := json.Unmarshal(data, &t); err != nil {
			return nil, err
		}
		return &t, nil
	case KindMessage:
		var m Message
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return &m, nil
	case KindStatusUpdate:
		var e TaskStatusUpdateEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return &e, nil
	case KindArtifactUpdate:
		var e TaskArtifactUpdateEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return &e, nil
	default:
		return nil, fmt.Errorf("unknown event kind %q", probe.Kind)
	}
}
