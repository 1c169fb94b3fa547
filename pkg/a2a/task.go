// Package a2a defines the wire-level data model of the A2A protocol:
// tasks, messages, events, push-notification configs, agent cards, and
// the protocol error codes.
package a2a

import "time"

// TaskState represents the lifecycle state of a task.
type TaskState string

const (
	TaskStateSubmitted     TaskState = "submitted"
	TaskStateWorking       TaskState = "working"
	TaskStateInputRequired TaskState = "input-required"
	TaskStateCompleted     TaskState = "completed"
	TaskStateCanceled      TaskState = "canceled"
	TaskStateFailed        TaskState = "failed"
	TaskStateRejected      TaskState = "rejected"
	TaskStateAuthRequired  TaskState = "auth-required"
)

// IsTerminal returns true when no further state transitions are allowed.
func (s TaskState) IsTerminal() bool {
	switch s {
	case TaskStateCompleted, TaskStateCanceled, TaskStateFailed, TaskStateRejected:
		return true
	default:
		return false
	}
}

// Interrupted returns true when the task is paused waiting for client
// input or credentials.
func (s TaskState) Interrupted() bool {
	return s == TaskStateInputRequired || s == TaskStateAuthRequired
}

// IsValid returns true if the state is a known task state.
func (s TaskState) IsValid() bool {
	switch s {
	case TaskStateSubmitted, TaskStateWorking, TaskStateInputRequired,
		TaskStateCompleted, TaskStateCanceled, TaskStateFailed,
		TaskStateRejected, TaskStateAuthRequired:
		return true
	default:
		return false
	}
}

// TaskStatus is the current status of a task: state, the message that
// accompanied the transition (if any), and when it happened.
type TaskStatus struct {
	State     TaskState `json:"state"`
	Message   *Message  `json:"message,omitempty"`
	Timestamp string    `json:"timestamp,omitempty"`
}

// NewStatus builds a TaskStatus stamped with the current UTC time.
func NewStatus(state TaskState) TaskStatus {
	return TaskStatus{State: state, Timestamp: time.Now().UTC().Format(time.RFC3339Nano)}
}

// NewStatusWithMessage builds a stamped TaskStatus carrying an agent message.
func NewStatusWithMessage(state TaskState, msg *Message) TaskStatus {
	st := NewStatus(state)
	st.Message = msg
	return st
}

// Task is a unit of work tracked by the server. It is created when the
// executor emits its first Task event and mutated only through the event
// processor.
type Task struct {
	ID        string                 `json:"id"`
	ContextID string                 `json:"contextId"`
	Status    TaskStatus             `json:"status"`
	History   []*Message             `json:"history,omitempty"`
	Artifacts []*Artifact            `json:"artifacts,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Artifact is a named, ordered blob of content produced by a task.
type Artifact struct {
	ArtifactID  string                 `json:"artifactId"`
	Name        string                 `json:"name,omitempty"`
	Description string                 `json:"description,omitempty"`
	Parts       []Part                 `json:"parts"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// Clone returns a deep-enough copy of the task: the struct, history,
// artifact list, and metadata map are copied; messages and parts are
// treated as immutable and shared.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	out := *t
	if t.History != nil {
		out.History = make([]*Message, len(t.History))
		copy(out.History, t.History)
	}
	if t.Artifacts != nil {
		out.Artifacts = make([]*Artifact, len(t.Artifacts))
		for i, a := range t.Artifacts {
			ac := *a
			ac.Parts = make([]Part, len(a.Parts))
			copy(ac.Parts, a.Parts)
			out.Artifacts[i] = &ac
		}
	}
	if t.Metadata != nil {
		out.Metadata = make(map[string]interface{}, len(t.Metadata))
		for k, v := range t.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}

// ProjectTask shapes a task for a response: historyLength limits the tail
// of the history (nil keeps everything, 0 drops it), includeArtifacts=false
// drops the artifact list. The input task is not modified.
func ProjectTask(t *Task, historyLength *int, includeArtifacts bool) *Task {
	if t == nil {
		return nil
	}
	out := t.Clone()
	if historyLength != nil {
		n := *historyLength
		if n <= 0 {
			out.History = nil
		} else if len(out.History) > n {
			out.History = out.History[len(out.History)-n:]
		}
	}
	if !includeArtifacts {
		out.Artifacts = nil
	}
	return out
}
