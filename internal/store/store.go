// Package store defines persistence for tasks, context message history,
// and push notification configurations. The in-memory implementations in
// this package are the reference used by tests and by the default server
// configuration; SQL-backed implementations live in the sqlstore
// subpackage.
package store

import (
	"context"
	"errors"

	"github.com/taskmesh/a2ad/pkg/a2a"
)

// Storage errors.
var (
	// ErrNotFound is returned when the requested entity does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrInvalidTransition is returned by TaskStore.Update when a mutation
	// attempts to move a task out of a terminal state.
	ErrInvalidTransition = errors.New("store: invalid state transition")

	// ErrContextMismatch is returned by context-scoped stores when a write
	// carries a context id that differs from the store's scope.
	ErrContextMismatch = errors.New("store: context id does not match scope")
)

// TaskStore provides storage for tasks.
//
// Implementations must be safe for concurrent use. Returned tasks are
// private copies; mutating them does not affect stored state.
type TaskStore interface {
	// Get retrieves a task by id. Absent ids return ErrNotFound.
	Get(ctx context.Context, id string) (*a2a.Task, error)

	// Save stores a task, replacing any existing task with the same id.
	Save(ctx context.Context, task *a2a.Task) error

	// Update applies mutate to the stored task and persists the result.
	// Updates for the same id are serialized; mutate receives a private
	// copy and returning an error discards the mutation. A mutation that
	// changes the state of a task already in a terminal state fails with
	// ErrInvalidTransition.
	Update(ctx context.Context, id string, mutate func(*a2a.Task) error) (*a2a.Task, error)

	// Delete removes a task. Absent ids return ErrNotFound.
	Delete(ctx context.Context, id string) error

	// ListByContext returns all tasks in a context in insertion order.
	ListByContext(ctx context.Context, contextID string) ([]*a2a.Task, error)
}

// MessageStore provides storage for context-scoped message history.
// Messages are append-only and returned in insertion order.
type MessageStore interface {
	Save(ctx context.Context, message *a2a.Message) error
	GetByContext(ctx context.Context, contextID string) ([]*a2a.Message, error)
	ReplaceByContext(ctx context.Context, contextID string, messages []*a2a.Message) error
	DeleteByContext(ctx context.Context, contextID string) error
}

// PushConfigStore manages push notification configurations. A task can
// have multiple configurations, keyed by config id.
type PushConfigStore interface {
	// Save upserts a configuration by its id. A config with an empty id
	// is assigned a generated one; the stored config is returned.
	Save(ctx context.Context, taskID string, config *a2a.PushNotificationConfig) (*a2a.PushNotificationConfig, error)

	// Get retrieves one configuration. Absent configs return ErrNotFound.
	Get(ctx context.Context, taskID, configID string) (*a2a.PushNotificationConfig, error)

	// List returns all configurations for a task in insertion order.
	List(ctx context.Context, taskID string) ([]*a2a.PushNotificationConfig, error)

	// Delete removes one configuration. Deleting an absent config is a
	// no-op.
	Delete(ctx context.Context, taskID, configID string) error
}
