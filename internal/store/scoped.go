package store

import (
	"context"
	"fmt"

	"github.com/taskmesh/a2ad/pkg/a2a"
)

// ContextTaskStore is a TaskStore view restricted to a single context.
// Reads outside the scope report ErrNotFound; writes outside the scope
// report ErrContextMismatch. Executors receive this view so an agent
// handling one conversation cannot touch another's tasks.
type ContextTaskStore struct {
	scope string
	tasks TaskStore
}

// NewContextTaskStore wraps tasks with a view scoped to contextID.
func NewContextTaskStore(contextID string, tasks TaskStore) *ContextTaskStore {
	return &ContextTaskStore{scope: contextID, tasks: tasks}
}

// ContextID returns the scope of this view.
func (s *ContextTaskStore) ContextID() string {
	return s.scope
}

// Get retrieves a task in scope by id.
func (s *ContextTaskStore) Get(ctx context.Context, id string) (*a2a.Task, error) {
	task, err := s.tasks.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.ContextID != s.scope {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return task, nil
}

// Save stores a task carrying the scope's context id.
func (s *ContextTaskStore) Save(ctx context.Context, task *a2a.Task) error {
	if task.ContextID != s.scope {
		return fmt.Errorf("task %s has context %q, scope is %q: %w", task.ID, task.ContextID, s.scope, ErrContextMismatch)
	}
	return s.tasks.Save(ctx, task)
}

// Update applies mutate to a task in scope.
func (s *ContextTaskStore) Update(ctx context.Context, id string, mutate func(*a2a.Task) error) (*a2a.Task, error) {
	return s.tasks.Update(ctx, id, func(task *a2a.Task) error {
		if task.ContextID != s.scope {
			return fmt.Errorf("task %s: %w", id, ErrNotFound)
		}
		return mutate(task)
	})
}

// List returns all tasks in scope in insertion order.
func (s *ContextTaskStore) List(ctx context.Context) ([]*a2a.Task, error) {
	return s.tasks.ListByContext(ctx, s.scope)
}

// ContextMessageStore is a MessageStore view restricted to a single
// context.
type ContextMessageStore struct {
	scope    string
	messages MessageStore
}

// NewContextMessageStore wraps messages with a view scoped to contextID.
func NewContextMessageStore(contextID string, messages MessageStore) *ContextMessageStore {
	return &ContextMessageStore{scope: contextID, messages: messages}
}

// ContextID returns the scope of this view.
func (s *ContextMessageStore) ContextID() string {
	return s.scope
}

// Save appends a message carrying the scope's context id.
func (s *ContextMessageStore) Save(ctx context.Context, message *a2a.Message) error {
	if message.ContextID != s.scope {
		return fmt.Errorf("message %s has context %q, scope is %q: %w", message.MessageID, message.ContextID, s.scope, ErrContextMismatch)
	}
	return s.messages.Save(ctx, message)
}

// History returns the scope's message history in insertion order.
func (s *ContextMessageStore) History(ctx context.Context) ([]*a2a.Message, error) {
	return s.messages.GetByContext(ctx, s.scope)
}

// Replace swaps the scope's entire history. Every replacement message
// must carry the scope's context id.
func (s *ContextMessageStore) Replace(ctx context.Context, messages []*a2a.Message) error {
	for _, m := range messages {
		if m.ContextID != s.scope {
			return fmt.Errorf("message %s has context %q, scope is %q: %w", m.MessageID, m.ContextID, s.scope, ErrContextMismatch)
		}
	}
	return s.messages.ReplaceByContext(ctx, s.scope, messages)
}

// Clear removes the scope's entire history.
func (s *ContextMessageStore) Clear(ctx context.Context) error {
	return s.messages.DeleteByContext(ctx, s.scope)
}
