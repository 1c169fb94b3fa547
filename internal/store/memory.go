package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/taskmesh/a2ad/internal/common/keyedmutex"
	"github.com/taskmesh/a2ad/pkg/a2a"
)

// MemoryTaskStore is an in-memory TaskStore.
type MemoryTaskStore struct {
	mu    sync.RWMutex
	tasks map[string]*taskEntry
	seq   uint64
	ids   *keyedmutex.Mutex
}

// taskEntry pairs a stored task with its insertion sequence so that
// ListByContext can return a stable order.
type taskEntry struct {
	task *a2a.Task
	seq  uint64
}

var _ TaskStore = (*MemoryTaskStore)(nil)

// NewMemoryTaskStore creates an empty in-memory task store.
func NewMemoryTaskStore() *MemoryTaskStore {
	return &MemoryTaskStore{
		tasks: make(map[string]*taskEntry),
		ids:   keyedmutex.New(),
	}
}

// Get retrieves a task by id.
func (s *MemoryTaskStore) Get(ctx context.Context, id string) (*a2a.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return entry.task.Clone(), nil
}

// Save stores a task, replacing any existing task with the same id.
func (s *MemoryTaskStore) Save(ctx context.Context, task *a2a.Task) error {
	clone := task.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.tasks[task.ID]; ok {
		entry.task = clone
		return nil
	}
	s.seq++
	s.tasks[task.ID] = &taskEntry{task: clone, seq: s.seq}
	return nil
}

// Update applies mutate to the stored task under a per-id lock.
func (s *MemoryTaskStore) Update(ctx context.Context, id string, mutate func(*a2a.Task) error) (*a2a.Task, error) {
	unlock, err := s.ids.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	s.mu.RLock()
	entry, ok := s.tasks[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}

	current := entry.task
	next := current.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	if current.Status.State.IsTerminal() && next.Status.State != current.Status.State {
		return nil, fmt.Errorf("task %s is %s: %w", id, current.Status.State, ErrInvalidTransition)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// The task may have been deleted while mutate ran; only a live entry
	// takes the write.
	live, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	live.task = next
	return next.Clone(), nil
}

// Delete removes a task.
func (s *MemoryTaskStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	delete(s.tasks, id)
	return nil
}

// ListByContext returns all tasks in a context in insertion order.
func (s *MemoryTaskStore) ListByContext(ctx context.Context, contextID string) ([]*a2a.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []*taskEntry
	for _, entry := range s.tasks {
		if entry.task.ContextID == contextID {
			entries = append(entries, entry)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	tasks := make([]*a2a.Task, len(entries))
	for i, entry := range entries {
		tasks[i] = entry.task.Clone()
	}
	return tasks, nil
}

// MemoryMessageStore is an in-memory MessageStore. Stored messages are
// treated as immutable and shared with callers.
type MemoryMessageStore struct {
	mu       sync.RWMutex
	messages map[string][]*a2a.Message
}

var _ MessageStore = (*MemoryMessageStore)(nil)

// NewMemoryMessageStore creates an empty in-memory message store.
func NewMemoryMessageStore() *MemoryMessageStore {
	return &MemoryMessageStore{
		messages: make(map[string][]*a2a.Message),
	}
}

// Save appends a message to its context's history.
func (s *MemoryMessageStore) Save(ctx context.Context, message *a2a.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages[message.ContextID] = append(s.messages[message.ContextID], message)
	return nil
}

// GetByContext returns the message history of a context in insertion
// order. An unknown context yields an empty history, not an error.
func (s *MemoryMessageStore) GetByContext(ctx context.Context, contextID string) ([]*a2a.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.messages[contextID]
	out := make([]*a2a.Message, len(history))
	copy(out, history)
	return out, nil
}

// ReplaceByContext swaps the entire history of a context.
func (s *MemoryMessageStore) ReplaceByContext(ctx context.Context, contextID string, messages []*a2a.Message) error {
	replacement := make([]*a2a.Message, len(messages))
	copy(replacement, messages)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages[contextID] = replacement
	return nil
}

// DeleteByContext removes the entire history of a context.
func (s *MemoryMessageStore) DeleteByContext(ctx context.Context, contextID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.messages, contextID)
	return nil
}

// MemoryPushConfigStore is an in-memory PushConfigStore.
type MemoryPushConfigStore struct {
	mu      sync.RWMutex
	configs map[string]map[string]*a2a.PushNotificationConfig
	order   map[string][]string
}

var _ PushConfigStore = (*MemoryPushConfigStore)(nil)

// NewMemoryPushConfigStore creates an empty in-memory push config store.
func NewMemoryPushConfigStore() *MemoryPushConfigStore {
	return &MemoryPushConfigStore{
		configs: make(map[string]map[string]*a2a.PushNotificationConfig),
		order:   make(map[string][]string),
	}
}

// Save upserts a configuration by its id.
func (s *MemoryPushConfigStore) Save(ctx context.Context, taskID string, config *a2a.PushNotificationConfig) (*a2a.PushNotificationConfig, error) {
	stored := clonePushConfig(config)
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	byID, ok := s.configs[taskID]
	if !ok {
		byID = make(map[string]*a2a.PushNotificationConfig)
		s.configs[taskID] = byID
	}
	if _, exists := byID[stored.ID]; !exists {
		s.order[taskID] = append(s.order[taskID], stored.ID)
	}
	byID[stored.ID] = stored
	return clonePushConfig(stored), nil
}

// Get retrieves one configuration.
func (s *MemoryPushConfigStore) Get(ctx context.Context, taskID, configID string) (*a2a.PushNotificationConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	config, ok := s.configs[taskID][configID]
	if !ok {
		return nil, fmt.Errorf("push config %s for task %s: %w", configID, taskID, ErrNotFound)
	}
	return clonePushConfig(config), nil
}

// List returns all configurations for a task in insertion order.
func (s *MemoryPushConfigStore) List(ctx context.Context, taskID string) ([]*a2a.PushNotificationConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.order[taskID]
	out := make([]*a2a.PushNotificationConfig, 0, len(ids))
	for _, id := range ids {
		out = append(out, clonePushConfig(s.configs[taskID][id]))
	}
	return out, nil
}

// Delete removes one configuration. Deleting an absent config is a no-op.
func (s *MemoryPushConfigStore) Delete(ctx context.Context, taskID, configID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID, ok := s.configs[taskID]
	if !ok {
		return nil
	}
	if _, exists := byID[configID]; !exists {
		return nil
	}
	delete(byID, configID)
	ids := s.order[taskID]
	for i, id := range ids {
		if id == configID {
			s.order[taskID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(byID) == 0 {
		delete(s.configs, taskID)
		delete(s.order, taskID)
	}
	return nil
}

func clonePushConfig(config *a2a.PushNotificationConfig) *a2a.PushNotificationConfig {
	clone := *config
	if config.Authentication != nil {
		auth := *config.Authentication
		auth.Schemes = append([]string(nil), config.Authentication.Schemes...)
		clone.Authentication = &auth
	}
	return &clone
}
