package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/taskmesh/a2ad/internal/common/keyedmutex"
	"github.com/taskmesh/a2ad/internal/common/logger"
	"github.com/taskmesh/a2ad/internal/events"
	"github.com/taskmesh/a2ad/internal/events/bus"
	"github.com/taskmesh/a2ad/internal/push"
	"github.com/taskmesh/a2ad/internal/store"
	"github.com/taskmesh/a2ad/pkg/a2a"
)

// ErrSessionExists is returned by AddSession when the task already has an
// active session.
var ErrSessionExists = errors.New("session: active session already exists for task")

// TaskKey returns the keyed-mutex key serializing handler operations on a
// task.
func TaskKey(taskID string) string { return "task/" + taskID }

// CancelKey returns the keyed-mutex key serializing cancellation and
// post-completion cleanup for a task.
func CancelKey(taskID string) string { return "cancel/" + taskID }

// Manager tracks the active session per task id. Each added session gets a
// monitor goroutine that drains its event stream, tears the session down
// when the computation ends, and delivers push notifications for tasks.
type Manager struct {
	logger *logger.Logger
	locks  *keyedmutex.Mutex
	tasks  store.TaskStore
	push   store.PushConfigStore
	sender push.Sender
	bus    bus.EventBus
	sem    *semaphore.Weighted // nil means unbounded

	mu       sync.RWMutex
	sessions map[string]*Session

	wg sync.WaitGroup
}

// NewManager creates a session manager. maxConcurrent bounds simultaneously
// tracked sessions; zero or negative means unbounded. sender and eventBus
// may be nil to disable push delivery and bus notifications.
func NewManager(locks *keyedmutex.Mutex, tasks store.TaskStore, pushConfigs store.PushConfigStore, sender push.Sender, eventBus bus.EventBus, maxConcurrent int, log *logger.Logger) *Manager {
	m := &Manager{
		logger:   log.WithFields(zap.String("component", "session-manager")),
		locks:    locks,
		tasks:    tasks,
		push:     pushConfigs,
		sender:   sender,
		bus:      eventBus,
		sessions: make(map[string]*Session),
	}
	if maxConcurrent > 0 {
		m.sem = semaphore.NewWeighted(int64(maxConcurrent))
	}
	return m
}

// AddSession registers the session and spawns its monitor. The returned
// channel is closed once the monitor's subscription is live; callers must
// not Start the session before that signal or early events may be missed.
// Blocks while the concurrent-session limit is exhausted.
func (m *Manager) AddSession(ctx context.Context, sess *Session) (<-chan struct{}, error) {
	if m.sem != nil {
		if err := m.sem.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("failed to acquire session slot: %w", err)
		}
	}

	m.mu.Lock()
	if _, exists := m.sessions[sess.TaskID()]; exists {
		m.mu.Unlock()
		if m.sem != nil {
			m.sem.Release(1)
		}
		return nil, fmt.Errorf("%w: %s", ErrSessionExists, sess.TaskID())
	}
	m.sessions[sess.TaskID()] = sess
	m.mu.Unlock()

	ready := make(chan struct{})
	m.wg.Add(1)
	go m.monitor(sess, ready)

	m.publish(events.TaskStarted, map[string]any{
		"task_id":    sess.TaskID(),
		"context_id": sess.ContextID(),
	})

	m.logger.Debug("Session added",
		zap.String("task_id", sess.TaskID()),
		zap.String("context_id", sess.ContextID()))

	return ready, nil
}

// GetSession returns the active session for a task id.
func (m *Manager) GetSession(taskID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[taskID]
	return sess, ok
}

// ActiveSessions returns the number of tracked sessions.
func (m *Manager) ActiveSessions() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Shutdown cancels every active session and waits for all monitors to
// finish, bounded by ctx.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.RLock()
	active := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		active = append(active, sess)
	}
	m.mu.RUnlock()

	for _, sess := range active {
		sess.requestCancel()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown wait: %w", ctx.Err())
	}
}

// monitor follows one session from subscription to removal. It drains the
// event stream, waits for the computation, and then tears the session down
// under the cancel key so an in-flight tasks/cancel that is still
// publishing events has finished before cleanup begins.
func (m *Manager) monitor(sess *Session, ready chan struct{}) {
	defer m.wg.Done()

	sub := sess.Processor().Subscribe()
	close(ready)

	for event := range sub.Events() {
		if status, ok := event.(*a2a.TaskStatusUpdateEvent); ok {
			m.publish(events.TaskStatusChanged, map[string]any{
				"task_id":    sess.TaskID(),
				"context_id": sess.ContextID(),
				"state":      string(status.Status.State),
				"final":      status.Final,
			})
		}
	}

	<-sess.Finished()

	_ = m.locks.WithLock(context.Background(), CancelKey(sess.TaskID()), func() error {
		m.mu.Lock()
		delete(m.sessions, sess.TaskID())
		m.mu.Unlock()
		if m.sem != nil {
			m.sem.Release(1)
		}

		_ = sess.CancelAndJoin(context.Background())
		m.reconcile(sess)
		sess.markRemoved()
		m.deliverPush(sess.TaskID())
		return nil
	})

	m.publish(events.TaskFinished, map[string]any{
		"task_id":       sess.TaskID(),
		"context_id":    sess.ContextID(),
		"session_state": string(sess.State()),
	})

	m.logger.Debug("Session removed",
		zap.String("task_id", sess.TaskID()),
		zap.String("session_state", string(sess.State())))
}

// reconcile marks the stored task terminal when the computation ended
// abnormally without reporting a final status, so the task is not left
// working forever. Normal completions and message-only sessions are
// untouched.
func (m *Manager) reconcile(sess *Session) {
	err := sess.Result()
	if err == nil {
		return
	}
	state := a2a.TaskStateFailed
	if errors.Is(err, context.Canceled) {
		state = a2a.TaskStateCanceled
	}

	ctx := context.Background()
	_, updErr := m.tasks.Update(ctx, sess.TaskID(), func(t *a2a.Task) error {
		if t.Status.State.IsTerminal() {
			return nil
		}
		t.Status = a2a.NewStatus(state)
		return nil
	})
	switch {
	case updErr == nil:
		m.logger.Warn("Reconciled task state after abnormal session end",
			zap.String("task_id", sess.TaskID()),
			zap.String("state", string(state)),
			zap.Error(err))
	case errors.Is(updErr, store.ErrNotFound), errors.Is(updErr, store.ErrInvalidTransition):
		// No task was created, or a final status landed concurrently.
	default:
		m.logger.Warn("Failed to reconcile task state",
			zap.String("task_id", sess.TaskID()), zap.Error(updErr))
	}
}

// deliverPush sends the task's latest snapshot to every registered push
// config. Failures are logged and swallowed; they never reach the call
// that triggered the task. Sessions that never created a task deliver
// nothing.
func (m *Manager) deliverPush(taskID string) {
	if m.sender == nil {
		return
	}
	ctx := context.Background()

	task, err := m.tasks.Get(ctx, taskID)
	if errors.Is(err, store.ErrNotFound) {
		return
	}
	if err != nil {
		m.logger.Warn("Skipping push delivery, task unavailable",
			zap.String("task_id", taskID), zap.Error(err))
		return
	}
	configs, err := m.push.List(ctx, taskID)
	if err != nil {
		m.logger.Warn("Skipping push delivery, config list failed",
			zap.String("task_id", taskID), zap.Error(err))
		return
	}

	historyLength := 0
	snapshot := a2a.ProjectTask(task, &historyLength, true)
	for _, config := range configs {
		if err := m.sender.Send(ctx, config, snapshot); err != nil {
			m.logger.Warn("Push delivery failed",
				zap.String("task_id", taskID),
				zap.String("config_id", config.ID),
				zap.String("url", config.URL),
				zap.Error(err))
		}
	}
}

func (m *Manager) publish(subject string, data map[string]any) {
	if m.bus == nil {
		return
	}
	_ = m.bus.Publish(context.Background(), subject, bus.NewEvent(subject, "session-manager", data))
}
