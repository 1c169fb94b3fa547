package session

import (
	"context"
	"errors"
	"sync"
)

// State is the lifecycle state of a session.
type State string

const (
	StateCreated   State = "created"
	StateRunning   State = "running"
	StateCanceling State = "canceling"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCanceled  State = "canceled"
)

// Session binds one event processor to one lazy agent computation. The
// computation does not run until Start; cancellation goes through the
// computation's context and is never coerced into a failure.
type Session struct {
	taskID    string
	contextID string
	processor *Processor

	run    func(context.Context) error
	runCtx context.Context
	cancel context.CancelFunc

	startOnce  sync.Once
	cancelOnce sync.Once
	removeOnce sync.Once
	finished   chan struct{}
	removed    chan struct{}

	mu     sync.Mutex
	state  State
	result error
}

// NewSession creates a session in the created state. ctx bounds the
// computation's lifetime; canceling it asks the executor to stop.
func NewSession(ctx context.Context, taskID, contextID string, processor *Processor, run func(context.Context) error) *Session {
	runCtx, cancel := context.WithCancel(ctx)
	return &Session{
		taskID:    taskID,
		contextID: contextID,
		processor: processor,
		run:       run,
		runCtx:    runCtx,
		cancel:    cancel,
		finished:  make(chan struct{}),
		removed:   make(chan struct{}),
		state:     StateCreated,
	}
}

// TaskID returns the id of the task this session computes.
func (s *Session) TaskID() string { return s.taskID }

// ContextID returns the context the task belongs to.
func (s *Session) ContextID() string { return s.contextID }

// Processor returns the session's event processor.
func (s *Session) Processor() *Processor { return s.processor }

// Start launches the computation goroutine. Idempotent; only the first
// call spawns.
func (s *Session) Start() {
	s.startOnce.Do(func() {
		s.mu.Lock()
		if s.state == StateCreated {
			s.state = StateRunning
		}
		s.mu.Unlock()

		go func() {
			s.finish(s.run(s.runCtx))
		}()
	})
}

// finish records the computation's outcome and ends the event stream.
func (s *Session) finish(err error) {
	s.mu.Lock()
	switch {
	case errors.Is(err, context.Canceled):
		s.state = StateCanceled
	case err != nil:
		s.state = StateFailed
	case s.state == StateCanceling:
		s.state = StateCanceled
	default:
		s.state = StateCompleted
	}
	s.result = err
	s.mu.Unlock()

	// The executor has returned; no further events can arrive.
	_ = s.processor.Close(context.Background())
	close(s.finished)
}

// Join blocks until the event stream is drained and the computation has
// terminated, stream first, so callers never observe a result while events
// are still being delivered. It returns the computation's result.
func (s *Session) Join(ctx context.Context) error {
	select {
	case <-s.processor.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-s.finished:
	case <-ctx.Done():
		return ctx.Err()
	}
	return s.Result()
}

// requestCancel triggers cancellation without waiting. A session that was
// never started is started with its context already canceled so the
// computation still reaches finish.
func (s *Session) requestCancel() {
	s.cancelOnce.Do(func() {
		s.mu.Lock()
		if s.state == StateCreated || s.state == StateRunning {
			s.state = StateCanceling
		}
		s.mu.Unlock()

		s.cancel()
		s.Start()
	})
}

// CancelAndJoin cancels the computation's context, waits for the executor
// to observe cancellation, then closes the processor. Idempotent; safe to
// call on a session that already terminated.
func (s *Session) CancelAndJoin(ctx context.Context) error {
	s.requestCancel()

	select {
	case <-s.finished:
	case <-ctx.Done():
		return ctx.Err()
	}

	_ = s.processor.Close(context.Background())
	return nil
}

// Result returns the computation's error: nil, context.Canceled, or the
// failure. Valid once Join or CancelAndJoin has returned.
func (s *Session) Result() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Finished is closed when the computation has terminated.
func (s *Session) Finished() <-chan struct{} { return s.finished }

// markRemoved records that the manager dropped the session from its map.
func (s *Session) markRemoved() {
	s.removeOnce.Do(func() { close(s.removed) })
}

// AwaitRemoval blocks until the manager has fully torn the session down
// and removed it from the active map.
func (s *Session) AwaitRemoval(ctx context.Context) error {
	select {
	case <-s.removed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
