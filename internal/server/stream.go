package server

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/taskmesh/a2ad/internal/agent"
	"github.com/taskmesh/a2ad/internal/session"
	"github.com/taskmesh/a2ad/internal/store"
	"github.com/taskmesh/a2ad/pkg/a2a"
)

// EventStream adapts one task subscription for a streaming transport.
// Frames arrive on Events until the computation settles or the consumer
// calls Close. Closing the stream detaches the subscriber and nothing
// else; the task keeps running.
type EventStream struct {
	events chan a2a.Event
	done   chan struct{}
	once   sync.Once
	sub    *session.Subscriber
}

func newEventStream(sub *session.Subscriber, prepend ...a2a.Event) *EventStream {
	s := &EventStream{
		events: make(chan a2a.Event),
		done:   make(chan struct{}),
		sub:    sub,
	}
	go s.pump(prepend)
	return s
}

// newClosedEventStream returns a stream that ends immediately.
func newClosedEventStream() *EventStream {
	s := &EventStream{
		events: make(chan a2a.Event),
		done:   make(chan struct{}),
	}
	close(s.events)
	return s
}

func (s *EventStream) pump(prepend []a2a.Event) {
	defer close(s.events)
	for _, ev := range prepend {
		select {
		case s.events <- ev:
		case <-s.done:
			return
		}
	}
	for ev := range s.sub.Events() {
		select {
		case s.events <- ev:
		case <-s.done:
			return
		}
	}
}

// Events yields frames in emission order. The channel closes when the
// stream ends.
func (s *EventStream) Events() <-chan a2a.Event { return s.events }

// Close detaches the stream from the task. Safe to call more than once
// and after the stream has ended.
func (s *EventStream) Close() {
	s.once.Do(func() {
		if s.sub != nil {
			s.sub.Close()
		}
		close(s.done)
	})
}

// MessageStream runs the message/stream method. The returned stream's
// subscription was attached before the computation started, so the first
// frame of a new task is its submitted snapshot. Joining a running task
// opens with the current snapshot and continues with live events.
func (h *Handler) MessageStream(ctx context.Context, call *agent.CallContext, params *a2a.MessageSendParams) (*EventStream, error) {
	if call == nil {
		call = agent.NewCallContext(nil)
	}
	req, err := h.resolveSend(params)
	if err != nil {
		return nil, err
	}

	adm, err := h.admit(ctx, call, req)
	if err != nil {
		return nil, err
	}

	if !adm.followUp {
		return newEventStream(adm.sub), nil
	}

	task, err := h.tasks.Get(ctx, req.taskID)
	if errors.Is(err, store.ErrNotFound) {
		return newEventStream(adm.sub), nil
	}
	if err != nil {
		adm.sub.Close()
		return nil, fmt.Errorf("failed to load task %s: %w", req.taskID, err)
	}
	opening := a2a.ProjectTask(task, req.params.HistoryLength(), true)
	return newEventStream(adm.sub, opening), nil
}

// TasksResubscribe runs the tasks/resubscribe method: a hot attachment to
// a running task's stream. Events emitted before the attachment are not
// replayed; a terminal task yields a stream that ends immediately.
func (h *Handler) TasksResubscribe(ctx context.Context, call *agent.CallContext, params *a2a.TaskIDParams) (*EventStream, error) {
	if params.ID == "" {
		return nil, a2a.InvalidParams("task id is required")
	}

	task, err := h.tasks.Get(ctx, params.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, a2a.TaskNotFound(params.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load task %s: %w", params.ID, err)
	}
	if task.Status.State.IsTerminal() {
		return newClosedEventStream(), nil
	}

	sess, ok := h.sessions.GetSession(params.ID)
	if !ok {
		// The task is live on paper but nothing is computing it, so no
		// events will ever arrive.
		return newClosedEventStream(), nil
	}
	return newEventStream(sess.Processor().Subscribe()), nil
}
