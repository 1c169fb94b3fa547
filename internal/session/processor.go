// Package session coordinates one agent computation per task: the event
// processor that applies executor events to the stores and fans them out to
// subscribers, the session that binds a processor to a lazy computation,
// and the manager that tracks active sessions through to push delivery.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/taskmesh/a2ad/internal/agent"
	"github.com/taskmesh/a2ad/internal/common/logger"
	"github.com/taskmesh/a2ad/internal/store"
	"github.com/taskmesh/a2ad/pkg/a2a"
)

// DefaultSubscriberBuffer is the per-subscriber event buffer size used when
// the configured size is not positive.
const DefaultSubscriberBuffer = 256

// Processor is the sink for one executor's events and the source for all
// subscribers of the task's stream. Admission, store side-effects, and
// fan-out happen under one mutex so every subscriber observes events in
// emission order with the stores already updated.
type Processor struct {
	taskID    string
	contextID string
	tasks     store.TaskStore
	messages  store.MessageStore
	logger    *logger.Logger
	bufSize   int

	mu     sync.Mutex
	subs   map[*Subscriber]struct{}
	closed bool
	done   chan struct{}
}

var _ agent.EventProcessor = (*Processor)(nil)

// NewProcessor creates a processor for one task's event stream.
func NewProcessor(taskID, contextID string, tasks store.TaskStore, messages store.MessageStore, bufSize int, log *logger.Logger) *Processor {
	if bufSize <= 0 {
		bufSize = DefaultSubscriberBuffer
	}
	return &Processor{
		taskID:    taskID,
		contextID: contextID,
		tasks:     tasks,
		messages:  messages,
		logger:    log.WithTaskID(taskID),
		bufSize:   bufSize,
		subs:      make(map[*Subscriber]struct{}),
		done:      make(chan struct{}),
	}
}

// Subscriber is one attachment to a processor's event stream. The channel
// returned by Events is closed when the stream ends or the subscriber falls
// behind and is disconnected.
type Subscriber struct {
	ch        chan a2a.Event
	processor *Processor
}

// Events returns the subscriber's event channel.
func (s *Subscriber) Events() <-chan a2a.Event { return s.ch }

// Close detaches the subscriber from the stream. Safe to call after the
// stream has already ended.
func (s *Subscriber) Close() {
	s.processor.mu.Lock()
	defer s.processor.mu.Unlock()
	s.processor.detachLocked(s)
}

// Subscribe attaches a new subscriber. The stream is hot: events emitted
// before the subscription are not replayed. Subscribing to a closed
// processor yields an already-ended stream.
func (p *Processor) Subscribe() *Subscriber {
	p.mu.Lock()
	defer p.mu.Unlock()

	sub := &Subscriber{
		ch:        make(chan a2a.Event, p.bufSize),
		processor: p,
	}
	if p.closed {
		close(sub.ch)
		return sub
	}
	p.subs[sub] = struct{}{}
	return sub
}

// Done is closed when the stream has ended.
func (p *Processor) Done() <-chan struct{} { return p.done }

// SendMessage persists a standalone agent reply to the message store and
// forwards it to subscribers. The task, if any, is not touched.
func (p *Processor) SendMessage(ctx context.Context, msg *a2a.Message) error {
	if msg == nil {
		return fmt.Errorf("%w: nil message", agent.ErrInvalidEvent)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return agent.ErrProcessorClosed
	}
	if err := p.checkScope(msg.TaskID, msg.ContextID); err != nil {
		return err
	}
	if msg.ContextID == "" {
		msg.ContextID = p.contextID
	}

	if err := p.messages.Save(ctx, msg); err != nil {
		return fmt.Errorf("failed to persist message %s: %w", msg.MessageID, err)
	}

	p.broadcast(msg)
	return nil
}

// SendTaskEvent applies a task event to the task store and forwards it to
// subscribers. A final status update closes the stream after forwarding.
func (p *Processor) SendTaskEvent(ctx context.Context, event a2a.Event) error {
	if event == nil {
		return fmt.Errorf("%w: nil event", agent.ErrInvalidEvent)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return agent.ErrProcessorClosed
	}

	var final bool
	switch ev := event.(type) {
	case *a2a.Task:
		if err := p.applyTask(ctx, ev); err != nil {
			return err
		}
	case *a2a.TaskStatusUpdateEvent:
		if err := p.applyStatus(ctx, ev); err != nil {
			return err
		}
		final = ev.Final
	case *a2a.TaskArtifactUpdateEvent:
		if err := p.applyArtifact(ctx, ev); err != nil {
			return err
		}
	case *a2a.Message:
		if err := p.checkScope(ev.TaskID, ev.ContextID); err != nil {
			return err
		}
		if ev.ContextID == "" {
			ev.ContextID = p.contextID
		}
		if err := p.messages.Save(ctx, ev); err != nil {
			return fmt.Errorf("failed to persist message %s: %w", ev.MessageID, err)
		}
	default:
		return fmt.Errorf("%w: unknown event kind %q", agent.ErrInvalidEvent, event.EventKind())
	}

	p.broadcast(event)
	if final {
		p.closeLocked()
	}
	return nil
}

// Close ends the stream. Events emitted afterwards fail with
// ErrProcessorClosed. Idempotent.
func (p *Processor) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()
	return nil
}

func (p *Processor) applyTask(ctx context.Context, task *a2a.Task) error {
	if err := p.checkScope(task.ID, task.ContextID); err != nil {
		return err
	}
	task.ID = p.taskID
	task.ContextID = p.contextID
	if task.Status.Timestamp == "" {
		task.Status.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}

	if err := p.tasks.Save(ctx, task); err != nil {
		return fmt.Errorf("failed to save task %s: %w", task.ID, err)
	}
	return nil
}

func (p *Processor) applyStatus(ctx context.Context, ev *a2a.TaskStatusUpdateEvent) error {
	if err := p.checkScope(ev.TaskID, ev.ContextID); err != nil {
		return err
	}
	ev.TaskID = p.taskID
	ev.ContextID = p.contextID
	if ev.Status.Timestamp == "" {
		ev.Status.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}

	_, err := p.tasks.Update(ctx, p.taskID, func(task *a2a.Task) error {
		if ev.Status.Message != nil {
			task.History = append(task.History, ev.Status.Message)
		}
		task.Status = ev.Status
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: status update for unknown task %s", agent.ErrInvalidEvent, p.taskID)
		}
		if errors.Is(err, store.ErrInvalidTransition) {
			return fmt.Errorf("%w: status update after terminal state", agent.ErrInvalidEvent)
		}
		return fmt.Errorf("failed to update task %s: %w", p.taskID, err)
	}
	return nil
}

func (p *Processor) applyArtifact(ctx context.Context, ev *a2a.TaskArtifactUpdateEvent) error {
	if err := p.checkScope(ev.TaskID, ev.ContextID); err != nil {
		return err
	}
	if ev.Artifact == nil {
		return fmt.Errorf("%w: artifact update without artifact", agent.ErrInvalidEvent)
	}
	ev.TaskID = p.taskID
	ev.ContextID = p.contextID

	_, err := p.tasks.Update(ctx, p.taskID, func(task *a2a.Task) error {
		incoming := ev.Artifact
		for i, existing := range task.Artifacts {
			if existing.ArtifactID != incoming.ArtifactID {
				continue
			}
			if ev.Append {
				merged := *existing
				merged.Parts = make([]a2a.Part, 0, len(existing.Parts)+len(incoming.Parts))
				merged.Parts = append(merged.Parts, existing.Parts...)
				merged.Parts = append(merged.Parts, incoming.Parts...)
				task.Artifacts[i] = &merged
			} else {
				task.Artifacts[i] = incoming
			}
			return nil
		}
		task.Artifacts = append(task.Artifacts, incoming)
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: artifact update for unknown task %s", agent.ErrInvalidEvent, p.taskID)
		}
		return fmt.Errorf("failed to update task %s: %w", p.taskID, err)
	}
	return nil
}

// checkScope rejects events addressed to another task or context. Empty ids
// are stamped by the caller rather than rejected.
func (p *Processor) checkScope(taskID, contextID string) error {
	if taskID != "" && taskID != p.taskID {
		return fmt.Errorf("%w: task id %q does not belong to task %q", agent.ErrInvalidEvent, taskID, p.taskID)
	}
	if contextID != "" && contextID != p.contextID {
		return fmt.Errorf("%w: context id %q does not belong to context %q", agent.ErrInvalidEvent, contextID, p.contextID)
	}
	return nil
}

// broadcast delivers an event to every subscriber. A subscriber whose
// buffer is full is disconnected instead of stalling the executor. Caller
// holds p.mu.
func (p *Processor) broadcast(event a2a.Event) {
	for sub := range p.subs {
		select {
		case sub.ch <- event:
		default:
			p.logger.Warn("Subscriber buffer full, disconnecting",
				zap.Int("buffer_size", p.bufSize))
			p.detachLocked(sub)
		}
	}
}

// detachLocked removes one subscriber and closes its channel. Caller holds
// p.mu.
func (p *Processor) detachLocked(sub *Subscriber) {
	if _, ok := p.subs[sub]; !ok {
		return
	}
	delete(p.subs, sub)
	close(sub.ch)
}

// closeLocked ends the stream and closes all subscriber channels. Caller
// holds p.mu.
func (p *Processor) closeLocked() {
	if p.closed {
		return
	}
	p.closed = true
	for sub := range p.subs {
		delete(p.subs, sub)
		close(sub.ch)
	}
	close(p.done)
}
