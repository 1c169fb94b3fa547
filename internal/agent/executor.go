// Package agent defines the contract between the server runtime and the
// agent business logic: the Executor interface, the EventProcessor it
// emits into, and the per-request context it receives.
package agent

import (
	"context"
	"errors"

	"github.com/taskmesh/a2ad/pkg/a2a"
)

// EventProcessor errors.
var (
	// ErrProcessorClosed is returned when emitting into a stream that
	// already ended.
	ErrProcessorClosed = errors.New("agent: event processor closed")

	// ErrInvalidEvent is returned for events whose task or context id
	// does not match the session.
	ErrInvalidEvent = errors.New("agent: event does not belong to this session")
)

// EventProcessor is the sink an executor emits into. The session layer
// implements it: every event is validated, persisted, and fanned out to
// stream subscribers in emission order.
type EventProcessor interface {
	// SendMessage emits a standalone agent reply not bound to a task.
	SendMessage(ctx context.Context, message *a2a.Message) error

	// SendTaskEvent emits a Task snapshot, status update, or artifact
	// update. A status update with Final set drives the task to its
	// terminal state and ends the stream.
	SendTaskEvent(ctx context.Context, event a2a.Event) error

	// Close marks the stream complete without a final event. Emitting
	// after Close fails; the session also closes the processor when the
	// computation returns, so executors rarely need to call it.
	Close(ctx context.Context) error
}

// Executor runs the agent logic for one request.
type Executor interface {
	// Execute performs the work for reqCtx, emitting events through
	// processor, and returns when the work is done. Cancellation of ctx
	// must propagate out as ctx.Err(), never be swallowed.
	Execute(ctx context.Context, reqCtx *RequestContext, processor EventProcessor) error

	// Cancel stops the computation started for the same request
	// context. It should emit a final Canceled status update; the
	// runtime delivers those events to every live subscriber before the
	// session is torn down.
	Cancel(ctx context.Context, reqCtx *RequestContext, processor EventProcessor) error
}
