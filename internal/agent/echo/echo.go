// Package echo provides the default demo executor. It mirrors every
// request back as a short task: submitted, working, then completed with
// the echoed text as the final status message.
package echo

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskmesh/a2ad/internal/agent"
	"github.com/taskmesh/a2ad/internal/common/logger"
	"github.com/taskmesh/a2ad/pkg/a2a"
)

// Executor echoes the text of the incoming message.
type Executor struct {
	log *logger.Logger
}

var _ agent.Executor = (*Executor)(nil)

// New creates an echo executor.
func New(log *logger.Logger) *Executor {
	return &Executor{log: log}
}

// Execute runs the echo task.
func (e *Executor) Execute(ctx context.Context, reqCtx *agent.RequestContext, processor agent.EventProcessor) error {
	snapshot := &a2a.Task{
		ID:        reqCtx.TaskID,
		ContextID: reqCtx.ContextID,
		Status:    a2a.NewStatus(a2a.TaskStateSubmitted),
	}
	if reqCtx.Params != nil && reqCtx.Params.Message != nil {
		snapshot.History = []*a2a.Message{reqCtx.Params.Message}
	}
	if err := processor.SendTaskEvent(ctx, snapshot); err != nil {
		return err
	}

	if err := processor.SendTaskEvent(ctx, &a2a.TaskStatusUpdateEvent{
		TaskID:    reqCtx.TaskID,
		ContextID: reqCtx.ContextID,
		Status:    a2a.NewStatus(a2a.TaskStateWorking),
	}); err != nil {
		return err
	}

	text := ""
	if reqCtx.Params != nil && reqCtx.Params.Message != nil {
		text = reqCtx.Params.Message.Text()
	}
	reply := &a2a.Message{
		MessageID: uuid.New().String(),
		Role:      a2a.RoleAgent,
		Parts:     []a2a.Part{a2a.NewTextPart("Echo: " + text)},
		TaskID:    reqCtx.TaskID,
		ContextID: reqCtx.ContextID,
	}
	return processor.SendTaskEvent(ctx, &a2a.TaskStatusUpdateEvent{
		TaskID:    reqCtx.TaskID,
		ContextID: reqCtx.ContextID,
		Status:    a2a.NewStatusWithMessage(a2a.TaskStateCompleted, reply),
		Final:     true,
	})
}

// Cancel marks the task canceled. The echo task is effectively
// instantaneous, so this only matters when a cancel races the run.
func (e *Executor) Cancel(ctx context.Context, reqCtx *agent.RequestContext, processor agent.EventProcessor) error {
	e.log.Debug("canceling echo task", zap.String("task_id", reqCtx.TaskID))
	cancelMsg := &a2a.Message{
		MessageID: uuid.New().String(),
		Role:      a2a.RoleAgent,
		Parts:     []a2a.Part{a2a.NewTextPart("Task canceled")},
		TaskID:    reqCtx.TaskID,
		ContextID: reqCtx.ContextID,
	}
	return processor.SendTaskEvent(ctx, &a2a.TaskStatusUpdateEvent{
		TaskID:    reqCtx.TaskID,
		ContextID: reqCtx.ContextID,
		Status:    a2a.NewStatusWithMessage(a2a.TaskStateCanceled, cancelMsg),
		Final:     true,
	})
}
