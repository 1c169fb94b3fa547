package server

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/taskmesh/a2ad/internal/agent"
	"github.com/taskmesh/a2ad/internal/session"
	"github.com/taskmesh/a2ad/internal/store"
	"github.com/taskmesh/a2ad/pkg/a2a"
)

// TasksGet runs the tasks/get method: a read of the stored snapshot with
// the requested history and artifact projection.
func (h *Handler) TasksGet(ctx context.Context, call *agent.CallContext, params *a2a.TaskQueryParams) (*a2a.Task, error) {
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

	includeArtifacts := true
	if params.IncludeArtifacts != nil {
		includeArtifacts = *params.IncludeArtifacts
	}
	return a2a.ProjectTask(task, params.HistoryLength, includeArtifacts), nil
}

// TasksCancel runs the tasks/cancel method. The cancel key is taken before
// the task key so session teardown cannot interleave with the cancel;
// every other task operation takes the task key alone, keeping the two
// keys deadlock free.
func (h *Handler) TasksCancel(ctx context.Context, call *agent.CallContext, params *a2a.TaskIDParams) (*a2a.Task, error) {
	if call == nil {
		call = agent.NewCallContext(nil)
	}
	if params.ID == "" {
		return nil, a2a.InvalidParams("task id is required")
	}

	unlockCancel, err := h.locks.Lock(ctx, session.CancelKey(params.ID))
	if err != nil {
		return nil, err
	}
	defer unlockCancel()
	unlockTask, err := h.locks.Lock(ctx, session.TaskKey(params.ID))
	if err != nil {
		return nil, err
	}
	defer unlockTask()

	task, err := h.tasks.Get(ctx, params.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, a2a.TaskNotFound(params.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load task %s: %w", params.ID, err)
	}
	if task.Status.State == a2a.TaskStateCanceled {
		return task, nil
	}

	sess, ok := h.sessions.GetSession(params.ID)
	if !ok {
		if task.Status.State.IsTerminal() {
			return nil, a2a.TaskNotCancelable(params.ID)
		}
		updated, err := h.tasks.Update(ctx, params.ID, func(t *a2a.Task) error {
			t.Status = a2a.NewStatus(a2a.TaskStateCanceled)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to cancel task %s: %w", params.ID, err)
		}
		h.logger.Info("Canceled task without active session", zap.String("task_id", params.ID))
		return updated, nil
	}

	reqCtx := &agent.RequestContext{
		TaskID:    params.ID,
		ContextID: task.ContextID,
		Task:      task,
		Tasks:     store.NewContextTaskStore(task.ContextID, h.tasks),
		Messages:  store.NewContextMessageStore(task.ContextID, h.messages),
		Call:      call,
	}
	if err := h.executor.Cancel(ctx, reqCtx, sess.Processor()); err != nil {
		return nil, fmt.Errorf("cancel failed for task %s: %w", params.ID, err)
	}
	// The final events are already persisted and delivered; waiting for
	// the computation itself is bounded by the caller's context.
	_ = sess.CancelAndJoin(ctx)

	canceled, err := h.tasks.Get(ctx, params.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load task %s: %w", params.ID, err)
	}
	h.logger.Info("Canceled task", zap.String("task_id", params.ID))
	return canceled, nil
}
