package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/taskmesh/a2ad/internal/agent"
	"github.com/taskmesh/a2ad/internal/store"
	"github.com/taskmesh/a2ad/pkg/a2a"
)

// ensurePushTask gates a pushNotificationConfig call: push support must be
// enabled and the addressed task must exist.
func (h *Handler) ensurePushTask(ctx context.Context, taskID string) error {
	if !h.pushEnabled {
		return a2a.PushNotSupported()
	}
	if taskID == "" {
		return a2a.InvalidParams("task id is required")
	}
	if _, err := h.tasks.Get(ctx, taskID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return a2a.TaskNotFound(taskID)
		}
		return fmt.Errorf("failed to load task %s: %w", taskID, err)
	}
	return nil
}

// PushConfigSet registers or replaces one push config for a task. Configs
// without an id get one assigned; a matching id is an upsert.
func (h *Handler) PushConfigSet(ctx context.Context, call *agent.CallContext, params *a2a.TaskPushNotificationConfig) (*a2a.TaskPushNotificationConfig, error) {
	if err := h.ensurePushTask(ctx, params.TaskID); err != nil {
		return nil, err
	}

	stored, err := h.push.Save(ctx, params.TaskID, &params.PushNotificationConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to save push config for task %s: %w", params.TaskID, err)
	}
	return &a2a.TaskPushNotificationConfig{
		TaskID:                 params.TaskID,
		PushNotificationConfig: *stored,
	}, nil
}

// PushConfigGet returns one push config. An empty config id selects the
// first registered config.
func (h *Handler) PushConfigGet(ctx context.Context, call *agent.CallContext, params *a2a.TaskPushNotificationConfigParams) (*a2a.TaskPushNotificationConfig, error) {
	if err := h.ensurePushTask(ctx, params.ID); err != nil {
		return nil, err
	}

	var config *a2a.PushNotificationConfig
	if params.PushNotificationConfigID == "" {
		configs, err := h.push.List(ctx, params.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list push configs for task %s: %w", params.ID, err)
		}
		if len(configs) == 0 {
			return nil, a2a.PushConfigNotFound(params.ID, "")
		}
		config = configs[0]
	} else {
		var err error
		config, err = h.push.Get(ctx, params.ID, params.PushNotificationConfigID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, a2a.PushConfigNotFound(params.ID, params.PushNotificationConfigID)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load push config for task %s: %w", params.ID, err)
		}
	}

	return &a2a.TaskPushNotificationConfig{
		TaskID:                 params.ID,
		PushNotificationConfig: *config,
	}, nil
}

// PushConfigList returns every push config registered for a task.
func (h *Handler) PushConfigList(ctx context.Context, call *agent.CallContext, params *a2a.TaskIDParams) ([]*a2a.TaskPushNotificationConfig, error) {
	if err := h.ensurePushTask(ctx, params.ID); err != nil {
		return nil, err
	}

	configs, err := h.push.List(ctx, params.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list push configs for task %s: %w", params.ID, err)
	}
	out := make([]*a2a.TaskPushNotificationConfig, 0, len(configs))
	for _, config := range configs {
		out = append(out, &a2a.TaskPushNotificationConfig{
			TaskID:                 params.ID,
			PushNotificationConfig: *config,
		})
	}
	return out, nil
}

// PushConfigDelete removes one push config. Deleting a config that does
// not exist is not an error.
func (h *Handler) PushConfigDelete(ctx context.Context, call *agent.CallContext, params *a2a.TaskPushNotificationConfigParams) error {
	if err := h.ensurePushTask(ctx, params.ID); err != nil {
		return err
	}

	err := h.push.Delete(ctx, params.ID, params.PushNotificationConfigID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("failed to delete push config for task %s: %w", params.ID, err)
	}
	return nil
}
