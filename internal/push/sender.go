// Package push delivers task snapshots to registered push-notification
// targets after a session terminates.
package push

import (
	"context"

	"github.com/taskmesh/a2ad/pkg/a2a"
)

// Sender delivers a push notification containing the latest task state.
type Sender interface {
	// Send delivers the task snapshot to the target described by config.
	// Callers treat failures as non-fatal: a lost notification never fails
	// the task that triggered it.
	Send(ctx context.Context, config *a2a.PushNotificationConfig, task *a2a.Task) error
}
