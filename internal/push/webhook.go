package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/taskmesh/a2ad/internal/common/logger"
	"github.com/taskmesh/a2ad/pkg/a2a"
)

// TokenHeader carries the client-supplied validation token on webhook
// deliveries.
const TokenHeader = "X-A2A-Notification-Token"

const defaultWebhookTimeout = 10 * time.Second

// WebhookSender POSTs task snapshots to the config URL as JSON.
type WebhookSender struct {
	client *http.Client
	logger *logger.Logger
}

var _ Sender = (*WebhookSender)(nil)

// NewWebhookSender creates a webhook sender. A non-positive timeout falls
// back to the default.
func NewWebhookSender(timeout time.Duration, log *logger.Logger) *WebhookSender {
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	return &WebhookSender{
		client: &http.Client{
			Timeout: timeout,
		},
		logger: log.WithFields(zap.String("component", "push-webhook")),
	}
}

// Send delivers the task snapshot to config.URL. Any non-2xx response is an
// error so the caller can log the failed delivery.
func (s *WebhookSender) Send(ctx context.Context, config *a2a.PushNotificationConfig, task *a2a.Task) error {
	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task %s: %w", task.ID, err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if config.Token != "" {
		req.Header.Set(TokenHeader, config.Token)
	}
	if auth := config.Authentication; auth != nil && auth.Credentials != "" {
		for _, scheme := range auth.Schemes {
			if strings.EqualFold(scheme, "bearer") {
				req.Header.Set("Authorization", "Bearer "+auth.Credentials)
				break
			}
		}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("push request to %s failed: %w", config.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("push endpoint %s returned status %d", config.URL, resp.StatusCode)
	}

	s.logger.Debug("Delivered push notification",
		zap.String("task_id", task.ID),
		zap.String("url", config.URL),
		zap.String("state", string(task.Status.State)))

	return nil
}
