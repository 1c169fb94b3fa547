package push

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/taskmesh/a2ad/internal/common/logger"
	"github.com/taskmesh/a2ad/pkg/a2a"
)

// LogSender logs each delivery instead of sending it anywhere. It records
// deliveries so tests and local runs can inspect what would have been sent.
type LogSender struct {
	logger *logger.Logger

	mu         sync.Mutex
	deliveries []Delivery
}

var _ Sender = (*LogSender)(nil)

// Delivery is one recorded push notification.
type Delivery struct {
	Config *a2a.PushNotificationConfig
	Task   *a2a.Task
}

// NewLogSender creates a sender that only logs.
func NewLogSender(log *logger.Logger) *LogSender {
	return &LogSender{
		logger: log.WithFields(zap.String("component", "push-log")),
	}
}

// Send records the delivery and logs it.
func (s *LogSender) Send(ctx context.Context, config *a2a.PushNotificationConfig, task *a2a.Task) error {
	s.mu.Lock()
	s.deliveries = append(s.deliveries, Delivery{Config: config, Task: task})
	s.mu.Unlock()

	s.logger.Info("Push notification",
		zap.String("task_id", task.ID),
		zap.String("config_id", config.ID),
		zap.String("url", config.URL),
		zap.String("state", string(task.Status.State)))

	return nil
}

// Deliveries returns a copy of all recorded deliveries.
func (s *LogSender) Deliveries() []Delivery {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Delivery, len(s.deliveries))
	copy(out, s.deliveries)
	return out
}
