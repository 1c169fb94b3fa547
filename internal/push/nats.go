package push

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/taskmesh/a2ad/internal/common/config"
	"github.com/taskmesh/a2ad/internal/common/logger"
	"github.com/taskmesh/a2ad/pkg/a2a"
)

// natsSubjectPrefix is prepended to the task id to form the delivery subject.
const natsSubjectPrefix = "a2ad.push."

// NATSSender publishes task snapshots to a2ad.push.<taskId> instead of
// calling the config URL. Useful when consumers already sit on the same
// NATS deployment as the server.
type NATSSender struct {
	conn   *nats.Conn
	logger *logger.Logger
}

var _ Sender = (*NATSSender)(nil)

// natsDelivery is the published payload. The config id and token let the
// consumer route and validate the snapshot.
type natsDelivery struct {
	ConfigID string    `json:"configId,omitempty"`
	Token    string    `json:"token,omitempty"`
	Task     *a2a.Task `json:"task"`
}

// NewNATSSender connects to NATS for push delivery.
func NewNATSSender(cfg config.NATSConfig, log *logger.Logger) (*NATSSender, error) {
	conn, err := nats.Connect(cfg.URL, nats.Name(cfg.ClientID+"-push"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSSender{
		conn:   conn,
		logger: log.WithFields(zap.String("component", "push-nats")),
	}, nil
}

// Send publishes the snapshot to the task's delivery subject.
func (s *NATSSender) Send(ctx context.Context, config *a2a.PushNotificationConfig, task *a2a.Task) error {
	payload, err := json.Marshal(natsDelivery{
		ConfigID: config.ID,
		Token:    config.Token,
		Task:     task,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal delivery for task %s: %w", task.ID, err)
	}

	subject := natsSubjectPrefix + task.ID
	if err := s.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("failed to publish push delivery to %s: %w", subject, err)
	}

	s.logger.Debug("Published push delivery",
		zap.String("task_id", task.ID),
		zap.String("subject", subject))

	return nil
}

// Close drains the NATS connection.
func (s *NATSSender) Close() {
	if s.conn != nil {
		if err := s.conn.Drain(); err != nil {
			s.logger.Warn("Error draining NATS connection", zap.Error(err))
			s.conn.Close()
		}
	}
}
