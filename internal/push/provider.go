package push

import (
	"fmt"

	"github.com/taskmesh/a2ad/internal/common/config"
	"github.com/taskmesh/a2ad/internal/common/logger"
)

// Provide builds the configured push sender. The returned cleanup func
// releases any connection the sender holds.
func Provide(cfg *config.Config, log *logger.Logger) (Sender, func() error, error) {
	switch cfg.Push.Provider {
	case config.PushWebhook, "":
		return NewWebhookSender(cfg.Push.TimeoutDuration(), log), func() error { return nil }, nil
	case config.PushNATS:
		sender, err := NewNATSSender(cfg.NATS, log)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize NATS push sender: %w", err)
		}
		cleanup := func() error {
			sender.Close()
			return nil
		}
		return sender, cleanup, nil
	case config.PushLog:
		return NewLogSender(log), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown push provider: %q", cfg.Push.Provider)
	}
}
