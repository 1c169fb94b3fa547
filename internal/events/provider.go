package events

import (
	"fmt"

	"github.com/taskmesh/a2ad/internal/common/config"
	"github.com/taskmesh/a2ad/internal/common/logger"
	"github.com/taskmesh/a2ad/internal/events/bus"
)

// Provide builds the configured event bus implementation. The returned
// cleanup func closes the bus and must be called on shutdown.
func Provide(cfg *config.Config, log *logger.Logger) (bus.EventBus, func() error, error) {
	switch cfg.Bus.Provider {
	case config.BusNATS:
		natsBus, err := bus.NewNATSEventBus(cfg.NATS, log)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize NATS event bus: %w", err)
		}
		cleanup := func() error {
			natsBus.Close()
			return nil
		}
		return natsBus, cleanup, nil
	case config.BusMemory, "":
		memBus := bus.NewMemoryEventBus(log)
		cleanup := func() error {
			memBus.Close()
			return nil
		}
		return memBus, cleanup, nil
	default:
		return nil, nil, fmt.Errorf("unknown bus provider: %q", cfg.Bus.Provider)
	}
}
