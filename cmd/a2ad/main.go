// Package main runs the a2ad server: one hosted agent exposed through
// the full A2A surface over HTTP, SSE, and WebSocket.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/taskmesh/a2ad/internal/agent"
	"github.com/taskmesh/a2ad/internal/agent/echo"
	"github.com/taskmesh/a2ad/internal/agent/shell"
	"github.com/taskmesh/a2ad/internal/common/config"
	"github.com/taskmesh/a2ad/internal/common/keyedmutex"
	"github.com/taskmesh/a2ad/internal/common/logger"
	"github.com/taskmesh/a2ad/internal/common/tracing"
	"github.com/taskmesh/a2ad/internal/db"
	"github.com/taskmesh/a2ad/internal/db/dialect"
	"github.com/taskmesh/a2ad/internal/events"
	"github.com/taskmesh/a2ad/internal/gateway"
	"github.com/taskmesh/a2ad/internal/push"
	"github.com/taskmesh/a2ad/internal/server"
	"github.com/taskmesh/a2ad/internal/session"
	"github.com/taskmesh/a2ad/internal/store"
	"github.com/taskmesh/a2ad/internal/store/sqlstore"
	"github.com/taskmesh/a2ad/pkg/a2a"
)

func main() {
	// 1. Load configuration
	cfg, err := config.LoadWithPath(os.Getenv("A2AD_CONFIG_PATH"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize logger
	log, err := logger.NewLogger(logger.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputPath: cfg.Logging.OutputPath,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetDefault(log)

	log.Info("Starting a2ad...")

	// 3. Event bus for task lifecycle notifications
	eventBus, closeBus, err := events.Provide(cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize event bus", zap.Error(err))
	}
	defer func() { _ = closeBus() }()

	// 4. Stores
	tasks, messages, pushConfigs, closeStores, err := buildStores(cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer func() { _ = closeStores() }()

	// 5. Push notification sender
	sender, closeSender, err := push.Provide(cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize push sender", zap.Error(err))
	}
	defer func() { _ = closeSender() }()

	// 6. Hosted executor
	executor, err := buildExecutor(cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize executor", zap.Error(err))
	}

	// 7. Agent cards
	card, extendedCard, err := loadCards(cfg)
	if err != nil {
		log.Fatal("Failed to load agent card", zap.Error(err))
	}

	// 8. Session manager and request handler
	locks := keyedmutex.New()
	manager := session.NewManager(locks, tasks, pushConfigs, sender, eventBus,
		cfg.Limits.MaxConcurrentSessions, log)

	handler := server.New(server.Options{
		Executor:         executor,
		Sessions:         manager,
		Locks:            locks,
		Tasks:            tasks,
		Messages:         messages,
		PushConfigs:      pushConfigs,
		Card:             card,
		ExtendedCard:     extendedCard,
		AuthToken:        cfg.Card.AuthToken,
		PushEnabled:      card.Capabilities.PushNotifications,
		SubscriberBuffer: cfg.Limits.SubscriberBuffer,
		Logger:           log,
	})

	// 9. HTTP server
	gw := gateway.New(handler, eventBus, log)
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      gw.Router(),
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	go func() {
		log.Info("A2A server listening",
			zap.String("addr", addr),
			zap.String("agent", card.Name),
			zap.String("executor", cfg.Agent.Executor))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	log.Info("API configured",
		zap.String("rpc", "/a2a"),
		zap.String("ws", "/a2a/ws"),
		zap.String("monitor", "/a2a/ws/monitor"),
		zap.String("card", gateway.AgentCardPath),
		zap.String("health", "/healthz"),
	)

	// 10. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down a2ad...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}
	if err := manager.Shutdown(shutdownCtx); err != nil {
		log.Error("Session manager shutdown error", zap.Error(err))
	}
	if err := tracing.Shutdown(shutdownCtx); err != nil {
		log.Error("Tracing shutdown error", zap.Error(err))
	}

	log.Info("a2ad stopped")
}

// buildStores selects the storage backend. The cleanup func closes the
// underlying connections.
func buildStores(cfg *config.Config, log *logger.Logger) (store.TaskStore, store.MessageStore, store.PushConfigStore, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Storage.Driver {
	case config.StorageMemory:
		log.Info("Using in-memory stores")
		return store.NewMemoryTaskStore(), store.NewMemoryMessageStore(),
			store.NewMemoryPushConfigStore(), noop, nil

	case config.StorageSQLite:
		path := cfg.Storage.SQLite.Path
		writer, err := db.OpenSQLite(path)
		if err != nil {
			return nil, nil, nil, noop, err
		}
		reader, err := db.OpenSQLiteReader(path)
		if err != nil {
			_ = writer.Close()
			return nil, nil, nil, noop, err
		}
		pool := db.NewPool(sqlx.NewDb(writer, dialect.SQLite3), sqlx.NewDb(reader, dialect.SQLite3))
		s, err := sqlstore.New(pool)
		if err != nil {
			_ = pool.Close()
			return nil, nil, nil, noop, err
		}
		log.Info("SQLite stores initialized", zap.String("path", path))
		return s.Tasks(), s.Messages(), s.PushConfigs(), pool.Close, nil

	case config.StoragePostgres:
		conn, err := db.OpenPostgres(cfg.Storage.Postgres.DSN(),
			cfg.Storage.Postgres.MaxConns, cfg.Storage.Postgres.MinConns)
		if err != nil {
			return nil, nil, nil, noop, err
		}
		sqlxDB := sqlx.NewDb(conn, dialect.PGX)
		pool := db.NewPool(sqlxDB, sqlxDB)
		s, err := sqlstore.New(pool)
		if err != nil {
			_ = pool.Close()
			return nil, nil, nil, noop, err
		}
		log.Info("PostgreSQL stores initialized",
			zap.String("host", cfg.Storage.Postgres.Host),
			zap.String("database", cfg.Storage.Postgres.DBName))
		return s.Tasks(), s.Messages(), s.PushConfigs(), pool.Close, nil

	default:
		return nil, nil, nil, noop, fmt.Errorf("unknown storage driver: %q", cfg.Storage.Driver)
	}
}

// buildExecutor selects the hosted executor.
func buildExecutor(cfg *config.Config, log *logger.Logger) (agent.Executor, error) {
	switch cfg.Agent.Executor {
	case config.ExecutorShell:
		return shell.New(cfg.Agent.ShellCommand, log), nil
	case config.ExecutorEcho, "":
		return echo.New(log), nil
	default:
		return nil, fmt.Errorf("unknown executor: %q", cfg.Agent.Executor)
	}
}

// loadCards reads the public card and, when enabled, the extended card.
// Without a dedicated extended card file the public card doubles as the
// extended one.
func loadCards(cfg *config.Config) (*a2a.AgentCard, *a2a.AgentCard, error) {
	card, err := a2a.LoadAgentCard(cfg.Agent.CardPath)
	if err != nil {
		return nil, nil, err
	}

	if !cfg.Card.ExtendedEnabled {
		return card, nil, nil
	}
	card.SupportsAuthenticatedExtendedCard = true

	if cfg.Card.ExtendedPath == "" {
		return card, card, nil
	}
	extended, err := a2a.LoadAgentCard(cfg.Card.ExtendedPath)
	if err != nil {
		return nil, nil, err
	}
	return card, extended, nil
}
