package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/taskmesh/a2ad/internal/db"
	"github.com/taskmesh/a2ad/internal/db/dialect"
	"github.com/taskmesh/a2ad/internal/store"
	"github.com/taskmesh/a2ad/pkg/a2a"
)

// PushConfigStore is the SQL-backed push config store.
type PushConfigStore struct {
	pool *db.Pool
}

var _ store.PushConfigStore = (*PushConfigStore)(nil)

// Save upserts a configuration by its id.
func (s *PushConfigStore) Save(ctx context.Context, taskID string, config *a2a.PushNotificationConfig) (*a2a.PushNotificationConfig, error) {
	stored := *config
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	document, err := json.Marshal(&stored)
	if err != nil {
		return nil, fmt.Errorf("failed to encode push config %s: %w", stored.ID, err)
	}

	writer := s.pool.Writer()
	now := time.Now().UTC()
	_, err = writer.ExecContext(ctx, writer.Rebind(`
		INSERT INTO a2a_push_configs (task_id, config_id, document, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (task_id, config_id) DO UPDATE SET
			document = excluded.document,
			updated_at = excluded.updated_at
	`), taskID, stored.ID, string(document), now, now)
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

// Get retrieves one configuration.
func (s *PushConfigStore) Get(ctx context.Context, taskID, configID string) (*a2a.PushNotificationConfig, error) {
	reader := s.pool.Reader()
	var document string
	err := reader.QueryRowContext(ctx, reader.Rebind(`
		SELECT document FROM a2a_push_configs WHERE task_id = ? AND config_id = ?
	`), taskID, configID).Scan(&document)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("push config %s for task %s: %w", configID, taskID, store.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return decodePushConfig(configID, document)
}

// List returns all configurations for a task in insertion order.
func (s *PushConfigStore) List(ctx context.Context, taskID string) ([]*a2a.PushNotificationConfig, error) {
	reader := s.pool.Reader()
	rows, err := reader.QueryContext(ctx, reader.Rebind(fmt.Sprintf(`
		SELECT config_id, document FROM a2a_push_configs WHERE task_id = ? ORDER BY %s
	`, dialect.InsertionOrder(reader.DriverName()))), taskID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	configs := []*a2a.PushNotificationConfig{}
	for rows.Next() {
		var id, document string
		if err := rows.Scan(&id, &document); err != nil {
			return nil, err
		}
		config, err := decodePushConfig(id, document)
		if err != nil {
			return nil, err
		}
		configs = append(configs, config)
	}
	return configs, rows.Err()
}

// Delete removes one configuration. Deleting an absent config is a no-op.
func (s *PushConfigStore) Delete(ctx context.Context, taskID, configID string) error {
	writer := s.pool.Writer()
	_, err := writer.ExecContext(ctx, writer.Rebind(`
		DELETE FROM a2a_push_configs WHERE task_id = ? AND config_id = ?
	`), taskID, configID)
	return err
}

func decodePushConfig(id, document string) (*a2a.PushNotificationConfig, error) {
	var config a2a.PushNotificationConfig
	if err := json.Unmarshal([]byte(document), &config); err != nil {
		return nil, fmt.Errorf("failed to decode push config %s: %w", id, err)
	}
	return &config, nil
}
