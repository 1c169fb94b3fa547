package sqlstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/taskmesh/a2ad/internal/db"
	"github.com/taskmesh/a2ad/internal/db/dialect"
	"github.com/taskmesh/a2ad/internal/store"
	"github.com/taskmesh/a2ad/pkg/a2a"
)

// MessageStore is the SQL-backed message store.
type MessageStore struct {
	pool *db.Pool
}

var _ store.MessageStore = (*MessageStore)(nil)

// Save appends a message to its context's history.
func (s *MessageStore) Save(ctx context.Context, message *a2a.Message) error {
	document, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to encode message %s: %w", message.MessageID, err)
	}

	writer := s.pool.Writer()
	_, err = writer.ExecContext(ctx, writer.Rebind(`
		INSERT INTO a2a_messages (message_id, context_id, document, created_at)
		VALUES (?, ?, ?, ?)
	`), message.MessageID, message.ContextID, string(document), time.Now().UTC())
	return err
}

// GetByContext returns the message history of a context in insertion
// order.
func (s *MessageStore) GetByContext(ctx context.Context, contextID string) ([]*a2a.Message, error) {
	reader := s.pool.Reader()
	rows, err := reader.QueryContext(ctx, reader.Rebind(fmt.Sprintf(`
		SELECT message_id, document FROM a2a_messages WHERE context_id = ? ORDER BY %s
	`, dialect.InsertionOrder(reader.DriverName()))), contextID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var messages []*a2a.Message
	for rows.Next() {
		var id, document string
		if err := rows.Scan(&id, &document); err != nil {
			return nil, err
		}
		var message a2a.Message
		if err := json.Unmarshal([]byte(document), &message); err != nil {
			return nil, fmt.Errorf("failed to decode message %s: %w", id, err)
		}
		messages = append(messages, &message)
	}
	return messages, rows.Err()
}

// ReplaceByContext swaps the entire history of a context.
func (s *MessageStore) ReplaceByContext(ctx context.Context, contextID string, messages []*a2a.Message) error {
	writer := s.pool.Writer()
	tx, err := writer.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, writer.Rebind(`DELETE FROM a2a_messages WHERE context_id = ?`), contextID); err != nil {
		return err
	}
	now := time.Now().UTC()
	for _, message := range messages {
		document, err := json.Marshal(message)
		if err != nil {
			return fmt.Errorf("failed to encode message %s: %w", message.MessageID, err)
		}
		if _, err := tx.ExecContext(ctx, writer.Rebind(`
			INSERT INTO a2a_messages (message_id, context_id, document, created_at)
			VALUES (?, ?, ?, ?)
		`), message.MessageID, contextID, string(document), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// DeleteByContext removes the entire history of a context.
func (s *MessageStore) DeleteByContext(ctx context.Context, contextID string) error {
	writer := s.pool.Writer()
	_, err := writer.ExecContext(ctx, writer.Rebind(`DELETE FROM a2a_messages WHERE context_id = ?`), contextID)
	return err
}
