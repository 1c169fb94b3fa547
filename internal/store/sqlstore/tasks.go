package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/taskmesh/a2ad/internal/db"
	"github.com/taskmesh/a2ad/internal/db/dialect"
	"github.com/taskmesh/a2ad/internal/store"
	"github.com/taskmesh/a2ad/pkg/a2a"
)

// TaskStore is the SQL-backed task store.
type TaskStore struct {
	pool *db.Pool
}

var _ store.TaskStore = (*TaskStore)(nil)

// Get retrieves a task by id.
func (s *TaskStore) Get(ctx context.Context, id string) (*a2a.Task, error) {
	reader := s.pool.Reader()
	var document string
	err := reader.QueryRowContext(ctx, reader.Rebind(`
		SELECT document FROM a2a_tasks WHERE id = ?
	`), id).Scan(&document)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return decodeTask(id, document)
}

// Save stores a task, replacing any existing task with the same id.
func (s *TaskStore) Save(ctx context.Context, task *a2a.Task) error {
	document, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to encode task %s: %w", task.ID, err)
	}

	writer := s.pool.Writer()
	now := time.Now().UTC()
	_, err = writer.ExecContext(ctx, writer.Rebind(`
		INSERT INTO a2a_tasks (id, context_id, state, document, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			context_id = excluded.context_id,
			state = excluded.state,
			document = excluded.document,
			updated_at = excluded.updated_at
	`), task.ID, task.ContextID, string(task.Status.State), string(document), now, now)
	return err
}

// Update applies mutate to the stored task inside a transaction. The
// transaction is the per-id serialization: SQLite funnels through the
// single writer connection and Postgres locks the row.
func (s *TaskStore) Update(ctx context.Context, id string, mutate func(*a2a.Task) error) (*a2a.Task, error) {
	writer := s.pool.Writer()
	tx, err := writer.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var document string
	err = tx.QueryRowContext(ctx, writer.Rebind(
		`SELECT document FROM a2a_tasks WHERE id = ?`+dialect.ForUpdate(writer.DriverName()),
	), id).Scan(&document)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	current, err := decodeTask(id, document)
	if err != nil {
		return nil, err
	}

	next := current.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	if current.Status.State.IsTerminal() && next.Status.State != current.Status.State {
		return nil, fmt.Errorf("task %s is %s: %w", id, current.Status.State, store.ErrInvalidTransition)
	}

	encoded, err := json.Marshal(next)
	if err != nil {
		return nil, fmt.Errorf("failed to encode task %s: %w", id, err)
	}
	_, err = tx.ExecContext(ctx, writer.Rebind(`
		UPDATE a2a_tasks SET context_id = ?, state = ?, document = ?, updated_at = ? WHERE id = ?
	`), next.ContextID, string(next.Status.State), string(encoded), time.Now().UTC(), id)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return next, nil
}

// Delete removes a task.
func (s *TaskStore) Delete(ctx context.Context, id string) error {
	writer := s.pool.Writer()
	result, err := writer.ExecContext(ctx, writer.Rebind(`DELETE FROM a2a_tasks WHERE id = ?`), id)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("task %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// ListByContext returns all tasks in a context in insertion order.
func (s *TaskStore) ListByContext(ctx context.Context, contextID string) ([]*a2a.Task, error) {
	reader := s.pool.Reader()
	rows, err := reader.QueryContext(ctx, reader.Rebind(fmt.Sprintf(`
		SELECT id, document FROM a2a_tasks WHERE context_id = ? ORDER BY %s
	`, dialect.InsertionOrder(reader.DriverName()))), contextID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var tasks []*a2a.Task
	for rows.Next() {
		var id, document string
		if err := rows.Scan(&id, &document); err != nil {
			return nil, err
		}
		task, err := decodeTask(id, document)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func decodeTask(id, document string) (*a2a.Task, error) {
	var task a2a.Task
	if err := json.Unmarshal([]byte(document), &task); err != nil {
		return nil, fmt.Errorf("failed to decode task %s: %w", id, err)
	}
	return &task, nil
}
