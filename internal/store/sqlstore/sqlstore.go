// Package sqlstore implements the store interfaces on SQLite and
// PostgreSQL. Tasks, messages, and push configs are kept as JSON
// documents with the columns the queries need pulled out beside them.
package sqlstore

import (
	"fmt"

	"github.com/taskmesh/a2ad/internal/db"
	"github.com/taskmesh/a2ad/internal/db/dialect"
	"github.com/taskmesh/a2ad/internal/store"
)

// Store bundles the SQL-backed stores sharing one connection pool. The
// pool is owned by the caller; Store never closes it.
type Store struct {
	tasks    *TaskStore
	messages *MessageStore
	push     *PushConfigStore
}

// New creates the SQL stores and ensures the schema exists.
func New(pool *db.Pool) (*Store, error) {
	s := &Store{
		tasks:    &TaskStore{pool: pool},
		messages: &MessageStore{pool: pool},
		push:     &PushConfigStore{pool: pool},
	}
	if err := s.initSchema(pool); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// Tasks returns the task store.
func (s *Store) Tasks() store.TaskStore { return s.tasks }

// Messages returns the message store.
func (s *Store) Messages() store.MessageStore { return s.messages }

// PushConfigs returns the push config store.
func (s *Store) PushConfigs() store.PushConfigStore { return s.push }

func (s *Store) initSchema(pool *db.Pool) error {
	// SQLite orders by the implicit rowid; Postgres needs an explicit
	// serial column for insertion order.
	seq := ""
	if dialect.IsPostgres(pool.Writer().DriverName()) {
		seq = "seq BIGSERIAL,"
	}

	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS a2a_tasks (
			%s
			id TEXT PRIMARY KEY,
			context_id TEXT NOT NULL,
			state TEXT NOT NULL,
			document TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`, seq),
		`CREATE INDEX IF NOT EXISTS idx_a2a_tasks_context_id ON a2a_tasks(context_id)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS a2a_messages (
			%s
			message_id TEXT NOT NULL,
			context_id TEXT NOT NULL,
			document TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`, seq),
		`CREATE INDEX IF NOT EXISTS idx_a2a_messages_context_id ON a2a_messages(context_id)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS a2a_push_configs (
			%s
			task_id TEXT NOT NULL,
			config_id TEXT NOT NULL,
			document TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			PRIMARY KEY (task_id, config_id)
		)`, seq),
	}
	for _, stmt := range stmts {
		if _, err := pool.Writer().Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
