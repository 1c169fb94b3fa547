package sqlstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/taskmesh/a2ad/internal/db"
	"github.com/taskmesh/a2ad/internal/store"
	"github.com/taskmesh/a2ad/pkg/a2a"
)

func createTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	dbConn, err := db.OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("failed to open SQLite database: %v", err)
	}
	sqlxDB := sqlx.NewDb(dbConn, "sqlite3")
	t.Cleanup(func() {
		if err := sqlxDB.Close(); err != nil {
			t.Errorf("failed to close sqlite db: %v", err)
		}
	})

	s, err := New(db.NewPool(sqlxDB, sqlxDB))
	if err != nil {
		t.Fatalf("failed to create sql store: %v", err)
	}
	return s
}

func newTask(id, contextID string, state a2a.TaskState) *a2a.Task {
	return &a2a.Task{
		ID:        id,
		ContextID: contextID,
		Status:    a2a.NewStatus(state),
	}
}

func TestTaskStore_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	tasks := s.Tasks()

	task := newTask("t-1", "c-1", a2a.TaskStateWorking)
	task.History = []*a2a.Message{{
		MessageID: "m-1",
		Role:      a2a.RoleUser,
		Parts:     []a2a.Part{a2a.NewTextPart("do task")},
		TaskID:    "t-1",
		ContextID: "c-1",
	}}
	task.Artifacts = []*a2a.Artifact{{
		ArtifactID: "a-1",
		Parts:      []a2a.Part{a2a.NewTextPart("result")},
	}}
	if err := tasks.Save(ctx, task); err != nil {
		t.Fatalf("failed to save task: %v", err)
	}

	got, err := tasks.Get(ctx, "t-1")
	if err != nil {
		t.Fatalf("failed to get task: %v", err)
	}
	if got.Status.State != a2a.TaskStateWorking {
		t.Errorf("expected working state, got %s", got.Status.State)
	}
	if len(got.History) != 1 || got.History[0].Text() != "do task" {
		t.Errorf("expected history to round-trip, got %+v", got.History)
	}
	if len(got.Artifacts) != 1 || got.Artifacts[0].ArtifactID != "a-1" {
		t.Errorf("expected artifacts to round-trip, got %+v", got.Artifacts)
	}
}

func TestTaskStore_SaveReplaces(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	tasks := s.Tasks()

	if err := tasks.Save(ctx, newTask("t-1", "c-1", a2a.TaskStateSubmitted)); err != nil {
		t.Fatalf("failed to save task: %v", err)
	}
	if err := tasks.Save(ctx, newTask("t-1", "c-1", a2a.TaskStateWorking)); err != nil {
		t.Fatalf("failed to replace task: %v", err)
	}

	got, err := tasks.Get(ctx, "t-1")
	if err != nil {
		t.Fatalf("failed to get task: %v", err)
	}
	if got.Status.State != a2a.TaskStateWorking {
		t.Errorf("expected working state after replace, got %s", got.Status.State)
	}
}

func TestTaskStore_UpdateAndTerminalGuard(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	tasks := s.Tasks()

	if err := tasks.Save(ctx, newTask("t-1", "c-1", a2a.TaskStateWorking)); err != nil {
		t.Fatalf("failed to save task: %v", err)
	}

	updated, err := tasks.Update(ctx, "t-1", func(task *a2a.Task) error {
		task.Status = a2a.NewStatus(a2a.TaskStateCompleted)
		return nil
	})
	if err != nil {
		t.Fatalf("failed to update task: %v", err)
	}
	if updated.Status.State != a2a.TaskStateCompleted {
		t.Errorf("expected completed state, got %s", updated.Status.State)
	}

	// The task is terminal now; moving it again must fail.
	_, err = tasks.Update(ctx, "t-1", func(task *a2a.Task) error {
		task.Status = a2a.NewStatus(a2a.TaskStateWorking)
		return nil
	})
	if !errors.Is(err, store.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}

	// A failed mutation must not persist.
	got, _ := tasks.Get(ctx, "t-1")
	if got.Status.State != a2a.TaskStateCompleted {
		t.Errorf("expected completed state preserved, got %s", got.Status.State)
	}
}

func TestTaskStore_MissingAndDelete(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	tasks := s.Tasks()

	if _, err := tasks.Get(ctx, "nope"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := tasks.Update(ctx, "nope", func(*a2a.Task) error { return nil }); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := tasks.Delete(ctx, "nope"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := tasks.Save(ctx, newTask("t-1", "c-1", a2a.TaskStateSubmitted)); err != nil {
		t.Fatalf("failed to save task: %v", err)
	}
	if err := tasks.Delete(ctx, "t-1"); err != nil {
		t.Fatalf("failed to delete task: %v", err)
	}
	if _, err := tasks.Get(ctx, "t-1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestTaskStore_ListByContext(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	tasks := s.Tasks()

	for _, task := range []*a2a.Task{
		newTask("t-1", "c-1", a2a.TaskStateSubmitted),
		newTask("t-2", "c-2", a2a.TaskStateSubmitted),
		newTask("t-3", "c-1", a2a.TaskStateWorking),
	} {
		if err := tasks.Save(ctx, task); err != nil {
			t.Fatalf("failed to save task %s: %v", task.ID, err)
		}
	}

	got, err := tasks.ListByContext(ctx, "c-1")
	if err != nil {
		t.Fatalf("failed to list tasks: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(got))
	}
	if got[0].ID != "t-1" || got[1].ID != "t-3" {
		t.Errorf("expected insertion order t-1, t-3, got %s, %s", got[0].ID, got[1].ID)
	}
}

func TestMessageStore_SQL(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	messages := s.Messages()

	for _, id := range []string{"m-1", "m-2"} {
		msg := &a2a.Message{
			MessageID: id,
			Role:      a2a.RoleAgent,
			Parts:     []a2a.Part{a2a.NewTextPart("reply " + id)},
			ContextID: "c-1",
		}
		if err := messages.Save(ctx, msg); err != nil {
			t.Fatalf("failed to save message %s: %v", id, err)
		}
	}

	history, err := messages.GetByContext(ctx, "c-1")
	if err != nil {
		t.Fatalf("failed to get history: %v", err)
	}
	if len(history) != 2 || history[0].MessageID != "m-1" || history[1].MessageID != "m-2" {
		t.Fatalf("expected ordered history [m-1 m-2], got %+v", history)
	}
	if history[0].Text() != "reply m-1" {
		t.Errorf("expected parts to round-trip, got %q", history[0].Text())
	}

	if err := messages.ReplaceByContext(ctx, "c-1", []*a2a.Message{
		{MessageID: "m-3", ContextID: "c-1"},
	}); err != nil {
		t.Fatalf("failed to replace history: %v", err)
	}
	history, _ = messages.GetByContext(ctx, "c-1")
	if len(history) != 1 || history[0].MessageID != "m-3" {
		t.Fatalf("expected replaced history [m-3], got %+v", history)
	}

	if err := messages.DeleteByContext(ctx, "c-1"); err != nil {
		t.Fatalf("failed to delete history: %v", err)
	}
	history, _ = messages.GetByContext(ctx, "c-1")
	if len(history) != 0 {
		t.Errorf("expected empty history after delete, got %d messages", len(history))
	}
}

func TestPushConfigStore_SQL(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	push := s.PushConfigs()

	stored, err := push.Save(ctx, "t-1", &a2a.PushNotificationConfig{
		URL:   "https://example.com/hook",
		Token: "secret",
		Authentication: &a2a.PushNotificationAuthenticationInfo{
			Schemes: []string{"bearer"},
		},
	})
	if err != nil {
		t.Fatalf("failed to save config: %v", err)
	}
	if stored.ID == "" {
		t.Fatal("expected generated config id")
	}

	got, err := push.Get(ctx, "t-1", stored.ID)
	if err != nil {
		t.Fatalf("failed to get config: %v", err)
	}
	if got.URL != "https://example.com/hook" || got.Token != "secret" {
		t.Errorf("expected config to round-trip, got %+v", got)
	}
	if got.Authentication == nil || len(got.Authentication.Schemes) != 1 {
		t.Errorf("expected authentication to round-trip, got %+v", got.Authentication)
	}

	// Upsert keeps the original position.
	if _, err := push.Save(ctx, "t-1", &a2a.PushNotificationConfig{ID: "cfg-2", URL: "https://b.example"}); err != nil {
		t.Fatalf("failed to save config: %v", err)
	}
	if _, err := push.Save(ctx, "t-1", &a2a.PushNotificationConfig{ID: stored.ID, URL: "https://a2.example"}); err != nil {
		t.Fatalf("failed to upsert config: %v", err)
	}
	configs, err := push.List(ctx, "t-1")
	if err != nil {
		t.Fatalf("failed to list configs: %v", err)
	}
	if len(configs) != 2 {
		t.Fatalf("expected 2 configs, got %d", len(configs))
	}
	if configs[0].ID != stored.ID || configs[0].URL != "https://a2.example" {
		t.Errorf("expected upsert in place, got %+v", configs[0])
	}

	if err := push.Delete(ctx, "t-1", stored.ID); err != nil {
		t.Fatalf("failed to delete config: %v", err)
	}
	if _, err := push.Get(ctx, "t-1", stored.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := push.Delete(ctx, "t-1", stored.ID); err != nil {
		t.Errorf("expected repeated delete to succeed, got %v", err)
	}
}
