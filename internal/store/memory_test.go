package store

import (
	"context"
	"errors"
	"testing"

	"github.com/taskmesh/a2ad/pkg/a2a"
)

func newTask(id, contextID string, state a2a.TaskState) *a2a.Task {
	return &a2a.Task{
		ID:        id,
		ContextID: contextID,
		Status:    a2a.NewStatus(state),
	}
}

func TestMemoryTaskStore_CRUD(t *testing.T) {
	s := NewMemoryTaskStore()
	ctx := context.Background()

	// Save + Get
	task := newTask("t-1", "c-1", a2a.TaskStateSubmitted)
	if err := s.Save(ctx, task); err != nil {
		t.Fatalf("failed to save task: %v", err)
	}
	got, err := s.Get(ctx, "t-1")
	if err != nil {
		t.Fatalf("failed to get task: %v", err)
	}
	if got.ContextID != "c-1" {
		t.Errorf("expected context c-1, got %s", got.ContextID)
	}

	// Update
	updated, err := s.Update(ctx, "t-1", func(task *a2a.Task) error {
		task.Status = a2a.NewStatus(a2a.TaskStateWorking)
		task.History = append(task.History, &a2a.Message{
			MessageID: "m-1",
			Role:      a2a.RoleUser,
			Parts:     []a2a.Part{a2a.NewTextPart("hi")},
			ContextID: "c-1",
		})
		return nil
	})
	if err != nil {
		t.Fatalf("failed to update task: %v", err)
	}
	if updated.Status.State != a2a.TaskStateWorking {
		t.Errorf("expected working state, got %s", updated.Status.State)
	}
	if len(updated.History) != 1 {
		t.Errorf("expected 1 history entry, got %d", len(updated.History))
	}

	// Delete
	if err := s.Delete(ctx, "t-1"); err != nil {
		t.Fatalf("failed to delete task: %v", err)
	}
	if _, err := s.Get(ctx, "t-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.Delete(ctx, "t-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestMemoryTaskStore_GetMissing(t *testing.T) {
	s := NewMemoryTaskStore()
	if _, err := s.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryTaskStore_UpdateMutatorError(t *testing.T) {
	s := NewMemoryTaskStore()
	ctx := context.Background()
	if err := s.Save(ctx, newTask("t-1", "c-1", a2a.TaskStateWorking)); err != nil {
		t.Fatalf("failed to save task: %v", err)
	}

	boom := errors.New("boom")
	if _, err := s.Update(ctx, "t-1", func(*a2a.Task) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected mutator error, got %v", err)
	}

	// The failed mutation must not have been persisted.
	got, err := s.Get(ctx, "t-1")
	if err != nil {
		t.Fatalf("failed to get task: %v", err)
	}
	if got.Status.State != a2a.TaskStateWorking {
		t.Errorf("expected working state, got %s", got.Status.State)
	}
}

func TestMemoryTaskStore_TerminalTransition(t *testing.T) {
	s := NewMemoryTaskStore()
	ctx := context.Background()
	if err := s.Save(ctx, newTask("t-1", "c-1", a2a.TaskStateCompleted)); err != nil {
		t.Fatalf("failed to save task: %v", err)
	}

	// Moving a terminal task to another state is rejected.
	_, err := s.Update(ctx, "t-1", func(task *a2a.Task) error {
		task.Status = a2a.NewStatus(a2a.TaskStateWorking)
		return nil
	})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}

	// A mutation that keeps the terminal state is allowed.
	if _, err := s.Update(ctx, "t-1", func(task *a2a.Task) error {
		task.Metadata = map[string]interface{}{"note": "done"}
		return nil
	}); err != nil {
		t.Errorf("expected state-preserving update to succeed, got %v", err)
	}
}

func TestMemoryTaskStore_CloneIsolation(t *testing.T) {
	s := NewMemoryTaskStore()
	ctx := context.Background()

	task := newTask("t-1", "c-1", a2a.TaskStateWorking)
	if err := s.Save(ctx, task); err != nil {
		t.Fatalf("failed to save task: %v", err)
	}

	// Mutating the saved value or a returned value must not leak into
	// the store.
	task.Status.State = a2a.TaskStateFailed
	got, err := s.Get(ctx, "t-1")
	if err != nil {
		t.Fatalf("failed to get task: %v", err)
	}
	got.History = append(got.History, &a2a.Message{MessageID: "rogue"})

	again, err := s.Get(ctx, "t-1")
	if err != nil {
		t.Fatalf("failed to get task: %v", err)
	}
	if again.Status.State != a2a.TaskStateWorking {
		t.Errorf("expected working state, got %s", again.Status.State)
	}
	if len(again.History) != 0 {
		t.Errorf("expected empty history, got %d entries", len(again.History))
	}
}

func TestMemoryTaskStore_ListByContext(t *testing.T) {
	s := NewMemoryTaskStore()
	ctx := context.Background()

	for _, task := range []*a2a.Task{
		newTask("t-1", "c-1", a2a.TaskStateSubmitted),
		newTask("t-2", "c-2", a2a.TaskStateSubmitted),
		newTask("t-3", "c-1", a2a.TaskStateWorking),
	} {
		if err := s.Save(ctx, task); err != nil {
			t.Fatalf("failed to save task %s: %v", task.ID, err)
		}
	}

	tasks, err := s.ListByContext(ctx, "c-1")
	if err != nil {
		t.Fatalf("failed to list tasks: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
	if tasks[0].ID != "t-1" || tasks[1].ID != "t-3" {
		t.Errorf("expected insertion order t-1, t-3, got %s, %s", tasks[0].ID, tasks[1].ID)
	}

	empty, err := s.ListByContext(ctx, "c-absent")
	if err != nil {
		t.Fatalf("failed to list tasks: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected no tasks, got %d", len(empty))
	}
}

func TestMemoryMessageStore_Ordering(t *testing.T) {
	s := NewMemoryMessageStore()
	ctx := context.Background()

	for _, id := range []string{"m-1", "m-2", "m-3"} {
		msg := &a2a.Message{MessageID: id, Role: a2a.RoleUser, ContextID: "c-1"}
		if err := s.Save(ctx, msg); err != nil {
			t.Fatalf("failed to save message %s: %v", id, err)
		}
	}

	history, err := s.GetByContext(ctx, "c-1")
	if err != nil {
		t.Fatalf("failed to get history: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(history))
	}
	for i, id := range []string{"m-1", "m-2", "m-3"} {
		if history[i].MessageID != id {
			t.Errorf("expected message %s at index %d, got %s", id, i, history[i].MessageID)
		}
	}

	// Unknown contexts yield an empty history.
	none, err := s.GetByContext(ctx, "c-absent")
	if err != nil {
		t.Fatalf("failed to get history: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected empty history, got %d messages", len(none))
	}
}

func TestMemoryMessageStore_ReplaceAndDelete(t *testing.T) {
	s := NewMemoryMessageStore()
	ctx := context.Background()

	if err := s.Save(ctx, &a2a.Message{MessageID: "m-1", ContextID: "c-1"}); err != nil {
		t.Fatalf("failed to save message: %v", err)
	}
	if err := s.ReplaceByContext(ctx, "c-1", []*a2a.Message{
		{MessageID: "m-2", ContextID: "c-1"},
	}); err != nil {
		t.Fatalf("failed to replace history: %v", err)
	}

	history, _ := s.GetByContext(ctx, "c-1")
	if len(history) != 1 || history[0].MessageID != "m-2" {
		t.Fatalf("expected replaced history [m-2], got %d messages", len(history))
	}

	if err := s.DeleteByContext(ctx, "c-1"); err != nil {
		t.Fatalf("failed to delete history: %v", err)
	}
	history, _ = s.GetByContext(ctx, "c-1")
	if len(history) != 0 {
		t.Errorf("expected empty history after delete, got %d messages", len(history))
	}
}

func TestMemoryPushConfigStore_SaveAssignsID(t *testing.T) {
	s := NewMemoryPushConfigStore()
	ctx := context.Background()

	stored, err := s.Save(ctx, "t-1", &a2a.PushNotificationConfig{URL: "https://example.com/hook"})
	if err != nil {
		t.Fatalf("failed to save config: %v", err)
	}
	if stored.ID == "" {
		t.Fatal("expected generated config id")
	}

	got, err := s.Get(ctx, "t-1", stored.ID)
	if err != nil {
		t.Fatalf("failed to get config: %v", err)
	}
	if got.URL != "https://example.com/hook" {
		t.Errorf("expected stored url, got %s", got.URL)
	}
}

func TestMemoryPushConfigStore_Upsert(t *testing.T) {
	s := NewMemoryPushConfigStore()
	ctx := context.Background()

	if _, err := s.Save(ctx, "t-1", &a2a.PushNotificationConfig{ID: "cfg-1", URL: "https://a.example"}); err != nil {
		t.Fatalf("failed to save config: %v", err)
	}
	if _, err := s.Save(ctx, "t-1", &a2a.PushNotificationConfig{ID: "cfg-2", URL: "https://b.example"}); err != nil {
		t.Fatalf("failed to save config: %v", err)
	}
	if _, err := s.Save(ctx, "t-1", &a2a.PushNotificationConfig{ID: "cfg-1", URL: "https://a2.example"}); err != nil {
		t.Fatalf("failed to upsert config: %v", err)
	}

	configs, err := s.List(ctx, "t-1")
	if err != nil {
		t.Fatalf("failed to list configs: %v", err)
	}
	if len(configs) != 2 {
		t.Fatalf("expected 2 configs after upsert, got %d", len(configs))
	}
	if configs[0].ID != "cfg-1" || configs[0].URL != "https://a2.example" {
		t.Errorf("expected cfg-1 updated in place, got %s %s", configs[0].ID, configs[0].URL)
	}
	if configs[1].ID != "cfg-2" {
		t.Errorf("expected cfg-2 second, got %s", configs[1].ID)
	}
}

func TestMemoryPushConfigStore_Delete(t *testing.T) {
	s := NewMemoryPushConfigStore()
	ctx := context.Background()

	if _, err := s.Save(ctx, "t-1", &a2a.PushNotificationConfig{ID: "cfg-1", URL: "https://a.example"}); err != nil {
		t.Fatalf("failed to save config: %v", err)
	}
	if err := s.Delete(ctx, "t-1", "cfg-1"); err != nil {
		t.Fatalf("failed to delete config: %v", err)
	}
	if _, err := s.Get(ctx, "t-1", "cfg-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}

	// Idempotent, including for unknown tasks.
	if err := s.Delete(ctx, "t-1", "cfg-1"); err != nil {
		t.Errorf("expected repeated delete to succeed, got %v", err)
	}
	if err := s.Delete(ctx, "t-absent", "cfg-1"); err != nil {
		t.Errorf("expected delete for unknown task to succeed, got %v", err)
	}
}
