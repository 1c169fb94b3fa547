package push

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/taskmesh/a2ad/internal/common/logger"
	"github.com/taskmesh/a2ad/pkg/a2a"
)

func completedTask(id string) *a2a.Task {
	return &a2a.Task{
		ID:        id,
		ContextID: "ctx-1",
		Status:    a2a.NewStatus(a2a.TaskStateCompleted),
	}
}

func TestWebhookSender_Send(t *testing.T) {
	type capture struct {
		method      string
		contentType string
		token       string
		body        []byte
	}
	got := make(chan capture, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got <- capture{
			method:      r.Method,
			contentType: r.Header.Get("Content-Type"),
			token:       r.Header.Get(TokenHeader),
			body:        body,
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender := NewWebhookSender(0, logger.NewNop())
	config := &a2a.PushNotificationConfig{
		ID:    "cfg-1",
		URL:   srv.URL,
		Token: "secret-token",
	}

	if err := sender.Send(context.Background(), config, completedTask("task-1")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	c := <-got
	if c.method != "POST" {
		t.Errorf("expected POST, got %s", c.method)
	}
	if c.contentType != "application/json" {
		t.Errorf("expected application/json, got %s", c.contentType)
	}
	if c.token != "secret-token" {
		t.Errorf("expected token header secret-token, got %q", c.token)
	}

	var delivered a2a.Task
	if err := json.Unmarshal(c.body, &delivered); err != nil {
		t.Fatalf("failed to decode delivered task: %v", err)
	}
	if delivered.ID != "task-1" {
		t.Errorf("expected task id task-1, got %s", delivered.ID)
	}
	if delivered.Status.State != a2a.TaskStateCompleted {
		t.Errorf("expected completed state, got %s", delivered.Status.State)
	}
}

func TestWebhookSender_BearerAuth(t *testing.T) {
	got := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sender := NewWebhookSender(0, logger.NewNop())
	config := &a2a.PushNotificationConfig{
		URL: srv.URL,
		Authentication: &a2a.PushNotificationAuthenticationInfo{
			Schemes:     []string{"Bearer"},
			Credentials: "abc123",
		},
	}

	if err := sender.Send(context.Background(), config, completedTask("task-1")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if auth := <-got; auth != "Bearer abc123" {
		t.Errorf("expected bearer header, got %q", auth)
	}
}

func TestWebhookSender_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	sender := NewWebhookSender(0, logger.NewNop())
	config := &a2a.PushNotificationConfig{URL: srv.URL}

	if err := sender.Send(context.Background(), config, completedTask("task-1")); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}

func TestLogSender_Records(t *testing.T) {
	sender := NewLogSender(logger.NewNop())
	config := &a2a.PushNotificationConfig{ID: "cfg-1", URL: "https://example.com/hook"}

	if err := sender.Send(context.Background(), config, completedTask("task-1")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if err := sender.Send(context.Background(), config, completedTask("task-2")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	deliveries := sender.Deliveries()
	if len(deliveries) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(deliveries))
	}
	if deliveries[0].Task.ID != "task-1" || deliveries[1].Task.ID != "task-2" {
		t.Errorf("unexpected delivery order: %s, %s", deliveries[0].Task.ID, deliveries[1].Task.ID)
	}
	if deliveries[0].Config.ID != "cfg-1" {
		t.Errorf("expected config cfg-1, got %s", deliveries[0].Config.ID)
	}
}
