//go:build !windows

package shell

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmesh/a2ad/internal/agent"
	"github.com/taskmesh/a2ad/internal/common/logger"
	"github.com/taskmesh/a2ad/pkg/a2a"
)

type recordingProcessor struct {
	mu     sync.Mutex
	events []a2a.Event
}

var _ agent.EventProcessor = (*recordingProcessor)(nil)

func (p *recordingProcessor) SendMessage(_ context.Context, message *a2a.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, message)
	return nil
}

func (p *recordingProcessor) SendTaskEvent(_ context.Context, event a2a.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingProcessor) Close(context.Context) error { return nil }

func (p *recordingProcessor) snapshot() []a2a.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]a2a.Event(nil), p.events...)
}

func newRequestContext(text string) *agent.RequestContext {
	return &agent.RequestContext{
		Params: &a2a.MessageSendParams{
			Message: &a2a.Message{
				MessageID: "m-1",
				Role:      a2a.RoleUser,
				Parts:     []a2a.Part{a2a.NewTextPart(text)},
				ContextID: "c-1",
			},
		},
		TaskID:    "t-1",
		ContextID: "c-1",
	}
}

// artifactText joins the text parts of every artifact update in order.
func artifactText(events []a2a.Event) string {
	var sb strings.Builder
	for _, ev := range events {
		update, ok := ev.(*a2a.TaskArtifactUpdateEvent)
		if !ok || update.Artifact == nil {
			continue
		}
		for _, part := range update.Artifact.Parts {
			if tp, ok := part.(*a2a.TextPart); ok {
				sb.WriteString(tp.Text)
			}
		}
	}
	return sb.String()
}

func TestExecute_StreamsCommandOutput(t *testing.T) {
	executor := New("cat", logger.NewNop())
	processor := &recordingProcessor{}

	err := executor.Execute(context.Background(), newRequestContext("hello"), processor)
	require.NoError(t, err)

	events := processor.snapshot()
	require.GreaterOrEqual(t, len(events), 5)

	task, ok := events[0].(*a2a.Task)
	require.True(t, ok, "first event should be a task snapshot")
	assert.Equal(t, "t-1", task.ID)
	assert.Equal(t, a2a.TaskStateSubmitted, task.Status.State)

	working, ok := events[1].(*a2a.TaskStatusUpdateEvent)
	require.True(t, ok, "second event should be a status update")
	assert.Equal(t, a2a.TaskStateWorking, working.Status.State)

	first, ok := events[2].(*a2a.TaskArtifactUpdateEvent)
	require.True(t, ok, "third event should be an artifact chunk")
	assert.False(t, first.Append, "first chunk opens the artifact")

	trailer, ok := events[len(events)-2].(*a2a.TaskArtifactUpdateEvent)
	require.True(t, ok, "next-to-last event should close the artifact")
	assert.True(t, trailer.LastChunk)
	assert.True(t, trailer.Append)
	assert.Equal(t, first.Artifact.ArtifactID, trailer.Artifact.ArtifactID)

	final, ok := events[len(events)-1].(*a2a.TaskStatusUpdateEvent)
	require.True(t, ok, "last event should be a status update")
	assert.Equal(t, a2a.TaskStateCompleted, final.Status.State)
	assert.True(t, final.Final)

	// The PTY echoes the input line and cat repeats it.
	assert.Contains(t, artifactText(events), "hello")
}

func TestExecute_FailsOnNonZeroExit(t *testing.T) {
	executor := New("exit 3", logger.NewNop())
	processor := &recordingProcessor{}

	err := executor.Execute(context.Background(), newRequestContext(""), processor)
	require.NoError(t, err)

	events := processor.snapshot()
	require.Len(t, events, 3)

	final, ok := events[2].(*a2a.TaskStatusUpdateEvent)
	require.True(t, ok, "last event should be a status update")
	assert.Equal(t, a2a.TaskStateFailed, final.Status.State)
	assert.True(t, final.Final)
	require.NotNil(t, final.Status.Message)
	assert.Contains(t, final.Status.Message.Text(), "command exited")
}

func TestCancel_StopsRunningCommand(t *testing.T) {
	executor := New("echo started; sleep 30", logger.NewNop())
	processor := &recordingProcessor{}
	reqCtx := newRequestContext("")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- executor.Execute(ctx, reqCtx, processor)
	}()

	// The first artifact chunk proves the command is running.
	require.Eventually(t, func() bool {
		return strings.Contains(artifactText(processor.snapshot()), "started")
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, executor.Cancel(context.Background(), reqCtx, processor))

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("execute did not return after cancel")
	}

	events := processor.snapshot()
	final, ok := events[len(events)-1].(*a2a.TaskStatusUpdateEvent)
	require.True(t, ok, "last event should be a status update")
	assert.Equal(t, a2a.TaskStateCanceled, final.Status.State)
	assert.True(t, final.Final)
	require.NotNil(t, final.Status.Message)
	assert.Equal(t, "Task canceled", final.Status.Message.Text())
}

func TestCancel_NoRunningCommand(t *testing.T) {
	executor := New("cat", logger.NewNop())
	processor := &recordingProcessor{}

	err := executor.Cancel(context.Background(), newRequestContext(""), processor)
	require.NoError(t, err)

	events := processor.snapshot()
	require.Len(t, events, 1)
	final, ok := events[0].(*a2a.TaskStatusUpdateEvent)
	require.True(t, ok)
	assert.Equal(t, a2a.TaskStateCanceled, final.Status.State)
	assert.True(t, final.Final)
}