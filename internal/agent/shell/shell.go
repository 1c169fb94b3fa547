//go:build !windows

// Package shell provides an executor that bridges a local command into
// the task lifecycle: the incoming message text is piped to the command
// through a PTY and its output streams back as artifact chunks.
package shell

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/creack/pty"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskmesh/a2ad/internal/agent"
	"github.com/taskmesh/a2ad/internal/common/logger"
	"github.com/taskmesh/a2ad/pkg/a2a"
)

const (
	outputArtifactName = "output"
	readBufferSize     = 4096
	killGracePeriod    = 2 * time.Second
)

// Executor runs a configured shell command per task.
type Executor struct {
	command string
	log     *logger.Logger

	mu   sync.Mutex
	runs map[string]*run
}

type run struct {
	cmd  *exec.Cmd
	ptmx *os.File
	done chan struct{}
}

var _ agent.Executor = (*Executor)(nil)

// New creates a shell executor running command via /bin/sh -c.
func New(command string, log *logger.Logger) *Executor {
	return &Executor{
		command: command,
		log:     log,
		runs:    make(map[string]*run),
	}
}

// Execute pipes the message text to the command and streams its output.
func (e *Executor) Execute(ctx context.Context, reqCtx *agent.RequestContext, processor agent.EventProcessor) error {
	snapshot := &a2a.Task{
		ID:        reqCtx.TaskID,
		ContextID: reqCtx.ContextID,
		Status:    a2a.NewStatus(a2a.TaskStateSubmitted),
	}
	if reqCtx.Params != nil && reqCtx.Params.Message != nil {
		snapshot.History = []*a2a.Message{reqCtx.Params.Message}
	}
	if err := processor.SendTaskEvent(ctx, snapshot); err != nil {
		return err
	}
	if err := processor.SendTaskEvent(ctx, &a2a.TaskStatusUpdateEvent{
		TaskID:    reqCtx.TaskID,
		ContextID: reqCtx.ContextID,
		Status:    a2a.NewStatus(a2a.TaskStateWorking),
	}); err != nil {
		return err
	}

	cmd := exec.Command("/bin/sh", "-c", e.command)
	ptmx, err := pty.Start(cmd)
	if err != nil {
		return e.fail(ctx, reqCtx, processor, fmt.Errorf("failed to start command: %w", err))
	}
	r := &run{cmd: cmd, ptmx: ptmx, done: make(chan struct{})}
	e.register(reqCtx.TaskID, r)
	defer e.unregister(reqCtx.TaskID)

	e.log.Info("shell task started",
		zap.String("task_id", reqCtx.TaskID),
		zap.Int("pid", cmd.Process.Pid))

	// Feed the message text through the PTY, then EOT so line-buffered
	// commands see end of input.
	if reqCtx.Params != nil && reqCtx.Params.Message != nil {
		if text := reqCtx.Params.Message.Text(); text != "" {
			_, _ = ptmx.WriteString(text + "\n")
		}
	}
	_, _ = ptmx.Write([]byte{0x04})

	artifactID := uuid.New().String()
	chunks := 0
	buf := make([]byte, readBufferSize)
	for {
		n, readErr := ptmx.Read(buf)
		if n > 0 {
			event := &a2a.TaskArtifactUpdateEvent{
				TaskID:    reqCtx.TaskID,
				ContextID: reqCtx.ContextID,
				Artifact: &a2a.Artifact{
					ArtifactID: artifactID,
					Name:       outputArtifactName,
					Parts:      []a2a.Part{a2a.NewTextPart(string(buf[:n]))},
				},
				Append: chunks > 0,
			}
			chunks++
			if err := processor.SendTaskEvent(ctx, event); err != nil {
				// The stream is gone; stop the command and drain.
				_ = ptmx.Close()
				break
			}
		}
		if readErr != nil {
			// A closed PTY reads as EIO once the child exits; both mean
			// end of output.
			break
		}
	}

	waitErr := cmd.Wait()
	close(r.done)
	_ = ptmx.Close()

	if ctx.Err() != nil {
		return ctx.Err()
	}

	if chunks > 0 {
		_ = processor.SendTaskEvent(ctx, &a2a.TaskArtifactUpdateEvent{
			TaskID:    reqCtx.TaskID,
			ContextID: reqCtx.ContextID,
			Artifact:  &a2a.Artifact{ArtifactID: artifactID, Name: outputArtifactName},
			Append:    true,
			LastChunk: true,
		})
	}

	if waitErr != nil {
		return e.fail(ctx, reqCtx, processor, fmt.Errorf("command exited: %w", waitErr))
	}

	err = processor.SendTaskEvent(ctx, &a2a.TaskStatusUpdateEvent{
		TaskID:    reqCtx.TaskID,
		ContextID: reqCtx.ContextID,
		Status:    a2a.NewStatus(a2a.TaskStateCompleted),
		Final:     true,
	})
	if errors.Is(err, agent.ErrProcessorClosed) {
		// A racing cancel already finalized the task.
		return nil
	}
	return err
}

// Cancel stops the running command and marks the task canceled.
func (e *Executor) Cancel(ctx context.Context, reqCtx *agent.RequestContext, processor agent.EventProcessor) error {
	e.mu.Lock()
	r := e.runs[reqCtx.TaskID]
	e.mu.Unlock()

	if r != nil {
		// Closing the PTY sends SIGHUP; escalate if the process ignores
		// it.
		_ = r.ptmx.Close()
		select {
		case <-r.done:
		case <-time.After(killGracePeriod):
			e.log.Warn("shell task ignored hangup, killing",
				zap.String("task_id", reqCtx.TaskID))
			if r.cmd.Process != nil {
				_ = r.cmd.Process.Kill()
			}
		}
	}

	cancelMsg := &a2a.Message{
		MessageID: uuid.New().String(),
		Role:      a2a.RoleAgent,
		Parts:     []a2a.Part{a2a.NewTextPart("Task canceled")},
		TaskID:    reqCtx.TaskID,
		ContextID: reqCtx.ContextID,
	}
	err := processor.SendTaskEvent(ctx, &a2a.TaskStatusUpdateEvent{
		TaskID:    reqCtx.TaskID,
		ContextID: reqCtx.ContextID,
		Status:    a2a.NewStatusWithMessage(a2a.TaskStateCanceled, cancelMsg),
		Final:     true,
	})
	if errors.Is(err, agent.ErrProcessorClosed) {
		return nil
	}
	return err
}

func (e *Executor) fail(ctx context.Context, reqCtx *agent.RequestContext, processor agent.EventProcessor, cause error) error {
	failMsg := &a2a.Message{
		MessageID: uuid.New().String(),
		Role:      a2a.RoleAgent,
		Parts:     []a2a.Part{a2a.NewTextPart(cause.Error())},
		TaskID:    reqCtx.TaskID,
		ContextID: reqCtx.ContextID,
	}
	err := processor.SendTaskEvent(ctx, &a2a.TaskStatusUpdateEvent{
		TaskID:    reqCtx.TaskID,
		ContextID: reqCtx.ContextID,
		Status:    a2a.NewStatusWithMessage(a2a.TaskStateFailed, failMsg),
		Final:     true,
	})
	if err != nil && !errors.Is(err, agent.ErrProcessorClosed) {
		return err
	}
	return nil
}

func (e *Executor) register(taskID string, r *run) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.runs[taskID] = r
}

func (e *Executor) unregister(taskID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.runs, taskID)
}
