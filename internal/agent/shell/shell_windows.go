//go:build windows

// Package shell provides an executor that bridges a local command into
// the task lifecycle. Windows has no PTY support in this build; the
// executor fails every request.
package shell

import (
	"context"
	"errors"

	"github.com/taskmesh/a2ad/internal/agent"
	"github.com/taskmesh/a2ad/internal/common/logger"
)

var errUnsupported = errors.New("shell executor is not supported on windows")

// Executor is the unsupported Windows placeholder.
type Executor struct {
	log *logger.Logger
}

var _ agent.Executor = (*Executor)(nil)

// New creates the placeholder executor.
func New(command string, log *logger.Logger) *Executor {
	return &Executor{log: log}
}

// Execute always fails.
func (e *Executor) Execute(context.Context, *agent.RequestContext, agent.EventProcessor) error {
	return errUnsupported
}

// Cancel always fails.
func (e *Executor) Cancel(context.Context, *agent.RequestContext, agent.EventProcessor) error {
	return errUnsupported
}
