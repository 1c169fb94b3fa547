package agent

import (
	"net/http"
	"sync"

	"github.com/taskmesh/a2ad/internal/store"
	"github.com/taskmesh/a2ad/pkg/a2a"
)

// RequestContext is what the handler hands the executor for one
// invocation.
type RequestContext struct {
	// Params is the message/send or message/stream request that started
	// the work.
	Params *a2a.MessageSendParams

	// TaskID and ContextID are resolved before the executor starts;
	// generated when the client did not supply them. A task only comes
	// into existence if the executor emits one.
	TaskID    string
	ContextID string

	// Task is the stored snapshot when the request addresses an
	// existing task, nil for new work.
	Task *a2a.Task

	// Tasks and Messages are storage views scoped to ContextID.
	Tasks    *store.ContextTaskStore
	Messages *store.ContextMessageStore

	// Call carries transport headers and call-scoped state.
	Call *CallContext
}

// CallContext carries transport-level call data: the request headers
// and an opaque state map shared by everything handling one call. It is
// safe for concurrent use.
//
// State keys follow the context.Context convention: an unexported type
// owned by the writer, with readers type-asserting at access.
type CallContext struct {
	headers http.Header

	mu    sync.RWMutex
	state map[any]any
}

// NewCallContext creates a CallContext with the given transport headers.
// A nil header map is treated as empty.
func NewCallContext(headers http.Header) *CallContext {
	if headers == nil {
		headers = http.Header{}
	}
	return &CallContext{
		headers: headers,
		state:   make(map[any]any),
	}
}

// Header returns the first value for name, or "" when absent.
func (c *CallContext) Header(name string) string {
	return c.headers.Get(name)
}

// Headers returns the transport headers of the call.
func (c *CallContext) Headers() http.Header {
	return c.headers
}

// Value returns the state stored under key.
func (c *CallContext) Value(key any) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.state[key]
	return v, ok
}

// SetValue stores val under key.
func (c *CallContext) SetValue(key, val any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state[key] = val
}
