// Package server implements the A2A request handler: the nine protocol
// methods bound to the stores, the session manager, and the hosted
// executor. Transports decode JSON-RPC envelopes and route unary methods
// through Call and streaming methods through Stream; the handler itself
// knows nothing about HTTP or WebSockets.
package server

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/taskmesh/a2ad/internal/agent"
	"github.com/taskmesh/a2ad/internal/common/keyedmutex"
	"github.com/taskmesh/a2ad/internal/common/logger"
	"github.com/taskmesh/a2ad/internal/session"
	"github.com/taskmesh/a2ad/internal/store"
	"github.com/taskmesh/a2ad/pkg/a2a"
	"github.com/taskmesh/a2ad/pkg/a2a/jsonrpc"
)

// Options bundles the handler's collaborators and policy.
type Options struct {
	Executor    agent.Executor
	Sessions    *session.Manager
	Locks       *keyedmutex.Mutex
	Tasks       store.TaskStore
	Messages    store.MessageStore
	PushConfigs store.PushConfigStore

	// Card is the public agent card served on the well-known route.
	// ExtendedCard backs agent/getAuthenticatedExtendedCard; nil
	// disables the method. AuthToken, when set, must be presented as a
	// bearer token to fetch the extended card.
	Card         *a2a.AgentCard
	ExtendedCard *a2a.AgentCard
	AuthToken    string

	// PushEnabled gates the pushNotificationConfig method group.
	PushEnabled bool

	// SubscriberBuffer sizes per-subscriber event channels. Zero or
	// negative selects session.DefaultSubscriberBuffer.
	SubscriberBuffer int

	Logger *logger.Logger
}

// Handler serves the A2A protocol methods.
type Handler struct {
	logger   *logger.Logger
	executor agent.Executor
	sessions *session.Manager
	locks    *keyedmutex.Mutex
	tasks    store.TaskStore
	messages store.MessageStore
	push     store.PushConfigStore

	card         *a2a.AgentCard
	extendedCard *a2a.AgentCard
	authToken    string
	pushEnabled  bool
	bufSize      int
}

// New creates a handler from its options.
func New(opts Options) *Handler {
	bufSize := opts.SubscriberBuffer
	if bufSize <= 0 {
		bufSize = session.DefaultSubscriberBuffer
	}
	return &Handler{
		logger:       opts.Logger.WithFields(zap.String("component", "a2a-handler")),
		executor:     opts.Executor,
		sessions:     opts.Sessions,
		locks:        opts.Locks,
		tasks:        opts.Tasks,
		messages:     opts.Messages,
		push:         opts.PushConfigs,
		card:         opts.Card,
		extendedCard: opts.ExtendedCard,
		authToken:    opts.AuthToken,
		pushEnabled:  opts.PushEnabled,
		bufSize:      bufSize,
	}
}

// Card returns the public agent card.
func (h *Handler) Card() *a2a.AgentCard { return h.card }

// Call executes one unary method and returns its result object. Streaming
// methods are rejected here; route them through Stream.
func (h *Handler) Call(ctx context.Context, call *agent.CallContext, method string, params json.RawMessage) (interface{}, error) {
	if call == nil {
		call = agent.NewCallContext(nil)
	}

	switch method {
	case jsonrpc.MethodMessageSend:
		p, err := decodeParams[a2a.MessageSendParams](params)
		if err != nil {
			return nil, err
		}
		return h.MessageSend(ctx, call, p)
	case jsonrpc.MethodTasksGet:
		p, err := decodeParams[a2a.TaskQueryParams](params)
		if err != nil {
			return nil, err
		}
		return h.TasksGet(ctx, call, p)
	case jsonrpc.MethodTasksCancel:
		p, err := decodeParams[a2a.TaskIDParams](params)
		if err != nil {
			return nil, err
		}
		return h.TasksCancel(ctx, call, p)
	case jsonrpc.MethodPushConfigSet:
		p, err := decodeParams[a2a.TaskPushNotificationConfig](params)
		if err != nil {
			return nil, err
		}
		return h.PushConfigSet(ctx, call, p)
	case jsonrpc.MethodPushConfigGet:
		p, err := decodeParams[a2a.TaskPushNotificationConfigParams](params)
		if err != nil {
			return nil, err
		}
		return h.PushConfigGet(ctx, call, p)
	case jsonrpc.MethodPushConfigList:
		p, err := decodeParams[a2a.TaskIDParams](params)
		if err != nil {
			return nil, err
		}
		return h.PushConfigList(ctx, call, p)
	case jsonrpc.MethodPushConfigDelete:
		p, err := decodeParams[a2a.TaskPushNotificationConfigParams](params)
		if err != nil {
			return nil, err
		}
		if err := h.PushConfigDelete(ctx, call, p); err != nil {
			return nil, err
		}
		return json.RawMessage("null"), nil
	case jsonrpc.MethodAgentExtendedCard:
		return h.ExtendedCard(ctx, call)
	case jsonrpc.MethodMessageStream, jsonrpc.MethodTasksResubscribe:
		return nil, a2a.InvalidRequest("method requires a streaming transport: " + method)
	default:
		return nil, a2a.MethodNotFound(method)
	}
}

// Stream executes one streaming method and returns its event stream.
func (h *Handler) Stream(ctx context.Context, call *agent.CallContext, method string, params json.RawMessage) (*EventStream, error) {
	if call == nil {
		call = agent.NewCallContext(nil)
	}

	switch method {
	case jsonrpc.MethodMessageStream:
		p, err := decodeParams[a2a.MessageSendParams](params)
		if err != nil {
			return nil, err
		}
		return h.MessageStream(ctx, call, p)
	case jsonrpc.MethodTasksResubscribe:
		p, err := decodeParams[a2a.TaskIDParams](params)
		if err != nil {
			return nil, err
		}
		return h.TasksResubscribe(ctx, call, p)
	default:
		if jsonrpc.KnownMethod(method) {
			return nil, a2a.InvalidRequest("method does not stream: " + method)
		}
		return nil, a2a.MethodNotFound(method)
	}
}

func decodeParams[T any](raw json.RawMessage) (*T, error) {
	if len(raw) == 0 {
		return nil, a2a.InvalidParams("params are required")
	}
	var p T
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, a2a.InvalidParams(err.Error())
	}
	return &p, nil
}
