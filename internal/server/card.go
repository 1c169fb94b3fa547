package server

import (
	"context"

	"github.com/taskmesh/a2ad/internal/agent"
	"github.com/taskmesh/a2ad/pkg/a2a"
	"github.com/taskmesh/a2ad/pkg/a2a/jsonrpc"
)

// ExtendedCard runs the agent/getAuthenticatedExtendedCard method. The
// method is off unless an extended card was configured; when an auth token
// is configured the caller must present it as a bearer token.
func (h *Handler) ExtendedCard(ctx context.Context, call *agent.CallContext) (*a2a.AgentCard, error) {
	if call == nil {
		call = agent.NewCallContext(nil)
	}
	if h.extendedCard == nil {
		return nil, a2a.UnsupportedOperation(jsonrpc.MethodAgentExtendedCard)
	}
	if h.authToken != "" && call.Header("Authorization") != "Bearer "+h.authToken {
		return nil, a2a.AuthenticationRequired()
	}
	return h.extendedCard, nil
}
