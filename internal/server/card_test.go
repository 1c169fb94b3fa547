package server

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmesh/a2ad/internal/agent"
	"github.com/taskmesh/a2ad/pkg/a2a"
)

func TestExtendedCard_Disabled(t *testing.T) {
	f := newHandlerFixture(t)

	_, err := f.handler.ExtendedCard(context.Background(), nil)
	requireErrorCode(t, err, a2a.CodeUnsupportedOperation)
}

func TestExtendedCard_RequiresBearerToken(t *testing.T) {
	extended := &a2a.AgentCard{Name: "fixture-agent", Description: "with internal skills"}
	f := newHandlerFixture(t, func(o *Options) {
		o.ExtendedCard = extended
		o.AuthToken = "sekrit"
	})

	_, err := f.handler.ExtendedCard(context.Background(), nil)
	requireErrorCode(t, err, a2a.CodeAuthenticationRequired)

	wrong := agent.NewCallContext(http.Header{"Authorization": []string{"Bearer nope"}})
	_, err = f.handler.ExtendedCard(context.Background(), wrong)
	requireErrorCode(t, err, a2a.CodeAuthenticationRequired)

	right := agent.NewCallContext(http.Header{"Authorization": []string{"Bearer sekrit"}})
	card, err := f.handler.ExtendedCard(context.Background(), right)
	require.NoError(t, err)
	assert.Equal(t, "with internal skills", card.Description)
}

func TestExtendedCard_NoTokenConfigured(t *testing.T) {
	extended := &a2a.AgentCard{Name: "fixture-agent"}
	f := newHandlerFixture(t, func(o *Options) { o.ExtendedCard = extended })

	card, err := f.handler.ExtendedCard(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "fixture-agent", card.Name)
}
