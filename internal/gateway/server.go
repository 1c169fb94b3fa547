// Package gateway exposes the protocol handler over HTTP and WebSocket:
// JSON-RPC on POST /a2a with SSE responses for streaming methods, a
// multiplexed JSON-RPC WebSocket, and a read-only monitor socket fed by
// the event bus.
package gateway

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/taskmesh/a2ad/internal/common/httpmw"
	"github.com/taskmesh/a2ad/internal/common/logger"
	"github.com/taskmesh/a2ad/internal/events/bus"
	"github.com/taskmesh/a2ad/internal/server"
)

// AgentCardPath is the well-known URI serving the public agent card.
const AgentCardPath = "/.well-known/agent-card.json"

// Server is the transport front end for a single hosted agent.
type Server struct {
	handler  *server.Handler
	eventBus bus.EventBus
	logger   *logger.Logger
	router   *gin.Engine

	upgrader websocket.Upgrader
}

// New creates the gateway and registers its routes. eventBus may be nil,
// which disables the monitor socket.
func New(h *server.Handler, eventBus bus.EventBus, log *logger.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		handler:  h,
		eventBus: eventBus,
		logger:   log.WithFields(zap.String("component", "gateway")),
		router:   gin.New(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // access is gated by bearer tokens, not origins
			},
		},
	}

	s.router.Use(httpmw.Recovery(s.logger))
	s.router.Use(httpmw.RequestLogger(s.logger))
	s.router.Use(httpmw.CORS())
	s.router.Use(httpmw.OtelTracing("a2ad-gateway"))

	s.setupRoutes()
	return s
}

// Router returns the HTTP handler for the gateway.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.handleHealth)
	s.router.GET(AgentCardPath, s.handleAgentCard)

	rpc := s.router.Group("/a2a")
	{
		rpc.POST("", s.handleRPC)
		rpc.GET("/ws", s.handleWS)
		rpc.GET("/ws/monitor", s.handleMonitorWS)
	}
}

// HealthResponse is the healthz payload.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleAgentCard(c *gin.Context) {
	c.JSON(http.StatusOK, s.handler.Card())
}
