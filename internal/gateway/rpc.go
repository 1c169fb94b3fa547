package gateway

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taskmesh/a2ad/internal/agent"
	"github.com/taskmesh/a2ad/internal/common/httpmw"
	"github.com/taskmesh/a2ad/pkg/a2a"
	"github.com/taskmesh/a2ad/pkg/a2a/jsonrpc"
)

// maxBodyBytes bounds a single JSON-RPC request body.
const maxBodyBytes = 4 << 20 // 4MB

// handleRPC serves POST /a2a. Unary methods answer with one JSON-RPC
// response; streaming methods answer with SSE where each frame is a
// JSON-RPC response carrying one event. Protocol errors ride in the
// envelope, so the HTTP status is 200 either way.
func (s *Server) handleRPC(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		c.JSON(http.StatusOK, jsonrpc.NewErrorResponse(nil, a2a.Internal(err)))
		return
	}

	var req jsonrpc.Request
	if err := json.Unmarshal(body, &req); err != nil {
		c.JSON(http.StatusOK, jsonrpc.NewErrorResponse(nil, a2a.ParseError(err)))
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusOK, jsonrpc.NewErrorResponse(req.ID, a2a.InvalidRequest(err.Error())))
		return
	}

	c.Set(httpmw.RPCMethodKey, req.Method)
	call := agent.NewCallContext(c.Request.Header)

	if jsonrpc.StreamingMethod(req.Method) {
		s.serveSSE(c, call, &req)
		return
	}

	result, err := s.handler.Call(c.Request.Context(), call, req.Method, req.Params)
	if err != nil {
		c.JSON(http.StatusOK, jsonrpc.NewErrorResponse(req.ID, err))
		return
	}
	c.JSON(http.StatusOK, jsonrpc.NewResponse(req.ID, result))
}

// serveSSE writes events as data frames until the stream closes or the
// client goes away. A client disconnect only detaches the subscriber; the
// task keeps computing.
func (s *Server) serveSSE(c *gin.Context, call *agent.CallContext, req *jsonrpc.Request) {
	stream, err := s.handler.Stream(c.Request.Context(), call, req.Method, req.Params)
	if err != nil {
		c.JSON(http.StatusOK, jsonrpc.NewErrorResponse(req.ID, err))
		return
	}
	defer stream.Close()

	header := c.Writer.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-stream.Events():
			if !ok {
				return
			}
			frame, err := json.Marshal(jsonrpc.NewResponse(req.ID, ev))
			if err != nil {
				s.logger.Error("failed to marshal stream frame", zap.Error(err))
				return
			}
			if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", frame); err != nil {
				return
			}
			c.Writer.Flush()
		}
	}
}
