package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/taskmesh/a2ad/internal/agent"
	"github.com/taskmesh/a2ad/internal/common/logger"
	"github.com/taskmesh/a2ad/internal/server"
	"github.com/taskmesh/a2ad/pkg/a2a"
	"github.com/taskmesh/a2ad/pkg/a2a/jsonrpc"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512 * 1024 // 512KB

	// Outbound frame buffer per connection
	sendBuffer = 256
)

// wsConn is one JSON-RPC WebSocket connection. Requests run concurrently
// and responses multiplex back over the same socket; streaming frames
// interleave, matched to their request by id. Each frame is a complete
// JSON-RPC envelope in its own text message.
type wsConn struct {
	conn    *websocket.Conn
	call    *agent.CallContext
	handler *server.Handler
	logger  *logger.Logger

	send chan []byte
	done chan struct{}
	wg   sync.WaitGroup
}

// handleWS upgrades the connection and serves JSON-RPC over it until the
// peer disconnects. Disconnecting detaches all subscribers but cancels no
// tasks.
func (s *Server) handleWS(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	// The request context dies with the HTTP handler; connection lifetime
	// is governed by the read pump instead.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wc := &wsConn{
		conn:    conn,
		call:    agent.NewCallContext(c.Request.Header),
		handler: s.handler,
		logger:  s.logger.WithFields(zap.String("remote", conn.RemoteAddr().String())),
		send:    make(chan []byte, sendBuffer),
		done:    make(chan struct{}),
	}

	go wc.writePump()
	wc.readPump(ctx, cancel)
}

// readPump reads requests until the connection errors, dispatching each in
// its own goroutine so a blocking send cannot stall the socket.
func (wc *wsConn) readPump(ctx context.Context, cancel context.CancelFunc) {
	defer func() {
		cancel()
		close(wc.done)
		wc.conn.Close()
		wc.wg.Wait()
	}()

	wc.conn.SetReadLimit(maxMessageSize)
	_ = wc.conn.SetReadDeadline(time.Now().Add(pongWait))
	wc.conn.SetPongHandler(func(string) error {
		_ = wc.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := wc.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				wc.logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}

		var req jsonrpc.Request
		if err := json.Unmarshal(message, &req); err != nil {
			wc.reply(jsonrpc.NewErrorResponse(nil, a2a.ParseError(err)))
			continue
		}
		if err := req.Validate(); err != nil {
			wc.reply(jsonrpc.NewErrorResponse(req.ID, a2a.InvalidRequest(err.Error())))
			continue
		}

		wc.wg.Add(1)
		go func() {
			defer wc.wg.Done()
			wc.dispatch(ctx, &req)
		}()
	}
}

// dispatch runs one request to completion. Streaming methods emit a frame
// per event and simply stop; the final frame of a live stream carries the
// terminal status update.
func (wc *wsConn) dispatch(ctx context.Context, req *jsonrpc.Request) {
	if jsonrpc.StreamingMethod(req.Method) {
		stream, err := wc.handler.Stream(ctx, wc.call, req.Method, req.Params)
		if err != nil {
			wc.reply(jsonrpc.NewErrorResponse(req.ID, err))
			return
		}
		defer stream.Close()

		for {
			select {
			case <-wc.done:
				return
			case ev, ok := <-stream.Events():
				if !ok {
					return
				}
				wc.reply(jsonrpc.NewResponse(req.ID, ev))
			}
		}
	}

	result, err := wc.handler.Call(ctx, wc.call, req.Method, req.Params)
	if err != nil {
		wc.reply(jsonrpc.NewErrorResponse(req.ID, err))
		return
	}
	wc.reply(jsonrpc.NewResponse(req.ID, result))
}

// reply queues a response frame. Backpressure from a slow peer blocks the
// dispatching goroutine, never the other connections.
func (wc *wsConn) reply(resp *jsonrpc.Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		wc.logger.Error("failed to marshal response", zap.Error(err))
		return
	}

	select {
	case wc.send <- data:
	case <-wc.done:
	}
}

// writePump serializes all writes to the connection and keeps the peer
// alive with pings.
func (wc *wsConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		wc.conn.Close()
	}()

	for {
		select {
		case message := <-wc.send:
			_ = wc.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wc.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-wc.done:
			_ = wc.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = wc.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case <-ticker.C:
			_ = wc.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wc.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
