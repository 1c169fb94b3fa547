package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/taskmesh/a2ad/internal/common/logger"
	"github.com/taskmesh/a2ad/internal/events"
	"github.com/taskmesh/a2ad/internal/events/bus"
)

// monitorConn is a read-only observer connection. It receives every task
// lifecycle event from the bus as a JSON frame and sends nothing back.
type monitorConn struct {
	conn   *websocket.Conn
	logger *logger.Logger
	send   chan []byte
	done   chan struct{}
}

// handleMonitorWS serves the task lifecycle feed. Slow observers lose
// frames rather than slowing the bus down.
func (s *Server) handleMonitorWS(c *gin.Context) {
	if s.eventBus == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event bus not configured"})
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	mc := &monitorConn{
		conn:   conn,
		logger: s.logger.WithFields(zap.String("remote", conn.RemoteAddr().String())),
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
	}

	sub, err := s.eventBus.Subscribe(events.TaskAll, mc.forward)
	if err != nil {
		mc.logger.Error("monitor subscription failed", zap.Error(err))
		conn.Close()
		return
	}

	go mc.writePump()
	mc.readPump()

	if sub.IsValid() {
		_ = sub.Unsubscribe()
	}
}

// forward marshals a bus event onto the send queue, dropping it when the
// observer cannot keep up.
func (mc *monitorConn) forward(ctx context.Context, event *bus.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		mc.logger.Error("failed to marshal bus event", zap.Error(err))
		return nil
	}

	select {
	case mc.send <- data:
	case <-mc.done:
	default:
		mc.logger.Warn("monitor send buffer full, dropping event",
			zap.String("event_type", event.Type))
	}
	return nil
}

// readPump discards inbound frames; it exists to process pongs and to
// notice the disconnect.
func (mc *monitorConn) readPump() {
	defer func() {
		close(mc.done)
		mc.conn.Close()
	}()

	mc.conn.SetReadLimit(maxMessageSize)
	_ = mc.conn.SetReadDeadline(time.Now().Add(pongWait))
	mc.conn.SetPongHandler(func(string) error {
		_ = mc.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := mc.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				mc.logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}
	}
}

func (mc *monitorConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		mc.conn.Close()
	}()

	for {
		select {
		case message := <-mc.send:
			_ = mc.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := mc.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-mc.done:
			_ = mc.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = mc.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case <-ticker.C:
			_ = mc.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := mc.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
