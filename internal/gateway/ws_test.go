package gateway

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmesh/a2ad/internal/events/bus"
	"github.com/taskmesh/a2ad/pkg/a2a"
	"github.com/taskmesh/a2ad/pkg/a2a/jsonrpc"
)

func dialWS(t *testing.T, f *gatewayFixture, path string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(f.ts.URL, "http") + path
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err, "failed to dial %s", path)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func writeRequest(t *testing.T, conn *websocket.Conn, body []byte) {
	t.Helper()
	require.NoError(t, conn.SetWriteDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, body))
}

func readRPCFrame(t *testing.T, conn *websocket.Conn) *rpcFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var frame rpcFrame
	require.NoError(t, json.Unmarshal(data, &frame))
	return &frame
}

func TestWS_UnaryRoundTrip(t *testing.T) {
	f := newGatewayFixture(t)
	conn := dialWS(t, f, "/a2a/ws")

	writeRequest(t, conn, sendBody(t, `"u-1"`, "over the socket"))

	frame := readRPCFrame(t, conn)
	require.Nil(t, frame.Error)
	assert.Equal(t, `"u-1"`, string(frame.ID))

	task := decodeTask(t, frame.Result)
	assert.Equal(t, a2a.TaskStateCompleted, task.Status.State)
	assert.Equal(t, "Echo: over the socket", task.Status.Message.Text())
}

func TestWS_ParseError(t *testing.T) {
	f := newGatewayFixture(t)
	conn := dialWS(t, f, "/a2a/ws")

	writeRequest(t, conn, []byte(`definitely not json`))

	frame := readRPCFrame(t, conn)
	require.NotNil(t, frame.Error)
	assert.Equal(t, a2a.CodeParseError, frame.Error.Code)
	assert.Equal(t, "null", string(frame.ID))
}

// TestWS_StreamAndUnaryInterleave runs a stream and a unary call over one
// connection and sorts the interleaved frames back out by request id.
func TestWS_StreamAndUnaryInterleave(t *testing.T) {
	f := newGatewayFixture(t)
	conn := dialWS(t, f, "/a2a/ws")

	streamBody := rpcBody(t, `1`, jsonrpc.MethodMessageStream, &a2a.MessageSendParams{
		Message: &a2a.Message{
			MessageID: "msg-ws-stream",
			Role:      a2a.RoleUser,
			Parts:     []a2a.Part{&a2a.TextPart{Text: "interleave"}},
		},
	})
	writeRequest(t, conn, streamBody)

	// The first stream frame carries the task snapshot; use its id for a
	// concurrent tasks/get on the same connection.
	first := readRPCFrame(t, conn)
	require.Nil(t, first.Error)
	require.Equal(t, `1`, string(first.ID))
	snapshot := decodeTask(t, first.Result)
	require.NotEmpty(t, snapshot.ID)

	writeRequest(t, conn, rpcBody(t, `2`, jsonrpc.MethodTasksGet, &a2a.TaskQueryParams{ID: snapshot.ID}))

	var (
		streamEvents []a2a.Event
		gotSnapshot  *a2a.Task
		sawFinal     bool
	)
	for !sawFinal || gotSnapshot == nil {
		frame := readRPCFrame(t, conn)
		require.Nil(t, frame.Error)

		switch string(frame.ID) {
		case `1`:
			ev, err := a2a.UnmarshalEvent(frame.Result)
			require.NoError(t, err)
			streamEvents = append(streamEvents, ev)
			if status, ok := ev.(*a2a.TaskStatusUpdateEvent); ok && status.Final {
				sawFinal = true
			}
		case `2`:
			gotSnapshot = decodeTask(t, frame.Result)
		default:
			t.Fatalf("unexpected frame id %s", frame.ID)
		}
	}

	assert.Equal(t, snapshot.ID, gotSnapshot.ID)

	last, ok := streamEvents[len(streamEvents)-1].(*a2a.TaskStatusUpdateEvent)
	require.True(t, ok)
	assert.Equal(t, a2a.TaskStateCompleted, last.Status.State)
	assert.Equal(t, "Echo: interleave", last.Status.Message.Text())
}

// TestWS_Monitor verifies the read-only lifecycle feed: running a task
// produces started and finished frames on the monitor socket.
func TestWS_Monitor(t *testing.T) {
	f := newGatewayFixture(t)
	conn := dialWS(t, f, "/a2a/ws/monitor")

	// Give the handler a moment to register its bus subscription.
	time.Sleep(100 * time.Millisecond)

	frame := f.post(t, sendBody(t, `"m-1"`, "watched"))
	require.Nil(t, frame.Error)
	task := decodeTask(t, frame.Result)

	// Bus delivery is per-handler-goroutine, so frames may arrive out of
	// publish order; collect until all lifecycle stages showed up.
	seen := map[string]bool{}
	deadline := time.Now().Add(5 * time.Second)
	for !seen["task.started"] || !seen["task.status_changed"] || !seen["task.finished"] {
		require.NoError(t, conn.SetReadDeadline(deadline))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err, "monitor feed ended early, saw %v", seen)

		var ev bus.Event
		require.NoError(t, json.Unmarshal(data, &ev))
		seen[ev.Type] = true
		assert.Equal(t, task.ID, ev.Data["task_id"])
	}
}
