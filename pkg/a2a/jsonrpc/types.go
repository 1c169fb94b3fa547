// Package jsonrpc implements the JSON-RPC 2.0 envelope used by A2A
// transports. Unary methods exchange one request/response pair; streaming
// methods emit a sequence of response frames sharing the request id.
package jsonrpc

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/taskmesh/a2ad/pkg/a2a"
)

// Version is the JSON-RPC protocol version. Always "2.0".
const Version = "2.0"

// A2A methods.
const (
	MethodMessageSend       = "message/send"
	MethodMessageStream     = "message/stream"
	MethodTasksGet          = "tasks/get"
	MethodTasksCancel       = "tasks/cancel"
	MethodTasksResubscribe  = "tasks/resubscribe"
	MethodPushConfigSet     = "tasks/pushNotificationConfig/set"
	MethodPushConfigGet     = "tasks/pushNotificationConfig/get"
	MethodPushConfigList    = "tasks/pushNotificationConfig/list"
	MethodPushConfigDelete  = "tasks/pushNotificationConfig/delete"
	MethodAgentExtendedCard = "agent/getAuthenticatedExtendedCard"
)

// StreamingMethod reports whether a method produces a stream of response
// frames instead of a single response.
func StreamingMethod(method string) bool {
	return method == MethodMessageStream || method == MethodTasksResubscribe
}

// KnownMethod reports whether the method is part of the A2A surface.
func KnownMethod(method string) bool {
	switch method {
	case MethodMessageSend, MethodMessageStream, MethodTasksGet, MethodTasksCancel,
		MethodTasksResubscribe, MethodPushConfigSet, MethodPushConfigGet,
		MethodPushConfigList, MethodPushConfigDelete, MethodAgentExtendedCard:
		return true
	default:
		return false
	}
}

// Request represents a JSON-RPC 2.0 request. The id is kept raw so it is
// echoed back byte-for-byte, whether string or integer.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Validate checks the envelope: version, method presence, and id shape
// (string, integer, or absent).
func (r *Request) Validate() error {
	if r.JSONRPC != Version {
		return fmt.Errorf("jsonrpc version must be %q", Version)
	}
	if r.Method == "" {
		return fmt.Errorf("method is required")
	}
	if len(r.ID) == 0 {
		return nil
	}
	id := bytes.TrimSpace(r.ID)
	if len(id) == 0 || bytes.Equal(id, []byte("null")) {
		return nil
	}
	if id[0] == '"' {
		var s string
		return json.Unmarshal(id, &s)
	}
	var n int64
	if err := json.Unmarshal(id, &n); err != nil {
		return fmt.Errorf("id must be a string or an integer")
	}
	return nil
}

// Response represents a JSON-RPC 2.0 response or one streaming frame.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error represents a JSON-RPC 2.0 error object.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// NewResponse builds a success response for the given request id.
func NewResponse(id json.RawMessage, result interface{}) *Response {
	return &Response{JSONRPC: Version, ID: id, Result: result}
}

// NewErrorResponse builds an error response for the given request id.
func NewErrorResponse(id json.RawMessage, err error) *Response {
	return &Response{JSONRPC: Version, ID: id, Error: FromError(err)}
}

// FromError converts any error into a JSON-RPC error object, preserving
// A2A codes and data.
func FromError(err error) *Error {
	ae := a2a.AsError(err)
	if ae == nil {
		return nil
	}
	return &Error{Code: ae.Code, Message: ae.Message, Data: ae.Data}
}
