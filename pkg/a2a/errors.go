package a2a

import (
	"context"
	"errors"
	"fmt"
)

// JSON-RPC and A2A error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	CodeTaskNotFound            = -32001
	CodeTaskNotCancelable       = -32002
	CodePushNotSupported        = -32003
	CodeUnsupportedOperation    = -32004
	CodeContentTypeNotSupported = -32005
	CodeInvalidAgentResponse    = -32006
	CodeAuthenticationRequired  = -32007
)

// Error is a protocol-level error carrying an A2A error code. It is what
// transports serialize into the JSON-RPC error object.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Err     error       `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("a2a error %d: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("a2a error %d: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error for use with errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// TaskNotFound creates a task-not-found error.
func TaskNotFound(taskID string) *Error {
	return &Error{
		Code:    CodeTaskNotFound,
		Message: "Task not found",
		Data:    map[string]interface{}{"taskId": taskID},
	}
}

// TaskNotCancelable creates an error for operations on terminal tasks.
func TaskNotCancelable(taskID string) *Error {
	return &Error{
		Code:    CodeTaskNotCancelable,
		Message: "Task cannot be canceled",
		Data:    map[string]interface{}{"taskId": taskID},
	}
}

// PushNotSupported creates an error for servers without push delivery.
func PushNotSupported() *Error {
	return &Error{Code: CodePushNotSupported, Message: "Push Notification is not supported"}
}

// PushConfigNotFound creates an error for a missing push config.
func PushConfigNotFound(taskID, configID string) *Error {
	data := map[string]interface{}{"taskId": taskID}
	if configID != "" {
		data["pushNotificationConfigId"] = configID
	}
	return &Error{
		Code:    CodeTaskNotFound,
		Message: "Push notification config not found",
		Data:    data,
	}
}

// UnsupportedOperation creates an error for disabled or unknown operations.
func UnsupportedOperation(operation string) *Error {
	return &Error{
		Code:    CodeUnsupportedOperation,
		Message: "This operation is not supported",
		Data:    map[string]interface{}{"operation": operation},
	}
}

// ContentTypeNotSupported creates an error for unacceptable content types.
func ContentTypeNotSupported(contentType string) *Error {
	return &Error{
		Code:    CodeContentTypeNotSupported,
		Message: "Incompatible content types",
		Data:    map[string]interface{}{"contentType": contentType},
	}
}

// InvalidAgentResponse creates an error for malformed executor output.
func InvalidAgentResponse(detail string) *Error {
	return &Error{Code: CodeInvalidAgentResponse, Message: "Invalid agent response", Data: detail}
}

// AuthenticationRequired creates an error for calls lacking credentials.
func AuthenticationRequired() *Error {
	return &Error{Code: CodeAuthenticationRequired, Message: "Authentication required"}
}

// ParseError creates a malformed-payload error.
func ParseError(err error) *Error {
	return &Error{Code: CodeParseError, Message: "Invalid JSON payload", Err: err}
}

// InvalidRequest creates a malformed-envelope error.
func InvalidRequest(detail string) *Error {
	return &Error{Code: CodeInvalidRequest, Message: "Request payload validation error", Data: detail}
}

// MethodNotFound creates an unknown-method error.
func MethodNotFound(method string) *Error {
	return &Error{
		Code:    CodeMethodNotFound,
		Message: "Method not found",
		Data:    map[string]interface{}{"method": method},
	}
}

// InvalidParams creates a bad-params error.
func InvalidParams(detail string) *Error {
	return &Error{Code: CodeInvalidParams, Message: "Invalid parameters", Data: detail}
}

// Internal wraps an unexpected error.
func Internal(err error) *Error {
	return &Error{Code: CodeInternalError, Message: "Internal error", Err: err}
}

// AsError normalizes any error into a protocol Error. A2A errors pass
// through; context cancellation and everything else wrap as Internal.
// Returns nil for nil.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Code: CodeInternalError, Message: "Request canceled", Err: err}
	}
	return Internal(err)
}
