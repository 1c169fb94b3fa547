package a2a

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestAsError_PassThrough(t *testing.T) {
	src := TaskNotFound("t1")
	got := AsError(fmt.Errorf("handling call: %w", src))
	if got.Code != CodeTaskNotFound {
		t.Fatalf("Expected code %d, got %d", CodeTaskNotFound, got.Code)
	}
	if got != src {
		t.Error("Expected the wrapped A2A error to be returned as-is")
	}
}

func TestAsError_WrapsUnknown(t *testing.T) {
	got := AsError(errors.New("boom"))
	if got.Code != CodeInternalError {
		t.Fatalf("Expected internal error code, got %d", got.Code)
	}
	if got.Err == nil {
		t.Error("Expected the cause to be preserved")
	}
}

func TestAsError_Cancellation(t *testing.T) {
	got := AsError(fmt.Errorf("executor: %w", context.Canceled))
	if got.Code != CodeInternalError {
		t.Fatalf("Expected internal error code, got %d", got.Code)
	}
	if !errors.Is(got, context.Canceled) {
		t.Error("Expected cancellation to stay visible through Unwrap")
	}
}

func TestAsError_Nil(t *testing.T) {
	if got := AsError(nil); got != nil {
		t.Fatalf("Expected nil, got %v", got)
	}
}

func TestErrorCodes(t *testing.T) {
	tests := []struct {
		err  *Error
		code int
	}{
		{TaskNotFound("t"), -32001},
		{TaskNotCancelable("t"), -32002},
		{PushNotSupported(), -32003},
		{UnsupportedOperation("x"), -32004},
		{ContentTypeNotSupported("text/html"), -32005},
		{InvalidAgentResponse("bad"), -32006},
		{AuthenticationRequired(), -32007},
		{MethodNotFound("m"), -32601},
		{InvalidParams("p"), -32602},
	}
	for _, tt := range tests {
		if tt.err.Code != tt.code {
			t.Errorf("Expected code %d, got %d (%s)", tt.code, tt.err.Code, tt.err.Message)
		}
	}
}
