package errors

import (
	"fmt"
	"strings"
	"testing"
)

func TestStructuredErrorMessage(t *testing.T) {
	err := NewToolError(ErrCodeToolExecution, "execution failed", nil).
		WithDetails("disk full")

	if !strings.Contains(err.Error(), "tool") {
		t.Errorf("Expected category in message, got %q", err.Error())
	}
	if !strings.Contains(err.Error(), "disk full") {
		t.Errorf("Expected details in message, got %q", err.Error())
	}
}

func TestStructuredErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := NewSystemError(ErrCodeInitializationFailed, "startup failed", cause)

	if err.Unwrap() != cause {
		t.Error("Expected Unwrap to return the cause")
	}
}

func TestWithContext(t *testing.T) {
	err := NewValidationError(ErrCodeInvalidParams, "bad params", nil).
		WithContext("field", "path").
		WithContext("got", 42)

	if err.Context["field"] != "path" || err.Context["got"] != 42 {
		t.Errorf("Expected context entries, got %v", err.Context)
	}
}

func TestRecoverable(t *testing.T) {
	if !NewValidationError(ErrCodeInvalidParams, "x", nil).IsRecoverable() {
		t.Error("Expected low severity errors to be recoverable")
	}
	if NewTransportError(ErrCodeReadFailed, "x", nil).IsRecoverable() {
		t.Error("Expected critical errors to be unrecoverable")
	}
}

func TestToMCPErrorCodes(t *testing.T) {
	cases := []struct {
		err  *StructuredError
		want int
	}{
		{NewProtocolError(ErrCodeParseError, "m", nil), MCPCodeParseError},
		{NewProtocolError(ErrCodeInvalidRequest, "m", nil), MCPCodeInvalidRequest},
		{NewProtocolError(ErrCodeMethodNotFound, "m", nil), MCPCodeMethodNotFound},
		{NewProtocolError(ErrCodeNotInitialized, "m", nil), MCPCodeNotInitialized},
		{NewProtocolError(ErrCodeSessionClosed, "m", nil), MCPCodeUnavailable},
		{NewValidationError(ErrCodeMissingArgument, "m", nil), MCPCodeInvalidParams},
		{NewSecurityError(ErrCodePathDenied, "m", nil), MCPCodePermissionDenied},
		{NewToolError(ErrCodeToolNotFound, "m", nil), MCPCodeToolNotFound},
		{NewToolError(ErrCodeToolExecution, "m", nil), MCPCodeToolExecution},
		{NewTimeoutError(ErrCodeRequestTimeout, "m", nil), MCPCodeTimeout},
		{NewTransportError(ErrCodeReadFailed, "m", nil), MCPCodeInternalError},
		{NewSystemError(ErrCodeUnexpectedPanic, "m", nil), MCPCodeInternalError},
	}

	for _, tc := range cases {
		got := tc.err.ToMCPError().Code
		if got != tc.want {
			t.Errorf("For %s/%s expected wire code %d, got %d",
				tc.err.Category, tc.err.Code, tc.want, got)
		}
	}
}

func TestToMCPErrorSecurityOmitsData(t *testing.T) {
	err := NewSecurityError(ErrCodePathDenied, "access denied", nil).
		WithContext("path", "/etc/shadow").
		WithContext("reason", "path outside allowed roots")

	mcpErr := err.ToMCPError()
	if mcpErr.Data != nil {
		t.Error("Expected security errors to omit data on the wire")
	}
	if mcpErr.Message != "access denied" {
		t.Errorf("Expected generic message, got %q", mcpErr.Message)
	}
}

func TestToMCPErrorCarriesData(t *testing.T) {
	err := NewValidationError(ErrCodeMissingArgument, "missing required argument(s): path", nil).
		WithContext("tool", "file_read")

	mcpErr := err.ToMCPError()
	data, ok := mcpErr.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("Expected data map, got %T", mcpErr.Data)
	}
	if data["code"] != "MISSING_ARGUMENT" {
		t.Errorf("Expected code in data, got %v", data["code"])
	}
}
