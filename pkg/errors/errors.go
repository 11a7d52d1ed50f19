package errors

import (
	"fmt"
	"time"

	"mcp-tool-server/internal/models"
)

// ErrorCategory represents different types of errors in the system
type ErrorCategory string

const (
	// MCP protocol related errors (framing, envelope, method routing)
	ErrorCategoryProtocol ErrorCategory = "protocol"
	// Argument/schema validation related errors
	ErrorCategoryValidation ErrorCategory = "validation"
	// Security policy related errors (path/command gates)
	ErrorCategorySecurity ErrorCategory = "security"
	// Tool registry and execution related errors
	ErrorCategoryTool ErrorCategory = "tool"
	// Admission/execution deadline related errors
	ErrorCategoryTimeout ErrorCategory = "timeout"
	// Transport channel I/O errors
	ErrorCategoryTransport ErrorCategory = "transport"
	// System/internal errors
	ErrorCategorySystem ErrorCategory = "system"
)

// ErrorSeverity represents the severity level of an error
type ErrorSeverity string

const (
	ErrorSeverityLow      ErrorSeverity = "low"
	ErrorSeverityMedium   ErrorSeverity = "medium"
	ErrorSeverityHigh     ErrorSeverity = "high"
	ErrorSeverityCritical ErrorSeverity = "critical"
)

// StructuredError represents a structured error with additional context
type StructuredError struct {
	Category    ErrorCategory          `json:"category"`
	Severity    ErrorSeverity          `json:"severity"`
	Code        string                 `json:"code"`
	Message     string                 `json:"message"`
	Details     string                 `json:"details,omitempty"`
	Context     map[string]interface{} `json:"context,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
	Recoverable bool                   `json:"recoverable"`
	Cause       error                  `json:"-"` // Original error, not serialized
}

// Error implements the error interface
func (se *StructuredError) Error() string {
	if se.Details != "" {
		return fmt.Sprintf("[%s:%s] %s: %s", se.Category, se.Code, se.Message, se.Details)
	}
	return fmt.Sprintf("[%s:%s] %s", se.Category, se.Code, se.Message)
}

// Unwrap returns the underlying error for error unwrapping
func (se *StructuredError) Unwrap() error {
	return se.Cause
}

// JSON-RPC protocol error codes. The -32000..-32005 block is the reserved
// application range for tool-domain failures.
const (
	MCPCodeParseError     = -32700
	MCPCodeInvalidRequest = -32600
	MCPCodeMethodNotFound = -32601
	MCPCodeInvalidParams  = -32602
	MCPCodeInternalError  = -32603

	MCPCodeToolNotFound     = -32000
	MCPCodeToolExecution    = -32001
	MCPCodePermissionDenied = -32002
	MCPCodeTimeout          = -32003
	MCPCodeNotInitialized   = -32004
	MCPCodeUnavailable      = -32005
)

// ToMCPError converts a StructuredError to an MCP protocol error.
// Security errors are deliberately converted without context data so that
// gate internals never leak to the caller.
func (se *StructuredError) ToMCPError() *models.MCPError {
	mcpCode := se.mcpCode()

	if se.Category == ErrorCategorySecurity {
		return &models.MCPError{
			Code:    mcpCode,
			Message: se.Message,
		}
	}

	return &models.MCPError{
		Code:    mcpCode,
		Message: se.Message,
		Data: map[string]interface{}{
			"category":  se.Category,
			"code":      se.Code,
			"severity":  se.Severity,
			"timestamp": se.Timestamp,
			"context":   se.Context,
		},
	}
}

// mcpCode maps the error category (and sometimes the specific code) to a
// protocol-level error code.
func (se *StructuredError) mcpCode() int {
	switch se.Category {
	case ErrorCategoryProtocol:
		switch se.Code {
		case ErrCodeParseError:
			return MCPCodeParseError
		case ErrCodeMethodNotFound:
			return MCPCodeMethodNotFound
		case ErrCodeNotInitialized:
			return MCPCodeNotInitialized
		case ErrCodeSessionClosed:
			return MCPCodeUnavailable
		default:
			return MCPCodeInvalidRequest
		}
	case ErrorCategoryValidation:
		return MCPCodeInvalidParams
	case ErrorCategorySecurity:
		return MCPCodePermissionDenied
	case ErrorCategoryTool:
		if se.Code == ErrCodeToolNotFound {
			return MCPCodeToolNotFound
		}
		return MCPCodeToolExecution
	case ErrorCategoryTimeout:
		return MCPCodeTimeout
	case ErrorCategoryTransport:
		return MCPCodeInternalError
	case ErrorCategorySystem:
		return MCPCodeInternalError
	default:
		return MCPCodeInternalError
	}
}

// NewStructuredError creates a new structured error
func NewStructuredError(category ErrorCategory, severity ErrorSeverity, code, message string) *StructuredError {
	return &StructuredError{
		Category:    category,
		Severity:    severity,
		Code:        code,
		Message:     message,
		Timestamp:   time.Now(),
		Recoverable: severity != ErrorSeverityCritical,
		Context:     make(map[string]interface{}),
	}
}

// WithDetails adds details to the error
func (se *StructuredError) WithDetails(details string) *StructuredError {
	se.Details = details
	return se
}

// WithContext adds context information to the error
func (se *StructuredError) WithContext(key string, value interface{}) *StructuredError {
	if se.Context == nil {
		se.Context = make(map[string]interface{})
	}
	se.Context[key] = value
	return se
}

// WithCause sets the underlying cause error
func (se *StructuredError) WithCause(err error) *StructuredError {
	se.Cause = err
	return se
}

// IsRecoverable returns whether the error is recoverable
func (se *StructuredError) IsRecoverable() bool {
	return se.Recoverable
}

// Predefined error constructors for common error scenarios

// NewProtocolError creates an MCP protocol related error
func NewProtocolError(code, message string, err error) *StructuredError {
	return NewStructuredError(ErrorCategoryProtocol, ErrorSeverityLow, code, message).WithCause(err)
}

// NewValidationError creates a validation related error
func NewValidationError(code, message string, err error) *StructuredError {
	return NewStructuredError(ErrorCategoryValidation, ErrorSeverityLow, code, message).WithCause(err)
}

// NewSecurityError creates a security policy related error. The message is
// what reaches the wire, so callers keep it generic.
func NewSecurityError(code, message string, err error) *StructuredError {
	return NewStructuredError(ErrorCategorySecurity, ErrorSeverityHigh, code, message).WithCause(err)
}

// NewToolError creates a tool registry or execution related error
func NewToolError(code, message string, err error) *StructuredError {
	severity := ErrorSeverityMedium
	if code == ErrCodeToolNotFound {
		severity = ErrorSeverityLow
	}
	return NewStructuredError(ErrorCategoryTool, severity, code, message).WithCause(err)
}

// NewTimeoutError creates an admission/execution deadline error
func NewTimeoutError(code, message string, err error) *StructuredError {
	return NewStructuredError(ErrorCategoryTimeout, ErrorSeverityMedium, code, message).WithCause(err)
}

// NewTransportError creates a transport channel error. Transport errors are
// fatal to the session and therefore not recoverable.
func NewTransportError(code, message string, err error) *StructuredError {
	return NewStructuredError(ErrorCategoryTransport, ErrorSeverityCritical, code, message).WithCause(err)
}

// NewSystemError creates a system/internal error
func NewSystemError(code, message string, err error) *StructuredError {
	return NewStructuredError(ErrorCategorySystem, ErrorSeverityCritical, code, message).WithCause(err)
}

// Common error codes
const (
	// Protocol error codes
	ErrCodeParseError      = "PARSE_ERROR"
	ErrCodeInvalidRequest  = "INVALID_REQUEST"
	ErrCodeMethodNotFound  = "METHOD_NOT_FOUND"
	ErrCodeInvalidVersion  = "INVALID_VERSION"
	ErrCodeNotInitialized  = "NOT_INITIALIZED"
	ErrCodeSessionClosed   = "SESSION_CLOSED"
	ErrCodeSerializeFailed = "SERIALIZE_FAILED"

	// Validation error codes
	ErrCodeInvalidParams    = "INVALID_PARAMS"
	ErrCodeMissingArgument  = "MISSING_ARGUMENT"
	ErrCodeUnknownArgument  = "UNKNOWN_ARGUMENT"
	ErrCodeArgumentType     = "ARGUMENT_TYPE_MISMATCH"
	ErrCodeSchemaResolution = "SCHEMA_RESOLUTION_FAILED"

	// Security error codes
	ErrCodePathDenied    = "PATH_DENIED"
	ErrCodeCommandDenied = "COMMAND_DENIED"

	// Tool error codes
	ErrCodeToolNotFound   = "TOOL_NOT_FOUND"
	ErrCodeDuplicateTool  = "DUPLICATE_TOOL"
	ErrCodeToolExecution  = "TOOL_EXECUTION_ERROR"
	ErrCodeToolPanic      = "TOOL_PANIC"
	ErrCodeToolUnhealthy  = "TOOL_CIRCUIT_OPEN"
	ErrCodeInvalidContent = "INVALID_TOOL_CONTENT"

	// Timeout error codes
	ErrCodeRequestTimeout = "REQUEST_TIMEOUT"

	// Transport error codes
	ErrCodeReadFailed  = "TRANSPORT_READ_FAILED"
	ErrCodeWriteFailed = "TRANSPORT_WRITE_FAILED"

	// System error codes
	ErrCodeInitializationFailed = "INITIALIZATION_FAILED"
	ErrCodeShutdownFailed       = "SHUTDOWN_FAILED"
	ErrCodeUnexpectedPanic      = "UNEXPECTED_PANIC"
)
