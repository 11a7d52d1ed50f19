package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"mcp-tool-server/pkg/errors"
)

// LogLevel represents the severity level of a log entry
type LogLevel string

const (
	LogLevelDebug LogLevel = "DEBUG"
	LogLevelInfo  LogLevel = "INFO"
	LogLevelWarn  LogLevel = "WARN"
	LogLevelError LogLevel = "ERROR"
)

// LogContext represents contextual information for log entries
type LogContext map[string]interface{}

// StructuredLogger provides structured logging capabilities
type StructuredLogger struct {
	logger    *slog.Logger
	component string
	context   LogContext
	manager   *LoggingManager
}

// NewStructuredLogger creates a new structured logger.
// Log output goes to stderr: stdout is the protocol channel for stdio
// transports and must stay clean.
func NewStructuredLogger(component string) *StructuredLogger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelDebug,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Customize timestamp format
			if a.Key == slog.TimeKey {
				return slog.Attr{
					Key:   "timestamp",
					Value: slog.StringValue(time.Now().UTC().Format(time.RFC3339Nano)),
				}
			}
			if a.Key == slog.LevelKey {
				return slog.Attr{Key: "level", Value: a.Value}
			}
			if a.Key == slog.MessageKey {
				return slog.Attr{Key: "message", Value: a.Value}
			}
			return a
		},
	}

	handler := slog.NewJSONHandler(os.Stderr, opts)
	logger := slog.New(handler)

	return &StructuredLogger{
		logger:    logger,
		component: component,
		context:   make(LogContext),
	}
}

// WithContext adds context to the logger (returns a new logger instance)
func (sl *StructuredLogger) WithContext(key string, value interface{}) *StructuredLogger {
	newLogger := &StructuredLogger{
		logger:    sl.logger,
		component: sl.component,
		context:   make(LogContext),
		manager:   sl.manager,
	}

	for k, v := range sl.context {
		newLogger.context[k] = v
	}

	newLogger.context[key] = value
	return newLogger
}

// WithError adds error information to the logger context
func (sl *StructuredLogger) WithError(err error) *StructuredLogger {
	if err == nil {
		return sl
	}

	newLogger := sl.WithContext("error", err.Error())

	// Add structured error information if available
	if structuredErr, ok := err.(*errors.StructuredError); ok {
		newLogger = newLogger.
			WithContext("error_category", structuredErr.Category).
			WithContext("error_code", structuredErr.Code).
			WithContext("error_severity", structuredErr.Severity).
			WithContext("error_recoverable", structuredErr.IsRecoverable())
	}

	return newLogger
}

// buildLogAttributes creates slog attributes from context
func (sl *StructuredLogger) buildLogAttributes() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("component", sl.component),
	}

	for key, value := range sl.context {
		attrs = append(attrs, slog.Any(key, value))
	}

	return attrs
}

// shouldLog consults the owning manager's level filter, if any
func (sl *StructuredLogger) shouldLog(level LogLevel) bool {
	if sl.manager == nil {
		return true
	}
	return sl.manager.shouldLog(level)
}

// Debug logs a debug message
func (sl *StructuredLogger) Debug(message string) {
	if !sl.shouldLog(LogLevelDebug) {
		return
	}
	sl.logger.LogAttrs(context.Background(), slog.LevelDebug, message, sl.buildLogAttributes()...)
}

// Info logs an info message
func (sl *StructuredLogger) Info(message string) {
	if !sl.shouldLog(LogLevelInfo) {
		return
	}
	sl.logger.LogAttrs(context.Background(), slog.LevelInfo, message, sl.buildLogAttributes()...)
}

// Warn logs a warning message
func (sl *StructuredLogger) Warn(message string) {
	if !sl.shouldLog(LogLevelWarn) {
		return
	}
	sl.logger.LogAttrs(context.Background(), slog.LevelWarn, message, sl.buildLogAttributes()...)
}

// Error logs an error message
func (sl *StructuredLogger) Error(message string) {
	if !sl.shouldLog(LogLevelError) {
		return
	}
	sl.logger.LogAttrs(context.Background(), slog.LevelError, message, sl.buildLogAttributes()...)
}

// LogMCPMessage logs an MCP protocol message with timing information
func (sl *StructuredLogger) LogMCPMessage(method string, requestID interface{}, duration time.Duration, success bool) {
	logger := sl.WithContext("mcp_method", method).
		WithContext("request_id", requestID).
		WithContext("duration_ms", duration.Milliseconds()).
		WithContext("success", success)

	if success {
		logger.Info("MCP message processed successfully")
	} else {
		logger.Warn("MCP message processing failed")
	}
}

// LogCircuitBreakerEvent logs circuit breaker state changes
func (sl *StructuredLogger) LogCircuitBreakerEvent(name string, oldState, newState errors.CircuitBreakerState) {
	sl.WithContext("circuit_breaker", name).
		WithContext("old_state", oldState.String()).
		WithContext("new_state", newState.String()).
		Warn("Circuit breaker state changed")
}

// LogSecurityEvent logs security-related events (without sensitive data)
func (sl *StructuredLogger) LogSecurityEvent(eventType string, details map[string]interface{}) {
	logger := sl.WithContext("security_event", eventType)

	sanitizedDetails := sanitizeLogData(details)
	for k, v := range sanitizedDetails {
		logger = logger.WithContext(k, v)
	}

	logger.Warn("Security event detected")
}

// sanitizeLogData removes or masks sensitive information from log data
func sanitizeLogData(data map[string]interface{}) map[string]interface{} {
	sanitized := make(map[string]interface{})

	sensitiveKeys := []string{
		"password", "token", "secret", "key", "auth", "credential",
	}

	for k, v := range data {
		keyLower := strings.ToLower(k)
		isSensitive := false

		for _, sensitiveKey := range sensitiveKeys {
			if strings.Contains(keyLower, sensitiveKey) {
				isSensitive = true
				break
			}
		}

		if isSensitive {
			sanitized[k] = "[REDACTED]"
		} else if str, ok := v.(string); ok {
			sanitized[k] = sanitizeStringValue(str)
		} else {
			sanitized[k] = v
		}
	}

	return sanitized
}

// sanitizeStringValue masks string values that look like tokens or keys
func sanitizeStringValue(value string) interface{} {
	if len(value) > 20 && isAlphanumeric(value) {
		return fmt.Sprintf("[MASKED:%d_chars]", len(value))
	}
	return value
}

// isAlphanumeric checks if a string contains only alphanumeric characters
func isAlphanumeric(s string) bool {
	for _, r := range s {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return false
		}
	}
	return true
}
