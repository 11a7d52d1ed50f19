package logging

import (
	"strings"
	"sync"
	"time"

	"mcp-tool-server/pkg/errors"
)

// Level represents the logging level for filtering
type Level int

const (
	LevelDEBUG Level = iota
	LevelINFO
	LevelWARN
	LevelERROR
)

// LoggingManager manages structured logging across the application
type LoggingManager struct {
	loggers map[string]*StructuredLogger
	mutex   sync.RWMutex

	// Global context that gets added to all log entries
	globalContext LogContext

	// Statistics
	stats LoggingStats

	// Log level for filtering
	logLevel Level
}

// LoggingStats tracks logging statistics
type LoggingStats struct {
	TotalMessages    int64            `json:"totalMessages"`
	MessagesByLevel  map[string]int64 `json:"messagesByLevel"`
	MessagesByLogger map[string]int64 `json:"messagesByLogger"`
	ErrorCount       int64            `json:"errorCount"`
	LastLogTime      time.Time        `json:"lastLogTime"`
}

// NewLoggingManager creates a new logging manager
func NewLoggingManager() *LoggingManager {
	return &LoggingManager{
		loggers:       make(map[string]*StructuredLogger),
		globalContext: make(LogContext),
		stats: LoggingStats{
			MessagesByLevel:  make(map[string]int64),
			MessagesByLogger: make(map[string]int64),
		},
		logLevel: LevelINFO, // Default to INFO level
	}
}

// GetLogger gets or creates a logger for a specific component
func (lm *LoggingManager) GetLogger(component string) *StructuredLogger {
	lm.mutex.Lock()
	defer lm.mutex.Unlock()

	if logger, exists := lm.loggers[component]; exists {
		return logger
	}

	logger := NewStructuredLogger(component)
	logger.manager = lm // Set reference to manager for log level checks

	for key, value := range lm.globalContext {
		logger = logger.WithContext(key, value)
	}

	lm.loggers[component] = logger
	return logger
}

// SetLogLevel sets the logging level for all loggers.
// Accepts any string and defaults to INFO for invalid levels.
func (lm *LoggingManager) SetLogLevel(level string) {
	lm.mutex.Lock()
	defer lm.mutex.Unlock()

	switch strings.ToUpper(level) {
	case "DEBUG":
		lm.logLevel = LevelDEBUG
	case "INFO":
		lm.logLevel = LevelINFO
	case "WARN":
		lm.logLevel = LevelWARN
	case "ERROR":
		lm.logLevel = LevelERROR
	default:
		lm.logLevel = LevelINFO
	}
}

// shouldLog checks if a message at the given level should be logged
func (lm *LoggingManager) shouldLog(level LogLevel) bool {
	lm.mutex.RLock()
	defer lm.mutex.RUnlock()

	var numeric Level
	switch level {
	case LogLevelDebug:
		numeric = LevelDEBUG
	case LogLevelInfo:
		numeric = LevelINFO
	case LogLevelWarn:
		numeric = LevelWARN
	case LogLevelError:
		numeric = LevelERROR
	}
	return numeric >= lm.logLevel
}

// SetGlobalContext sets global context that will be added to all log entries
func (lm *LoggingManager) SetGlobalContext(key string, value interface{}) {
	lm.mutex.Lock()
	defer lm.mutex.Unlock()

	lm.globalContext[key] = value

	// Update existing loggers with new global context
	for component, logger := range lm.loggers {
		lm.loggers[component] = logger.WithContext(key, value)
	}
}

// LogError logs an error with full context
func (lm *LoggingManager) LogError(component string, err error, message string, context map[string]interface{}) {
	logger := lm.GetLogger(component).WithError(err)

	for k, v := range context {
		logger = logger.WithContext(k, v)
	}

	logger.Error(message)
	lm.updateStats(component, "ERROR")
}

// LogCircuitBreakerStateChange logs circuit breaker state changes
func (lm *LoggingManager) LogCircuitBreakerStateChange(name string, oldState, newState errors.CircuitBreakerState) {
	logger := lm.GetLogger("circuit_breaker")
	logger.LogCircuitBreakerEvent(name, oldState, newState)
	lm.updateStats("circuit_breaker", "WARN")
}

// LogMCPRequest logs MCP protocol requests with timing
func (lm *LoggingManager) LogMCPRequest(method string, requestID interface{}, duration time.Duration, success bool, errorMsg string) {
	logger := lm.GetLogger("mcp_protocol")

	if !success && errorMsg != "" {
		logger = logger.WithContext("error_message", errorMsg)
	}

	logger.LogMCPMessage(method, requestID, duration, success)

	level := "INFO"
	if !success {
		level = "WARN"
	}
	lm.updateStats("mcp_protocol", level)
}

// LogToolInvocation logs a tool invocation with timing
func (lm *LoggingManager) LogToolInvocation(tool string, duration time.Duration, success bool, errorMsg string) {
	logger := lm.GetLogger("tools").
		WithContext("tool", tool).
		WithContext("duration_ms", duration.Milliseconds()).
		WithContext("success", success)

	if !success && errorMsg != "" {
		logger = logger.WithContext("error_message", errorMsg)
	}

	if success {
		logger.Info("Tool invocation completed")
		lm.updateStats("tools", "INFO")
	} else {
		logger.Warn("Tool invocation failed")
		lm.updateStats("tools", "WARN")
	}
}

// LogFileSystemEvent logs file system monitoring events
func (lm *LoggingManager) LogFileSystemEvent(eventType string, path string) {
	lm.GetLogger("file_monitor").
		WithContext("fs_event_type", eventType).
		WithContext("fs_path", path).
		Info("File system event detected")
	lm.updateStats("file_monitor", "INFO")
}

// LogSessionEvent logs session lifecycle events (state transitions, shutdown)
func (lm *LoggingManager) LogSessionEvent(event string, details map[string]interface{}) {
	logger := lm.GetLogger("session").WithContext("session_event", event)
	for k, v := range details {
		logger = logger.WithContext(k, v)
	}
	logger.Info("Session event")
	lm.updateStats("session", "INFO")
}

// updateStats updates logging statistics
func (lm *LoggingManager) updateStats(component, level string) {
	lm.mutex.Lock()
	defer lm.mutex.Unlock()

	lm.stats.TotalMessages++
	lm.stats.MessagesByLevel[level]++
	lm.stats.MessagesByLogger[component]++
	lm.stats.LastLogTime = time.Now()

	if level == "ERROR" {
		lm.stats.ErrorCount++
	}
}

// GetStats returns current logging statistics
func (lm *LoggingManager) GetStats() LoggingStats {
	lm.mutex.RLock()
	defer lm.mutex.RUnlock()

	// Return a copy to avoid concurrent access issues
	stats := LoggingStats{
		TotalMessages:    lm.stats.TotalMessages,
		ErrorCount:       lm.stats.ErrorCount,
		LastLogTime:      lm.stats.LastLogTime,
		MessagesByLevel:  make(map[string]int64),
		MessagesByLogger: make(map[string]int64),
	}

	for k, v := range lm.stats.MessagesByLevel {
		stats.MessagesByLevel[k] = v
	}
	for k, v := range lm.stats.MessagesByLogger {
		stats.MessagesByLogger[k] = v
	}

	return stats
}
