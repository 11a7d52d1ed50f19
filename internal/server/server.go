package server

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"mcp-tool-server/internal/models"
	"mcp-tool-server/internal/protocol"
	"mcp-tool-server/internal/transport"
	"mcp-tool-server/pkg/cache"
	mcperrors "mcp-tool-server/pkg/errors"
	"mcp-tool-server/pkg/logging"
	"mcp-tool-server/pkg/monitor"
	"mcp-tool-server/pkg/security"
	"mcp-tool-server/pkg/tools"
)

// SessionState tracks where a session is in its lifecycle
type SessionState int

const (
	StateUninitialized SessionState = iota
	StateInitializing
	StateReady
	StateShuttingDown
	StateClosed
)

// String returns a human-readable state name
func (s SessionState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateShuttingDown:
		return "shutting_down"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// MCPServer represents one MCP session: a state machine dispatching
// JSON-RPC requests to a tool registry behind security and admission
// gates.
type MCPServer struct {
	config       *Config
	serverInfo   models.MCPServerInfo
	capabilities models.MCPCapabilities
	sessionID    string

	state SessionState
	mu    sync.RWMutex

	// Tool invocation pipeline
	registry  *tools.Registry
	policy    *security.Policy
	admission *admissionController

	// Result caching and invalidation
	results *cache.ResultCache
	monitor *monitor.InvalidationMonitor

	// Logging
	loggingManager *logging.LoggingManager
	logger         *logging.StructuredLogger

	// In-flight tool calls, drained on shutdown
	inFlight  sync.WaitGroup
	closeOnce sync.Once
}

// NewMCPServer creates a server session from the given configuration.
// A nil config uses defaults.
func NewMCPServer(config *Config) *MCPServer {
	if config == nil {
		config = DefaultConfig()
	}

	sessionID := ulid.Make().String()

	loggingManager := logging.NewLoggingManager()
	loggingManager.SetLogLevel(config.LogLevel)
	loggingManager.SetGlobalContext("service", config.Name)
	loggingManager.SetGlobalContext("version", config.Version)
	loggingManager.SetGlobalContext("session_id", sessionID)
	logger := loggingManager.GetLogger("server")

	policy := security.NewPolicy(config.AllowedPaths, config.AllowedCommands, config.BlockedCommands)

	results := cache.NewResultCache(config.CacheTTL, loggingManager.GetLogger("cache"))

	// Filesystem invalidation is best-effort: a session without a
	// watcher still works, entries just age out by TTL.
	var invalidation *monitor.InvalidationMonitor
	if len(config.AllowedPaths) > 0 {
		var err error
		invalidation, err = monitor.NewInvalidationMonitor(loggingManager.GetLogger("monitor"))
		if err != nil {
			loggingManager.LogError("server", err,
				"Failed to create file system monitor, cache runs on TTL only", nil)
			invalidation = nil
		} else {
			invalidation.OnChange(func(event monitor.FileEvent) {
				removed := results.InvalidateUnder(event.Path)
				if removed > 0 {
					loggingManager.LogFileSystemEvent(event.Type, event.Path)
				}
			})
			for _, root := range policy.AllowedPaths() {
				if err := invalidation.Watch(root); err != nil {
					loggingManager.LogError("server", err, "Failed to watch allowed root",
						map[string]interface{}{"path": root})
				}
			}
		}
	}

	registry := tools.NewRegistry(loggingManager.GetLogger("registry"), results)
	registry.SetBreakerStateHook(loggingManager.LogCircuitBreakerStateChange)
	registerBuiltinTools(registry, config, logger)

	server := &MCPServer{
		config: config,
		serverInfo: models.MCPServerInfo{
			Name:    config.Name,
			Version: config.Version,
		},
		capabilities: models.MCPCapabilities{
			Tools: &models.MCPToolCapabilities{ListChanged: false},
		},
		sessionID: sessionID,
		state:     StateUninitialized,

		registry:  registry,
		policy:    policy,
		admission: newAdmissionController(config.MaxConcurrentRequests, config.RequestTimeout),

		results: results,
		monitor: invalidation,

		loggingManager: loggingManager,
		logger:         logger,
	}

	return server
}

// registerBuiltinTools registers the standard tool set. Shell access is
// opt-in.
func registerBuiltinTools(registry *tools.Registry, config *Config, logger *logging.StructuredLogger) {
	builtins := []tools.Tool{
		tools.NewFileReadTool(0),
		tools.NewFileWriteTool(),
		tools.NewSearchTool(0),
		tools.NewGlobTool(0),
	}
	if config.EnableShellTools {
		builtins = append(builtins, tools.NewShellTool(""))
	}

	for _, tool := range builtins {
		if err := registry.Register(tool); err != nil {
			logger.WithError(err).WithContext("tool", tool.Name()).
				Error("Failed to register built-in tool")
		}
	}
}

// Registry exposes the tool registry for registering additional tools
// before the session starts serving.
func (s *MCPServer) Registry() *tools.Registry {
	return s.registry
}

// SessionID returns the unique identifier of this session
func (s *MCPServer) SessionID() string {
	return s.sessionID
}

// State returns the current session state
func (s *MCPServer) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Serve runs the message loop over the given transport until the peer
// disconnects, a fatal transport error occurs, or the context is
// cancelled. Tool calls run concurrently; all other methods are handled
// serially in receipt order.
func (s *MCPServer) Serve(ctx context.Context, t transport.Transport) error {
	defer s.closeSession()

	s.loggingManager.LogSessionEvent("session_start", map[string]interface{}{
		"max_concurrent":     s.config.MaxConcurrentRequests,
		"request_timeout_ms": s.config.RequestTimeout.Milliseconds(),
		"tools":              s.registry.Size(),
	})

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		raw, err := t.ReadMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.logger.Info("Peer closed the connection")
				s.inFlight.Wait()
				return nil
			}
			s.logger.WithError(err).Error("Fatal transport read error")
			s.inFlight.Wait()
			return err
		}

		message, parseErr := protocol.Parse(raw)
		if parseErr != nil {
			s.sendParseFailure(t, parseErr)
			continue
		}

		if message.Method == "tools/call" && !message.IsNotification() {
			s.inFlight.Add(1)
			go func(m *models.MCPMessage) {
				defer s.inFlight.Done()
				if response := s.handleMessage(m); response != nil {
					s.send(t, response)
				}
			}(message)
			continue
		}

		if response := s.handleMessage(message); response != nil {
			s.send(t, response)
		}

		if s.State() == StateClosed {
			return nil
		}
	}
}

// send serializes and writes a response. Write failures end up fatal on
// the next read, so they are only logged here.
func (s *MCPServer) send(t transport.Transport, response *models.MCPMessage) {
	data, err := protocol.Serialize(response)
	if err != nil {
		s.logger.WithError(err).Error("Failed to serialize response")
		return
	}
	if err := t.WriteMessage(data); err != nil {
		s.logger.WithError(err).Error("Failed to write response")
	}
}

// sendParseFailure reports an unparseable or malformed inbound message
func (s *MCPServer) sendParseFailure(t transport.Transport, err error) {
	s.send(t, s.parseFailureResponse(err))
}

// parseFailureResponse builds the error response for a message that
// never yielded a request id, so it carries a null id.
func (s *MCPServer) parseFailureResponse(err error) *models.MCPMessage {
	s.logger.WithError(err).Warn("Rejected inbound message")

	var structuredErr *mcperrors.StructuredError
	if !errors.As(err, &structuredErr) {
		structuredErr = mcperrors.NewProtocolError(mcperrors.ErrCodeParseError,
			"Failed to parse message", err)
	}
	return s.createStructuredErrorResponse(nil, structuredErr)
}

// closeSession releases session resources exactly once
func (s *MCPServer) closeSession() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state = StateClosed
		s.mu.Unlock()

		if s.monitor != nil {
			if err := s.monitor.Close(); err != nil {
				s.logger.WithError(err).Error("Error stopping file monitor")
			}
		}
		s.results.Close()
		s.results.Clear()

		s.loggingManager.LogSessionEvent("session_closed", map[string]interface{}{
			"session_id": s.sessionID,
		})
	})
}

// Close releases session resources. Serve closes the session itself;
// callers driving HandleMessage directly own the close.
func (s *MCPServer) Close() {
	s.closeSession()
}

// HandleMessage processes one MCP message synchronously and returns the
// response, or nil for notifications. The HTTP transport and tests use
// this entry point.
func (s *MCPServer) HandleMessage(message *models.MCPMessage) *models.MCPMessage {
	return s.handleMessage(message)
}

// handleMessage routes a message through the session state machine
func (s *MCPServer) handleMessage(message *models.MCPMessage) *models.MCPMessage {
	startTime := time.Now()
	var response *models.MCPMessage

	defer func() {
		success := response == nil || response.Error == nil
		errorMsg := ""
		if !success {
			errorMsg = response.Error.Message
		}
		s.loggingManager.LogMCPRequest(message.Method, message.ID, time.Since(startTime), success, errorMsg)
	}()

	if err := s.checkState(message.Method); err != nil {
		if message.IsNotification() {
			return nil
		}
		response = s.createStructuredErrorResponse(message.ID, err)
		return response
	}

	switch message.Method {
	case "initialize":
		response = s.handleInitialize(message)
	case "initialized", "notifications/initialized":
		response = s.handleInitialized(message)
	case "tools/list":
		response = s.handleToolsList(message)
	case "tools/call":
		// A notification has no id to correlate a response or an error
		// to, so an id-less call is dropped without executing anything.
		if message.IsNotification() {
			s.logger.WithContext("method", message.Method).
				Warn("Dropped tools/call notification")
			return nil
		}
		response = s.handleToolsCall(message)
	case "shutdown":
		response = s.handleShutdown(message)
	case "ping":
		response = s.handlePing(message)
	case "server/performance":
		response = s.handlePerformanceMetrics(message)
	default:
		if message.IsNotification() {
			return nil // unknown notifications are dropped
		}
		response = s.createStructuredErrorResponse(message.ID,
			mcperrors.NewProtocolError(mcperrors.ErrCodeMethodNotFound,
				"Method not found", nil).WithContext("method", message.Method))
	}

	return response
}

// checkState rejects methods that are invalid in the current session
// state. ping is valid everywhere.
func (s *MCPServer) checkState(method string) *mcperrors.StructuredError {
	if method == "ping" {
		return nil
	}

	s.mu.RLock()
	state := s.state
	s.mu.RUnlock()

	switch state {
	case StateUninitialized:
		if method == "initialize" {
			return nil
		}
		return mcperrors.NewProtocolError(mcperrors.ErrCodeNotInitialized,
			"Server not initialized", nil).WithContext("method", method)
	case StateInitializing:
		if method == "initialized" || method == "notifications/initialized" {
			return nil
		}
		return mcperrors.NewProtocolError(mcperrors.ErrCodeNotInitialized,
			"Initialization handshake not complete", nil).WithContext("method", method)
	case StateReady:
		if method == "initialize" {
			return mcperrors.NewProtocolError(mcperrors.ErrCodeInvalidRequest,
				"Session already initialized", nil)
		}
		return nil
	case StateShuttingDown, StateClosed:
		return mcperrors.NewProtocolError(mcperrors.ErrCodeSessionClosed,
			"Server is shutting down", nil).WithContext("method", method)
	default:
		return mcperrors.NewSystemError(mcperrors.ErrCodeUnexpectedPanic,
			"Unknown session state", nil)
	}
}

// transition moves the session to a new state
func (s *MCPServer) transition(to SessionState) {
	s.mu.Lock()
	from := s.state
	s.state = to
	s.mu.Unlock()

	s.loggingManager.LogSessionEvent("state_transition", map[string]interface{}{
		"from": from.String(),
		"to":   to.String(),
	})
}
