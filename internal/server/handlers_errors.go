package server

import (
	"runtime"
	"time"

	"mcp-tool-server/internal/models"
	"mcp-tool-server/pkg/errors"
)

// handlePerformanceMetrics handles requests for server performance metrics
func (s *MCPServer) handlePerformanceMetrics(message *models.MCPMessage) *models.MCPMessage {
	serverMetrics := map[string]interface{}{
		"server_info":   s.serverInfo,
		"session_id":    s.sessionID,
		"session_state": s.State().String(),
		"tool_metrics":  s.registry.PerformanceMetrics(),
		"cache_metrics": s.results.GetPerformanceMetrics(),
		"goroutines":    runtime.NumGoroutine(),
		"memory_stats":  getMemoryStats(),
		"timestamp":     time.Now().Format(time.RFC3339),
	}

	return &models.MCPMessage{
		JSONRPC: models.JSONRPCVersion,
		ID:      message.ID,
		Result:  serverMetrics,
	}
}

// createErrorResponse creates an MCP error response
func (s *MCPServer) createErrorResponse(id interface{}, code int, message string) *models.MCPMessage {
	return &models.MCPMessage{
		JSONRPC: models.JSONRPCVersion,
		ID:      id,
		Error: &models.MCPError{
			Code:    code,
			Message: message,
		},
	}
}

// createStructuredErrorResponse creates an MCP error response from a
// structured error
func (s *MCPServer) createStructuredErrorResponse(id interface{}, structuredErr *errors.StructuredError) *models.MCPMessage {
	return &models.MCPMessage{
		JSONRPC: models.JSONRPCVersion,
		ID:      id,
		Error:   structuredErr.ToMCPError(),
	}
}

// getMemoryStats returns current memory statistics
func getMemoryStats() map[string]interface{} {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return map[string]interface{}{
		"alloc_bytes":       m.Alloc,
		"total_alloc_bytes": m.TotalAlloc,
		"sys_bytes":         m.Sys,
		"num_gc":            m.NumGC,
		"gc_cpu_fraction":   m.GCCPUFraction,
	}
}
