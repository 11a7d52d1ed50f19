package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"time"

	"mcp-tool-server/internal/models"
	mcperrors "mcp-tool-server/pkg/errors"
	"mcp-tool-server/pkg/tools"
)

// protocolVersion is the MCP protocol revision this server speaks
const protocolVersion = "2024-11-05"

// handleInitialize handles the MCP initialize method
func (s *MCPServer) handleInitialize(message *models.MCPMessage) *models.MCPMessage {
	var params models.MCPInitializeParams
	if err := decodeParams(message.Params, &params); err != nil {
		return s.createStructuredErrorResponse(message.ID, err)
	}

	s.transition(StateInitializing)

	s.logger.WithContext("client_name", params.ClientInfo.Name).
		WithContext("client_version", params.ClientInfo.Version).
		WithContext("client_protocol", params.ProtocolVersion).
		Info("Initialization started")

	result := models.MCPInitializeResult{
		ProtocolVersion: protocolVersion,
		Capabilities:    s.capabilities,
		ServerInfo:      s.serverInfo,
	}

	return &models.MCPMessage{
		JSONRPC: models.JSONRPCVersion,
		ID:      message.ID,
		Result:  result,
	}
}

// handleInitialized handles the initialized notification, completing the
// handshake. No response for notifications.
func (s *MCPServer) handleInitialized(message *models.MCPMessage) *models.MCPMessage {
	s.transition(StateReady)
	s.logger.Info("Session ready")
	return nil
}

// handleToolsList handles the tools/list method. Tools are listed in
// registration order.
func (s *MCPServer) handleToolsList(message *models.MCPMessage) *models.MCPMessage {
	definitions := s.registry.List()

	toolList := make([]models.MCPTool, 0, len(definitions))
	for _, def := range definitions {
		toolList = append(toolList, models.MCPTool{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: tools.SchemaMap(def.Parameters),
		})
	}

	return &models.MCPMessage{
		JSONRPC: models.JSONRPCVersion,
		ID:      message.ID,
		Result:  models.MCPToolsListResult{Tools: toolList},
	}
}

// handleToolsCall handles the tools/call method: security gate, admission
// slot, then tool invocation bounded by the request deadline.
func (s *MCPServer) handleToolsCall(message *models.MCPMessage) *models.MCPMessage {
	var params models.MCPToolsCallParams
	if err := decodeParams(message.Params, &params); err != nil {
		return s.createStructuredErrorResponse(message.ID, err)
	}
	if params.Name == "" {
		return s.createStructuredErrorResponse(message.ID,
			mcperrors.NewValidationError(mcperrors.ErrCodeInvalidParams,
				"Missing required parameter: name", nil))
	}
	if params.Arguments == nil {
		params.Arguments = make(map[string]interface{})
	}

	def, err := s.registry.Definition(params.Name)
	if err != nil {
		return s.toolsCallError(message.ID, err)
	}

	if gateErr := s.applySecurityGate(def, params.Arguments); gateErr != nil {
		s.logger.LogSecurityEvent("tool_call_denied", map[string]interface{}{
			"tool":  params.Name,
			"error": gateErr.Error(),
		})
		return s.createStructuredErrorResponse(message.ID, gateErr)
	}

	// The deadline covers queue wait and execution together
	reqCtx, cancel, release, admitErr := s.admission.begin(context.Background())
	if admitErr != nil {
		return s.createStructuredErrorResponse(message.ID,
			mcperrors.NewTimeoutError(mcperrors.ErrCodeRequestTimeout,
				"Request timed out waiting for an execution slot", admitErr).
				WithContext("tool", params.Name))
	}
	defer cancel()

	type invokeOutcome struct {
		result *tools.Result
		err    error
	}

	// Buffered so a late finisher never blocks; the slot is released
	// when the invocation actually returns, even after a timeout.
	outcomeChan := make(chan invokeOutcome, 1)
	go func() {
		defer release()
		started := time.Now()
		result, invokeErr := s.registry.Invoke(reqCtx, params.Name, params.Arguments)

		success := invokeErr == nil && result != nil && result.Success
		errMsg := ""
		switch {
		case invokeErr != nil:
			errMsg = invokeErr.Error()
		case result != nil && !result.Success:
			errMsg = result.Error
		}
		s.loggingManager.LogToolInvocation(params.Name, time.Since(started), success, errMsg)

		outcomeChan <- invokeOutcome{result: result, err: invokeErr}
	}()

	select {
	case outcome := <-outcomeChan:
		if outcome.err != nil {
			return s.toolsCallError(message.ID, outcome.err)
		}
		return s.toolsCallResponse(message.ID, outcome.result)

	case <-reqCtx.Done():
		s.logger.WithContext("tool", params.Name).
			WithContext("timeout_ms", s.config.RequestTimeout.Milliseconds()).
			Warn("Tool call exceeded request deadline")
		return s.createStructuredErrorResponse(message.ID,
			mcperrors.NewTimeoutError(mcperrors.ErrCodeRequestTimeout,
				"Tool call timed out", reqCtx.Err()).
				WithContext("tool", params.Name))
	}
}

// applySecurityGate consults the policy for the argument a tool's
// capability declares. A missing or mistyped argument is left for schema
// validation to report.
func (s *MCPServer) applySecurityGate(def tools.Definition, arguments map[string]interface{}) *mcperrors.StructuredError {
	switch def.Capability.Kind {
	case tools.CapabilityFilesystem:
		if path, ok := arguments[def.Capability.PathArg].(string); ok {
			if err := s.policy.CheckPath(path); err != nil {
				return asStructured(err)
			}
		}
	case tools.CapabilitySubprocess:
		if command, ok := arguments[def.Capability.CommandArg].(string); ok {
			if err := s.policy.CheckCommand(command); err != nil {
				return asStructured(err)
			}
		}
	}
	return nil
}

// toolsCallResponse converts a tool result into the wire format. Failed
// executions are reported in-band with isError, not as protocol errors.
func (s *MCPServer) toolsCallResponse(id interface{}, result *tools.Result) *models.MCPMessage {
	var content []models.MCPToolContent

	if result.Success {
		for _, block := range result.Content {
			switch block.Type {
			case "binary":
				content = append(content, models.MCPToolContent{
					Type: "binary",
					Data: base64.StdEncoding.EncodeToString(block.Data),
				})
			default:
				content = append(content, models.MCPToolContent{
					Type: "text",
					Text: block.Text,
				})
			}
		}
	} else {
		content = append(content, models.MCPToolContent{
			Type: "text",
			Text: result.Error,
		})
	}

	return &models.MCPMessage{
		JSONRPC: models.JSONRPCVersion,
		ID:      id,
		Result: models.MCPToolsCallResult{
			Content: content,
			IsError: !result.Success,
		},
	}
}

// toolsCallError maps invocation errors to protocol error responses
func (s *MCPServer) toolsCallError(id interface{}, err error) *models.MCPMessage {
	return s.createStructuredErrorResponse(id, asStructured(err))
}

// handleShutdown handles the shutdown method: stop admitting new calls,
// drain in-flight work, then close the session.
func (s *MCPServer) handleShutdown(message *models.MCPMessage) *models.MCPMessage {
	s.transition(StateShuttingDown)
	s.logger.Info("Shutdown requested, draining in-flight tool calls")

	s.inFlight.Wait()
	s.transition(StateClosed)

	return &models.MCPMessage{
		JSONRPC: models.JSONRPCVersion,
		ID:      message.ID,
		Result:  map[string]interface{}{},
	}
}

// handlePing handles the ping method, valid in every session state
func (s *MCPServer) handlePing(message *models.MCPMessage) *models.MCPMessage {
	if message.IsNotification() {
		return nil
	}
	return &models.MCPMessage{
		JSONRPC: models.JSONRPCVersion,
		ID:      message.ID,
		Result:  map[string]interface{}{},
	}
}

// decodeParams re-marshals the loosely typed params field into the
// expected shape.
func decodeParams(params interface{}, target interface{}) *mcperrors.StructuredError {
	if params == nil {
		return nil
	}
	data, err := json.Marshal(params)
	if err != nil {
		return mcperrors.NewValidationError(mcperrors.ErrCodeInvalidParams,
			"Invalid parameters", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return mcperrors.NewValidationError(mcperrors.ErrCodeInvalidParams,
			"Invalid parameters format", err)
	}
	return nil
}

// asStructured returns err as a StructuredError, wrapping foreign errors
// as internal tool failures.
func asStructured(err error) *mcperrors.StructuredError {
	if structuredErr, ok := err.(*mcperrors.StructuredError); ok {
		return structuredErr
	}
	return mcperrors.NewToolError(mcperrors.ErrCodeToolExecution,
		"Tool invocation failed", err)
}
