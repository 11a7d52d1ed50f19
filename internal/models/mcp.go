package models

// JSONRPCVersion is the protocol version tag carried by every envelope.
const JSONRPCVersion = "2.0"

// MCPMessage represents a JSON-RPC 2.0 message for MCP protocol.
// A message with a method and no ID is a notification; a message carrying
// result or error is a response. Result and Error are mutually exclusive.
type MCPMessage struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id,omitempty"`
	Method  string      `json:"method,omitempty"`
	Params  interface{} `json:"params,omitempty"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

// IsNotification reports whether the message is a notification (no id).
func (m *MCPMessage) IsNotification() bool {
	return m.Method != "" && m.ID == nil
}

// IsResponse reports whether the message carries a result or an error.
func (m *MCPMessage) IsResponse() bool {
	return m.Method == "" && (m.Result != nil || m.Error != nil)
}

// MCPError represents an error in MCP protocol
type MCPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// MCPServerInfo represents server information for MCP initialization
type MCPServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// MCPClientInfo represents client information
type MCPClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// MCPCapabilities represents server capabilities
type MCPCapabilities struct {
	Tools *MCPToolCapabilities `json:"tools,omitempty"`
}

// MCPInitializeParams represents initialization parameters
type MCPInitializeParams struct {
	ProtocolVersion string                 `json:"protocolVersion"`
	Capabilities    map[string]interface{} `json:"capabilities"`
	ClientInfo      MCPClientInfo          `json:"clientInfo"`
}

// MCPInitializeResult represents initialization result
type MCPInitializeResult struct {
	ProtocolVersion string          `json:"protocolVersion"`
	Capabilities    MCPCapabilities `json:"capabilities"`
	ServerInfo      MCPServerInfo   `json:"serverInfo"`
}
