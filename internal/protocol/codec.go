// Package protocol implements the JSON-RPC 2.0 wire codec used by the
// MCP server. It validates envelope structure only; method dispatch and
// parameter validation happen in the server layer.
package protocol

import (
	"encoding/json"
	"fmt"

	"mcp-tool-server/internal/models"
	"mcp-tool-server/pkg/errors"
)

// Parse decodes a raw JSON-RPC message and validates its envelope.
// Malformed JSON yields a parse error; a structurally valid JSON value
// that is not a conforming JSON-RPC 2.0 message yields an invalid
// request error.
func Parse(raw []byte) (*models.MCPMessage, error) {
	var message models.MCPMessage
	if err := json.Unmarshal(raw, &message); err != nil {
		return nil, errors.NewProtocolError(errors.ErrCodeParseError,
			"Failed to parse JSON-RPC message", err)
	}

	if message.JSONRPC != models.JSONRPCVersion {
		return nil, errors.NewProtocolError(errors.ErrCodeInvalidRequest,
			fmt.Sprintf("Unsupported JSON-RPC version: %q", message.JSONRPC), nil).
			WithContext("jsonrpc", message.JSONRPC)
	}

	if message.Method == "" && !message.IsResponse() {
		return nil, errors.NewProtocolError(errors.ErrCodeInvalidRequest,
			"Message has no method and is not a response", nil)
	}

	if err := validateID(message.ID); err != nil {
		return nil, err
	}

	return &message, nil
}

// validateID rejects request ids that JSON-RPC 2.0 does not allow.
// Numbers arrive as float64 from encoding/json.
func validateID(id interface{}) error {
	switch id.(type) {
	case nil, string, float64:
		return nil
	default:
		return errors.NewProtocolError(errors.ErrCodeInvalidRequest,
			"Request id must be a string, number or null", nil).
			WithContext("id_type", fmt.Sprintf("%T", id))
	}
}

// Serialize encodes a message for the wire
func Serialize(message *models.MCPMessage) ([]byte, error) {
	data, err := json.Marshal(message)
	if err != nil {
		return nil, errors.NewProtocolError(errors.ErrCodeSerializeFailed,
			"Failed to serialize JSON-RPC message", err)
	}
	return data, nil
}
