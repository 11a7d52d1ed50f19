package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// ParameterType is the JSON type tag of a tool parameter
type ParameterType string

const (
	TypeString  ParameterType = "string"
	TypeNumber  ParameterType = "number"
	TypeInteger ParameterType = "integer"
	TypeBoolean ParameterType = "boolean"
	TypeObject  ParameterType = "object"
	TypeArray   ParameterType = "array"
)

// Parameter describes one declared tool argument
type Parameter struct {
	Name        string
	Type        ParameterType
	Description string
	Required    bool
	Default     interface{}
	Enum        []interface{}
}

// CapabilityKind identifies which security gate applies to a tool
type CapabilityKind int

const (
	// CapabilityNone - tool touches neither paths nor commands
	CapabilityNone CapabilityKind = iota
	// CapabilityFilesystem - tool operates on a filesystem path
	CapabilityFilesystem
	// CapabilitySubprocess - tool runs a shell command
	CapabilitySubprocess
)

// Capability declares a tool's sensitive capability and which argument the
// dispatcher must gate before invocation.
type Capability struct {
	Kind       CapabilityKind
	PathArg    string
	CommandArg string
}

// ContentBlock is one typed block of tool output
type ContentBlock struct {
	Type string // "text" or "binary"
	Text string
	Data []byte
}

// Result is the outcome of a tool execution. A failed result always carries
// a non-empty error message.
type Result struct {
	Success bool
	Content []ContentBlock
	Error   string
}

// TextResult creates a successful result with a single text block
func TextResult(text string) *Result {
	return &Result{
		Success: true,
		Content: []ContentBlock{{Type: "text", Text: text}},
	}
}

// JSONResult creates a successful result with v marshaled into a text block
func JSONResult(v interface{}) *Result {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return ErrorResult("failed to serialize result: %v", err)
	}
	return TextResult(string(data))
}

// BinaryResult creates a successful result with a single binary block
func BinaryResult(data []byte) *Result {
	return &Result{
		Success: true,
		Content: []ContentBlock{{Type: "binary", Data: data}},
	}
}

// ErrorResult creates a failed result with a formatted error message
func ErrorResult(format string, args ...interface{}) *Result {
	msg := fmt.Sprintf(format, args...)
	if msg == "" {
		msg = "tool execution failed"
	}
	return &Result{Success: false, Error: msg}
}

// Tool represents an executable function exposed via MCP
type Tool interface {
	// Name returns the unique identifier for the tool
	Name() string

	// Description returns a human-readable description
	Description() string

	// Parameters returns the declared parameters in schema order
	Parameters() []Parameter

	// Capability returns the sensitive capability the tool declares, if any
	Capability() Capability

	// Execute runs the tool with validated arguments. Execution failures are
	// reported through the result, never through a panic or fault.
	Execute(ctx context.Context, arguments map[string]interface{}) *Result
}

// Cacheable is implemented by read-only tools whose results may be served
// from the result cache between filesystem changes.
type Cacheable interface {
	Cacheable() bool
}

// Definition represents metadata about a registered tool
type Definition struct {
	Name        string
	Description string
	Parameters  []Parameter
	Capability  Capability
}

// NewDefinition creates a Definition from a Tool
func NewDefinition(tool Tool) Definition {
	return Definition{
		Name:        tool.Name(),
		Description: tool.Description(),
		Parameters:  tool.Parameters(),
		Capability:  tool.Capability(),
	}
}

// BuildSchema converts declared parameters into a JSON schema used for
// argument validation and for the tools/list wire format.
func BuildSchema(params []Parameter) *jsonschema.Schema {
	properties := make(map[string]*jsonschema.Schema, len(params))
	var required []string

	for _, p := range params {
		prop := &jsonschema.Schema{
			Type:        string(p.Type),
			Description: p.Description,
		}
		if len(p.Enum) > 0 {
			prop.Enum = append([]interface{}(nil), p.Enum...)
		}
		properties[p.Name] = prop

		if p.Required {
			required = append(required, p.Name)
		}
	}

	return &jsonschema.Schema{
		Type:       "object",
		Properties: properties,
		Required:   required,
	}
}

// SchemaMap renders the parameter schema in the map form used on the wire
func SchemaMap(params []Parameter) map[string]interface{} {
	schema := BuildSchema(params)

	data, err := json.Marshal(schema)
	if err != nil {
		return map[string]interface{}{"type": "object"}
	}

	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return map[string]interface{}{"type": "object"}
	}
	if _, ok := m["required"]; !ok {
		m["required"] = []interface{}{}
	}
	return m
}
