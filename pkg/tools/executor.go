// Package tools provides the tool registry and invocation pipeline.
//
// Invocation discipline:
//   - Declared defaults are applied before validation
//   - Arguments are validated against the declared parameter schema; unknown
//     fields are rejected by name
//   - Executor failures, including panics, are converted into a failed Result
//     so nothing crosses the registry boundary as an unstructured fault
//   - Per-tool circuit breakers isolate repeatedly failing tools
package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"mcp-tool-server/pkg/errors"
	"mcp-tool-server/pkg/logging"
)

const (
	// maxLogLength bounds argument previews in log entries
	maxLogLength = 100
)

// Executor validates arguments and runs tools with failure containment
type Executor struct {
	logger *logging.StructuredLogger
}

// NewExecutor creates a new Executor
func NewExecutor(logger *logging.StructuredLogger) *Executor {
	return &Executor{logger: logger}
}

// Execute validates arguments against the resolved schema and runs the tool.
// A non-nil error is returned only for validation failures; failures inside
// the tool body always come back as a failed Result.
func (e *Executor) Execute(ctx context.Context, tool Tool, resolved *jsonschema.Resolved, arguments map[string]interface{}) (*Result, error) {
	args, err := e.Prepare(tool, resolved, arguments)
	if err != nil {
		return nil, err
	}
	return e.Run(ctx, tool, args), nil
}

// Prepare applies declared defaults and validates the completed argument
// set. The caller's map is never mutated. Callers that separate client
// fault from tool fault run Prepare first and feed only Run's outcome
// into health tracking.
func (e *Executor) Prepare(tool Tool, resolved *jsonschema.Resolved, arguments map[string]interface{}) (map[string]interface{}, error) {
	args := applyDefaults(tool.Parameters(), arguments)

	if err := e.ValidateArguments(tool, resolved, args); err != nil {
		e.logger.WithContext("tool", tool.Name()).
			WithError(err).
			Warn("Tool argument validation failed")
		return nil, err
	}
	return args, nil
}

// Run executes the tool body with prepared arguments, containing panics
// and guaranteeing every failed result explains itself.
func (e *Executor) Run(ctx context.Context, tool Tool, args map[string]interface{}) *Result {
	logger := e.logger.WithContext("tool", tool.Name())
	for k, v := range sanitizeArguments(args) {
		logger = logger.WithContext(fmt.Sprintf("arg_%s", k), v)
	}
	logger.Debug("Executing tool")

	result := e.runContained(ctx, tool, args)

	if !result.Success && result.Error == "" {
		result.Error = "tool execution failed"
	}
	return result
}

// runContained runs the tool body and converts panics into failed results
func (e *Executor) runContained(ctx context.Context, tool Tool, args map[string]interface{}) (result *Result) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.WithContext("tool", tool.Name()).
				WithContext("panic", fmt.Sprintf("%v", r)).
				Error("Tool execution panicked")
			result = ErrorResult("internal tool failure: %v", r)
		}
	}()

	result = tool.Execute(ctx, args)
	if result == nil {
		result = ErrorResult("tool returned no result")
	}
	return result
}

// ValidateArguments validates arguments against the tool's declared
// parameters: required fields present, no unrecognized fields, and types
// compatible with the resolved JSON schema.
func (e *Executor) ValidateArguments(tool Tool, resolved *jsonschema.Resolved, arguments map[string]interface{}) error {
	params := tool.Parameters()

	declared := make(map[string]bool, len(params))
	var missing []string
	for _, p := range params {
		declared[p.Name] = true
		if p.Required {
			if _, ok := arguments[p.Name]; !ok {
				missing = append(missing, p.Name)
			}
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return errors.NewValidationError(errors.ErrCodeMissingArgument,
			fmt.Sprintf("missing required argument(s): %s", strings.Join(missing, ", ")), nil).
			WithContext("tool", tool.Name())
	}

	var unknown []string
	for name := range arguments {
		if !declared[name] {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return errors.NewValidationError(errors.ErrCodeUnknownArgument,
			fmt.Sprintf("unrecognized argument(s): %s", strings.Join(unknown, ", ")), nil).
			WithContext("tool", tool.Name())
	}

	if resolved != nil {
		if err := resolved.Validate(arguments); err != nil {
			return errors.NewValidationError(errors.ErrCodeArgumentType,
				fmt.Sprintf("invalid arguments: %v", err), err).
				WithContext("tool", tool.Name())
		}
	}

	return nil
}

// applyDefaults returns a copy of arguments with declared defaults filled in
func applyDefaults(params []Parameter, arguments map[string]interface{}) map[string]interface{} {
	args := make(map[string]interface{}, len(arguments))
	for k, v := range arguments {
		args[k] = v
	}
	for _, p := range params {
		if p.Default == nil {
			continue
		}
		if _, ok := args[p.Name]; !ok {
			args[p.Name] = p.Default
		}
	}
	return args
}

// sanitizeArguments truncates large argument values for safe logging
func sanitizeArguments(arguments map[string]interface{}) map[string]interface{} {
	sanitized := make(map[string]interface{}, len(arguments))
	for key, value := range arguments {
		if strValue, ok := value.(string); ok && len(strValue) > maxLogLength {
			sanitized[key] = fmt.Sprintf("%s... [%d chars]", strValue[:maxLogLength], len(strValue))
		} else {
			sanitized[key] = value
		}
	}
	return sanitized
}

// durationMillis is a small helper shared by the registry's stat recording
func durationMillis(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
