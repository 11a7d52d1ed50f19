package tools

import (
	"context"
	"strings"
	"testing"

	"mcp-tool-server/pkg/errors"
	"mcp-tool-server/pkg/logging"
)

// fakeTool is a configurable tool for pipeline tests
type fakeTool struct {
	name       string
	params     []Parameter
	capability Capability
	execute    func(ctx context.Context, args map[string]interface{}) *Result
}

func (f *fakeTool) Name() string            { return f.name }
func (f *fakeTool) Description() string     { return "test tool" }
func (f *fakeTool) Parameters() []Parameter { return f.params }
func (f *fakeTool) Capability() Capability  { return f.capability }
func (f *fakeTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	return f.execute(ctx, args)
}

func testLogger() *logging.StructuredLogger {
	return logging.NewLoggingManager().GetLogger("test")
}

func newFakeTool(name string, params []Parameter) *fakeTool {
	return &fakeTool{
		name:   name,
		params: params,
		execute: func(ctx context.Context, args map[string]interface{}) *Result {
			return TextResult("ok")
		},
	}
}

func TestExecuteSuccess(t *testing.T) {
	executor := NewExecutor(testLogger())
	params := []Parameter{{Name: "value", Type: TypeString, Required: true}}
	tool := newFakeTool("echo", params)

	resolved, err := BuildSchema(params).Resolve(nil)
	if err != nil {
		t.Fatalf("Failed to resolve schema: %v", err)
	}

	result, execErr := executor.Execute(context.Background(), tool, resolved,
		map[string]interface{}{"value": "hello"})
	if execErr != nil {
		t.Fatalf("Expected no error, got %v", execErr)
	}
	if !result.Success {
		t.Errorf("Expected success, got failure: %s", result.Error)
	}
}

func TestExecuteMissingRequired(t *testing.T) {
	executor := NewExecutor(testLogger())
	params := []Parameter{
		{Name: "alpha", Type: TypeString, Required: true},
		{Name: "beta", Type: TypeString, Required: true},
	}
	tool := newFakeTool("strict", params)
	resolved, _ := BuildSchema(params).Resolve(nil)

	_, err := executor.Execute(context.Background(), tool, resolved, map[string]interface{}{})
	if err == nil {
		t.Fatal("Expected validation error for missing arguments")
	}

	structuredErr, ok := err.(*errors.StructuredError)
	if !ok {
		t.Fatalf("Expected StructuredError, got %T", err)
	}
	if structuredErr.Code != errors.ErrCodeMissingArgument {
		t.Errorf("Expected code %s, got %s", errors.ErrCodeMissingArgument, structuredErr.Code)
	}
	// Missing names are sorted and listed
	if !strings.Contains(structuredErr.Message, "alpha, beta") {
		t.Errorf("Expected sorted missing argument names, got %q", structuredErr.Message)
	}
}

func TestExecuteUnknownArgument(t *testing.T) {
	executor := NewExecutor(testLogger())
	params := []Parameter{{Name: "value", Type: TypeString, Required: true}}
	tool := newFakeTool("strict", params)
	resolved, _ := BuildSchema(params).Resolve(nil)

	_, err := executor.Execute(context.Background(), tool, resolved,
		map[string]interface{}{"value": "x", "bogus": 1})
	if err == nil {
		t.Fatal("Expected validation error for unknown argument")
	}

	structuredErr := err.(*errors.StructuredError)
	if structuredErr.Code != errors.ErrCodeUnknownArgument {
		t.Errorf("Expected code %s, got %s", errors.ErrCodeUnknownArgument, structuredErr.Code)
	}
	if !strings.Contains(structuredErr.Message, "bogus") {
		t.Errorf("Expected the unknown field to be named, got %q", structuredErr.Message)
	}
}

func TestExecuteTypeMismatch(t *testing.T) {
	executor := NewExecutor(testLogger())
	params := []Parameter{{Name: "count", Type: TypeInteger, Required: true}}
	tool := newFakeTool("typed", params)
	resolved, _ := BuildSchema(params).Resolve(nil)

	_, err := executor.Execute(context.Background(), tool, resolved,
		map[string]interface{}{"count": "not a number"})
	if err == nil {
		t.Fatal("Expected validation error for type mismatch")
	}

	structuredErr := err.(*errors.StructuredError)
	if structuredErr.Code != errors.ErrCodeArgumentType {
		t.Errorf("Expected code %s, got %s", errors.ErrCodeArgumentType, structuredErr.Code)
	}
}

func TestExecuteAppliesDefaults(t *testing.T) {
	executor := NewExecutor(testLogger())
	params := []Parameter{
		{Name: "value", Type: TypeString, Required: true},
		{Name: "mode", Type: TypeString, Default: "fast"},
	}

	var seenMode interface{}
	tool := &fakeTool{
		name:   "defaulted",
		params: params,
		execute: func(ctx context.Context, args map[string]interface{}) *Result {
			seenMode = args["mode"]
			return TextResult("ok")
		},
	}
	resolved, _ := BuildSchema(params).Resolve(nil)

	_, err := executor.Execute(context.Background(), tool, resolved,
		map[string]interface{}{"value": "x"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if seenMode != "fast" {
		t.Errorf("Expected default mode 'fast', got %v", seenMode)
	}
}

func TestExecuteDefaultsDoNotMutateCallerMap(t *testing.T) {
	executor := NewExecutor(testLogger())
	params := []Parameter{{Name: "mode", Type: TypeString, Default: "fast"}}
	tool := newFakeTool("defaulted", params)
	resolved, _ := BuildSchema(params).Resolve(nil)

	args := map[string]interface{}{}
	if _, err := executor.Execute(context.Background(), tool, resolved, args); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if _, ok := args["mode"]; ok {
		t.Error("Expected caller's argument map to stay untouched")
	}
}

func TestExecutePanicContainment(t *testing.T) {
	executor := NewExecutor(testLogger())
	tool := &fakeTool{
		name: "panicky",
		execute: func(ctx context.Context, args map[string]interface{}) *Result {
			panic("boom")
		},
	}
	resolved, _ := BuildSchema(nil).Resolve(nil)

	result, err := executor.Execute(context.Background(), tool, resolved, map[string]interface{}{})
	if err != nil {
		t.Fatalf("Expected panic to become a failed result, got error %v", err)
	}
	if result.Success {
		t.Error("Expected failed result after panic")
	}
	if !strings.Contains(result.Error, "boom") {
		t.Errorf("Expected panic value in error, got %q", result.Error)
	}
}

func TestExecuteNilResult(t *testing.T) {
	executor := NewExecutor(testLogger())
	tool := &fakeTool{
		name: "silent",
		execute: func(ctx context.Context, args map[string]interface{}) *Result {
			return nil
		},
	}
	resolved, _ := BuildSchema(nil).Resolve(nil)

	result, err := executor.Execute(context.Background(), tool, resolved, map[string]interface{}{})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result == nil || result.Success {
		t.Fatal("Expected a failed result for a nil tool result")
	}
	if result.Error == "" {
		t.Error("Expected a failed result to carry a message")
	}
}

func TestErrorResultNeverEmpty(t *testing.T) {
	result := ErrorResult("")
	if result.Error == "" {
		t.Error("Expected a fallback error message")
	}
}
