package tools

import (
	"context"
	"testing"
	"time"

	"mcp-tool-server/pkg/cache"
	"mcp-tool-server/pkg/errors"
)

func TestRegisterAndList(t *testing.T) {
	registry := NewRegistry(testLogger(), nil)

	names := []string{"charlie", "alpha", "bravo"}
	for _, name := range names {
		if err := registry.Register(newFakeTool(name, nil)); err != nil {
			t.Fatalf("Failed to register %s: %v", name, err)
		}
	}

	if registry.Size() != 3 {
		t.Errorf("Expected 3 tools, got %d", registry.Size())
	}

	// List preserves registration order, not lexical order
	definitions := registry.List()
	for i, name := range names {
		if definitions[i].Name != name {
			t.Errorf("Expected tool %d to be %s, got %s", i, name, definitions[i].Name)
		}
	}
}

func TestRegisterDuplicate(t *testing.T) {
	registry := NewRegistry(testLogger(), nil)

	if err := registry.Register(newFakeTool("dup", nil)); err != nil {
		t.Fatalf("First registration failed: %v", err)
	}

	err := registry.Register(newFakeTool("dup", nil))
	if err == nil {
		t.Fatal("Expected duplicate registration to fail")
	}
	structuredErr := err.(*errors.StructuredError)
	if structuredErr.Code != errors.ErrCodeDuplicateTool {
		t.Errorf("Expected code %s, got %s", errors.ErrCodeDuplicateTool, structuredErr.Code)
	}

	// The original registration is untouched
	if registry.Size() != 1 {
		t.Errorf("Expected 1 tool after duplicate rejection, got %d", registry.Size())
	}
}

func TestRegisterNilAndEmptyName(t *testing.T) {
	registry := NewRegistry(testLogger(), nil)

	if err := registry.Register(nil); err == nil {
		t.Error("Expected nil tool registration to fail")
	}
	if err := registry.Register(newFakeTool("", nil)); err == nil {
		t.Error("Expected empty-name registration to fail")
	}
}

func TestInvokeUnknownTool(t *testing.T) {
	registry := NewRegistry(testLogger(), nil)

	_, err := registry.Invoke(context.Background(), "ghost", map[string]interface{}{})
	if err == nil {
		t.Fatal("Expected error for unknown tool")
	}
	structuredErr := err.(*errors.StructuredError)
	if structuredErr.Code != errors.ErrCodeToolNotFound {
		t.Errorf("Expected code %s, got %s", errors.ErrCodeToolNotFound, structuredErr.Code)
	}
	if structuredErr.ToMCPError().Code != errors.MCPCodeToolNotFound {
		t.Errorf("Expected wire code %d, got %d",
			errors.MCPCodeToolNotFound, structuredErr.ToMCPError().Code)
	}
}

func TestInvokeSuccess(t *testing.T) {
	registry := NewRegistry(testLogger(), nil)
	params := []Parameter{{Name: "value", Type: TypeString, Required: true}}
	if err := registry.Register(newFakeTool("echo", params)); err != nil {
		t.Fatal(err)
	}

	result, err := registry.Invoke(context.Background(), "echo",
		map[string]interface{}{"value": "hi"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !result.Success {
		t.Errorf("Expected success, got failure: %s", result.Error)
	}
}

func TestInvokeValidationErrorPassedThrough(t *testing.T) {
	registry := NewRegistry(testLogger(), nil)
	params := []Parameter{{Name: "value", Type: TypeString, Required: true}}
	if err := registry.Register(newFakeTool("echo", params)); err != nil {
		t.Fatal(err)
	}

	_, err := registry.Invoke(context.Background(), "echo", map[string]interface{}{})
	if err == nil {
		t.Fatal("Expected validation error")
	}
	structuredErr := err.(*errors.StructuredError)
	if structuredErr.Category != errors.ErrorCategoryValidation {
		t.Errorf("Expected validation category, got %s", structuredErr.Category)
	}
}

func TestInvokeFailedResultIsNotAnError(t *testing.T) {
	registry := NewRegistry(testLogger(), nil)
	tool := &fakeTool{
		name: "failing",
		execute: func(ctx context.Context, args map[string]interface{}) *Result {
			return ErrorResult("deliberate failure")
		},
	}
	if err := registry.Register(tool); err != nil {
		t.Fatal(err)
	}

	result, err := registry.Invoke(context.Background(), "failing", map[string]interface{}{})
	if err != nil {
		t.Fatalf("Execution failures must come back in the result, got error %v", err)
	}
	if result.Success {
		t.Error("Expected failed result")
	}
	if result.Error != "deliberate failure" {
		t.Errorf("Expected failure message to survive, got %q", result.Error)
	}
}

func TestInvokeCircuitBreakerOpens(t *testing.T) {
	registry := NewRegistry(testLogger(), nil)
	tool := &fakeTool{
		name: "flaky",
		execute: func(ctx context.Context, args map[string]interface{}) *Result {
			return ErrorResult("down")
		},
	}
	if err := registry.Register(tool); err != nil {
		t.Fatal(err)
	}

	// Drive the breaker open with repeated failures
	config := errors.DefaultCircuitBreakerConfig("tool_flaky")
	for i := 0; i < config.MaxFailures+2; i++ {
		result, err := registry.Invoke(context.Background(), "flaky", map[string]interface{}{})
		if err != nil {
			t.Fatalf("Invocation %d returned error: %v", i, err)
		}
		if result.Success {
			t.Fatalf("Invocation %d unexpectedly succeeded", i)
		}
	}

	// Once open, invocations still return a failed result, not an error
	result, err := registry.Invoke(context.Background(), "flaky", map[string]interface{}{})
	if err != nil {
		t.Fatalf("Expected degraded result, got error %v", err)
	}
	if result.Success {
		t.Error("Expected failed result while breaker is open")
	}
}

func TestValidationErrorsDoNotOpenBreaker(t *testing.T) {
	registry := NewRegistry(testLogger(), nil)
	params := []Parameter{{Name: "value", Type: TypeString, Required: true}}
	if err := registry.Register(newFakeTool("echo", params)); err != nil {
		t.Fatal(err)
	}

	// A burst of client-side argument faults must not poison the tool
	config := errors.DefaultCircuitBreakerConfig("tool_echo")
	for i := 0; i < config.MaxFailures+2; i++ {
		_, err := registry.Invoke(context.Background(), "echo", map[string]interface{}{})
		if err == nil {
			t.Fatalf("Invocation %d expected a validation error", i)
		}
		structuredErr := err.(*errors.StructuredError)
		if structuredErr.Category != errors.ErrorCategoryValidation {
			t.Fatalf("Invocation %d expected validation category, got %s", i, structuredErr.Category)
		}
	}

	breaker, ok := registry.breakers.Get("tool_echo")
	if !ok {
		t.Fatal("Expected a breaker for echo")
	}
	if breaker.GetState() != errors.CircuitBreakerClosed {
		t.Errorf("Expected breaker to stay CLOSED, got %s", breaker.GetState())
	}

	// A well-formed call still runs the tool
	result, err := registry.Invoke(context.Background(), "echo",
		map[string]interface{}{"value": "hi"})
	if err != nil {
		t.Fatalf("Expected valid call to run, got %v", err)
	}
	if !result.Success {
		t.Errorf("Expected success, got %q", result.Error)
	}
}

func TestBreakerStateHook(t *testing.T) {
	registry := NewRegistry(testLogger(), nil)

	transitions := make(chan string, 4)
	registry.SetBreakerStateHook(func(name string, from, to errors.CircuitBreakerState) {
		transitions <- name + ":" + from.String() + ">" + to.String()
	})

	tool := &fakeTool{
		name: "flaky",
		execute: func(ctx context.Context, args map[string]interface{}) *Result {
			return ErrorResult("down")
		},
	}
	if err := registry.Register(tool); err != nil {
		t.Fatal(err)
	}

	config := errors.DefaultCircuitBreakerConfig("tool_flaky")
	for i := 0; i < config.MaxFailures; i++ {
		if _, err := registry.Invoke(context.Background(), "flaky", map[string]interface{}{}); err != nil {
			t.Fatal(err)
		}
	}

	select {
	case got := <-transitions:
		want := "tool_flaky:CLOSED>OPEN"
		if got != want {
			t.Errorf("Expected transition %q, got %q", want, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Expected the hook to observe the breaker opening")
	}
}

func TestInvokeResultCache(t *testing.T) {
	results := cache.NewResultCache(time.Minute, nil)
	defer results.Close()

	registry := NewRegistry(testLogger(), results)

	executions := 0
	tool := &fakeTool{
		name:   "counted",
		params: []Parameter{{Name: "path", Type: TypeString, Required: true}},
		capability: Capability{
			Kind:    CapabilityFilesystem,
			PathArg: "path",
		},
		execute: func(ctx context.Context, args map[string]interface{}) *Result {
			executions++
			return TextResult("fresh")
		},
	}
	if err := registry.Register(cacheableTool{tool}); err != nil {
		t.Fatal(err)
	}

	args := map[string]interface{}{"path": "/tmp/watched"}
	for i := 0; i < 3; i++ {
		result, err := registry.Invoke(context.Background(), "counted", args)
		if err != nil {
			t.Fatalf("Invocation %d failed: %v", i, err)
		}
		if !result.Success {
			t.Fatalf("Invocation %d: %s", i, result.Error)
		}
	}

	if executions != 1 {
		t.Errorf("Expected 1 execution with cache hits after, got %d", executions)
	}

	// Invalidation under the path forces a fresh execution
	results.InvalidateUnder("/tmp/watched")
	if _, err := registry.Invoke(context.Background(), "counted", args); err != nil {
		t.Fatal(err)
	}
	if executions != 2 {
		t.Errorf("Expected re-execution after invalidation, got %d executions", executions)
	}
}

// cacheableTool wraps a fakeTool with an affirmative Cacheable marker
type cacheableTool struct {
	*fakeTool
}

func (cacheableTool) Cacheable() bool { return true }

func TestPerformanceMetrics(t *testing.T) {
	registry := NewRegistry(testLogger(), nil)
	if err := registry.Register(newFakeTool("echo", nil)); err != nil {
		t.Fatal(err)
	}

	if _, err := registry.Invoke(context.Background(), "echo", map[string]interface{}{}); err != nil {
		t.Fatal(err)
	}

	metrics := registry.PerformanceMetrics()
	if metrics["total_invocations"].(int64) != 1 {
		t.Errorf("Expected 1 invocation, got %v", metrics["total_invocations"])
	}
	byName := metrics["invocations_by_name"].(map[string]int64)
	if byName["echo"] != 1 {
		t.Errorf("Expected 1 echo invocation, got %d", byName["echo"])
	}
}
