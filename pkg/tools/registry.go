package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"mcp-tool-server/pkg/cache"
	"mcp-tool-server/pkg/errors"
	"mcp-tool-server/pkg/logging"
)

// Registry manages tool registration, discovery, and invocation.
// Registration happens before serving begins; List is deterministic and
// returns definitions in registration order.
type Registry struct {
	entries map[string]*registryEntry
	order   []string
	mu      sync.RWMutex

	executor *Executor
	breakers *errors.CircuitBreakerManager
	results  *cache.ResultCache
	logger   *logging.StructuredLogger

	// Optional observer for breaker transitions, set before serving
	onBreakerStateChange func(name string, from, to errors.CircuitBreakerState)

	// Performance metrics
	stats RegistryStats
}

type registryEntry struct {
	tool       Tool
	definition Definition
	resolved   *jsonschema.Resolved
	cacheable  bool
}

// RegistryStats tracks performance metrics for tool invocations
type RegistryStats struct {
	TotalInvocations     int64
	FailedInvocations    int64
	InvocationsByName    map[string]int64
	TotalExecutionTimeMs int64
	ExecutionTimeByName  map[string]int64
	CacheHits            int64
	mu                   sync.RWMutex
}

// NewRegistry creates a new Registry. resultCache may be nil to disable
// result caching for read-only tools.
func NewRegistry(logger *logging.StructuredLogger, resultCache *cache.ResultCache) *Registry {
	return &Registry{
		entries:  make(map[string]*registryEntry),
		executor: NewExecutor(logger),
		breakers: errors.NewCircuitBreakerManager(),
		results:  resultCache,
		logger:   logger,
		stats: RegistryStats{
			InvocationsByName:   make(map[string]int64),
			ExecutionTimeByName: make(map[string]int64),
		},
	}
}

// Register registers a new tool. The declared parameter schema is built and
// resolved once here so invocation only validates.
func (r *Registry) Register(tool Tool) error {
	if tool == nil {
		return errors.NewToolError(errors.ErrCodeDuplicateTool, "cannot register nil tool", nil)
	}

	name := tool.Name()
	if name == "" {
		return errors.NewToolError(errors.ErrCodeDuplicateTool, "tool name cannot be empty", nil)
	}

	resolved, err := BuildSchema(tool.Parameters()).Resolve(nil)
	if err != nil {
		return errors.NewValidationError(errors.ErrCodeSchemaResolution,
			fmt.Sprintf("tool %s has an unresolvable schema", name), err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; exists {
		return errors.NewToolError(errors.ErrCodeDuplicateTool,
			fmt.Sprintf("tool %s already registered", name), nil)
	}

	if tool.Description() == "" {
		r.logger.WithContext("tool", name).
			Warn("Tool registered without description")
	}

	cacheable := false
	if c, ok := tool.(Cacheable); ok {
		cacheable = c.Cacheable()
	}

	r.entries[name] = &registryEntry{
		tool:       tool,
		definition: NewDefinition(tool),
		resolved:   resolved,
		cacheable:  cacheable,
	}
	r.order = append(r.order, name)

	breakerName := "tool_" + name
	breaker := r.breakers.GetOrCreate(breakerName, errors.DefaultCircuitBreakerConfig(breakerName))
	breaker.SetStateChangeCallback(func(from, to errors.CircuitBreakerState) {
		r.notifyBreakerChange(breakerName, from, to)
	})

	r.logger.WithContext("tool", name).Info("Tool registered")
	return nil
}

// SetBreakerStateHook routes circuit breaker transitions to an external
// observer. Without a hook, transitions are logged directly.
func (r *Registry) SetBreakerStateHook(hook func(name string, from, to errors.CircuitBreakerState)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onBreakerStateChange = hook
}

func (r *Registry) notifyBreakerChange(name string, from, to errors.CircuitBreakerState) {
	r.mu.RLock()
	hook := r.onBreakerStateChange
	r.mu.RUnlock()

	if hook != nil {
		hook(name, from, to)
		return
	}
	r.logger.LogCircuitBreakerEvent(name, from, to)
}

// Definition retrieves the definition of a registered tool
func (r *Registry) Definition(name string) (Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, exists := r.entries[name]
	if !exists {
		return Definition{}, errors.NewToolError(errors.ErrCodeToolNotFound,
			fmt.Sprintf("tool not found: %s", name), nil)
	}
	return entry.definition, nil
}

// List returns all registered tool definitions in registration order
func (r *Registry) List() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	definitions := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		definitions = append(definitions, r.entries[name].definition)
	}
	return definitions
}

// Size returns the number of registered tools
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Invoke executes a tool by name. The returned error is non-nil only for
// unknown tools and validation failures; execution failures are reported
// through the Result.
func (r *Registry) Invoke(ctx context.Context, name string, arguments map[string]interface{}) (*Result, error) {
	startTime := time.Now()

	r.mu.RLock()
	entry, exists := r.entries[name]
	r.mu.RUnlock()

	if !exists {
		r.recordFailure(name)
		return nil, errors.NewToolError(errors.ErrCodeToolNotFound,
			fmt.Sprintf("tool not found: %s", name), nil)
	}

	cacheKey := ""
	if entry.cacheable && r.results != nil {
		cacheKey = resultCacheKey(name, arguments)
		if cached, ok := r.results.Get(cacheKey); ok {
			if result, ok := cached.(*Result); ok {
				r.recordCacheHit(name)
				return result, nil
			}
		}
	}

	// Client-side argument faults never feed the breaker; only the tool
	// body's own health does.
	args, prepErr := r.executor.Prepare(entry.tool, entry.resolved, arguments)
	if prepErr != nil {
		r.recordFailure(name)
		return nil, prepErr
	}

	breaker := r.breakers.GetOrCreate("tool_"+name, errors.DefaultCircuitBreakerConfig("tool_"+name))

	var result *Result
	breakerErr := breaker.Execute(func() error {
		result = r.executor.Run(ctx, entry.tool, args)
		if !result.Success {
			return fmt.Errorf("tool %s failed: %s", name, result.Error)
		}
		return nil
	})

	if result == nil {
		// Breaker refused the call before the executor ran
		r.recordFailure(name)
		result = ErrorResult("tool temporarily unavailable: %v", breakerErr)
	}

	executionTime := durationMillis(startTime)
	if result.Success {
		r.recordSuccess(name, executionTime)
		if cacheKey != "" {
			r.results.Set(cacheKey, cacheablePath(entry.definition, arguments), result)
		}
	} else {
		r.recordFailure(name)
	}

	return result, nil
}

// PerformanceMetrics returns current invocation metrics and breaker states
func (r *Registry) PerformanceMetrics() map[string]interface{} {
	r.stats.mu.RLock()
	defer r.stats.mu.RUnlock()

	invocationsByName := make(map[string]int64, len(r.stats.InvocationsByName))
	for k, v := range r.stats.InvocationsByName {
		invocationsByName[k] = v
	}
	executionTimeByName := make(map[string]int64, len(r.stats.ExecutionTimeByName))
	for k, v := range r.stats.ExecutionTimeByName {
		executionTimeByName[k] = v
	}

	return map[string]interface{}{
		"total_invocations":       r.stats.TotalInvocations,
		"failed_invocations":      r.stats.FailedInvocations,
		"invocations_by_name":     invocationsByName,
		"total_execution_time_ms": r.stats.TotalExecutionTimeMs,
		"execution_time_by_name":  executionTimeByName,
		"cache_hits":              r.stats.CacheHits,
		"circuit_breakers":        r.breakers.GetAllStats(),
	}
}

func (r *Registry) recordSuccess(name string, executionTimeMs int64) {
	r.stats.mu.Lock()
	defer r.stats.mu.Unlock()

	r.stats.TotalInvocations++
	r.stats.InvocationsByName[name]++
	r.stats.TotalExecutionTimeMs += executionTimeMs
	r.stats.ExecutionTimeByName[name] += executionTimeMs
}

func (r *Registry) recordFailure(name string) {
	r.stats.mu.Lock()
	defer r.stats.mu.Unlock()

	r.stats.TotalInvocations++
	r.stats.FailedInvocations++
	r.stats.InvocationsByName[name]++
}

func (r *Registry) recordCacheHit(name string) {
	r.stats.mu.Lock()
	defer r.stats.mu.Unlock()

	r.stats.TotalInvocations++
	r.stats.InvocationsByName[name]++
	r.stats.CacheHits++
}

// resultCacheKey builds a deterministic key from the tool name and argument
// map. encoding/json sorts map keys, so equal argument sets share a key.
func resultCacheKey(name string, arguments map[string]interface{}) string {
	data, err := json.Marshal(arguments)
	if err != nil {
		return ""
	}
	return name + ":" + string(data)
}

// cacheablePath extracts the path argument a cached result depends on, so
// the invalidation monitor can evict it when that subtree changes.
func cacheablePath(def Definition, arguments map[string]interface{}) string {
	if def.Capability.Kind != CapabilityFilesystem || def.Capability.PathArg == "" {
		return ""
	}
	if path, ok := arguments[def.Capability.PathArg].(string); ok {
		return path
	}
	return ""
}
