// Package tools provides the tool framework for inkwell: a name->handler
// dispatch table with declarative specs and per-call failure isolation.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"

	"github.com/inkwell-ai/inkwell/pkg/models"
)

// Handler executes one tool call. Implementations may return a well-formed
// models.ToolResult, or any bare value which the registry wraps into a
// completed result. Handlers receive the session state through ToolContext
// and must not retain it beyond the call.
type Handler interface {
	Handle(ctx context.Context, tc *ToolContext, call models.ToolCall) (any, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, tc *ToolContext, call models.ToolCall) (any, error)

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, tc *ToolContext, call models.ToolCall) (any, error) {
	return f(ctx, tc, call)
}

// ToolContext carries the per-call view handed to handlers: the live session
// state (borrowed read/write for the duration of the call) and an optional
// event emitter scoped to the current session's run.
type ToolContext struct {
	State *models.AgentState
	Emit  func(typ models.RunEventType, payload map[string]any)
}

// EmitEvent publishes a progress event when an emitter is attached.
func (tc *ToolContext) EmitEvent(typ models.RunEventType, payload map[string]any) {
	if tc != nil && tc.Emit != nil {
		tc.Emit(typ, payload)
	}
}

// Registry manages tool registration and dispatch.
type Registry struct {
	mu       sync.RWMutex
	specs    map[string]models.ToolSpec
	handlers map[string]Handler
	schemas  map[string]*jsonschema.Schema
	order    []string
	logger   *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		specs:    make(map[string]models.ToolSpec),
		handlers: make(map[string]Handler),
		schemas:  make(map[string]*jsonschema.Schema),
		logger:   logger,
	}
}

// Register adds a tool to the registry. Registration is a one-time startup
// step; a duplicate name is an error.
func (r *Registry) Register(spec models.ToolSpec, handler Handler) error {
	if strings.TrimSpace(spec.Name) == "" {
		return fmt.Errorf("tool spec has empty name")
	}
	if handler == nil {
		return fmt.Errorf("tool %s: nil handler", spec.Name)
	}

	var schema *jsonschema.Schema
	if spec.InputSchema != nil {
		compiled, err := compileSchema(spec.Name, spec.InputSchema)
		if err != nil {
			return fmt.Errorf("tool %s: compile input schema: %w", spec.Name, err)
		}
		schema = compiled
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.specs[spec.Name]; exists {
		return fmt.Errorf("tool already registered: %s", spec.Name)
	}
	r.specs[spec.Name] = spec
	r.handlers[spec.Name] = handler
	if schema != nil {
		r.schemas[spec.Name] = schema
	}
	r.order = append(r.order, spec.Name)
	return nil
}

// Specs returns the tool catalogue in registration order. The catalogue is
// what the model collaborator is told it may call.
func (r *Registry) Specs() []models.ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	specs := make([]models.ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		specs = append(specs, r.specs[name])
	}
	return specs
}

// Execute is the single entry point for invoking a tool. It never returns an
// error: unknown tools, invalid arguments, handler errors, and handler panics
// all convert into a failed ToolResult so one bad call cannot abort the turn
// or corrupt conversation state.
func (r *Registry) Execute(ctx context.Context, tc *ToolContext, call models.ToolCall) models.ToolResult {
	r.mu.RLock()
	handler, ok := r.handlers[call.Name]
	schema := r.schemas[call.Name]
	r.mu.RUnlock()

	if !ok {
		r.logger.Warn("unknown tool requested", zap.String("tool", call.Name))
		return failedResult(call, fmt.Sprintf("Unknown tool: %s", call.Name))
	}

	if schema != nil {
		if err := schema.Validate(normalizeArgs(call.Args)); err != nil {
			return failedResult(call, fmt.Sprintf("invalid arguments for %s: %v", call.Name, err))
		}
	}

	value, err := r.invoke(ctx, handler, tc, call)
	if err != nil {
		r.logger.Warn("tool execution failed",
			zap.String("tool", call.Name),
			zap.String("tool_call_id", call.ID),
			zap.Error(err))
		return failedResult(call, err.Error())
	}
	return normalizeResult(call, value)
}

// invoke runs the handler with panic recovery so a misbehaving tool is
// indistinguishable from one that returned an error.
func (r *Registry) invoke(ctx context.Context, handler Handler, tc *ToolContext, call models.ToolCall) (value any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("tool %s panicked: %v", call.Name, rec)
		}
	}()
	return handler.Handle(ctx, tc, call)
}

func failedResult(call models.ToolCall, msg string) models.ToolResult {
	return models.ToolResult{
		ToolCallID: call.ID,
		Name:       call.Name,
		Status:     models.ToolStatusFailed,
		Error:      msg,
	}
}

// normalizeResult coerces whatever the handler returned into a well-formed
// ToolResult. Loosely-typed handlers returning a bare value still satisfy
// the contract: the value is wrapped as {output: {"result": value}}.
func normalizeResult(call models.ToolCall, value any) models.ToolResult {
	var result models.ToolResult
	switch v := value.(type) {
	case models.ToolResult:
		result = v
	case *models.ToolResult:
		if v != nil {
			result = *v
		}
	default:
		result = models.ToolResult{
			Status: models.ToolStatusCompleted,
			Output: map[string]any{"result": v},
		}
	}

	if result.ToolCallID == "" {
		result.ToolCallID = call.ID
	}
	if result.Name == "" {
		result.Name = call.Name
	}
	if result.Status == "" {
		result.Status = models.ToolStatusCompleted
	}
	return result
}

// normalizeArgs round-trips arguments through JSON so schema validation sees
// the same shapes it would see on the wire (e.g. numbers as float64).
func normalizeArgs(args map[string]any) any {
	if args == nil {
		return map[string]any{}
	}
	data, err := json.Marshal(args)
	if err != nil {
		return args
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return args
	}
	return out
}

func compileSchema(name string, doc map[string]any) (*jsonschema.Schema, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	resource := fmt.Sprintf("inkwell://tools/%s/input.json", name)
	if err := compiler.AddResource(resource, strings.NewReader(string(data))); err != nil {
		return nil, err
	}
	return compiler.Compile(resource)
}
