// ABOUTME: Thread-safe registry of MCP tools with JSON Schema validation.
// ABOUTME: Deterministic listing order, collision detection, and dispatch.

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// ErrToolNotFound indicates the requested tool is not registered.
var ErrToolNotFound = errors.New("tool not found")

// ErrToolCollision indicates a tool name is already registered.
var ErrToolCollision = errors.New("tool name collision")

// Handler executes a tool call. Input has already passed schema validation.
// The returned string is a human-readable summary of the outcome.
type Handler func(ctx context.Context, input json.RawMessage) (string, error)

// Tool describes a registered tool: its schema and its handler.
type Tool struct {
	Name        string
	Description string
	InputSchema json.RawMessage
	Handler     Handler
}

// Info is the schema-only view of a tool, as advertised by tools/list.
type Info struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// ValidationError reports input that failed a tool's schema.
type ValidationError struct {
	Tool     string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %s", e.Tool, strings.Join(e.Problems, "; "))
}

// Registry maintains the set of registered tools.
// Listing order is registration order, so tools/list is deterministic.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	tools   map[string]*Tool
	schemas map[string]*gojsonschema.Schema
	logger  *slog.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tools:   make(map[string]*Tool),
		schemas: make(map[string]*gojsonschema.Schema),
		logger:  logger.With("component", "tools"),
	}
}

// Register validates and stores a tool, compiling its input schema.
// Returns ErrToolCollision if the name is already taken.
func (r *Registry) Register(tool *Tool) error {
	if tool.Name == "" {
		return errors.New("tool name is required")
	}
	if tool.Handler == nil {
		return fmt.Errorf("tool %q has no handler", tool.Name)
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(tool.InputSchema))
	if err != nil {
		return fmt.Errorf("compiling schema for %q: %w", tool.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[tool.Name]; exists {
		return fmt.Errorf("%w: %q", ErrToolCollision, tool.Name)
	}

	r.order = append(r.order, tool.Name)
	r.tools[tool.Name] = tool
	r.schemas[tool.Name] = schema

	r.logger.Debug("tool registered", "tool_name", tool.Name)
	return nil
}

// RegisterAll registers each tool, stopping at the first failure.
func (r *Registry) RegisterAll(tools []*Tool) error {
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// List returns all tools in registration order. No side effects.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		infos = append(infos, Info{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		})
	}
	return infos
}

// Get returns the tool by name, or nil if not registered.
func (r *Registry) Get(name string) *Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Validate checks input against the tool's schema without calling the handler.
// Returns ErrToolNotFound or a *ValidationError describing every failure.
func (r *Registry) Validate(name string, input json.RawMessage) error {
	r.mu.RLock()
	schema, ok := r.schemas[name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrToolNotFound, name)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(normalizeInput(input)))
	if err != nil {
		return &ValidationError{Tool: name, Problems: []string{err.Error()}}
	}
	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	return &ValidationError{Tool: name, Problems: problems}
}

// Call validates input and runs the tool's handler.
// No handler (and no network call) runs if validation fails.
func (r *Registry) Call(ctx context.Context, name string, input json.RawMessage) (string, error) {
	tool := r.Get(name)
	if tool == nil {
		return "", fmt.Errorf("%w: %q", ErrToolNotFound, name)
	}

	if err := r.Validate(name, input); err != nil {
		return "", err
	}

	return tool.Handler(ctx, normalizeInput(input))
}

// normalizeInput treats absent or null arguments as an empty object.
func normalizeInput(input json.RawMessage) json.RawMessage {
	trimmed := strings.TrimSpace(string(input))
	if trimmed == "" || trimmed == "null" {
		return json.RawMessage(`{}`)
	}
	return input
}
