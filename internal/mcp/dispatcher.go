// ABOUTME: Transport-neutral JSON-RPC dispatcher for initialize, tools/list, tools/call.
// ABOUTME: Maps tool failures to JSON-RPC errors and records an audit entry per call.

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/2389/coven-github/internal/github"
	"github.com/2389/coven-github/internal/store"
	"github.com/2389/coven-github/internal/tools"
)

// Supported MCP protocol versions
var supportedProtocolVersions = map[string]bool{
	"2024-11-05": true,
	"2025-03-26": true,
	"2025-11-25": true,
}

// latestProtocolVersion is the version we advertise in initialize responses
const latestProtocolVersion = "2025-11-25"

// DefaultCallTimeout bounds a single tools/call end to end.
const DefaultCallTimeout = 60 * time.Second

// DispatcherConfig holds configuration for the Dispatcher.
type DispatcherConfig struct {
	Registry    *tools.Registry
	Logger      *slog.Logger
	Audit       store.InvocationRecorder // optional; nil disables the audit log
	Name        string                   // serverInfo name
	Version     string                   // serverInfo version
	CallTimeout time.Duration            // per tools/call deadline; DefaultCallTimeout if zero
}

// Dispatcher handles one JSON-RPC request at a time, independent of transport.
// Each request is fully resolved before the caller reads the next; there is
// no cross-request state beyond the registry and the audit log.
type Dispatcher struct {
	registry    *tools.Registry
	logger      *slog.Logger
	audit       store.InvocationRecorder
	name        string
	version     string
	callTimeout time.Duration
}

// NewDispatcher creates a new Dispatcher with the given configuration.
func NewDispatcher(cfg DispatcherConfig) (*Dispatcher, error) {
	if cfg.Registry == nil {
		return nil, errors.New("registry is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	timeout := cfg.CallTimeout
	if timeout == 0 {
		timeout = DefaultCallTimeout
	}

	name := cfg.Name
	if name == "" {
		name = "coven-github"
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	return &Dispatcher{
		registry:    cfg.Registry,
		logger:      logger,
		audit:       cfg.Audit,
		name:        name,
		version:     version,
		callTimeout: timeout,
	}, nil
}

// Handle processes a single JSON-RPC request and returns the response.
// Returns nil for notifications, which expect no response. Every
// non-notification request produces exactly one response.
func (d *Dispatcher) Handle(ctx context.Context, req JSONRPCRequest) *JSONRPCResponse {
	if req.IsNotification() {
		d.logger.Debug("accepted notification", "method", req.Method)
		return nil
	}

	d.logger.Debug("request", "method", req.Method)

	switch req.Method {
	case "initialize":
		return d.handleInitialize(req)
	case "tools/list":
		return d.handleToolsList(req)
	case "tools/call":
		return d.handleToolsCall(ctx, req)
	default:
		return newError(req.ID, JSONRPCMethodNotFound, "method not found", nil)
	}
}

// handleInitialize responds to the MCP initialize handshake.
func (d *Dispatcher) handleInitialize(req JSONRPCRequest) *JSONRPCResponse {
	result := map[string]any{
		"protocolVersion": latestProtocolVersion,
		"capabilities": map[string]any{
			"tools": map[string]any{},
		},
		"serverInfo": map[string]any{
			"name":    d.name,
			"version": d.version,
		},
	}
	return newResult(req.ID, result)
}

// handleToolsList returns the registry contents. Deterministic, no side effects.
func (d *Dispatcher) handleToolsList(req JSONRPCRequest) *JSONRPCResponse {
	infos := d.registry.List()

	result := MCPListToolsResult{
		Tools: make([]MCPToolInfo, len(infos)),
	}
	for i, info := range infos {
		result.Tools[i] = MCPToolInfo{
			Name:        info.Name,
			Description: info.Description,
			InputSchema: info.InputSchema,
		}
	}

	d.logger.Debug("tools/list", "count", len(infos))
	return newResult(req.ID, result)
}

// handleToolsCall validates params, runs the tool, and maps failures.
func (d *Dispatcher) handleToolsCall(ctx context.Context, req JSONRPCRequest) *JSONRPCResponse {
	var params MCPCallToolParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return newError(req.ID, JSONRPCInvalidParams, "invalid params", nil)
		}
	}

	if params.Name == "" {
		return newError(req.ID, JSONRPCInvalidParams, "tool name is required", nil)
	}

	requestID := uuid.New().String()

	d.logger.Info("→ tools/call",
		"tool_name", params.Name,
		"request_id", requestID,
	)

	callCtx, cancel := context.WithTimeout(ctx, d.callTimeout)
	defer cancel()

	start := time.Now()
	text, err := d.registry.Call(callCtx, params.Name, params.Arguments)
	duration := time.Since(start)

	d.recordInvocation(ctx, requestID, params, err, duration, start)

	if err != nil {
		return d.toolError(req.ID, params.Name, requestID, err)
	}

	d.logger.Info("← tools/call complete",
		"tool_name", params.Name,
		"request_id", requestID,
		"duration", duration,
	)

	return newResult(req.ID, MCPCallToolResult{
		Content: []MCPContent{{Type: "text", Text: text}},
	})
}

// recordInvocation appends an audit entry for a tools/call.
// Audit failures are logged, never surfaced to the caller.
func (d *Dispatcher) recordInvocation(ctx context.Context, requestID string, params MCPCallToolParams, callErr error, duration time.Duration, start time.Time) {
	if d.audit == nil {
		return
	}

	inv := &store.ToolInvocation{
		ID:            requestID,
		Tool:          params.Name,
		ArgumentsJSON: string(params.Arguments),
		Outcome:       store.OutcomeOK,
		Duration:      duration,
		Timestamp:     start.UTC(),
	}
	if inv.ArgumentsJSON == "" {
		inv.ArgumentsJSON = "{}"
	}
	if callErr != nil {
		inv.Outcome = store.OutcomeError
		inv.Error = callErr.Error()
	}

	if err := d.audit.AppendToolInvocation(ctx, inv); err != nil {
		d.logger.Warn("failed to record invocation",
			"request_id", requestID,
			"error", err,
		)
	}
}

// toolError maps a tool execution failure to a JSON-RPC error response.
func (d *Dispatcher) toolError(id json.RawMessage, toolName, requestID string, err error) *JSONRPCResponse {
	d.logger.Warn("tool call failed",
		"tool_name", toolName,
		"request_id", requestID,
		"error", err,
	)

	code := JSONRPCInternalError
	message := err.Error()

	var verr *tools.ValidationError
	var upstream *github.UpstreamError
	switch {
	case errors.As(err, &verr):
		code = JSONRPCInvalidParams
		message = verr.Error()
	case errors.Is(err, tools.ErrToolNotFound):
		code = JSONRPCInvalidParams
		message = "tool not found"
	case errors.Is(err, github.ErrRepositoryExists):
		message = "repository already exists"
	case errors.Is(err, github.ErrRepositoryNotFound):
		message = "repository not found"
	case errors.Is(err, github.ErrUnauthorized):
		message = "unauthorized: github rejected the token"
	case errors.As(err, &upstream):
		message = upstream.Error()
	case errors.Is(err, context.DeadlineExceeded):
		message = "tool execution timed out"
	case errors.Is(err, context.Canceled):
		message = "request cancelled"
	}

	return newError(id, code, message, nil)
}
