// Package session manages the per-(user, server) subprocess sessions: one
// Handle wraps one live MCP server launched with that user's credentials, and
// the Registry deduplicates handles by session key.
package session

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/agentfleet/mcpmux/internal/config"
	"github.com/agentfleet/mcpmux/internal/contracts"
	"github.com/agentfleet/mcpmux/internal/domain"
	"github.com/agentfleet/mcpmux/internal/errors"
	"github.com/agentfleet/mcpmux/internal/metadata"
)

const (
	// initializeTimeout bounds the MCP handshake after subprocess launch.
	initializeTimeout = 30 * time.Second

	// listToolsTimeout bounds one tool-listing query against a live session.
	listToolsTimeout = 5 * time.Second

	// callToolTimeout bounds one tool invocation against a live session.
	callToolTimeout = 30 * time.Second
)

// Handle wraps one live session for one (user, server) pair.
//
// The tool list is fetched at most once per session lifetime: once cached it
// is reused until the handle is terminated, even if the subprocess's real
// capability set drifts. A failed listing leaves the cache unset so the next
// call retries.
type Handle struct {
	key     domain.SessionKey
	entry   config.ServerEntry
	logger  hclog.Logger
	factory contracts.TransportFactory

	// mu guards the transport lifecycle and the tools cache. The
	// populate-on-miss path holds it across the underlying query so
	// concurrent listings cannot race duplicate requests; tool calls only
	// take it long enough to read the transport.
	mu        sync.Mutex
	transport contracts.SessionTransport
	tools     []domain.Tool // nil means not yet fetched
}

func newHandle(
	logger hclog.Logger,
	key domain.SessionKey,
	entry config.ServerEntry,
	factory contracts.TransportFactory,
) *Handle {
	return &Handle{
		key:     key,
		entry:   entry,
		logger:  logger.With("session", key.String()),
		factory: factory,
	}
}

// Key returns the session key this handle serves.
func (h *Handle) Key() domain.SessionKey {
	return h.key
}

// initialize builds the launch environment from the descriptor and the user's
// resolved credentials, starts the transport, and performs the MCP handshake.
// On any failure the partially acquired resources are released before the
// error is reported; a half-started process is never left behind.
func (h *Handle) initialize(ctx context.Context, creds map[string]string) error {
	reqs := metadata.Infer(h.entry)
	env := metadata.BuildEnv(h.entry.Env, creds, reqs)

	transport, err := h.factory(ctx, h.entry, environ(env))
	if err != nil {
		return fmt.Errorf("%w: starting '%s': %w", errors.ErrSessionInit, h.entry.Name, err)
	}

	initCtx, cancel := context.WithTimeout(ctx, initializeTimeout)
	defer cancel()

	result, err := transport.Initialize(initCtx, mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			ClientInfo:      mcp.Implementation{Name: "mcpmux", Version: "0.1.0"},
		},
	})
	if err != nil {
		_ = transport.Close()
		return fmt.Errorf("%w: handshake with '%s': %w", errors.ErrSessionInit, h.entry.Name, err)
	}

	if result != nil {
		h.logger.Info(
			"Session initialized",
			"server", result.ServerInfo.Name,
			"version", result.ServerInfo.Version,
		)
	}

	h.mu.Lock()
	h.transport = transport
	h.tools = nil
	h.mu.Unlock()

	return nil
}

// ListTools returns the session's advertised tools, tagged with the owning
// server name. The cached list is returned when present; otherwise one
// bounded query populates it. On timeout or error an empty list is returned
// and the cache is left unset so a later call retries.
func (h *Handle) ListTools(ctx context.Context) []domain.Tool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.transport == nil {
		return []domain.Tool{}
	}

	if h.tools != nil {
		return slices.Clone(h.tools)
	}

	listCtx, cancel := context.WithTimeout(ctx, listToolsTimeout)
	defer cancel()

	result, err := h.transport.ListTools(listCtx, mcp.ListToolsRequest{})
	if err != nil || result == nil {
		h.logger.Warn("Tool listing failed, returning no tools", "error", err)
		return []domain.Tool{}
	}

	tools := make([]domain.Tool, 0, len(result.Tools))
	for _, tool := range result.Tools {
		tools = append(tools, domain.Tool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: toolInputSchema(tool),
			Server:      h.entry.Name,
		})
	}

	h.tools = tools

	return slices.Clone(tools)
}

// CallTool invokes one tool on the live session with a bounded timeout.
// Failures are propagated to the caller: a tool call is an explicit user
// action, and silently swallowing it would be misleading. A timeout fails
// only this call; the session itself stays up.
func (h *Handle) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	h.mu.Lock()
	transport := h.transport
	h.mu.Unlock()

	if transport == nil {
		return nil, fmt.Errorf("%w: session %s is not initialized", errors.ErrToolCallFailed, h.key)
	}

	callCtx, cancel := context.WithTimeout(ctx, callToolTimeout)
	defer cancel()

	result, err := transport.CallTool(callCtx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s/%s: %w", errors.ErrToolCallFailed, h.entry.Name, name, err)
	}

	return result, nil
}

// Ping checks liveness of the underlying transport.
func (h *Handle) Ping(ctx context.Context) error {
	h.mu.Lock()
	transport := h.transport
	h.mu.Unlock()

	if transport == nil {
		return fmt.Errorf("session %s is not initialized", h.key)
	}

	return transport.Ping(ctx)
}

// Terminate releases the transport and clears the tool cache. It is
// idempotent and safe to call on a never-initialized handle. Termination is
// the only path that tears a session down; listing and calling never do.
func (h *Handle) Terminate() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.tools = nil

	if h.transport == nil {
		return
	}

	if err := h.transport.Close(); err != nil {
		h.logger.Error("Error closing session transport", "error", err)
	}
	h.transport = nil
}

// toolInputSchema converts the wire schema to the transport-agnostic map form
// used across the API boundary and for argument validation.
func toolInputSchema(tool mcp.Tool) map[string]any {
	schema := map[string]any{"type": tool.InputSchema.Type}
	if len(tool.InputSchema.Properties) > 0 {
		schema["properties"] = tool.InputSchema.Properties
	}
	if len(tool.InputSchema.Required) > 0 {
		schema["required"] = tool.InputSchema.Required
	}
	return schema
}
