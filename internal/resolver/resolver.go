// Package resolver computes the per-user tool surface: which catalog servers
// a user can reach given their stored credentials, which tools those servers
// advertise, and how a tool invocation is routed to the right session.
package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/xeipuuv/gojsonschema"

	"github.com/agentfleet/mcpmux/internal/config"
	"github.com/agentfleet/mcpmux/internal/contracts"
	"github.com/agentfleet/mcpmux/internal/domain"
	"github.com/agentfleet/mcpmux/internal/errors"
	"github.com/agentfleet/mcpmux/internal/metadata"
	"github.com/agentfleet/mcpmux/internal/session"
)

// CallResult is the outcome of one routed tool invocation.
type CallResult struct {
	// Content is the tool's textual output, concatenated across content blocks.
	Content string `json:"content"`

	// IsError marks a result the server itself flagged as a tool-level failure.
	IsError bool `json:"isError,omitempty"`
}

// Resolver aggregates tools across a user's reachable servers and routes tool
// calls to the owning session.
type Resolver struct {
	logger   hclog.Logger
	catalog  contracts.ServerCatalog
	store    contracts.CredentialStore
	sessions *session.Registry
}

// NewResolver wires a resolver over the catalog, credential store and session
// registry.
func NewResolver(
	logger hclog.Logger,
	catalog contracts.ServerCatalog,
	store contracts.CredentialStore,
	sessions *session.Registry,
) (*Resolver, error) {
	if catalog == nil {
		return nil, fmt.Errorf("server catalog cannot be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("credential store cannot be nil")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session registry cannot be nil")
	}

	return &Resolver{
		logger:   logger.Named("resolver"),
		catalog:  catalog,
		store:    store,
		sessions: sessions,
	}, nil
}

// ToolsForUser returns every tool the user can currently reach, each tagged
// with its owning server name so same-named tools on different servers stay
// distinguishable. Servers with missing required credentials are skipped
// without starting a session, and a server whose session cannot be
// established contributes nothing; one bad server never hides the rest.
func (r *Resolver) ToolsForUser(ctx context.Context, userID string) []domain.Tool {
	tools := []domain.Tool{}

	for _, entry := range r.catalog.EnabledForUser(userID) {
		reqs := metadata.Infer(entry)

		stored, err := r.store.Get(ctx, userID, entry.Name)
		if err != nil {
			r.logger.Warn("Credential lookup failed, skipping server",
				"user", userID, "server", entry.Name, "error", err)
			continue
		}

		if missing := metadata.Missing(reqs, stored); len(missing) > 0 {
			r.logger.Debug("Server gated on missing credentials",
				"user", userID, "server", entry.Name, "missing", len(missing))
			continue
		}

		handle, ok := r.sessions.GetOrCreate(ctx, domain.NewSessionKey(userID, entry.Name), entry, stored)
		if !ok {
			continue
		}

		tools = append(tools, handle.ListTools(ctx)...)
	}

	return tools
}

// MissingCredentials returns the required credentials the user has not yet
// supplied for the named server, in requirement order. An empty result means
// the server is reachable.
func (r *Resolver) MissingCredentials(
	ctx context.Context,
	userID string,
	serverName string,
) ([]domain.CredentialRequirement, error) {
	entry, err := r.enabledEntry(userID, serverName)
	if err != nil {
		return nil, err
	}

	stored, err := r.store.Get(ctx, userID, serverName)
	if err != nil {
		return nil, fmt.Errorf("looking up credentials for '%s': %w", serverName, err)
	}

	return metadata.Missing(metadata.Infer(entry), stored), nil
}

// Requirements returns the full ordered requirement set for the named server,
// independent of what the user has stored.
func (r *Resolver) Requirements(userID string, serverName string) ([]domain.CredentialRequirement, error) {
	entry, err := r.enabledEntry(userID, serverName)
	if err != nil {
		return nil, err
	}
	return metadata.Infer(entry), nil
}

// CallTool routes one tool invocation to the user's session on the named
// server, establishing the session on demand. The tool must be advertised by
// the session, and the arguments must satisfy the tool's declared input
// schema.
func (r *Resolver) CallTool(
	ctx context.Context,
	userID string,
	serverName string,
	toolName string,
	args map[string]any,
) (*CallResult, error) {
	entry, err := r.enabledEntry(userID, serverName)
	if err != nil {
		return nil, err
	}

	stored, err := r.store.Get(ctx, userID, serverName)
	if err != nil {
		return nil, fmt.Errorf("looking up credentials for '%s': %w", serverName, err)
	}

	if missing := metadata.Missing(metadata.Infer(entry), stored); len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for _, req := range missing {
			names = append(names, req.Name)
		}
		return nil, fmt.Errorf("%w: %s requires %s",
			errors.ErrCredentialsMissing, serverName, strings.Join(names, ", "))
	}

	handle, ok := r.sessions.GetOrCreate(ctx, domain.NewSessionKey(userID, serverName), entry, stored)
	if !ok {
		return nil, fmt.Errorf("%w: server '%s'", errors.ErrSessionInit, serverName)
	}

	tool, ok := findTool(handle.ListTools(ctx), toolName)
	if !ok {
		return nil, fmt.Errorf("%w: '%s' on server '%s'", errors.ErrToolForbidden, toolName, serverName)
	}

	if err := validateArgs(r.logger, tool, args); err != nil {
		return nil, err
	}

	result, err := handle.CallTool(ctx, toolName, args)
	if err != nil {
		return nil, err
	}

	return &CallResult{
		Content: renderContent(result.Content),
		IsError: result.IsError,
	}, nil
}

// RemoveUserSessions terminates every live session belonging to the user.
// Used when a user revokes access or their credentials are wiped.
func (r *Resolver) RemoveUserSessions(userID string) {
	r.sessions.RemoveForUser(userID)
}

// enabledEntry resolves the catalog entry by name, scoped to what the user is
// allowed to see. A disabled server is indistinguishable from an absent one.
func (r *Resolver) enabledEntry(userID string, serverName string) (config.ServerEntry, error) {
	for _, entry := range r.catalog.EnabledForUser(userID) {
		if entry.Name == serverName {
			return entry, nil
		}
	}
	return config.ServerEntry{}, fmt.Errorf("%w: '%s'", errors.ErrServerNotFound, serverName)
}

func findTool(tools []domain.Tool, name string) (domain.Tool, bool) {
	for _, t := range tools {
		if t.Name == name {
			return t, true
		}
	}
	return domain.Tool{}, false
}

// validateArgs checks the call arguments against the tool's declared JSON
// schema. A schema the validator cannot compile is the server's defect, not
// the caller's, so compilation failures log and let the call proceed.
func validateArgs(logger hclog.Logger, tool domain.Tool, args map[string]any) error {
	if len(tool.InputSchema) == 0 {
		return nil
	}

	if args == nil {
		args = map[string]any{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(tool.InputSchema),
		gojsonschema.NewGoLoader(args),
	)
	if err != nil {
		logger.Warn("Tool input schema could not be validated",
			"tool", tool.Name, "server", tool.Server, "error", err)
		return nil
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		return fmt.Errorf("%w: %s: %s",
			errors.ErrToolArgsInvalid, tool.Name, strings.Join(details, "; "))
	}

	return nil
}

// renderContent flattens MCP content blocks to the text form callers consume.
// Non-text blocks are skipped; most tools return a single text item.
func renderContent(content []mcp.Content) string {
	parts := make([]string, 0, len(content))
	for _, c := range content {
		if tc, ok := c.(mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}
