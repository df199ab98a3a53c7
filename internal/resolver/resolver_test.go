package resolver

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"

	"github.com/agentfleet/mcpmux/internal/config"
	"github.com/agentfleet/mcpmux/internal/contracts"
	"github.com/agentfleet/mcpmux/internal/domain"
	"github.com/agentfleet/mcpmux/internal/errors"
	"github.com/agentfleet/mcpmux/internal/session"
	"github.com/agentfleet/mcpmux/internal/store"
)

// stubTransport serves a fixed tool set and canned call results.
type stubTransport struct {
	mu      sync.Mutex
	tools   []mcp.Tool
	initErr error
	callErr error
	calls   []mcp.CallToolParams
}

func (s *stubTransport) Initialize(context.Context, mcp.InitializeRequest) (*mcp.InitializeResult, error) {
	if s.initErr != nil {
		return nil, s.initErr
	}
	return &mcp.InitializeResult{}, nil
}

func (s *stubTransport) ListTools(context.Context, mcp.ListToolsRequest) (*mcp.ListToolsResult, error) {
	return &mcp.ListToolsResult{Tools: s.tools}, nil
}

func (s *stubTransport) CallTool(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, request.Params)
	if s.callErr != nil {
		return nil, s.callErr
	}
	return mcp.NewToolResultText("done: " + request.Params.Name), nil
}

func (s *stubTransport) Ping(context.Context) error { return nil }
func (s *stubTransport) Close() error               { return nil }

// stubFactory maps server names to their stub transports and counts launches.
type stubFactory struct {
	mu         sync.Mutex
	transports map[string]*stubTransport
	launches   map[string]int
}

func newStubFactory() *stubFactory {
	return &stubFactory{
		transports: make(map[string]*stubTransport),
		launches:   make(map[string]int),
	}
}

func (f *stubFactory) serve(serverName string, t *stubTransport) {
	f.transports[serverName] = t
}

func (f *stubFactory) factory() contracts.TransportFactory {
	return func(_ context.Context, entry config.ServerEntry, _ []string) (contracts.SessionTransport, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.launches[entry.Name]++
		t, ok := f.transports[entry.Name]
		if !ok {
			return nil, fmt.Errorf("no transport for server '%s'", entry.Name)
		}
		return t, nil
	}
}

func (f *stubFactory) launchCount(serverName string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.launches[serverName]
}

func objectSchema(required ...string) mcp.ToolInputSchema {
	return mcp.ToolInputSchema{
		Type: "object",
		Properties: map[string]any{
			"id": map[string]any{"type": "integer"},
		},
		Required: required,
	}
}

// catalogEntries: "github" is gated behind a token placeholder, "echo" needs
// no credentials at all.
func catalogEntries() []config.ServerEntry {
	return []config.ServerEntry{
		{
			Name:    "github",
			Command: "uvx",
			Args:    []string{"github-server"},
			Env:     map[string]string{"GITHUB_ACCESS_TOKEN": "${GITHUB_ACCESS_TOKEN}"},
		},
		{
			Name:    "echo",
			Command: "uvx",
			Args:    []string{"echo-server"},
		},
	}
}

type fixture struct {
	resolver *Resolver
	catalog  *config.Catalog
	store    *store.MemoryStore
	factory  *stubFactory
	sessions *session.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	factory := newStubFactory()
	factory.serve("github", &stubTransport{tools: []mcp.Tool{
		{Name: "get_issue", Description: "Fetch an issue", InputSchema: objectSchema("id")},
	}})
	factory.serve("echo", &stubTransport{tools: []mcp.Tool{
		{Name: "echo", Description: "Echo input", InputSchema: objectSchema()},
	}})

	logger := hclog.NewNullLogger()
	sessions, err := session.NewRegistry(logger, session.WithTransportFactory(factory.factory()))
	require.NoError(t, err)

	catalog := config.NewCatalog(catalogEntries())
	memStore := store.NewMemoryStore()

	r, err := NewResolver(logger, catalog, memStore, sessions)
	require.NoError(t, err)

	return &fixture{
		resolver: r,
		catalog:  catalog,
		store:    memStore,
		factory:  factory,
		sessions: sessions,
	}
}

func TestResolver_ToolsForUserSkipsGatedServers(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	tools := f.resolver.ToolsForUser(t.Context(), "u1")

	require.Len(t, tools, 1)
	require.Equal(t, "echo", tools[0].Name)
	require.Equal(t, "echo", tools[0].Server)

	// The gated server must not even be launched.
	require.Zero(t, f.factory.launchCount("github"))
}

func TestResolver_ToolsForUserWithCredentials(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := t.Context()

	require.NoError(t, f.store.Put(ctx, "u1", "github", "Github Access", "ghp_tok"))

	tools := f.resolver.ToolsForUser(ctx, "u1")
	require.Len(t, tools, 2)

	byServer := make(map[string]string, len(tools))
	for _, tool := range tools {
		byServer[tool.Server] = tool.Name
	}
	require.Equal(t, map[string]string{"github": "get_issue", "echo": "echo"}, byServer)
}

func TestResolver_ToolsForUserSessionFailureSkipsServer(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.factory.serve("echo", &stubTransport{initErr: fmt.Errorf("spawn failed")})

	// The failing server contributes nothing, but does not hide the rest.
	require.NoError(t, f.store.Put(t.Context(), "u1", "github", "Github Access", "ghp_tok"))
	tools := f.resolver.ToolsForUser(t.Context(), "u1")

	require.Len(t, tools, 1)
	require.Equal(t, "github", tools[0].Server)
}

func TestResolver_ToolsForUserRespectsEnablement(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.catalog.SetEnabled("u1", "echo", false)

	require.Empty(t, f.resolver.ToolsForUser(t.Context(), "u1"))

	// The override is scoped to u1.
	require.Len(t, f.resolver.ToolsForUser(t.Context(), "u2"), 1)
}

func TestResolver_MissingCredentials(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := t.Context()

	missing, err := f.resolver.MissingCredentials(ctx, "u1", "github")
	require.NoError(t, err)
	require.Len(t, missing, 1)
	require.Equal(t, "Github Access", missing[0].Name)
	require.Equal(t, domain.CredentialTypeOAuthToken, missing[0].Type)

	require.NoError(t, f.store.Put(ctx, "u1", "github", "Github Access", "ghp_tok"))
	missing, err = f.resolver.MissingCredentials(ctx, "u1", "github")
	require.NoError(t, err)
	require.Empty(t, missing)
}

func TestResolver_MissingCredentialsUnknownServer(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.resolver.MissingCredentials(t.Context(), "u1", "gitlab")
	require.ErrorIs(t, err, errors.ErrServerNotFound)
}

func TestResolver_MissingCredentialsDisabledServer(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.catalog.SetEnabled("u1", "github", false)

	// A disabled server is indistinguishable from an absent one.
	_, err := f.resolver.MissingCredentials(t.Context(), "u1", "github")
	require.ErrorIs(t, err, errors.ErrServerNotFound)
}

func TestResolver_CallTool(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	result, err := f.resolver.CallTool(t.Context(), "u1", "echo", "echo", map[string]any{"id": 7})
	require.NoError(t, err)
	require.Equal(t, "done: echo", result.Content)
	require.False(t, result.IsError)
}

func TestResolver_CallToolMissingCredentials(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.resolver.CallTool(t.Context(), "u1", "github", "get_issue", map[string]any{"id": 7})
	require.ErrorIs(t, err, errors.ErrCredentialsMissing)
	require.Contains(t, err.Error(), "Github Access")

	// Gating happens before any session exists.
	require.Zero(t, f.factory.launchCount("github"))
}

func TestResolver_CallToolUnknownTool(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.resolver.CallTool(t.Context(), "u1", "echo", "delete_everything", nil)
	require.ErrorIs(t, err, errors.ErrToolForbidden)
}

func TestResolver_CallToolUnknownServer(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.resolver.CallTool(t.Context(), "u1", "gitlab", "get_issue", nil)
	require.ErrorIs(t, err, errors.ErrServerNotFound)
}

func TestResolver_CallToolInvalidArguments(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := t.Context()
	require.NoError(t, f.store.Put(ctx, "u1", "github", "Github Access", "ghp_tok"))

	// "id" is required by the tool's schema.
	_, err := f.resolver.CallTool(ctx, "u1", "github", "get_issue", map[string]any{})
	require.ErrorIs(t, err, errors.ErrToolArgsInvalid)

	// The wrong type is rejected too; the call never reaches the session.
	_, err = f.resolver.CallTool(ctx, "u1", "github", "get_issue", map[string]any{"id": "seven"})
	require.ErrorIs(t, err, errors.ErrToolArgsInvalid)

	github := f.factory.transports["github"]
	github.mu.Lock()
	defer github.mu.Unlock()
	require.Empty(t, github.calls)
}

func TestResolver_CallToolFailurePropagates(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.factory.serve("echo", &stubTransport{
		tools:   []mcp.Tool{{Name: "echo", InputSchema: objectSchema()}},
		callErr: fmt.Errorf("pipe closed"),
	})

	_, err := f.resolver.CallTool(t.Context(), "u1", "echo", "echo", nil)
	require.ErrorIs(t, err, errors.ErrToolCallFailed)
}

func TestResolver_CallToolReusesSession(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := t.Context()

	for i := 0; i < 3; i++ {
		_, err := f.resolver.CallTool(ctx, "u1", "echo", "echo", map[string]any{"id": i})
		require.NoError(t, err)
	}

	require.Equal(t, 1, f.factory.launchCount("echo"))
}

func TestResolver_RemoveUserSessions(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := t.Context()

	_, err := f.resolver.CallTool(ctx, "u1", "echo", "echo", nil)
	require.NoError(t, err)
	_, err = f.resolver.CallTool(ctx, "u2", "echo", "echo", nil)
	require.NoError(t, err)

	f.resolver.RemoveUserSessions("u1")

	require.Empty(t, f.sessions.ListForUser("u1"))
	require.Len(t, f.sessions.ListForUser("u2"), 1)
}
