package session

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
)

// fakeTransport is an in-memory contracts.SessionTransport with injectable
// failures and call counting.
type fakeTransport struct {
	mu        sync.Mutex
	initErr   error
	listErr   error
	callErr   error
	pingErr   error
	tools     []mcp.Tool
	initCalls int
	listCalls int
	callCalls int
	closes    int

	// initGate, when set, blocks Initialize until released. Used to hold
	// concurrent creators inside initialization.
	initGate chan struct{}
}

func (f *fakeTransport) Initialize(ctx context.Context, _ mcp.InitializeRequest) (*mcp.InitializeResult, error) {
	if f.initGate != nil {
		select {
		case <-f.initGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.initCalls++
	if f.initErr != nil {
		return nil, f.initErr
	}
	return &mcp.InitializeResult{
		ServerInfo: mcp.Implementation{Name: "fake", Version: "0.0.1"},
	}, nil
}

func (f *fakeTransport) ListTools(_ context.Context, _ mcp.ListToolsRequest) (*mcp.ListToolsResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return &mcp.ListToolsResult{Tools: f.tools}, nil
}

func (f *fakeTransport) CallTool(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callCalls++
	if f.callErr != nil {
		return nil, f.callErr
	}
	return mcp.NewToolResultText("called " + request.Params.Name), nil
}

func (f *fakeTransport) Ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pingErr
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

func (f *fakeTransport) setListErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listErr = err
}

func (f *fakeTransport) counts() (initCalls, listCalls, callCalls, closes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.initCalls, f.listCalls, f.callCalls, f.closes
}

// fakeFactory hands out transports and records every launch environment.
type fakeFactory struct {
	mu         sync.Mutex
	transports []*fakeTransport
	envs       [][]string
	err        error
	next       func() *fakeTransport
}

func newFakeFactory(next func() *fakeTransport) *fakeFactory {
	return &fakeFactory{next: next}
}

func (f *fakeFactory) factory() contracts.TransportFactory {
	return func(_ context.Context, _ config.ServerEntry, env []string) (contracts.SessionTransport, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.err != nil {
			return nil, f.err
		}
		t := f.next()
		f.transports = append(f.transports, t)
		f.envs = append(f.envs, env)
		return t, nil
	}
}

func (f *fakeFactory) created() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.transports)
}

func testEntry() config.ServerEntry {
	return config.ServerEntry{
		Name:    "github",
		Command: "uvx",
		Args:    []string{"github-server"},
		Env: map[string]string{
			"GITHUB_ACCESS_TOKEN": "${GITHUB_ACCESS_TOKEN}",
			"LOG_LEVEL":           "debug",
		},
	}
}

func newTestHandle(t *testing.T, transport *fakeTransport) (*Handle, *fakeFactory) {
	t.Helper()
	factory := newFakeFactory(func() *fakeTransport { return transport })
	h := newHandle(
		hclog.NewNullLogger(),
		domain.NewSessionKey("u1", "github"),
		testEntry(),
		factory.factory(),
	)
	return h, factory
}

func TestHandle_InitializeInjectsCredentials(t *testing.T) {
	t.Parallel()
	transport := &fakeTransport{}
	h, factory := newTestHandle(t, transport)

	err := h.initialize(t.Context(), map[string]string{"Github Access": "ghp_secret"})
	require.NoError(t, err)

	require.Len(t, factory.envs, 1)
	require.Contains(t, factory.envs[0], "GITHUB_ACCESS_TOKEN=ghp_secret")
	require.Contains(t, factory.envs[0], "LOG_LEVEL=debug")
}

func TestHandle_InitializeHandshakeFailureClosesTransport(t *testing.T) {
	t.Parallel()
	transport := &fakeTransport{initErr: fmt.Errorf("boom")}
	h, _ := newTestHandle(t, transport)

	err := h.initialize(t.Context(), nil)
	require.ErrorIs(t, err, errors.ErrSessionInit)

	_, _, _, closes := transport.counts()
	require.Equal(t, 1, closes, "a failed handshake must not leak the subprocess")
}

func TestHandle_ListToolsCachesOnce(t *testing.T) {
	t.Parallel()
	transport := &fakeTransport{
		tools: []mcp.Tool{{Name: "get_issue", Description: "Fetch an issue"}},
	}
	h, _ := newTestHandle(t, transport)
	require.NoError(t, h.initialize(t.Context(), nil))

	first := h.ListTools(t.Context())
	second := h.ListTools(t.Context())

	require.Len(t, first, 1)
	require.Equal(t, first, second)
	require.Equal(t, "github", first[0].Server)

	_, listCalls, _, _ := transport.counts()
	require.Equal(t, 1, listCalls, "cached list must not trigger a second query")
}

func TestHandle_ListToolsErrorLeavesCacheUnset(t *testing.T) {
	t.Parallel()
	transport := &fakeTransport{
		tools:   []mcp.Tool{{Name: "get_issue"}},
		listErr: fmt.Errorf("timeout"),
	}
	h, _ := newTestHandle(t, transport)
	require.NoError(t, h.initialize(t.Context(), nil))

	require.Empty(t, h.ListTools(t.Context()))

	// The failure did not populate the cache, so the next call retries and
	// the result of the successful attempt is then cached.
	transport.setListErr(nil)
	require.Len(t, h.ListTools(t.Context()), 1)
	require.Len(t, h.ListTools(t.Context()), 1)

	_, listCalls, _, _ := transport.counts()
	require.Equal(t, 2, listCalls)
}

func TestHandle_ListToolsEmptyResultIsCached(t *testing.T) {
	t.Parallel()
	transport := &fakeTransport{}
	h, _ := newTestHandle(t, transport)
	require.NoError(t, h.initialize(t.Context(), nil))

	require.Empty(t, h.ListTools(t.Context()))
	require.Empty(t, h.ListTools(t.Context()))

	// A successful listing with zero tools is a real answer, not a failure.
	_, listCalls, _, _ := transport.counts()
	require.Equal(t, 1, listCalls)
}

func TestHandle_ListToolsUninitialized(t *testing.T) {
	t.Parallel()
	h, _ := newTestHandle(t, &fakeTransport{})
	require.Empty(t, h.ListTools(t.Context()))
}

func TestHandle_CallTool(t *testing.T) {
	t.Parallel()
	transport := &fakeTransport{}
	h, _ := newTestHandle(t, transport)
	require.NoError(t, h.initialize(t.Context(), nil))

	result, err := h.CallTool(t.Context(), "get_issue", map[string]any{"id": 42})
	require.NoError(t, err)
	require.NotNil(t, result)
}

func TestHandle_CallToolFailurePropagates(t *testing.T) {
	t.Parallel()
	cause := fmt.Errorf("pipe closed")
	transport := &fakeTransport{callErr: cause}
	h, _ := newTestHandle(t, transport)
	require.NoError(t, h.initialize(t.Context(), nil))

	_, err := h.CallTool(t.Context(), "get_issue", nil)
	require.ErrorIs(t, err, errors.ErrToolCallFailed)
	require.ErrorIs(t, err, cause, "the underlying cause must be carried")

	// The failed call never tears the session down.
	_, _, _, closes := transport.counts()
	require.Zero(t, closes)
}

func TestHandle_CallToolUninitialized(t *testing.T) {
	t.Parallel()
	h, _ := newTestHandle(t, &fakeTransport{})

	_, err := h.CallTool(t.Context(), "get_issue", nil)
	require.ErrorIs(t, err, errors.ErrToolCallFailed)
}

func TestHandle_TerminateIdempotent(t *testing.T) {
	t.Parallel()
	transport := &fakeTransport{
		tools: []mcp.Tool{{Name: "get_issue"}},
	}
	h, _ := newTestHandle(t, transport)
	require.NoError(t, h.initialize(t.Context(), nil))
	require.Len(t, h.ListTools(t.Context()), 1)

	h.Terminate()
	h.Terminate()

	_, _, _, closes := transport.counts()
	require.Equal(t, 1, closes)

	// Terminated handles answer with no tools rather than failing.
	require.Empty(t, h.ListTools(t.Context()))
}

func TestHandle_TerminateNeverInitialized(t *testing.T) {
	t.Parallel()
	h, _ := newTestHandle(t, &fakeTransport{})
	h.Terminate() // must not panic
}
