// Package contracts defines the interfaces between the session core and its
// collaborators. The core never persists or encrypts secrets, never renders
// chat surfaces, and treats the MCP wire protocol as an opaque capability;
// everything behind these interfaces is replaceable.
package contracts

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/agentfleet/mcpmux/internal/config"
	"github.com/agentfleet/mcpmux/internal/domain"
)

// CredentialStore is the external store of collected secrets.
// Values are opaque plaintext from the core's perspective; encryption at rest
// is the store's concern.
type CredentialStore interface {
	// Get returns the stored credentials for one user and server,
	// keyed by requirement display name.
	Get(ctx context.Context, userID string, serverName string) (map[string]string, error)

	// Put stores a single credential value for one user and server.
	Put(ctx context.Context, userID string, serverName string, name string, value string) error
}

// ServerCatalog supplies the ordered set of server descriptors and, per user,
// which servers are enabled. Read-only from the core's perspective.
type ServerCatalog interface {
	// Servers returns every catalog entry in declaration order.
	Servers() []config.ServerEntry

	// Server returns the entry with the given name.
	Server(name string) (config.ServerEntry, bool)

	// EnabledForUser returns the entries enabled for the given user, in catalog order.
	EnabledForUser(userID string) []config.ServerEntry
}

// SessionTransport is the request/response capability one live server
// subprocess provides. The mcp-go stdio client satisfies it; tests substitute
// in-memory fakes.
type SessionTransport interface {
	Initialize(ctx context.Context, request mcp.InitializeRequest) (*mcp.InitializeResult, error)
	ListTools(ctx context.Context, request mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Ping(ctx context.Context) error
	Close() error
}

// TransportFactory starts the subprocess (or fake) behind a session and
// returns its transport. The env is the fully overlaid launch environment,
// in KEY=VALUE form.
type TransportFactory func(ctx context.Context, entry config.ServerEntry, env []string) (SessionTransport, error)

// SessionHealthMonitor provides a way to interact with the health status of live sessions.
type SessionHealthMonitor interface {
	// Status returns the health record for a single tracked session.
	Status(key domain.SessionKey) (domain.SessionHealth, error)

	// List returns a copy of all known session health records.
	List() []domain.SessionHealth

	// Track begins monitoring a session, starting in the unknown state.
	Track(key domain.SessionKey)

	// Forget stops monitoring a session.
	Forget(key domain.SessionKey)

	// Update records a health check for a tracked session.
	Update(key domain.SessionKey, status domain.HealthStatus, latency *time.Duration) error
}
