// Package api defines the HTTP surface of the daemon: per-user tool listing
// and invocation, credential requirement inspection, collection flows, session
// teardown, and session health.
package api

import (
	"fmt"
	"net/url"
	"reflect"

	"github.com/danielgtaylor/huma/v2"

	"github.com/agentfleet/mcpmux/internal/authflow"
	"github.com/agentfleet/mcpmux/internal/contracts"
	"github.com/agentfleet/mcpmux/internal/resolver"
	"github.com/agentfleet/mcpmux/internal/session"
)

// APIVersion is the version used in the OpenAPI spec and URL paths.
const APIVersion = "v1"

// Dependencies are the collaborators the route handlers dispatch to.
type Dependencies struct {
	Resolver      *resolver.Resolver
	Flows         *authflow.Manager
	Sessions      *session.Registry
	HealthTracker contracts.SessionHealthMonitor
}

// RegisterRoutes registers all API routes on the provided Huma router.
// This is the single source of truth for the API route structure.
// Returns the API path prefix (e.g., "/api/v1") under which the routes are created.
func RegisterRoutes(router huma.API, deps Dependencies) (string, error) {
	if router == nil || reflect.ValueOf(router).IsNil() {
		return "", fmt.Errorf("router cannot be nil")
	}
	if deps.Resolver == nil {
		return "", fmt.Errorf("resolver cannot be nil")
	}
	if deps.Flows == nil {
		return "", fmt.Errorf("flow manager cannot be nil")
	}
	if deps.Sessions == nil {
		return "", fmt.Errorf("session registry cannot be nil")
	}
	if deps.HealthTracker == nil || reflect.ValueOf(deps.HealthTracker).IsNil() {
		return "", fmt.Errorf("health tracker cannot be nil")
	}

	// Safe way to ensure /api/{version}.
	apiPathPrefix, err := url.JoinPath("/api", APIVersion)
	if err != nil {
		return "", fmt.Errorf("failed to construct API path prefix: %w", err)
	}

	// Group all routes under the /api/{version} prefix.
	versionedGroup := huma.NewGroup(router, apiPathPrefix)
	RegisterUserRoutes(versionedGroup, deps, "/users")
	RegisterFlowRoutes(versionedGroup, deps.Flows, "/flows")
	RegisterHealthRoutes(versionedGroup, deps.HealthTracker, "/health")

	return apiPathPrefix, nil
}
