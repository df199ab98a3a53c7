package daemon

import (
	"fmt"
	"reflect"

	"github.com/hashicorp/go-hclog"

	"github.com/agentfleet/mcpmux/internal/authflow"
	"github.com/agentfleet/mcpmux/internal/contracts"
	"github.com/agentfleet/mcpmux/internal/resolver"
	"github.com/agentfleet/mcpmux/internal/session"
)

// APIDependencies contains the required external dependencies for the API server.
// NewAPIDependencies should be used to create instances of APIDependencies.
type APIDependencies struct {
	// Addr specifies the network address to bind (e.g., "0.0.0.0:8090").
	Addr string

	// Resolver computes per-user tool surfaces and routes tool calls.
	Resolver *resolver.Resolver

	// Flows manages in-flight credential collection flows.
	Flows *authflow.Manager

	// Sessions is the registry of live per-user sessions.
	Sessions *session.Registry

	// HealthTracker monitors session health status.
	HealthTracker contracts.SessionHealthMonitor

	// Logger for API server operations.
	Logger hclog.Logger
}

// NewAPIDependencies creates and validates APIDependencies.
func NewAPIDependencies(
	logger hclog.Logger,
	res *resolver.Resolver,
	flows *authflow.Manager,
	sessions *session.Registry,
	healthTracker contracts.SessionHealthMonitor,
	addr string,
) (APIDependencies, error) {
	deps := APIDependencies{
		Addr:          addr,
		Resolver:      res,
		Flows:         flows,
		Sessions:      sessions,
		HealthTracker: healthTracker,
		Logger:        logger,
	}

	if err := deps.Validate(); err != nil {
		return APIDependencies{}, err
	}

	return deps, nil
}

// Validate ensures all required dependencies are provided and valid.
func (d APIDependencies) Validate() error {
	if err := validateAddr(d.Addr); err != nil {
		return fmt.Errorf("invalid API address '%s': %w", d.Addr, err)
	}
	if d.Resolver == nil {
		return fmt.Errorf("resolver cannot be nil")
	}
	if d.Flows == nil {
		return fmt.Errorf("flow manager cannot be nil")
	}
	if d.Sessions == nil {
		return fmt.Errorf("session registry cannot be nil")
	}
	if d.HealthTracker == nil || reflect.ValueOf(d.HealthTracker).IsNil() {
		return fmt.Errorf("health tracker cannot be nil")
	}
	if d.Logger == nil || reflect.ValueOf(d.Logger).IsNil() {
		return fmt.Errorf("logger cannot be nil")
	}
	return nil
}
