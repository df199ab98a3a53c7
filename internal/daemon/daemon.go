// Package daemon wires the long-running process: it loads the server catalog,
// owns the session registry and credential flows, pings live sessions for
// health, and serves the HTTP API.
package daemon

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/agentfleet/mcpmux/internal/authflow"
	"github.com/agentfleet/mcpmux/internal/config"
	"github.com/agentfleet/mcpmux/internal/domain"
	"github.com/agentfleet/mcpmux/internal/flags"
	"github.com/agentfleet/mcpmux/internal/resolver"
	"github.com/agentfleet/mcpmux/internal/session"
	"github.com/agentfleet/mcpmux/internal/store"
)

// Daemon is the long-running process hosting sessions, flows and the HTTP API.
// NewDaemon should be used to create instances of Daemon.
type Daemon struct {
	logger    hclog.Logger
	cfgLoader config.Loader
	addr      string
	opts      Options

	tracker  *HealthTracker
	sessions *session.Registry
}

// NewDaemon creates a daemon bound to the given API address.
func NewDaemon(logger hclog.Logger, cfgLoader config.Loader, addr string, opt ...Option) (*Daemon, error) {
	if logger == nil || reflect.ValueOf(logger).IsNil() {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfgLoader == nil || reflect.ValueOf(cfgLoader).IsNil() {
		return nil, fmt.Errorf("config loader cannot be nil")
	}
	if err := validateAddr(addr); err != nil {
		return nil, fmt.Errorf("invalid api address '%s': %w", addr, err)
	}

	opts, err := NewOptions(opt...)
	if err != nil {
		return nil, fmt.Errorf("invalid daemon options: %w", err)
	}

	return &Daemon{
		logger:    logger.Named("daemon"),
		cfgLoader: cfgLoader,
		addr:      addr,
		opts:      opts,
	}, nil
}

// StartAndManage loads the catalog, wires the components and serves the API
// until the context is cancelled. Sessions are established lazily per user;
// nothing is launched at startup. On shutdown every live session is terminated.
func (d *Daemon) StartAndManage(ctx context.Context) error {
	catalog, err := d.cfgLoader.Load(flags.ConfigFile)
	if err != nil {
		return err
	}
	d.logger.Info("Catalog loaded", "servers", len(catalog.Servers()))

	credStore := d.opts.CredentialStore
	if credStore == nil {
		credStore = store.NewMemoryStore()
	}

	d.tracker = NewHealthTracker()

	d.sessions, err = session.NewRegistry(d.logger, session.WithHealthMonitor(d.tracker))
	if err != nil {
		return fmt.Errorf("failed to create session registry: %w", err)
	}
	defer d.sessions.RemoveAll()

	flows, err := authflow.NewManager(d.logger, credStore, d.opts.FlowOptions...)
	if err != nil {
		return fmt.Errorf("failed to create flow manager: %w", err)
	}

	res, err := resolver.NewResolver(d.logger, catalog, credStore, d.sessions)
	if err != nil {
		return fmt.Errorf("failed to create resolver: %w", err)
	}

	deps, err := NewAPIDependencies(d.logger, res, flows, d.sessions, d.tracker, d.addr)
	if err != nil {
		return fmt.Errorf("failed to assemble API dependencies: %w", err)
	}

	apiServer, err := NewAPIServer(deps, d.opts.APIOptions...)
	if err != nil {
		return fmt.Errorf("failed to create daemon API server: %w", err)
	}

	go d.healthCheckLoop(ctx, d.opts.HealthCheckInterval, d.opts.HealthCheckTimeout)

	return apiServer.Start(ctx)
}

// healthCheckLoop pings every live session on a fixed interval and records
// the outcomes in the health tracker.
func (d *Daemon) healthCheckLoop(ctx context.Context, interval time.Duration, timeout time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	d.pingAllSessions(ctx, timeout)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Stopping session health checks")
			return
		case <-ticker.C:
			d.pingAllSessions(ctx, timeout)
		}
	}
}

// pingAllSessions pings each live session concurrently; a slow session never
// delays the others.
func (d *Daemon) pingAllSessions(ctx context.Context, timeout time.Duration) {
	for _, h := range d.sessions.List() {
		go func(h *session.Handle) {
			pingCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			started := time.Now()
			err := h.Ping(pingCtx)
			latency := time.Since(started)

			status := classifyPing(pingCtx, err)
			var measured *time.Duration
			if err == nil {
				measured = &latency
			}

			if updateErr := d.tracker.Update(h.Key(), status, measured); updateErr != nil {
				// The session was forgotten between the ping and the update.
				d.logger.Debug("Dropping health result for untracked session",
					"session", h.Key().String())
			}
			if err != nil {
				d.logger.Warn("Session ping failed",
					"session", h.Key().String(), "status", status, "error", err)
			}
		}(h)
	}
}

// classifyPing maps a ping outcome to a health status.
func classifyPing(ctx context.Context, err error) domain.HealthStatus {
	switch {
	case err == nil:
		return domain.HealthStatusOK
	case ctx.Err() != nil:
		return domain.HealthStatusTimeout
	default:
		return domain.HealthStatusUnreachable
	}
}
