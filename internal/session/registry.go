package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/singleflight"

	"github.com/agentfleet/mcpmux/internal/config"
	"github.com/agentfleet/mcpmux/internal/contracts"
	"github.com/agentfleet/mcpmux/internal/domain"
)

// Registry owns every live session handle, keyed by (user, server). At most
// one live session exists per key, and handles are only ever terminated by
// the explicit removal operations below. The registry is process-local: a
// restart loses it and sessions are re-established on demand.
type Registry struct {
	logger  hclog.Logger
	factory contracts.TransportFactory
	monitor contracts.SessionHealthMonitor // optional

	mu      sync.RWMutex
	handles map[domain.SessionKey]*Handle

	// group collapses concurrent initializations for the same key so exactly
	// one subprocess is started; distinct keys proceed in parallel.
	group singleflight.Group
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry) error

// WithTransportFactory overrides how session transports are started,
// e.g. with in-memory fakes in tests.
func WithTransportFactory(factory contracts.TransportFactory) RegistryOption {
	return func(r *Registry) error {
		if factory == nil {
			return fmt.Errorf("transport factory cannot be nil")
		}
		r.factory = factory
		return nil
	}
}

// WithHealthMonitor registers sessions with a health monitor as they are
// created and evicted.
func WithHealthMonitor(monitor contracts.SessionHealthMonitor) RegistryOption {
	return func(r *Registry) error {
		if monitor == nil {
			return fmt.Errorf("health monitor cannot be nil")
		}
		r.monitor = monitor
		return nil
	}
}

// NewRegistry creates an empty session registry. Without options, sessions
// launch real subprocesses over stdio.
func NewRegistry(logger hclog.Logger, opt ...RegistryOption) (*Registry, error) {
	r := &Registry{
		logger:  logger.Named("session"),
		handles: make(map[domain.SessionKey]*Handle),
	}
	r.factory = StdioTransportFactory(r.logger)

	for _, o := range opt {
		if o == nil {
			continue
		}
		if err := o(r); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// GetOrCreate returns the live handle for the key, creating and initializing
// a session on first use. An existing handle is returned unconditionally,
// even if the user's stored credentials have changed since it was created;
// there is no invalidation path. Initialization failure reports absence: the
// caller treats the server as unavailable for this user and no error escapes.
func (r *Registry) GetOrCreate(
	ctx context.Context,
	key domain.SessionKey,
	entry config.ServerEntry,
	creds map[string]string,
) (*Handle, bool) {
	if h, ok := r.Get(key); ok {
		return h, true
	}

	v, err, _ := r.group.Do(key.String(), func() (any, error) {
		// Re-check: another caller may have registered while we queued.
		if h, ok := r.Get(key); ok {
			return h, nil
		}

		h := newHandle(r.logger, key, entry, r.factory)
		if err := h.initialize(ctx, creds); err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.handles[key] = h
		r.mu.Unlock()

		if r.monitor != nil {
			r.monitor.Track(key)
		}

		return h, nil
	})
	if err != nil {
		r.logger.Warn("Session unavailable", "session", key.String(), "error", err)
		return nil, false
	}

	return v.(*Handle), true
}

// Get returns the live handle for the key without creating one.
func (r *Registry) Get(key domain.SessionKey) (*Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[key]
	return h, ok
}

// List returns every live handle.
func (r *Registry) List() []*Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Handle, 0, len(r.handles))
	for _, h := range r.handles {
		out = append(out, h)
	}
	return out
}

// ListForUser returns the live handles whose key belongs to the given user.
func (r *Registry) ListForUser(userID string) []*Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Handle
	for key, h := range r.handles {
		if key.UserID == userID {
			out = append(out, h)
		}
	}
	return out
}

// RemoveForUser terminates and evicts every session belonging to the user.
// Other users' sessions are untouched.
func (r *Registry) RemoveForUser(userID string) {
	r.mu.Lock()
	var evicted []*Handle
	for key, h := range r.handles {
		if key.UserID == userID {
			evicted = append(evicted, h)
			delete(r.handles, key)
		}
	}
	r.mu.Unlock()

	r.terminate(evicted)
}

// RemoveAll terminates and evicts every session. Used at process shutdown.
func (r *Registry) RemoveAll() {
	r.mu.Lock()
	evicted := make([]*Handle, 0, len(r.handles))
	for key, h := range r.handles {
		evicted = append(evicted, h)
		delete(r.handles, key)
	}
	r.mu.Unlock()

	r.terminate(evicted)
}

func (r *Registry) terminate(handles []*Handle) {
	for _, h := range handles {
		r.logger.Info("Terminating session", "session", h.Key().String())
		h.Terminate()
		if r.monitor != nil {
			r.monitor.Forget(h.Key())
		}
	}
}
