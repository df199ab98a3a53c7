package daemon

import (
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/agentfleet/mcpmux/internal/contracts"
	"github.com/agentfleet/mcpmux/internal/domain"
	"github.com/agentfleet/mcpmux/internal/errors"
)

var _ contracts.SessionHealthMonitor = (*HealthTracker)(nil)

// HealthTracker keeps the last observed health for every live session.
// Sessions enter tracking when the registry creates them and leave when they
// are terminated, so the tracked set mirrors the registry's contents.
type HealthTracker struct {
	mu       sync.RWMutex
	statuses map[domain.SessionKey]domain.SessionHealth
}

// NewHealthTracker creates an empty tracker.
func NewHealthTracker() *HealthTracker {
	return &HealthTracker{
		statuses: make(map[domain.SessionKey]domain.SessionHealth),
	}
}

// Status returns the health record for a single tracked session.
func (h *HealthTracker) Status(key domain.SessionKey) (domain.SessionHealth, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if health, ok := h.statuses[key]; ok {
		return health, nil
	}

	return domain.SessionHealth{}, fmt.Errorf("%w: %s", errors.ErrHealthNotTracked, key)
}

// List returns a copy of all known session health records.
func (h *HealthTracker) List() []domain.SessionHealth {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Collect(maps.Values(h.statuses))
}

// Track begins monitoring a session, starting in the unknown state.
// Re-tracking an existing session resets its record.
func (h *HealthTracker) Track(key domain.SessionKey) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.statuses[key] = domain.SessionHealth{Key: key, Status: domain.HealthStatusUnknown}
}

// Forget stops monitoring a session. Forgetting an untracked session is a no-op.
func (h *HealthTracker) Forget(key domain.SessionKey) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.statuses, key)
}

// Update records a health check for a tracked session.
// The current time is recorded as LastChecked, and LastSuccessful moves only
// when the status is ok. Latency can be nil if the ping failed or was not measured.
func (h *HealthTracker) Update(key domain.SessionKey, status domain.HealthStatus, latency *time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := time.Now().UTC()

	prev, exists := h.statuses[key]
	if !exists {
		return fmt.Errorf("%w: %s", errors.ErrHealthNotTracked, key)
	}

	lastSuccessful := prev.LastSuccessful
	if status == domain.HealthStatusOK {
		lastSuccessful = &now
	}

	h.statuses[key] = domain.SessionHealth{
		Key:            key,
		Status:         status,
		Latency:        latency,
		LastChecked:    &now,
		LastSuccessful: lastSuccessful,
	}

	return nil
}
