// Package authflow implements the multi-step credential collection state
// machine that gates tool availability. One flow collects the missing secrets
// for one (user, server) pair, a single requirement at a time, and hands the
// finished set to the credential store.
package authflow

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/agentfleet/mcpmux/internal/contracts"
	"github.com/agentfleet/mcpmux/internal/domain"
	"github.com/agentfleet/mcpmux/internal/errors"
)

// Prompt tells the calling surface which requirement to collect next.
type Prompt struct {
	FlowID      string                       `json:"flowId"`
	Requirement domain.CredentialRequirement `json:"requirement"`
	Index       int                          `json:"index"`
	Total       int                          `json:"total"`
}

// SubmitResult reports the outcome of a successful submission: either the
// flow completed (values handed to the store), or the next prompt.
type SubmitResult struct {
	Completed bool    `json:"completed"`
	Next      *Prompt `json:"next,omitempty"`
}

// flowState is the per-flow record. Index always points at the requirement
// being collected; values already collected are keyed by display name.
// persisting marks a flow whose final submission is handing values to the
// store, so a racing duplicate cannot complete it a second time.
type flowState struct {
	id           string
	userID       string
	serverName   string
	requirements []domain.CredentialRequirement
	index        int
	collected    map[string]string
	createdAt    time.Time
	persisting   bool
}

// Manager owns the table of in-flight flows. It is safe for concurrent use;
// submissions to different flows never block each other beyond table access.
// Flow state is process-local: a restart abandons every in-flight flow.
type Manager struct {
	logger hclog.Logger
	store  contracts.CredentialStore
	ttl    time.Duration
	now    func() time.Time

	mu    sync.Mutex
	flows map[string]*flowState
}

// NewManager creates a flow manager that persists completed flows through the
// given credential store.
func NewManager(logger hclog.Logger, store contracts.CredentialStore, opt ...Option) (*Manager, error) {
	if store == nil {
		return nil, fmt.Errorf("credential store cannot be nil")
	}

	opts, err := NewOptions(opt...)
	if err != nil {
		return nil, err
	}

	return &Manager{
		logger: logger.Named("authflow"),
		store:  store,
		ttl:    opts.ttl,
		now:    opts.now,
		flows:  make(map[string]*flowState),
	}, nil
}

// Start creates a flow for the given requirements and returns the first
// prompt. Starting with nothing to collect is a caller error. Expired flows
// are swept here; there is no background timer.
func (m *Manager) Start(
	userID string,
	serverName string,
	requirements []domain.CredentialRequirement,
) (Prompt, error) {
	if len(requirements) == 0 {
		return Prompt{}, fmt.Errorf("%w: %s/%s", errors.ErrFlowEmptyRequirements, userID, serverName)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweepExpiredLocked()

	now := m.now()
	id := fmt.Sprintf("%s_%s_%d", userID, serverName, now.UnixNano())
	for seq := 1; ; seq++ {
		if _, exists := m.flows[id]; !exists {
			break
		}
		id = fmt.Sprintf("%s_%s_%d_%d", userID, serverName, now.UnixNano(), seq)
	}

	reqs := make([]domain.CredentialRequirement, len(requirements))
	copy(reqs, requirements)

	m.flows[id] = &flowState{
		id:           id,
		userID:       userID,
		serverName:   serverName,
		requirements: reqs,
		collected:    make(map[string]string, len(reqs)),
		createdAt:    now,
	}

	m.logger.Debug("Started credential flow", "flow", id, "requirements", len(reqs))

	return Prompt{
		FlowID:      id,
		Requirement: reqs[0],
		Index:       0,
		Total:       len(reqs),
	}, nil
}

// Submit records one collected value. An unknown flow ID (completed,
// cancelled, or evicted) or an index that does not match the flow's current
// pointer is rejected with no side effects. Completing the final requirement
// hands the full collected map to the credential store and retires the flow;
// a store failure leaves the flow alive at the final step so the submission
// can be retried rather than redoing the whole flow.
func (m *Manager) Submit(ctx context.Context, flowID string, index int, value string) (SubmitResult, error) {
	m.mu.Lock()

	flow, ok := m.flows[flowID]
	if !ok || flow.persisting {
		// A flow mid-handoff is as done as a retired one to everyone but the
		// submission driving it.
		m.mu.Unlock()
		return SubmitResult{}, fmt.Errorf("%w: %s", errors.ErrFlowNotFound, flowID)
	}

	if index != flow.index {
		m.mu.Unlock()
		return SubmitResult{}, fmt.Errorf(
			"%w: flow %s expects step %d, got %d",
			errors.ErrFlowIndexMismatch, flowID, flow.index, index,
		)
	}

	flow.collected[flow.requirements[flow.index].Name] = value

	if flow.index+1 < len(flow.requirements) {
		flow.index++
		prompt := &Prompt{
			FlowID:      flowID,
			Requirement: flow.requirements[flow.index],
			Index:       flow.index,
			Total:       len(flow.requirements),
		}
		m.mu.Unlock()
		return SubmitResult{Next: prompt}, nil
	}

	// Final value collected. Persist before retiring so a failed handoff
	// keeps the flow alive; the index stays on the final step so the same
	// submission retries cleanly, and Put overwrites make the retry safe.
	flow.persisting = true
	collected := maps.Clone(flow.collected)
	m.mu.Unlock()

	for name, secret := range collected {
		if err := m.store.Put(ctx, flow.userID, flow.serverName, name, secret); err != nil {
			m.logger.Error(
				"Failed to persist collected credential",
				"flow", flowID,
				"requirement", name,
				"error", err,
			)
			m.mu.Lock()
			flow.persisting = false
			m.mu.Unlock()
			return SubmitResult{}, fmt.Errorf("failed to persist credential '%s': %w", name, err)
		}
	}

	m.mu.Lock()
	delete(m.flows, flowID)
	m.mu.Unlock()

	m.logger.Debug("Completed credential flow", "flow", flowID)

	return SubmitResult{Completed: true}, nil
}

// Cancel discards a flow regardless of progress. Collected values are
// dropped and nothing is persisted. Reports whether the flow existed.
func (m *Manager) Cancel(flowID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.flows[flowID]; !ok {
		return false
	}

	delete(m.flows, flowID)
	m.logger.Debug("Cancelled credential flow", "flow", flowID)

	return true
}

// sweepExpiredLocked evicts flows older than the TTL. Callers hold m.mu.
func (m *Manager) sweepExpiredLocked() {
	cutoff := m.now().Add(-m.ttl)
	for id, flow := range m.flows {
		if flow.createdAt.Before(cutoff) {
			delete(m.flows, id)
			m.logger.Debug("Evicted expired credential flow", "flow", id)
		}
	}
}
