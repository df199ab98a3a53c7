package authflow

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/agentfleet/mcpmux/internal/domain"
	"github.com/agentfleet/mcpmux/internal/errors"
)

// recordingStore captures Put calls so tests can assert on persistence.
type recordingStore struct {
	mu   sync.Mutex
	puts map[string]string // "user/server/name" -> value
	err  error
}

func newRecordingStore() *recordingStore {
	return &recordingStore{puts: make(map[string]string)}
}

func (s *recordingStore) Get(context.Context, string, string) (map[string]string, error) {
	return nil, nil
}

func (s *recordingStore) Put(_ context.Context, userID, serverName, name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.puts[fmt.Sprintf("%s/%s/%s", userID, serverName, name)] = value
	return nil
}

func (s *recordingStore) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func testRequirements(n int) []domain.CredentialRequirement {
	reqs := make([]domain.CredentialRequirement, 0, n)
	for i := 0; i < n; i++ {
		reqs = append(reqs, domain.CredentialRequirement{
			Type:     domain.CredentialTypeGeneric,
			Name:     fmt.Sprintf("Credential %d", i),
			Required: true,
			EnvVar:   fmt.Sprintf("CREDENTIAL_%d", i),
		})
	}
	return reqs
}

func newTestManager(t *testing.T, store *recordingStore, opt ...Option) *Manager {
	t.Helper()
	m, err := NewManager(hclog.NewNullLogger(), store, opt...)
	require.NoError(t, err)
	return m
}

func TestManager_StartEmptyRequirements(t *testing.T) {
	t.Parallel()
	m := newTestManager(t, newRecordingStore())

	_, err := m.Start("u1", "github", nil)
	require.ErrorIs(t, err, errors.ErrFlowEmptyRequirements)
}

func TestManager_StartReturnsFirstPrompt(t *testing.T) {
	t.Parallel()
	m := newTestManager(t, newRecordingStore())

	prompt, err := m.Start("u1", "github", testRequirements(3))
	require.NoError(t, err)
	require.NotEmpty(t, prompt.FlowID)
	require.Equal(t, 0, prompt.Index)
	require.Equal(t, 3, prompt.Total)
	require.Equal(t, "Credential 0", prompt.Requirement.Name)
}

func TestManager_CompleteTwoStepFlow(t *testing.T) {
	t.Parallel()
	store := newRecordingStore()
	m := newTestManager(t, store)
	ctx := t.Context()

	prompt, err := m.Start("u1", "github", testRequirements(2))
	require.NoError(t, err)

	res, err := m.Submit(ctx, prompt.FlowID, 0, "v0")
	require.NoError(t, err)
	require.False(t, res.Completed)
	require.NotNil(t, res.Next)
	require.Equal(t, 1, res.Next.Index)
	require.Equal(t, "Credential 1", res.Next.Requirement.Name)

	// Nothing persisted until the flow completes.
	require.Empty(t, store.puts)

	res, err = m.Submit(ctx, prompt.FlowID, 1, "v1")
	require.NoError(t, err)
	require.True(t, res.Completed)
	require.Nil(t, res.Next)

	require.Equal(t, map[string]string{
		"u1/github/Credential 0": "v0",
		"u1/github/Credential 1": "v1",
	}, store.puts)

	// The flow is retired; a replay is indistinguishable from an unknown flow.
	_, err = m.Submit(ctx, prompt.FlowID, 2, "v2")
	require.ErrorIs(t, err, errors.ErrFlowNotFound)
}

func TestManager_SubmitIndexMismatch(t *testing.T) {
	t.Parallel()
	store := newRecordingStore()
	m := newTestManager(t, store)
	ctx := t.Context()

	prompt, err := m.Start("u1", "github", testRequirements(2))
	require.NoError(t, err)

	_, err = m.Submit(ctx, prompt.FlowID, 1, "out-of-order")
	require.ErrorIs(t, err, errors.ErrFlowIndexMismatch)

	// No side effects: the correct step still succeeds.
	res, err := m.Submit(ctx, prompt.FlowID, 0, "v0")
	require.NoError(t, err)
	require.Equal(t, 1, res.Next.Index)
	require.Empty(t, store.puts)
}

func TestManager_SubmitUnknownFlow(t *testing.T) {
	t.Parallel()
	m := newTestManager(t, newRecordingStore())

	_, err := m.Submit(t.Context(), "u1_github_123", 0, "v")
	require.ErrorIs(t, err, errors.ErrFlowNotFound)
}

func TestManager_StoreFailureLeavesFlowRetryable(t *testing.T) {
	t.Parallel()
	store := newRecordingStore()
	m := newTestManager(t, store)
	ctx := t.Context()

	prompt, err := m.Start("u1", "github", testRequirements(2))
	require.NoError(t, err)

	_, err = m.Submit(ctx, prompt.FlowID, 0, "v0")
	require.NoError(t, err)

	store.setErr(fmt.Errorf("store offline"))
	_, err = m.Submit(ctx, prompt.FlowID, 1, "v1")
	require.Error(t, err)

	// The flow is still parked on the final step; only that step retries.
	_, err = m.Submit(ctx, prompt.FlowID, 0, "stale")
	require.ErrorIs(t, err, errors.ErrFlowIndexMismatch)

	store.setErr(nil)
	res, err := m.Submit(ctx, prompt.FlowID, 1, "v1-retry")
	require.NoError(t, err)
	require.True(t, res.Completed)

	require.Equal(t, map[string]string{
		"u1/github/Credential 0": "v0",
		"u1/github/Credential 1": "v1-retry",
	}, store.puts)

	// Completion retires the flow as usual.
	_, err = m.Submit(ctx, prompt.FlowID, 1, "again")
	require.ErrorIs(t, err, errors.ErrFlowNotFound)
}

func TestManager_Cancel(t *testing.T) {
	t.Parallel()
	store := newRecordingStore()
	m := newTestManager(t, store)
	ctx := t.Context()

	prompt, err := m.Start("u1", "github", testRequirements(2))
	require.NoError(t, err)

	_, err = m.Submit(ctx, prompt.FlowID, 0, "v0")
	require.NoError(t, err)

	require.True(t, m.Cancel(prompt.FlowID))
	require.False(t, m.Cancel(prompt.FlowID))

	// Collected-so-far values are dropped, nothing persisted.
	require.Empty(t, store.puts)

	_, err = m.Submit(ctx, prompt.FlowID, 1, "v1")
	require.ErrorIs(t, err, errors.ErrFlowNotFound)
}

func TestManager_ExpiredFlowSweptOnStart(t *testing.T) {
	t.Parallel()
	store := newRecordingStore()

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	clock := func() time.Time { return now }
	m := newTestManager(t, store, WithTTL(10*time.Minute), WithClock(clock))

	stale, err := m.Start("u1", "github", testRequirements(1))
	require.NoError(t, err)

	// Advance past the TTL; the next Start sweeps the stale flow.
	now = now.Add(11 * time.Minute)
	_, err = m.Start("u2", "jira", testRequirements(1))
	require.NoError(t, err)

	_, err = m.Submit(t.Context(), stale.FlowID, 0, "late")
	require.ErrorIs(t, err, errors.ErrFlowNotFound)
	require.Empty(t, store.puts)
}

func TestManager_UnsweptFlowStillAccepts(t *testing.T) {
	t.Parallel()
	store := newRecordingStore()

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	clock := func() time.Time { return now }
	m := newTestManager(t, store, WithTTL(10*time.Minute), WithClock(clock))

	prompt, err := m.Start("u1", "github", testRequirements(1))
	require.NoError(t, err)

	// Eviction is lazy: without an intervening Start there is no sweep, so an
	// old flow still completes.
	now = now.Add(11 * time.Minute)
	res, err := m.Submit(t.Context(), prompt.FlowID, 0, "v0")
	require.NoError(t, err)
	require.True(t, res.Completed)
}

func TestManager_ConcurrentFlowsAreIndependent(t *testing.T) {
	t.Parallel()
	store := newRecordingStore()
	m := newTestManager(t, store)
	ctx := t.Context()

	const flows = 20
	prompts := make([]Prompt, flows)
	for i := 0; i < flows; i++ {
		p, err := m.Start(fmt.Sprintf("user-%d", i), "github", testRequirements(1))
		require.NoError(t, err)
		prompts[i] = p
	}

	var wg sync.WaitGroup
	for i := 0; i < flows; i++ {
		wg.Add(1)
		go func(p Prompt, value string) {
			defer wg.Done()
			res, err := m.Submit(ctx, p.FlowID, 0, value)
			require.NoError(t, err)
			require.True(t, res.Completed)
		}(prompts[i], fmt.Sprintf("secret-%d", i))
	}
	wg.Wait()

	store.mu.Lock()
	defer store.mu.Unlock()
	require.Len(t, store.puts, flows)
}
