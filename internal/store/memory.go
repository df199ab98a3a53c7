// Package store provides the in-process credential store used by the daemon's
// default mode and by tests. Durable, encrypted storage is a collaborator
// concern; anything implementing contracts.CredentialStore can replace this.
package store

import (
	"context"
	"maps"
	"sync"

	"github.com/agentfleet/mcpmux/internal/contracts"
)

var _ contracts.CredentialStore = (*MemoryStore)(nil)

// MemoryStore holds collected secrets in memory, scoped by (user, server).
// It is safe for concurrent use by multiple goroutines.
type MemoryStore struct {
	mu sync.RWMutex
	// values: userID -> server name -> requirement name -> secret.
	values map[string]map[string]map[string]string
}

// NewMemoryStore creates an empty in-memory credential store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values: make(map[string]map[string]map[string]string),
	}
}

// Get returns a copy of the stored credentials for one user and server.
// A user or server with nothing stored yields an empty map, not an error.
func (s *MemoryStore) Get(_ context.Context, userID string, serverName string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.values[userID][serverName]
	out := make(map[string]string, len(stored))
	maps.Copy(out, stored)

	return out, nil
}

// Put stores a single credential value, replacing any previous value for the
// same requirement name.
func (s *MemoryStore) Put(_ context.Context, userID string, serverName string, name string, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.values[userID] == nil {
		s.values[userID] = make(map[string]map[string]string)
	}
	if s.values[userID][serverName] == nil {
		s.values[userID][serverName] = make(map[string]string)
	}
	s.values[userID][serverName][name] = value

	return nil
}

// DeleteUser drops every stored credential for a user.
func (s *MemoryStore) DeleteUser(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, userID)
}
