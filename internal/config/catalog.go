package config

import (
	"strings"
	"sync"
)

// Catalog is the in-memory view of the server catalog plus per-user
// enablement overrides. Catalog entries themselves are immutable after load;
// only the enablement overlay is mutable, and it is safe for concurrent use.
//
// Durable per-user enablement belongs to the persistence collaborator; this
// overlay holds whatever that collaborator (or an operator) pushes into the
// running process. Servers are enabled for every user unless overridden.
type Catalog struct {
	mu        sync.RWMutex
	servers   []ServerEntry
	byName    map[string]int
	overrides map[string]map[string]bool // userID -> server name -> enabled
}

// NewCatalog indexes the given entries into a catalog.
func NewCatalog(servers []ServerEntry) *Catalog {
	byName := make(map[string]int, len(servers))
	for i, s := range servers {
		byName[s.Name] = i
	}
	return &Catalog{
		servers:   servers,
		byName:    byName,
		overrides: make(map[string]map[string]bool),
	}
}

// Servers returns every catalog entry in declaration order.
func (c *Catalog) Servers() []ServerEntry {
	out := make([]ServerEntry, len(c.servers))
	copy(out, c.servers)
	return out
}

// Server returns the entry with the given name.
func (c *Catalog) Server(name string) (ServerEntry, bool) {
	if i, ok := c.byName[strings.TrimSpace(name)]; ok {
		return c.servers[i], true
	}
	return ServerEntry{}, false
}

// EnabledForUser returns the entries enabled for the given user, in catalog order.
func (c *Catalog) EnabledForUser(userID string) []ServerEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []ServerEntry
	for _, s := range c.servers {
		if enabled, ok := c.overrides[userID][s.Name]; ok && !enabled {
			continue
		}
		out = append(out, s)
	}
	return out
}

// SetEnabled records a per-user enablement override for a server.
// Unknown server names are ignored so stale overrides from the persistence
// collaborator cannot poison the catalog.
func (c *Catalog) SetEnabled(userID string, serverName string, enabled bool) {
	if _, ok := c.byName[serverName]; !ok {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.overrides[userID] == nil {
		c.overrides[userID] = make(map[string]bool)
	}
	c.overrides[userID][serverName] = enabled
}
