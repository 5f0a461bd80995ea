package swarm

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// ErrDuplicateAgent is returned by Register when an agent with the same name
// is already present and replacement was not requested.
var ErrDuplicateAgent = errors.New("agent already registered")

// RegistryEntry wraps a registered agent with its routing metadata.
type RegistryEntry struct {
	Agent        Agent
	Priority     int
	Enabled      bool
	RegisteredAt time.Time

	// seq preserves registration order. A replacement keeps the slot of the
	// entry it supersedes.
	seq int
}

// Name returns the registered agent's name.
func (e *RegistryEntry) Name() string { return e.Agent.Name() }

// Capabilities returns the registered agent's advertised capabilities.
func (e *RegistryEntry) Capabilities() []Capability { return e.Agent.Capabilities() }

// RegisterOption customizes a single Register call.
type RegisterOption func(*registerConfig)

type registerConfig struct {
	priority int
	replace  bool
}

// WithPriority sets the entry's priority. Higher is preferred.
func WithPriority(priority int) RegisterOption {
	return func(c *registerConfig) { c.priority = priority }
}

// WithReplace allows an existing entry with the same name to be superseded.
func WithReplace() RegisterOption {
	return func(c *registerConfig) { c.replace = true }
}

// Registry holds registered agents indexed by name and capability. All
// methods are safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*RegistryEntry
	nextSeq int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: map[string]*RegistryEntry{}}
}

// Register adds an agent to the registry. It fails with ErrDuplicateAgent if
// the name is taken and WithReplace was not given. A replacement atomically
// supersedes the prior entry and keeps its registration-order slot.
func (r *Registry) Register(agent Agent, opts ...RegisterOption) (*RegistryEntry, error) {
	if agent == nil {
		return nil, fmt.Errorf("agent is required")
	}
	if agent.Name() == "" {
		return nil, fmt.Errorf("agent name is required")
	}
	cfg := registerConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	name := agent.Name()
	prior, exists := r.entries[name]
	if exists && !cfg.replace {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateAgent, name)
	}

	entry := &RegistryEntry{
		Agent:        agent,
		Priority:     cfg.priority,
		Enabled:      true,
		RegisteredAt: time.Now(),
	}
	if exists {
		entry.seq = prior.seq
	} else {
		entry.seq = r.nextSeq
		r.nextSeq++
	}
	r.entries[name] = entry
	return entry, nil
}

// Get returns the entry for a name, or nil if it is not registered. Absence
// is an ordinary outcome here; callers that need a fallback check for nil.
func (r *Registry) Get(name string) *RegistryEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[name]
}

// GetByCapability returns every enabled entry advertising the capability, in
// registration order.
func (r *Registry) GetByCapability(cap Capability) []*RegistryEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matches []*RegistryEntry
	for _, entry := range r.entries {
		if entry.Enabled && entryAdvertises(entry, cap) {
			matches = append(matches, entry)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].seq < matches[j].seq })
	return matches
}

// GetBestForCapability returns the enabled entry with the highest priority
// among those advertising the capability. Ties go to the earliest
// registration. Returns nil when no enabled agent matches.
func (r *Registry) GetBestForCapability(cap Capability) *RegistryEntry {
	var best *RegistryEntry
	for _, entry := range r.GetByCapability(cap) {
		if best == nil || entry.Priority > best.Priority {
			best = entry
		}
	}
	return best
}

// Enable marks a registered agent as eligible for routing. Returns false if
// the name is unknown.
func (r *Registry) Enable(name string) bool {
	return r.setEnabled(name, true)
}

// Disable removes an agent from routing without unregistering it.
func (r *Registry) Disable(name string) bool {
	return r.setEnabled(name, false)
}

func (r *Registry) setEnabled(name string, enabled bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[name]
	if !ok {
		return false
	}
	entry.Enabled = enabled
	return true
}

// Count returns the number of registered entries. With onlyEnabled it counts
// just the entries currently eligible for routing.
func (r *Registry) Count(onlyEnabled bool) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !onlyEnabled {
		return len(r.entries)
	}
	n := 0
	for _, entry := range r.entries {
		if entry.Enabled {
			n++
		}
	}
	return n
}

// Capabilities returns the set of capabilities advertised by at least one
// registered entry, enabled or not, in sorted order.
func (r *Registry) Capabilities() []Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := map[Capability]struct{}{}
	for _, entry := range r.entries {
		for _, cap := range entry.Capabilities() {
			seen[cap] = struct{}{}
		}
	}
	caps := make([]Capability, 0, len(seen))
	for cap := range seen {
		caps = append(caps, cap)
	}
	sort.Slice(caps, func(i, j int) bool { return caps[i] < caps[j] })
	return caps
}

// List returns all entries in registration order. With onlyEnabled it skips
// disabled entries.
func (r *Registry) List(onlyEnabled bool) []*RegistryEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var entries []*RegistryEntry
	for _, entry := range r.entries {
		if !onlyEnabled || entry.Enabled {
			entries = append(entries, entry)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	return entries
}

func entryAdvertises(entry *RegistryEntry, cap Capability) bool {
	for _, c := range entry.Capabilities() {
		if c == cap {
			return true
		}
	}
	return false
}
