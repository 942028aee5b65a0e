package breaker

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// RegistryConfig holds registry-wide breaker configuration.
type RegistryConfig struct {
	// Defaults applies to every breaker without an override.
	Defaults Config

	// Overrides maps resource names onto per-resource configuration.
	Overrides map[string]Config
}

// DefaultRegistryConfig returns a registry configuration using the default
// breaker settings for every resource.
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{Defaults: DefaultConfig()}
}

// Validate checks the configuration for invalid values.
func (c RegistryConfig) Validate() error {
	if err := c.Defaults.Validate(); err != nil {
		return fmt.Errorf("defaults: %w", err)
	}
	for name, cfg := range c.Overrides {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("override %s: %w", name, err)
		}
	}
	return nil
}

// Registry holds one breaker per named resource. Breakers are created
// lazily on first use and shared afterwards. Construct a single registry at
// process start and pass it where needed; there is no package-level instance.
type Registry struct {
	cfg   RegistryConfig
	store StatusStore
	clock Clock
	hook  StateChangeHook

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewRegistry creates a breaker registry. store may be nil for in-memory-only
// breakers; hook (optional) observes every breaker's transitions.
func NewRegistry(cfg RegistryConfig, store StatusStore, clock Clock, hook StateChangeHook) (*Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("breaker registry: invalid config: %w", err)
	}
	if clock == nil {
		clock = SystemClock{}
	}

	return &Registry{
		cfg:      cfg,
		store:    store,
		clock:    clock,
		hook:     hook,
		breakers: make(map[string]*Breaker),
	}, nil
}

// Get returns the breaker for the named resource, creating it on first use.
func (r *Registry) Get(name string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.breakers[name]; ok {
		return b
	}

	cfg := r.cfg.Defaults
	if override, ok := r.cfg.Overrides[name]; ok {
		cfg = override
	}

	// Config was validated at construction, so New cannot fail here.
	b, err := New(name, cfg, r.store, r.clock, r.hook)
	if err != nil {
		panic(fmt.Sprintf("breaker registry: %v", err))
	}
	r.breakers[name] = b
	return b
}

// Lookup returns the breaker for the named resource without creating it.
func (r *Registry) Lookup(name string) (*Breaker, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[name]
	return b, ok
}

// Snapshot returns the status of every known breaker, sorted by name.
// Read-only and side-effect free apart from lazy status hydration.
func (r *Registry) Snapshot(ctx context.Context) []Status {
	r.mu.Lock()
	breakers := make([]*Breaker, 0, len(r.breakers))
	for _, b := range r.breakers {
		breakers = append(breakers, b)
	}
	r.mu.Unlock()

	statuses := make([]Status, 0, len(breakers))
	for _, b := range breakers {
		statuses = append(statuses, b.Status(ctx))
	}
	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].Name < statuses[j].Name
	})
	return statuses
}
