package container

import (
	"sync"
	"sync/atomic"

	"github.com/km-arc/go-bootstrap/framework/errs"
)

// Catalog records how to build every service. It is written once during
// composition, then frozen; after Freeze reads take no lock.
//
// A single-instance lookup returns the most recent registration for a key.
// Collection lookups return every registration for the key in registration
// order, so re-registering a key replaces it for Lookup but appends for
// LookupAll.
type Catalog struct {
	mu     sync.RWMutex
	frozen atomic.Bool

	// key → latest registration
	latest map[ServiceKey]*Registration

	// every registration, in registration order
	entries []*Registration
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{latest: make(map[ServiceKey]*Registration)}
}

// ── Registration ──────────────────────────────────────────────────────────────

// Register adds a registration for key.
//
//	cat.Register(container.Key[*Repo](), newRepo, container.PerScope,
//	    container.WithDependencies(container.Key[*config.Config]()))
func (c *Catalog) Register(key ServiceKey, factory Factory, lifetime Lifetime, opts ...RegisterOption) (*Registration, error) {
	if key.IsZero() {
		return nil, errs.InvalidRegistration("", "empty service key")
	}
	if factory == nil {
		return nil, errs.InvalidRegistration(key.String(), "factory must not be nil")
	}
	if !lifetime.valid() {
		return nil, errs.InvalidRegistration(key.String(), "unknown lifetime "+lifetime.String())
	}

	reg := &Registration{Key: key, Lifetime: lifetime, Factory: factory}
	for _, opt := range opts {
		opt(reg)
	}
	return reg, c.add(reg)
}

// Bind registers a transient factory.
func (c *Catalog) Bind(key ServiceKey, factory Factory, opts ...RegisterOption) (*Registration, error) {
	return c.Register(key, factory, Transient, opts...)
}

// Scoped registers a factory built once per scope.
func (c *Catalog) Scoped(key ServiceKey, factory Factory, opts ...RegisterOption) (*Registration, error) {
	return c.Register(key, factory, PerScope, opts...)
}

// Singleton registers a factory built once for the root scope.
func (c *Catalog) Singleton(key ServiceKey, factory Factory, opts ...RegisterOption) (*Registration, error) {
	return c.Register(key, factory, Singleton, opts...)
}

// Instance registers a pre-built value as a singleton. The container never
// disposes it; the caller keeps ownership.
//
//	cat.Instance(container.Key[*config.Config](), cfg)
func (c *Catalog) Instance(key ServiceKey, instance any, opts ...RegisterOption) (*Registration, error) {
	if key.IsZero() || key.IsOpen() {
		return nil, errs.InvalidRegistration(key.String(), "instances need a closed key")
	}
	reg := &Registration{
		Key:      key,
		Lifetime: Singleton,
		Factory:  func(Activation) (any, error) { return instance, nil },
		instance: instance,
		external: true,
	}
	for _, opt := range opts {
		opt(reg)
	}
	return reg, c.add(reg)
}

func (c *Catalog) add(reg *Registration) error {
	if c.frozen.Load() {
		return errs.CatalogFrozen(reg.Key.String())
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frozen.Load() {
		return errs.CatalogFrozen(reg.Key.String())
	}
	reg.seq = len(c.entries)
	c.entries = append(c.entries, reg)
	c.latest[reg.Key] = reg
	return nil
}

// Freeze ends the registration phase. Further registrations fail with a
// CATALOG_FROZEN configuration error.
func (c *Catalog) Freeze() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frozen.Store(true)
}

// Frozen reports whether Freeze was called.
func (c *Catalog) Frozen() bool { return c.frozen.Load() }

// ── Lookup ────────────────────────────────────────────────────────────────────

// Lookup finds the registration that builds a single instance of key: the
// latest registration under key itself, else the latest open registration
// with the same base.
func (c *Catalog) Lookup(key ServiceKey) (*Registration, bool) {
	if !c.frozen.Load() {
		c.mu.RLock()
		defer c.mu.RUnlock()
	}
	if reg, ok := c.latest[key]; ok {
		return reg, true
	}
	if !key.IsOpen() {
		if reg, ok := c.latest[key.Open()]; ok {
			return reg, true
		}
	}
	return nil, false
}

// LookupAll returns, in registration order, every registration applicable
// to key. For a closed key that is its own registrations plus the open
// registrations of its base; for an open key it is every registration of
// the base.
func (c *Catalog) LookupAll(key ServiceKey) []*Registration {
	if !c.frozen.Load() {
		c.mu.RLock()
		defer c.mu.RUnlock()
	}
	var out []*Registration
	for _, reg := range c.entries {
		if reg.Key.base != key.base {
			continue
		}
		if key.IsOpen() || reg.Key.Matches(key) {
			out = append(out, reg)
		}
	}
	return out
}

// Has reports whether Lookup would succeed for key.
func (c *Catalog) Has(key ServiceKey) bool {
	_, ok := c.Lookup(key)
	return ok
}

// KeysOf returns the distinct closed keys registered under base, in order of
// first registration.
func (c *Catalog) KeysOf(base string) []ServiceKey {
	if !c.frozen.Load() {
		c.mu.RLock()
		defer c.mu.RUnlock()
	}
	seen := make(map[ServiceKey]bool)
	var out []ServiceKey
	for _, reg := range c.entries {
		if reg.Key.base != base || reg.Key.IsOpen() || seen[reg.Key] {
			continue
		}
		seen[reg.Key] = true
		out = append(out, reg.Key)
	}
	return out
}

// Keys returns every distinct registered key in order of first registration.
func (c *Catalog) Keys() []ServiceKey {
	if !c.frozen.Load() {
		c.mu.RLock()
		defer c.mu.RUnlock()
	}
	seen := make(map[ServiceKey]bool, len(c.latest))
	out := make([]ServiceKey, 0, len(c.latest))
	for _, reg := range c.entries {
		if !seen[reg.Key] {
			seen[reg.Key] = true
			out = append(out, reg.Key)
		}
	}
	return out
}

// Registrations returns every registration in registration order.
func (c *Catalog) Registrations() []*Registration {
	if !c.frozen.Load() {
		c.mu.RLock()
		defer c.mu.RUnlock()
	}
	out := make([]*Registration, len(c.entries))
	copy(out, c.entries)
	return out
}

// Len returns the number of registrations.
func (c *Catalog) Len() int {
	if !c.frozen.Load() {
		c.mu.RLock()
		defer c.mu.RUnlock()
	}
	return len(c.entries)
}
