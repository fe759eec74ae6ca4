package logging

import (
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/km-arc/go-bootstrap/framework/errs"
)

// Registry caches one NamedLogger per logical name for the lifetime of the
// process. Loggers are created lazily with the Kind selected by
// InitializeWith.
type Registry struct {
	mu          sync.RWMutex
	kind        Kind
	generation  uint64
	initialized bool
	loggers     map[string]*NamedLogger

	// collapses concurrent first access to the same name
	group singleflight.Group
}

// NewRegistry creates a registry whose loggers discard everything until
// InitializeWith selects a real implementation.
func NewRegistry() *Registry {
	return &Registry{
		kind:    Nop,
		loggers: make(map[string]*NamedLogger),
	}
}

// InitializeWith selects the implementation every logger uses, including
// loggers created before the call. Once a logger exists under an explicitly
// selected kind the choice is fixed: a further call returns an
// ALREADY_INITIALIZED configuration error.
func (r *Registry) InitializeWith(kind Kind) error {
	if kind == nil {
		return errs.InvalidRegistration("logging", "logger kind must not be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized && len(r.loggers) > 0 {
		return errs.AlreadyInitialized("logging")
	}
	r.kind = kind
	r.generation++
	r.initialized = true
	for _, l := range r.loggers {
		l.rebind(kind)
	}
	return nil
}

// Initialized reports whether InitializeWith has been called.
func (r *Registry) Initialized() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.initialized
}

// GetOrCreate returns the logger cached for name, creating it on first use.
// Concurrent first calls for the same name construct exactly one logger.
func (r *Registry) GetOrCreate(name string) *NamedLogger {
	if l, ok := r.lookup(name); ok {
		return l
	}

	v, _, _ := r.group.Do(name, func() (any, error) {
		// A caller that lost the race with a finished flight lands here.
		if l, ok := r.lookup(name); ok {
			return l, nil
		}

		r.mu.RLock()
		kind, gen := r.kind, r.generation
		r.mu.RUnlock()

		l := newNamedLogger(name, kind)

		r.mu.Lock()
		if r.generation != gen {
			// InitializeWith ran while this logger was being built
			l.rebind(r.kind)
		}
		r.loggers[name] = l
		r.mu.Unlock()
		return l, nil
	})
	return v.(*NamedLogger)
}

// Len returns the number of cached loggers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.loggers)
}

// Names returns the names of every cached logger.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.loggers))
	for name := range r.loggers {
		out = append(out, name)
	}
	return out
}

func (r *Registry) lookup(name string) (*NamedLogger, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.loggers[name]
	return l, ok
}

// ── Process-wide registry ─────────────────────────────────────────────────────

var std = NewRegistry()

// Default returns the process-wide registry.
func Default() *Registry { return std }

// InitializeWith selects the implementation of the process-wide registry.
func InitializeWith(kind Kind) error { return std.InitializeWith(kind) }

// GetOrCreate returns a logger from the process-wide registry.
func GetOrCreate(name string) *NamedLogger { return std.GetOrCreate(name) }
