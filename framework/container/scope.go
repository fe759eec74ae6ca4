package container

import (
	"context"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/km-arc/go-bootstrap/framework/errs"
	"github.com/km-arc/go-bootstrap/framework/logging"
)

// RootScopeID is the identifier of every root scope.
const RootScopeID = "root"

// Disposer is implemented by instances that need explicit teardown when the
// scope owning them is disposed. Instances implementing io.Closer are torn
// down the same way.
type Disposer interface {
	Dispose() error
}

// DisposeInstance tears down v if it is a Disposer or an io.Closer.
func DisposeInstance(v any) error {
	switch d := v.(type) {
	case Disposer:
		return d.Dispose()
	case io.Closer:
		return d.Close()
	}
	return nil
}

func isDisposable(v any) bool {
	switch v.(type) {
	case Disposer, io.Closer:
		return true
	}
	return false
}

// ── Scope ─────────────────────────────────────────────────────────────────────

// cacheKey identifies a cached instance. Open registrations cache one
// instance per closed key they are asked for.
type cacheKey struct {
	reg *Registration
	key ServiceKey
}

// cell serializes construction of one cached instance.
type cell struct {
	mu sync.Mutex
}

// Scope is a node in the lifetime tree. The root lives for the process and
// owns every Singleton; children are opened per unit of work, own their
// PerScope and Transient instances, and are disposed as a unit.
//
// A Scope is safe for concurrent use. Scopes never share locks with their
// siblings; only Singleton construction synchronizes on the root.
type Scope struct {
	id      string
	parent  *Scope
	root    *Scope
	catalog *Catalog
	log     *logging.NamedLogger

	mu          sync.Mutex
	instances   map[cacheKey]any
	cells       map[cacheKey]*cell
	provided    map[ServiceKey]any
	disposables []any
	disposed    atomic.Bool
}

// ScopeOption customises a root scope.
type ScopeOption func(*Scope)

// WithLogger sets the logger scopes report lifecycle events to.
func WithLogger(log *logging.NamedLogger) ScopeOption {
	return func(s *Scope) { s.log = log }
}

// WithLogging takes the scope logger from reg.
func WithLogging(reg *logging.Registry) ScopeOption {
	return func(s *Scope) { s.log = reg.GetOrCreate(logging.NameOf[Scope]()) }
}

// NewRootScope freezes cat and returns the root of a new lifetime tree.
func NewRootScope(cat *Catalog, opts ...ScopeOption) *Scope {
	cat.Freeze()
	s := newScope(RootScopeID, nil, cat)
	s.root = s
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logging.GetOrCreate(logging.NameOf[Scope]())
	}
	return s
}

func newScope(id string, parent *Scope, cat *Catalog) *Scope {
	return &Scope{
		id:        id,
		parent:    parent,
		catalog:   cat,
		instances: make(map[cacheKey]any),
		cells:     make(map[cacheKey]*cell),
		provided:  make(map[ServiceKey]any),
	}
}

// BeginChild opens a child scope. The caller owns it and must Dispose it.
func (s *Scope) BeginChild() (*Scope, error) {
	if s.disposed.Load() {
		return nil, errs.ScopeDisposed(s.id)
	}
	child := newScope(uuid.NewString(), s, s.catalog)
	child.root = s.root
	child.log = s.log
	return child, nil
}

// ID returns the scope identifier; RootScopeID for the root.
func (s *Scope) ID() string { return s.id }

// Parent returns the parent scope, nil for the root.
func (s *Scope) Parent() *Scope { return s.parent }

// Root returns the root of the tree.
func (s *Scope) Root() *Scope { return s.root }

// IsRoot reports whether s has no parent.
func (s *Scope) IsRoot() bool { return s.parent == nil }

// Catalog returns the frozen catalog the scope resolves from.
func (s *Scope) Catalog() *Catalog { return s.catalog }

// Disposed reports whether Dispose was called.
func (s *Scope) Disposed() bool { return s.disposed.Load() }

// ── Resolution ────────────────────────────────────────────────────────────────

// Resolve returns the single instance registered for key.
//
// Unregistered keys fail with NOT_REGISTERED, resolution cycles with
// CIRCULAR_DEPENDENCY and resolving from a disposed scope with
// SCOPE_DISPOSED. Factory errors are returned unchanged.
func (s *Scope) Resolve(key ServiceKey) (any, error) {
	return s.resolve(key, nil)
}

// ResolveAll returns one instance per registration applicable to key, in
// registration order. No registrations yields an empty slice.
func (s *Scope) ResolveAll(key ServiceKey) ([]any, error) {
	return s.resolveAll(key, nil)
}

// Provide attaches an externally owned instance to the scope. It is visible
// to the scope and its descendants, takes precedence over the catalog and is
// never disposed by the scope.
func (s *Scope) Provide(key ServiceKey, instance any) error {
	if s.disposed.Load() {
		return errs.ScopeDisposed(s.id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.provided[key] = instance
	return nil
}

func (s *Scope) lookupProvided(key ServiceKey) (any, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		cur.mu.Lock()
		v, ok := cur.provided[key]
		cur.mu.Unlock()
		if ok {
			return v, true
		}
	}
	return nil, false
}

func (s *Scope) resolve(key ServiceKey, path []ServiceKey) (any, error) {
	if s.disposed.Load() {
		return nil, errs.ScopeDisposed(s.id)
	}
	if v, ok := s.lookupProvided(key); ok {
		return v, nil
	}
	reg, ok := s.catalog.Lookup(key)
	if !ok {
		return nil, errs.NotRegistered(key.String())
	}
	return s.activate(reg, key, path)
}

func (s *Scope) resolveAll(key ServiceKey, path []ServiceKey) ([]any, error) {
	if s.disposed.Load() {
		return nil, errs.ScopeDisposed(s.id)
	}
	regs := s.catalog.LookupAll(key)
	out := make([]any, 0, len(regs))
	for _, reg := range regs {
		requested := key
		if key.IsOpen() {
			requested = reg.Key
		}
		v, err := s.activate(reg, requested, path)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// activate produces the instance of reg requested as key, honouring its
// lifetime.
func (s *Scope) activate(reg *Registration, key ServiceKey, path []ServiceKey) (any, error) {
	for _, p := range path {
		if p == key {
			return nil, errs.Circular(append(keyNames(path), key.String()))
		}
	}
	if reg.external {
		return reg.instance, nil
	}

	switch reg.Lifetime {
	case Transient:
		return s.build(reg, key, path)
	case PerScope:
		return s.shared(reg, key, path)
	default:
		return s.root.shared(reg, key, path)
	}
}

// shared returns the instance cached in s, building it at most once. The
// cache is checked again after taking the construction lock.
func (s *Scope) shared(reg *Registration, key ServiceKey, path []ServiceKey) (any, error) {
	ck := cacheKey{reg: reg, key: key}

	s.mu.Lock()
	if v, ok := s.instances[ck]; ok {
		s.mu.Unlock()
		return v, nil
	}
	c, ok := s.cells[ck]
	if !ok {
		c = &cell{}
		s.cells[ck] = c
	}
	s.mu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	s.mu.Lock()
	v, ok := s.instances[ck]
	s.mu.Unlock()
	if ok {
		return v, nil
	}

	v, err := s.build(reg, key, path)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.instances[ck] = v
	delete(s.cells, ck)
	s.mu.Unlock()
	return v, nil
}

// build runs the factory with s as owner and tracks the result for disposal.
func (s *Scope) build(reg *Registration, key ServiceKey, path []ServiceKey) (any, error) {
	if s.disposed.Load() {
		return nil, errs.ScopeDisposed(s.id)
	}

	act := &activation{
		scope:     s,
		requested: key,
		path:      append(path[:len(path):len(path)], key),
	}
	v, err := reg.Factory(act)
	if err != nil {
		return nil, err
	}

	if isDisposable(v) {
		s.mu.Lock()
		if s.disposed.Load() {
			// Dispose already took the list; the late instance is ours to tear down
			s.mu.Unlock()
			return nil, multierr.Append(errs.ScopeDisposed(s.id), DisposeInstance(v))
		}
		s.disposables = append(s.disposables, v)
		s.mu.Unlock()
	}
	s.log.TraceFn(context.Background(), func() string {
		return "built " + reg.String() + " in scope " + s.id
	})
	return v, nil
}

// ── Disposal ──────────────────────────────────────────────────────────────────

// Dispose tears down every disposable instance the scope built, in reverse
// construction order. Ancestors, siblings and provided instances are left
// alone. Failures are aggregated; Dispose is idempotent.
func (s *Scope) Dispose() error {
	if !s.disposed.CompareAndSwap(false, true) {
		return nil
	}

	s.mu.Lock()
	items := s.disposables
	s.disposables = nil
	s.instances = make(map[cacheKey]any)
	s.provided = make(map[ServiceKey]any)
	s.mu.Unlock()

	var err error
	for i := len(items) - 1; i >= 0; i-- {
		err = multierr.Append(err, DisposeInstance(items[i]))
	}

	s.log.DebugFn(context.Background(), func() string {
		return "disposed scope " + s.id
	})
	return err
}

// ── Activation ────────────────────────────────────────────────────────────────

type activation struct {
	scope     *Scope
	requested ServiceKey
	path      []ServiceKey
}

func (a *activation) Resolve(key ServiceKey) (any, error) {
	return a.scope.resolve(key, a.path)
}

func (a *activation) ResolveAll(key ServiceKey) ([]any, error) {
	return a.scope.resolveAll(key, a.path)
}

func (a *activation) Requested() ServiceKey { return a.requested }

func (a *activation) Scope() *Scope { return a.scope }

func keyNames(keys []ServiceKey) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.String()
	}
	return out
}

// ── Context ───────────────────────────────────────────────────────────────────

type scopeKey struct{}

// WithScope returns a context carrying s.
func WithScope(ctx context.Context, s *Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

// ScopeFrom returns the scope carried by ctx.
func ScopeFrom(ctx context.Context) (*Scope, bool) {
	s, ok := ctx.Value(scopeKey{}).(*Scope)
	return s, ok && s != nil
}

// String renders the scope path from the root, e.g. "root/2f1c...".
func (s *Scope) String() string {
	var ids []string
	for cur := s; cur != nil; cur = cur.parent {
		ids = append(ids, cur.id)
	}
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
	return strings.Join(ids, "/")
}
