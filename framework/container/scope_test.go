package container_test

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"pgregory.net/rapid"

	"github.com/km-arc/go-bootstrap/framework/container"
	"github.com/km-arc/go-bootstrap/framework/errs"
)

// tracked is a disposable test double that records teardown order.
type tracked struct {
	name string
	log  *[]string
	mu   *sync.Mutex
	err  error
}

func (t *tracked) Dispose() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	*t.log = append(*t.log, t.name)
	return t.err
}

type closer struct{ closed bool }

func (c *closer) Close() error {
	c.closed = true
	return nil
}

type disposalLog struct {
	mu    sync.Mutex
	names []string
}

func (d *disposalLog) factory(name string) container.Factory {
	return func(container.Activation) (any, error) {
		return &tracked{name: name, log: &d.names, mu: &d.mu}, nil
	}
}

func (d *disposalLog) snapshot() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.names...)
}

func counter() (container.Factory, *atomic.Int64) {
	var n atomic.Int64
	return func(container.Activation) (any, error) {
		id := n.Add(1)
		return &struct{ id int64 }{id}, nil
	}, &n
}

func child(t *testing.T, s *container.Scope) *container.Scope {
	t.Helper()
	c, err := s.BeginChild()
	require.NoError(t, err)
	return c
}

// ── Lifetimes ─────────────────────────────────────────────────────────────────

func TestScope_Lifetimes(t *testing.T) {
	single, perScope, transient := container.NewKey("single"), container.NewKey("scoped"), container.NewKey("transient")
	fSingle, _ := counter()
	fScoped, _ := counter()
	fTransient, _ := counter()

	cat := container.NewCatalog()
	_, _ = cat.Singleton(single, fSingle)
	_, _ = cat.Scoped(perScope, fScoped)
	_, _ = cat.Bind(transient, fTransient)
	root := container.NewRootScope(cat)

	a, b := child(t, root), child(t, root)
	resolve := func(s *container.Scope, k container.ServiceKey) any {
		v, err := s.Resolve(k)
		require.NoError(t, err)
		return v
	}

	assert.Same(t, resolve(a, single), resolve(b, single))
	assert.Same(t, resolve(a, single), resolve(root, single))

	assert.Same(t, resolve(a, perScope), resolve(a, perScope))
	assert.NotSame(t, resolve(a, perScope), resolve(b, perScope))

	assert.NotSame(t, resolve(a, transient), resolve(a, transient))
}

func TestScope_ConcurrentSingletonConstructedOnce(t *testing.T) {
	key := container.NewKey("single")
	f, built := counter()
	cat := container.NewCatalog()
	_, _ = cat.Singleton(key, f)
	root := container.NewRootScope(cat)

	const workers = 50
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		got   = make([]any, workers)
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := root.BeginChild()
			if err != nil {
				return
			}
			defer s.Dispose()
			<-start
			got[i], _ = s.Resolve(key)
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int64(1), built.Load())
	for i := 1; i < workers; i++ {
		assert.Same(t, got[0], got[i])
	}
}

// ── Failures ──────────────────────────────────────────────────────────────────

func TestScope_UnregisteredKeyIsConfigError(t *testing.T) {
	root := container.NewRootScope(container.NewCatalog())

	v, err := root.Resolve(container.NewKey("nothing"))

	assert.Nil(t, v)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrNotRegistered)
	assert.True(t, errs.IsConfigError(err))
}

func TestScope_CycleIsConfigError(t *testing.T) {
	a, b := container.NewKey("a"), container.NewKey("b")
	cat := container.NewCatalog()
	_, _ = cat.Scoped(a, func(act container.Activation) (any, error) { return act.Resolve(b) })
	_, _ = cat.Singleton(b, func(act container.Activation) (any, error) { return act.Resolve(a) })
	root := container.NewRootScope(cat)

	_, err := child(t, root).Resolve(a)

	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrCircularDependency)
	assert.Contains(t, err.Error(), "a -> b -> a")
}

func TestScope_SelfCycleDoesNotDeadlock(t *testing.T) {
	a := container.NewKey("a")
	cat := container.NewCatalog()
	_, _ = cat.Singleton(a, func(act container.Activation) (any, error) { return act.Resolve(a) })
	root := container.NewRootScope(cat)

	_, err := root.Resolve(a)
	assert.ErrorIs(t, err, errs.ErrCircularDependency)
}

func TestScope_FactoryErrorPassesThroughAndIsRetried(t *testing.T) {
	key := container.NewKey("flaky")
	boom := errors.New("boom")
	var calls int
	cat := container.NewCatalog()
	_, _ = cat.Singleton(key, func(container.Activation) (any, error) {
		calls++
		if calls == 1 {
			return nil, boom
		}
		return "ok", nil
	})
	root := container.NewRootScope(cat)

	_, err := root.Resolve(key)
	assert.Same(t, boom, err)
	assert.False(t, errs.IsConfigError(err))

	v, err := root.Resolve(key)
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestScope_TypedHelpers(t *testing.T) {
	cat := container.NewCatalog()
	_, err := container.RegisterFunc(cat, container.PerScope, func(container.Activation) (*closer, error) {
		return &closer{}, nil
	})
	require.NoError(t, err)
	_, _ = cat.Instance(container.Key[string](), 42)
	root := container.NewRootScope(cat)

	c, err := container.Resolve[*closer](root)
	require.NoError(t, err)
	assert.NotNil(t, c)

	_, err = container.Resolve[string](root)
	assert.ErrorIs(t, err, errs.ErrTypeMismatch)

	assert.Panics(t, func() { container.MustResolve[*tracked](root) })
}

// ── Disposal ──────────────────────────────────────────────────────────────────

func TestScope_DisposeReverseOrderOwnInstancesOnly(t *testing.T) {
	var log disposalLog
	cat := container.NewCatalog()
	_, _ = cat.Singleton(container.NewKey("single"), log.factory("single"))
	_, _ = cat.Scoped(container.NewKey("first"), log.factory("first"))
	_, _ = cat.Bind(container.NewKey("second"), log.factory("second"))
	root := container.NewRootScope(cat)

	a, b := child(t, root), child(t, root)
	for _, k := range []string{"single", "first", "second"} {
		_, err := a.Resolve(container.NewKey(k))
		require.NoError(t, err)
	}
	_, err := b.Resolve(container.NewKey("first"))
	require.NoError(t, err)

	require.NoError(t, a.Dispose())
	assert.Equal(t, []string{"second", "first"}, log.snapshot())

	require.NoError(t, b.Dispose())
	assert.Equal(t, []string{"second", "first", "first"}, log.snapshot())

	require.NoError(t, root.Dispose())
	assert.Equal(t, []string{"second", "first", "first", "single"}, log.snapshot())
}

func TestScope_DisposeIsIdempotentAndAggregates(t *testing.T) {
	e1, e2 := errors.New("e1"), errors.New("e2")
	var (
		mu    sync.Mutex
		names []string
	)
	cat := container.NewCatalog()
	_, _ = cat.Scoped(container.NewKey("x"), func(container.Activation) (any, error) {
		return &tracked{name: "x", log: &names, mu: &mu, err: e1}, nil
	})
	_, _ = cat.Scoped(container.NewKey("y"), func(container.Activation) (any, error) {
		return &tracked{name: "y", log: &names, mu: &mu, err: e2}, nil
	})
	s := child(t, container.NewRootScope(cat))
	_, _ = s.Resolve(container.NewKey("x"))
	_, _ = s.Resolve(container.NewKey("y"))

	err := s.Dispose()
	assert.Equal(t, []error{e2, e1}, multierr.Errors(err))
	assert.NoError(t, s.Dispose())
	assert.Len(t, names, 2)

	_, err = s.Resolve(container.NewKey("x"))
	assert.ErrorIs(t, err, errs.ErrScopeDisposed)
	_, err = s.BeginChild()
	assert.ErrorIs(t, err, errs.ErrScopeDisposed)
}

func TestScope_DisposeDuringSingletonBuildDisposesLateInstance(t *testing.T) {
	var (
		mu    sync.Mutex
		names []string
	)
	building, release := make(chan struct{}), make(chan struct{})
	cat := container.NewCatalog()
	_, _ = cat.Singleton(container.NewKey("server"), func(container.Activation) (any, error) {
		close(building)
		<-release
		return &tracked{name: "server", log: &names, mu: &mu}, nil
	})
	root := container.NewRootScope(cat)

	done := make(chan error, 1)
	go func() {
		_, err := root.Resolve(container.NewKey("server"))
		done <- err
	}()

	<-building
	require.NoError(t, root.Dispose())
	close(release)

	assert.ErrorIs(t, <-done, errs.ErrScopeDisposed)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"server"}, names)
}

func TestScope_ClosersAreClosedInstancesAreNot(t *testing.T) {
	external := &closer{}
	cat := container.NewCatalog()
	_, _ = cat.Scoped(container.NewKey("c"), func(container.Activation) (any, error) { return &closer{}, nil })
	_, _ = cat.Instance(container.NewKey("ext"), external)
	root := container.NewRootScope(cat)
	s := child(t, root)

	v, _ := s.Resolve(container.NewKey("c"))
	_, _ = s.Resolve(container.NewKey("ext"))
	require.NoError(t, s.Dispose())
	require.NoError(t, root.Dispose())

	assert.True(t, v.(*closer).closed)
	assert.False(t, external.closed)
}

// ── Provide / ResolveAll / context ────────────────────────────────────────────

func TestScope_ProvideVisibleToDescendants(t *testing.T) {
	key := container.NewKey("dispatcher")
	cat := container.NewCatalog()
	_, _ = cat.Singleton(key, value("from catalog"))
	root := container.NewRootScope(cat)

	require.NoError(t, root.Provide(key, "provided"))
	grandchild := child(t, child(t, root))

	v, err := grandchild.Resolve(key)
	require.NoError(t, err)
	assert.Equal(t, "provided", v)
}

func TestScope_ResolveAll_OrderAndOpenRequested(t *testing.T) {
	closed := container.NewKey("behavior", typA, typR)
	var seen []container.ServiceKey
	cat := container.NewCatalog()
	_, _ = cat.Scoped(closed, value("first"))
	_, _ = cat.Scoped(container.OpenKey("behavior"), func(a container.Activation) (any, error) {
		seen = append(seen, a.Requested())
		return "open", nil
	})
	_, _ = cat.Scoped(closed, value("last"))
	s := child(t, container.NewRootScope(cat))

	all, err := container.ResolveAll[string](s, closed)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "open", "last"}, all)
	assert.Equal(t, []container.ServiceKey{closed}, seen)

	none, err := s.ResolveAll(container.NewKey("nothing"))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestScope_Context(t *testing.T) {
	root := container.NewRootScope(container.NewCatalog())
	ctx := container.WithScope(context.Background(), root)

	got, ok := container.ScopeFrom(ctx)
	require.True(t, ok)
	assert.Same(t, root, got)

	_, ok = container.ScopeFrom(context.Background())
	assert.False(t, ok)
}

func TestScope_Tree(t *testing.T) {
	root := container.NewRootScope(container.NewCatalog())
	c := child(t, root)

	assert.True(t, root.IsRoot())
	assert.Equal(t, container.RootScopeID, root.ID())
	assert.False(t, c.IsRoot())
	assert.Same(t, root, c.Parent())
	assert.Same(t, root, c.Root())
	assert.NotEqual(t, c.ID(), child(t, root).ID())
	assert.Equal(t, "root/"+c.ID(), c.String())
}

// ── Properties ────────────────────────────────────────────────────────────────

func TestScope_LifetimeProperties(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		lifetimes := rapid.SliceOfN(
			rapid.SampledFrom([]container.Lifetime{container.Transient, container.PerScope, container.Singleton}),
			1, 6,
		).Draw(rt, "lifetimes")

		cat := container.NewCatalog()
		keys := make([]container.ServiceKey, len(lifetimes))
		for i, lt := range lifetimes {
			keys[i] = container.NewKey(fmt.Sprintf("svc%d", i))
			f, _ := counter()
			if _, err := cat.Register(keys[i], f, lt); err != nil {
				rt.Fatalf("register: %v", err)
			}
		}
		root := container.NewRootScope(cat)
		a, _ := root.BeginChild()
		b, _ := root.BeginChild()

		i := rapid.IntRange(0, len(keys)-1).Draw(rt, "key")
		a1, _ := a.Resolve(keys[i])
		a2, _ := a.Resolve(keys[i])
		b1, _ := b.Resolve(keys[i])

		switch lifetimes[i] {
		case container.Singleton:
			if a1 != a2 || a1 != b1 {
				rt.Fatalf("singleton %s not shared across scopes", keys[i])
			}
		case container.PerScope:
			if a1 != a2 {
				rt.Fatalf("per-scope %s not stable within a scope", keys[i])
			}
			if a1 == b1 {
				rt.Fatalf("per-scope %s shared between siblings", keys[i])
			}
		case container.Transient:
			if a1 == a2 {
				rt.Fatalf("transient %s reused", keys[i])
			}
		}
	})
}

func TestServiceKey_EqualityProperty(t *testing.T) {
	types := []any{reqA{}, resA{}, reqB{}, 0, ""}
	rapid.Check(t, func(rt *rapid.T) {
		base := rapid.SampledFrom([]string{"h", "b", "n"}).Draw(rt, "base")
		n := rapid.IntRange(0, container.MaxTypeArgs).Draw(rt, "arity")
		idx := rapid.SliceOfN(rapid.IntRange(0, len(types)-1), n, n).Draw(rt, "args")

		build := func() container.ServiceKey {
			args := make([]reflect.Type, n)
			for i, j := range idx {
				args[i] = reflect.TypeOf(types[j])
			}
			return container.NewKey(base, args...)
		}

		k1, k2 := build(), build()
		if k1 != k2 || k1.String() != k2.String() {
			rt.Fatalf("keys built from the same parts differ: %s vs %s", k1, k2)
		}
		if !k1.Open().Matches(k1) {
			rt.Fatalf("open key of %s does not match it", k1)
		}
	})
}
