package container

import "fmt"

// ── Lifetimes ─────────────────────────────────────────────────────────────────

// Lifetime decides how many instances of a registration a scope may hold.
type Lifetime int

const (
	// Transient builds a new instance on every resolution.
	Transient Lifetime = iota
	// PerScope builds at most one instance per scope.
	PerScope
	// Singleton builds exactly one instance, owned by the root scope.
	Singleton
)

func (l Lifetime) String() string {
	switch l {
	case Transient:
		return "Transient"
	case PerScope:
		return "PerScope"
	case Singleton:
		return "Singleton"
	default:
		return fmt.Sprintf("Lifetime(%d)", int(l))
	}
}

func (l Lifetime) valid() bool { return l >= Transient && l <= Singleton }

// ── Factories ─────────────────────────────────────────────────────────────────

// Resolver is anything services can be resolved from.
type Resolver interface {
	Resolve(key ServiceKey) (any, error)
	ResolveAll(key ServiceKey) ([]any, error)
}

// Activation is handed to a Factory while it builds an instance. Resolving
// through it keeps the cycle guard informed of the current resolution path.
type Activation interface {
	Resolver

	// Requested is the closed key being built. For an open registration it
	// carries the concrete type arguments.
	Requested() ServiceKey

	// Scope is the scope that will own the instance.
	Scope() *Scope
}

// Factory builds an instance of a registration.
//
//	cat.Scoped(key, func(a container.Activation) (any, error) {
//	    cfg, err := container.Resolve[*config.Config](a)
//	    if err != nil {
//	        return nil, err
//	    }
//	    return NewRepository(cfg), nil
//	})
type Factory func(a Activation) (any, error)

// ── Registration ──────────────────────────────────────────────────────────────

// Registration describes how to build the service behind a key.
type Registration struct {
	Key      ServiceKey
	Lifetime Lifetime
	Factory  Factory

	// Dependencies optionally declares the keys Factory resolves, checked
	// by Catalog.Validate.
	Dependencies []ServiceKey

	// Name labels the implementation in diagnostics.
	Name string

	seq      int
	instance any
	external bool
}

// Seq is the registration's position in registration order.
func (r *Registration) Seq() int { return r.seq }

// External reports whether the registration wraps a pre-built instance that
// the container never disposes.
func (r *Registration) External() bool { return r.external }

func (r *Registration) String() string {
	name := r.Name
	if name == "" {
		name = r.Key.String()
	}
	return fmt.Sprintf("%s (%s)", name, r.Lifetime)
}

// RegisterOption customises a registration.
type RegisterOption func(*Registration)

// WithDependencies declares the keys the factory resolves.
func WithDependencies(keys ...ServiceKey) RegisterOption {
	return func(r *Registration) {
		r.Dependencies = append(r.Dependencies, keys...)
	}
}

// WithName labels the registration in diagnostics.
func WithName(name string) RegisterOption {
	return func(r *Registration) { r.Name = name }
}
