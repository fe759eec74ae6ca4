package container

import (
	"fmt"
	"reflect"

	"github.com/km-arc/go-bootstrap/framework/errs"
)

// ── Generics helpers ──────────────────────────────────────────────────────────

// Resolve resolves Key[T]() and type-asserts the result.
//
//	// Instead of: v, err := scope.Resolve(container.Key[*config.Config]()); cfg := v.(*config.Config)
//	// Write:      cfg, err := container.Resolve[*config.Config](scope)
func Resolve[T any](r Resolver) (T, error) {
	return ResolveKey[T](r, Key[T]())
}

// ResolveKey resolves key and type-asserts the result to T. A value of the
// wrong type fails with TYPE_MISMATCH.
func ResolveKey[T any](r Resolver, key ServiceKey) (T, error) {
	var zero T
	v, err := r.Resolve(key)
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, errs.TypeMismatch(key.String(), typeName[T](), v)
	}
	return typed, nil
}

// MustResolve is like Resolve but panics on failure. Meant for composition
// code where a missing service is a programming error.
func MustResolve[T any](r Resolver) T {
	v, err := Resolve[T](r)
	if err != nil {
		panic(fmt.Sprintf("container: MustResolve[%s]: %v", typeName[T](), err))
	}
	return v
}

// ResolveAll resolves every registration applicable to key and type-asserts
// each instance to T.
func ResolveAll[T any](r Resolver, key ServiceKey) ([]T, error) {
	vs, err := r.ResolveAll(key)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(vs))
	for _, v := range vs {
		typed, ok := v.(T)
		if !ok {
			return nil, errs.TypeMismatch(key.String(), typeName[T](), v)
		}
		out = append(out, typed)
	}
	return out, nil
}

// RegisterFunc registers a typed factory under Key[T]().
//
//	container.RegisterFunc(cat, container.Singleton, func(a container.Activation) (*Clock, error) {
//	    return &Clock{}, nil
//	})
func RegisterFunc[T any](c *Catalog, lifetime Lifetime, fn func(Activation) (T, error), opts ...RegisterOption) (*Registration, error) {
	return RegisterKeyFunc(c, Key[T](), lifetime, fn, opts...)
}

// RegisterKeyFunc registers a typed factory under key.
func RegisterKeyFunc[T any](c *Catalog, key ServiceKey, lifetime Lifetime, fn func(Activation) (T, error), opts ...RegisterOption) (*Registration, error) {
	if fn == nil {
		return nil, errs.InvalidRegistration(key.String(), "factory must not be nil")
	}
	return c.Register(key, Erase(fn), lifetime, opts...)
}

// Erase turns a typed factory into a Factory.
func Erase[T any](fn func(Activation) (T, error)) Factory {
	return func(a Activation) (any, error) {
		v, err := fn(a)
		if err != nil {
			return nil, err
		}
		return v, nil
	}
}

func typeName[T any]() string {
	return TypeKey(reflect.TypeFor[T]())
}
