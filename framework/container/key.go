package container

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/km-arc/go-bootstrap/framework/logging"
)

// MaxTypeArgs is the largest number of type arguments a ServiceKey carries.
const MaxTypeArgs = 2

// ServiceKey identifies a capability: a base name plus up to two type
// arguments. Keys are plain comparable values, so two keys built from the
// same base and arguments are equal and may be used as map keys.
//
//	container.NewKey("pipeline.Handler", reflect.TypeFor[Ping](), reflect.TypeFor[Pong]())
//	container.OpenKey("pipeline.Behavior")   // matches every Behavior<_,_>
//	container.Key[*config.Config]()
type ServiceKey struct {
	base  string
	arity int
	args  [MaxTypeArgs]reflect.Type
	open  bool
}

// NewKey builds a closed key. It panics on more than MaxTypeArgs arguments
// or a nil argument, both of which are programming errors.
func NewKey(base string, args ...reflect.Type) ServiceKey {
	if len(args) > MaxTypeArgs {
		panic(fmt.Sprintf("container: key [%s] takes at most %d type arguments, got %d", base, MaxTypeArgs, len(args)))
	}
	k := ServiceKey{base: base, arity: len(args)}
	for i, a := range args {
		if a == nil {
			panic(fmt.Sprintf("container: key [%s] type argument %d is nil", base, i))
		}
		k.args[i] = a
	}
	return k
}

// OpenKey builds a key that stands for every closed key with the same base.
// Registering under an open key makes the registration apply to all type
// arguments; looking up an open key collects every registration of the base.
func OpenKey(base string) ServiceKey {
	return ServiceKey{base: base, open: true}
}

// Key returns the closed key for T, based on its package-qualified name.
//
//	cat.Instance(container.Key[*config.Config](), cfg)
//	cfg, err := container.Resolve[*config.Config](scope)
func Key[T any]() ServiceKey {
	return NewKey(TypeKey(reflect.TypeFor[T]()))
}

// TypeKey returns the package-qualified name of t, a stable base for keys
// derived from Go types.
//
//	container.TypeKey(reflect.TypeFor[*config.Config]())  // "*github.com/.../config.Config"
func TypeKey(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	if t.Kind() == reflect.Pointer {
		return "*" + TypeKey(t.Elem())
	}
	if t.Name() == "" || t.PkgPath() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}

// Base returns the key's base name.
func (k ServiceKey) Base() string { return k.base }

// Args returns the key's type arguments.
func (k ServiceKey) Args() []reflect.Type {
	out := make([]reflect.Type, k.arity)
	copy(out, k.args[:k.arity])
	return out
}

// Arg returns the i-th type argument, or nil.
func (k ServiceKey) Arg(i int) reflect.Type {
	if i < 0 || i >= k.arity {
		return nil
	}
	return k.args[i]
}

// IsOpen reports whether the key matches any type arguments.
func (k ServiceKey) IsOpen() bool { return k.open }

// IsZero reports whether k is the zero key.
func (k ServiceKey) IsZero() bool { return k == ServiceKey{} }

// Open returns the open key with the same base.
func (k ServiceKey) Open() ServiceKey { return OpenKey(k.base) }

// Matches reports whether a registration made under k applies to the
// requested key.
func (k ServiceKey) Matches(requested ServiceKey) bool {
	if k.open {
		return k.base == requested.base
	}
	return k == requested
}

// String renders the key as Base<Arg1,Arg2>, with "*" for open keys.
func (k ServiceKey) String() string {
	if k.open {
		return k.base + "<*>"
	}
	if k.arity == 0 {
		return k.base
	}
	names := make([]string, k.arity)
	for i := 0; i < k.arity; i++ {
		names[i] = logging.FriendlyName(k.args[i])
	}
	return k.base + "<" + strings.Join(names, ",") + ">"
}
