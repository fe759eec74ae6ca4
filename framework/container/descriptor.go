package container

import (
	"go.uber.org/multierr"

	"github.com/km-arc/go-bootstrap/framework/errs"
)

// Descriptor describes one discovered implementation: the keys it can
// satisfy and how to build it. A static list of descriptors replaces type
// scanning; the composition root feeds it to RegisterAll.
//
//	var Discovered = []container.Descriptor{
//	    pipeline.HandlerDescriptor[Ping, Pong]("PingHandler", func(a container.Activation) (pipeline.RequestHandler[Ping, Pong], error) {
//	        return &PingHandler{}, nil
//	    }),
//	}
type Descriptor struct {
	Name         string
	Capabilities []ServiceKey
	Factory      Factory
	Dependencies []ServiceKey
}

// KeyPredicate selects capability keys.
type KeyPredicate func(ServiceKey) bool

// AnyOf matches the given keys exactly.
func AnyOf(keys ...ServiceKey) KeyPredicate {
	set := make(map[ServiceKey]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return func(k ServiceKey) bool { return set[k] }
}

// BaseOf matches keys, open or closed, with one of the given bases.
func BaseOf(bases ...string) KeyPredicate {
	set := make(map[string]bool, len(bases))
	for _, b := range bases {
		set[b] = true
	}
	return func(k ServiceKey) bool { return set[k.Base()] }
}

// Or matches keys accepted by any of the predicates.
func Or(preds ...KeyPredicate) KeyPredicate {
	return func(k ServiceKey) bool {
		for _, p := range preds {
			if p(k) {
				return true
			}
		}
		return false
	}
}

// RegisterAll registers every descriptor capability accepted by match, one
// registration per matching key, in descriptor order. Descriptors without a
// factory are reported and skipped. It returns the number of registrations
// added.
//
//	n, err := cat.RegisterAll(discovered, container.BaseOf(pipeline.HandlerBase), container.PerScope)
func (c *Catalog) RegisterAll(descs []Descriptor, match KeyPredicate, lifetime Lifetime) (int, error) {
	var (
		added int
		err   error
	)
	for _, d := range descs {
		for _, key := range d.Capabilities {
			if !match(key) {
				continue
			}
			if d.Factory == nil {
				err = multierr.Append(err, errs.InvalidRegistration(key.String(), d.Name+": descriptor has no factory"))
				break
			}
			_, regErr := c.Register(key, d.Factory, lifetime, WithName(d.Name), WithDependencies(d.Dependencies...))
			if regErr != nil {
				err = multierr.Append(err, regErr)
				continue
			}
			added++
		}
	}
	return added, err
}
