package pipeline

import (
	"context"
	"errors"
	"reflect"

	"github.com/km-arc/go-bootstrap/framework/container"
	"github.com/km-arc/go-bootstrap/framework/errs"
)

// Chain is the composed sequence of behaviors and terminal handler for one
// request pair, resolved from a single scope.
type Chain struct {
	request   reflect.Type
	response  reflect.Type
	handler   Handler
	behaviors []Behavior
}

// Compose resolves the handler and the behaviors for the (req, res) pair
// from r and composes them. Behaviors run in registration order: the first
// registered is the outermost and sees the effects of all the others.
//
// A missing handler fails with NO_HANDLER; other failures are returned as
// the resolver reported them.
func Compose(r container.Resolver, req, res reflect.Type) (*Chain, error) {
	key := HandlerKey(req, res)

	raw, err := r.Resolve(key)
	if err != nil {
		if errors.Is(err, &errs.ConfigError{Code: errs.CodeNotRegistered, Key: key.String()}) {
			return nil, errs.NoHandler(key.String())
		}
		return nil, err
	}
	handler, ok := raw.(Handler)
	if !ok {
		return nil, errs.TypeMismatch(key.String(), "pipeline.Handler", raw)
	}

	behaviors, err := container.ResolveAll[Behavior](r, BehaviorKey(req, res))
	if err != nil {
		return nil, err
	}

	return &Chain{request: req, response: res, handler: handler, behaviors: behaviors}, nil
}

// ComposeFor is Compose for statically known types.
func ComposeFor[Req, Res any](r container.Resolver) (*Chain, error) {
	return Compose(r, reflect.TypeFor[Req](), reflect.TypeFor[Res]())
}

// Invoke runs request through the chain. The context is checked before
// each link, so a cancelled context stops the chain at the next link.
func (c *Chain) Invoke(ctx context.Context, request any) (any, error) {
	next := Next(func(ctx context.Context) (any, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return c.handler.Handle(ctx, request)
	})

	for i := len(c.behaviors) - 1; i >= 0; i-- {
		b, inner := c.behaviors[i], next
		next = func(ctx context.Context) (any, error) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return b.Handle(ctx, request, inner)
		}
	}
	return next(ctx)
}

// RequestType returns the request type of the pair.
func (c *Chain) RequestType() reflect.Type { return c.request }

// ResponseType returns the response type of the pair.
func (c *Chain) ResponseType() reflect.Type { return c.response }

// Handler returns the terminal handler.
func (c *Chain) Handler() Handler { return c.handler }

// Behaviors returns the behaviors, outermost first.
func (c *Chain) Behaviors() []Behavior {
	out := make([]Behavior, len(c.behaviors))
	copy(out, c.behaviors)
	return out
}

// ── Notifications ─────────────────────────────────────────────────────────────

// Subscribers resolves every handler subscribed to notification type n, in
// registration order.
func Subscribers(r container.Resolver, n reflect.Type) ([]NotificationHandler, error) {
	return container.ResolveAll[NotificationHandler](r, NotificationKey(n))
}
