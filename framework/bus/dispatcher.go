// Package bus is the mediator entry point. Every request is dispatched in its
// own child scope, which is always disposed before the call returns.
//
//	pong, err := bus.Send[Ping, Pong](ctx, dispatcher, Ping{Message: "hi"})
//	err = bus.Publish(ctx, dispatcher, OrderPlaced{ID: id})
package bus

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/km-arc/go-bootstrap/framework/container"
	"github.com/km-arc/go-bootstrap/framework/errs"
	"github.com/km-arc/go-bootstrap/framework/logging"
	"github.com/km-arc/go-bootstrap/framework/pipeline"
)

// PublishStrategy decides how notification subscribers are invoked.
type PublishStrategy int

const (
	// Sequential invokes subscribers one after another in registration order.
	Sequential PublishStrategy = iota
	// Parallel invokes all subscribers concurrently.
	Parallel
)

func (s PublishStrategy) String() string {
	if s == Parallel {
		return "parallel"
	}
	return "sequential"
}

// Dispatcher routes requests to their handlers through the behavior chain.
// It is safe for concurrent use: every call works in its own scope and only
// singletons are shared between calls.
type Dispatcher struct {
	root     *container.Scope
	log      *logging.NamedLogger
	strategy PublishStrategy

	// request type → response type, for Dispatch
	responses sync.Map
}

// Option customises a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the dispatcher's logger.
func WithLogger(log *logging.NamedLogger) Option {
	return func(d *Dispatcher) { d.log = log }
}

// WithPublishStrategy selects how Publish invokes subscribers.
func WithPublishStrategy(s PublishStrategy) Option {
	return func(d *Dispatcher) { d.strategy = s }
}

// New creates a dispatcher over an already built root scope.
func New(root *container.Scope, opts ...Option) *Dispatcher {
	d := &Dispatcher{root: root}
	for _, opt := range opts {
		opt(d)
	}
	if d.log == nil {
		d.log = logging.GetOrCreate(logging.NameOf[Dispatcher]())
	}
	return d
}

// MediatorKey is the key the dispatcher is provided under on the root scope.
func MediatorKey() container.ServiceKey {
	return container.Key[*Dispatcher]()
}

// Root returns the root scope requests are dispatched from.
func (d *Dispatcher) Root() *container.Scope { return d.root }

// Strategy returns the publish strategy.
func (d *Dispatcher) Strategy() PublishStrategy { return d.strategy }

// ── Requests ──────────────────────────────────────────────────────────────────

// Send dispatches request to the handler of the (Req, Res) pair. Handler
// and behavior errors are returned unchanged.
func Send[Req, Res any](ctx context.Context, d *Dispatcher, request Req) (Res, error) {
	var zero Res
	v, err := d.send(ctx, reflect.TypeFor[Req](), reflect.TypeFor[Res](), request)
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	res, ok := v.(Res)
	if !ok {
		return zero, errs.TypeMismatch(pipeline.HandlerKeyFor[Req, Res]().String(), reflect.TypeFor[Res]().String(), v)
	}
	return res, nil
}

// Dispatch sends a request whose response type is not known statically. The
// response type is taken from the single handler registered for the
// request's dynamic type.
func (d *Dispatcher) Dispatch(ctx context.Context, request any) (any, error) {
	if request == nil {
		return nil, errs.NoHandler("<nil>")
	}
	req := reflect.TypeOf(request)
	res, err := d.responseType(req)
	if err != nil {
		return nil, err
	}
	return d.send(ctx, req, res, request)
}

func (d *Dispatcher) responseType(req reflect.Type) (reflect.Type, error) {
	if res, ok := d.responses.Load(req); ok {
		return res.(reflect.Type), nil
	}

	var found []reflect.Type
	for _, key := range d.root.Catalog().KeysOf(pipeline.HandlerBase) {
		if key.Arg(0) == req {
			found = append(found, key.Arg(1))
		}
	}
	switch len(found) {
	case 0:
		return nil, errs.NoHandler(pipeline.HandlerBase + "<" + logging.FriendlyName(req) + ",*>")
	case 1:
		d.responses.Store(req, found[0])
		return found[0], nil
	default:
		return nil, errs.InvalidRegistration(logging.FriendlyName(req),
			fmt.Sprintf("%d handlers with different responses; use Send to pick one", len(found)))
	}
}

func (d *Dispatcher) send(ctx context.Context, req, res reflect.Type, request any) (any, error) {
	scope, err := d.root.BeginChild()
	if err != nil {
		return nil, err
	}
	ctx = d.stamp(ctx, scope)
	defer d.dispose(ctx, scope)

	d.log.TraceFn(ctx, func() string {
		return "dispatching " + logging.FriendlyName(req) + " -> " + logging.FriendlyName(res)
	})

	chain, err := pipeline.Compose(scope, req, res)
	if err != nil {
		return nil, err
	}
	return chain.Invoke(ctx, request)
}

// ── Notifications ─────────────────────────────────────────────────────────────

// Publish delivers notification to every subscriber of N. A failing
// subscriber does not stop the others; all failures are returned together
// (see multierr.Errors).
func Publish[N any](ctx context.Context, d *Dispatcher, notification N) error {
	return d.publish(ctx, reflect.TypeFor[N](), notification)
}

// Publish delivers notification to the subscribers of its dynamic type.
func (d *Dispatcher) Publish(ctx context.Context, notification any) error {
	if notification == nil {
		return nil
	}
	return d.publish(ctx, reflect.TypeOf(notification), notification)
}

func (d *Dispatcher) publish(ctx context.Context, n reflect.Type, notification any) error {
	scope, err := d.root.BeginChild()
	if err != nil {
		return err
	}
	ctx = d.stamp(ctx, scope)
	defer d.dispose(ctx, scope)

	subs, err := pipeline.Subscribers(scope, n)
	if err != nil {
		return err
	}
	d.log.TraceFn(ctx, func() string {
		return fmt.Sprintf("publishing %s to %d subscriber(s), %s", logging.FriendlyName(n), len(subs), d.strategy)
	})

	if d.strategy == Parallel {
		return publishParallel(ctx, subs, notification)
	}

	var result error
	for _, sub := range subs {
		if err := ctx.Err(); err != nil {
			return multierr.Append(result, err)
		}
		result = multierr.Append(result, sub.Handle(ctx, notification))
	}
	return result
}

func publishParallel(ctx context.Context, subs []pipeline.NotificationHandler, notification any) error {
	failures := make([]error, len(subs))
	var g errgroup.Group
	for i, sub := range subs {
		g.Go(func() error {
			failures[i] = sub.Handle(ctx, notification)
			return nil
		})
	}
	_ = g.Wait()
	return multierr.Combine(failures...)
}

// ── Scope handling ────────────────────────────────────────────────────────────

func (d *Dispatcher) stamp(ctx context.Context, scope *container.Scope) context.Context {
	ctx = container.WithScope(ctx, scope)
	if !logging.HasExecutionID(ctx) {
		ctx = logging.WithExecutionID(ctx, scope.ID())
	}
	return ctx
}

// dispose never changes the outcome of the call; failures are logged.
func (d *Dispatcher) dispose(ctx context.Context, scope *container.Scope) {
	if err := scope.Dispose(); err != nil {
		d.log.WarnWith(ctx, err, "disposing scope "+scope.ID()+" failed")
	}
}
