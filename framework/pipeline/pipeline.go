// Package pipeline defines request handlers, the cross-cutting behaviors
// wrapped around them and the composer that turns both into one invocable
// Chain.
//
// User code is written against the typed contracts:
//
//	type PingHandler struct{}
//
//	func (h *PingHandler) Handle(ctx context.Context, req Ping) (Pong, error) {
//	    return Pong{Message: "pong: " + req.Message}, nil
//	}
//
//	pipeline.RegisterHandler(cat, func(container.Activation) (pipeline.RequestHandler[Ping, Pong], error) {
//	    return &PingHandler{}, nil
//	})
//
// and the chain itself works on the untyped Handler and Behavior, so open
// behaviors registered for every request pair can wrap any handler.
package pipeline

import (
	"context"
	"reflect"

	"github.com/km-arc/go-bootstrap/framework/container"
)

// ── Keys ──────────────────────────────────────────────────────────────────────

const (
	HandlerBase             = "pipeline.Handler"
	BehaviorBase            = "pipeline.Behavior"
	NotificationHandlerBase = "pipeline.NotificationHandler"
)

// HandlerKey is the key of the handler for the (req, res) pair.
func HandlerKey(req, res reflect.Type) container.ServiceKey {
	return container.NewKey(HandlerBase, req, res)
}

// BehaviorKey is the key of the behaviors for the (req, res) pair.
func BehaviorKey(req, res reflect.Type) container.ServiceKey {
	return container.NewKey(BehaviorBase, req, res)
}

// NotificationKey is the key of the subscribers to notification type n.
func NotificationKey(n reflect.Type) container.ServiceKey {
	return container.NewKey(NotificationHandlerBase, n)
}

// OpenBehaviorKey applies to every request pair.
func OpenBehaviorKey() container.ServiceKey {
	return container.OpenKey(BehaviorBase)
}

func HandlerKeyFor[Req, Res any]() container.ServiceKey {
	return HandlerKey(reflect.TypeFor[Req](), reflect.TypeFor[Res]())
}

func BehaviorKeyFor[Req, Res any]() container.ServiceKey {
	return BehaviorKey(reflect.TypeFor[Req](), reflect.TypeFor[Res]())
}

func NotificationKeyFor[N any]() container.ServiceKey {
	return NotificationKey(reflect.TypeFor[N]())
}

// ── Contracts ─────────────────────────────────────────────────────────────────

// Unit is the response of requests that produce no value.
type Unit struct{}

// Next invokes the rest of the chain.
type Next func(ctx context.Context) (any, error)

// Handler is the terminal link of a chain.
type Handler interface {
	Handle(ctx context.Context, request any) (any, error)
}

// Behavior wraps the rest of the chain. It may run logic before and after
// calling next, or return without calling it to short-circuit.
type Behavior interface {
	Handle(ctx context.Context, request any, next Next) (any, error)
}

// NotificationHandler receives published notifications.
type NotificationHandler interface {
	Handle(ctx context.Context, notification any) error
}

// RequestHandler handles requests of type Req, producing Res.
type RequestHandler[Req, Res any] interface {
	Handle(ctx context.Context, request Req) (Res, error)
}

// PipelineBehavior wraps handlers of the (Req, Res) pair.
type PipelineBehavior[Req, Res any] interface {
	Handle(ctx context.Context, request Req, next func(ctx context.Context) (Res, error)) (Res, error)
}

// NotificationHandlerOf receives notifications of type N.
type NotificationHandlerOf[N any] interface {
	Handle(ctx context.Context, notification N) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, request any) (any, error)

func (f HandlerFunc) Handle(ctx context.Context, request any) (any, error) {
	return f(ctx, request)
}

// BehaviorFunc adapts a function to Behavior.
type BehaviorFunc func(ctx context.Context, request any, next Next) (any, error)

func (f BehaviorFunc) Handle(ctx context.Context, request any, next Next) (any, error) {
	return f(ctx, request, next)
}

// RequestHandlerFunc adapts a function to RequestHandler.
type RequestHandlerFunc[Req, Res any] func(ctx context.Context, request Req) (Res, error)

func (f RequestHandlerFunc[Req, Res]) Handle(ctx context.Context, request Req) (Res, error) {
	return f(ctx, request)
}
