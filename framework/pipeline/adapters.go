package pipeline

import (
	"context"
	"reflect"

	"github.com/km-arc/go-bootstrap/framework/container"
	"github.com/km-arc/go-bootstrap/framework/errs"
)

// Typed implementations are stored behind untyped adapters. The adapters
// forward disposal so the owning scope tears the wrapped value down.

type handlerAdapter[Req, Res any] struct {
	inner RequestHandler[Req, Res]
}

// AdaptHandler exposes a typed handler as a Handler.
func AdaptHandler[Req, Res any](h RequestHandler[Req, Res]) Handler {
	return &handlerAdapter[Req, Res]{inner: h}
}

func (a *handlerAdapter[Req, Res]) Handle(ctx context.Context, request any) (any, error) {
	req, err := cast[Req](request)
	if err != nil {
		return nil, err
	}
	return a.inner.Handle(ctx, req)
}

func (a *handlerAdapter[Req, Res]) Unwrap() any    { return a.inner }
func (a *handlerAdapter[Req, Res]) Dispose() error { return container.DisposeInstance(a.inner) }

type behaviorAdapter[Req, Res any] struct {
	inner PipelineBehavior[Req, Res]
}

// AdaptBehavior exposes a typed behavior as a Behavior.
func AdaptBehavior[Req, Res any](b PipelineBehavior[Req, Res]) Behavior {
	return &behaviorAdapter[Req, Res]{inner: b}
}

func (a *behaviorAdapter[Req, Res]) Handle(ctx context.Context, request any, next Next) (any, error) {
	req, err := cast[Req](request)
	if err != nil {
		return nil, err
	}
	return a.inner.Handle(ctx, req, func(ctx context.Context) (Res, error) {
		var zero Res
		v, err := next(ctx)
		if err != nil {
			return zero, err
		}
		if v == nil {
			return zero, nil
		}
		return cast[Res](v)
	})
}

func (a *behaviorAdapter[Req, Res]) Unwrap() any    { return a.inner }
func (a *behaviorAdapter[Req, Res]) Dispose() error { return container.DisposeInstance(a.inner) }

type notificationAdapter[N any] struct {
	inner NotificationHandlerOf[N]
}

// AdaptNotificationHandler exposes a typed subscriber as a NotificationHandler.
func AdaptNotificationHandler[N any](h NotificationHandlerOf[N]) NotificationHandler {
	return &notificationAdapter[N]{inner: h}
}

func (a *notificationAdapter[N]) Handle(ctx context.Context, notification any) error {
	n, err := cast[N](notification)
	if err != nil {
		return err
	}
	return a.inner.Handle(ctx, n)
}

func (a *notificationAdapter[N]) Unwrap() any    { return a.inner }
func (a *notificationAdapter[N]) Dispose() error { return container.DisposeInstance(a.inner) }

// Unwrap returns the typed value behind an adapter, or v itself.
func Unwrap(v any) any {
	if u, ok := v.(interface{ Unwrap() any }); ok {
		return u.Unwrap()
	}
	return v
}

func cast[T any](v any) (T, error) {
	t, ok := v.(T)
	if !ok {
		return t, errs.TypeMismatch("", container.TypeKey(reflect.TypeFor[T]()), v)
	}
	return t, nil
}
