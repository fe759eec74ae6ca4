package pipeline

import (
	"github.com/km-arc/go-bootstrap/framework/container"
	"github.com/km-arc/go-bootstrap/framework/logging"
)

// Handlers, behaviors and subscribers are PerScope: every dispatch scope
// builds its own.

// RegisterHandler registers the handler for the (Req, Res) pair.
func RegisterHandler[Req, Res any](cat *container.Catalog, fn func(container.Activation) (RequestHandler[Req, Res], error), opts ...container.RegisterOption) (*container.Registration, error) {
	return cat.Scoped(HandlerKeyFor[Req, Res](), handlerFactory(fn), named(logging.NameOf[RequestHandler[Req, Res]](), opts)...)
}

// RegisterBehavior registers a behavior for the (Req, Res) pair only.
func RegisterBehavior[Req, Res any](cat *container.Catalog, fn func(container.Activation) (PipelineBehavior[Req, Res], error), opts ...container.RegisterOption) (*container.Registration, error) {
	return cat.Scoped(BehaviorKeyFor[Req, Res](), behaviorFactory(fn), named(logging.NameOf[PipelineBehavior[Req, Res]](), opts)...)
}

// RegisterOpenBehavior registers a behavior applied to every request pair.
// The factory can read the concrete pair from Activation.Requested.
func RegisterOpenBehavior(cat *container.Catalog, fn func(container.Activation) (Behavior, error), opts ...container.RegisterOption) (*container.Registration, error) {
	return cat.Scoped(OpenBehaviorKey(), container.Erase(fn), opts...)
}

// RegisterNotificationHandler subscribes a handler to notifications of type N.
func RegisterNotificationHandler[N any](cat *container.Catalog, fn func(container.Activation) (NotificationHandlerOf[N], error), opts ...container.RegisterOption) (*container.Registration, error) {
	return cat.Scoped(NotificationKeyFor[N](), notificationFactory(fn), named(logging.NameOf[NotificationHandlerOf[N]](), opts)...)
}

// ── Descriptors ───────────────────────────────────────────────────────────────

// HandlerDescriptor describes a handler for bulk registration.
func HandlerDescriptor[Req, Res any](name string, fn func(container.Activation) (RequestHandler[Req, Res], error), deps ...container.ServiceKey) container.Descriptor {
	return container.Descriptor{
		Name:         name,
		Capabilities: []container.ServiceKey{HandlerKeyFor[Req, Res]()},
		Factory:      handlerFactory(fn),
		Dependencies: deps,
	}
}

// BehaviorDescriptor describes a closed behavior for bulk registration.
func BehaviorDescriptor[Req, Res any](name string, fn func(container.Activation) (PipelineBehavior[Req, Res], error), deps ...container.ServiceKey) container.Descriptor {
	return container.Descriptor{
		Name:         name,
		Capabilities: []container.ServiceKey{BehaviorKeyFor[Req, Res]()},
		Factory:      behaviorFactory(fn),
		Dependencies: deps,
	}
}

// OpenBehaviorDescriptor describes a behavior applied to every request pair.
func OpenBehaviorDescriptor(name string, fn func(container.Activation) (Behavior, error), deps ...container.ServiceKey) container.Descriptor {
	return container.Descriptor{
		Name:         name,
		Capabilities: []container.ServiceKey{OpenBehaviorKey()},
		Factory:      container.Erase(fn),
		Dependencies: deps,
	}
}

// NotificationDescriptor describes a notification subscriber for bulk
// registration.
func NotificationDescriptor[N any](name string, fn func(container.Activation) (NotificationHandlerOf[N], error), deps ...container.ServiceKey) container.Descriptor {
	return container.Descriptor{
		Name:         name,
		Capabilities: []container.ServiceKey{NotificationKeyFor[N]()},
		Factory:      notificationFactory(fn),
		Dependencies: deps,
	}
}

// Bases selects handler, behavior and notification keys.
func Bases() container.KeyPredicate {
	return container.BaseOf(HandlerBase, BehaviorBase, NotificationHandlerBase)
}

func handlerFactory[Req, Res any](fn func(container.Activation) (RequestHandler[Req, Res], error)) container.Factory {
	return func(a container.Activation) (any, error) {
		h, err := fn(a)
		if err != nil {
			return nil, err
		}
		return AdaptHandler(h), nil
	}
}

func behaviorFactory[Req, Res any](fn func(container.Activation) (PipelineBehavior[Req, Res], error)) container.Factory {
	return func(a container.Activation) (any, error) {
		b, err := fn(a)
		if err != nil {
			return nil, err
		}
		return AdaptBehavior(b), nil
	}
}

func notificationFactory[N any](fn func(container.Activation) (NotificationHandlerOf[N], error)) container.Factory {
	return func(a container.Activation) (any, error) {
		h, err := fn(a)
		if err != nil {
			return nil, err
		}
		return AdaptNotificationHandler(h), nil
	}
}

func named(name string, opts []container.RegisterOption) []container.RegisterOption {
	return append([]container.RegisterOption{container.WithName(name)}, opts...)
}
