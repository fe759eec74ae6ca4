package app

import (
	"context"

	"github.com/km-arc/go-bootstrap/framework/container"
)

// Service bases. Every long-running service and command processor is
// registered under the same key; ResolveAll returns them in registration
// order.
const (
	LongRunningServiceBase = "app.LongRunningService"
	CommandProcessorBase   = "app.CommandProcessor"
)

// LongRunningService is started once after bootstrapping. Start must return
// once the service is running; background work belongs in goroutines the
// service stops when disposed.
type LongRunningService interface {
	Start(ctx context.Context) error
}

// CommandProcessor executes one console command.
type CommandProcessor interface {
	// Command is the line that triggers the processor, e.g. "stats".
	Command() string
	Description() string
	Execute(ctx context.Context) error
}

func LongRunningServiceKey() container.ServiceKey { return container.NewKey(LongRunningServiceBase) }
func CommandProcessorKey() container.ServiceKey   { return container.NewKey(CommandProcessorBase) }

// ServiceDescriptor describes a long-running service for Bootstrap.
func ServiceDescriptor(name string, fn func(container.Activation) (LongRunningService, error), deps ...container.ServiceKey) container.Descriptor {
	return container.Descriptor{
		Name:         name,
		Capabilities: []container.ServiceKey{LongRunningServiceKey()},
		Factory:      container.Erase(fn),
		Dependencies: deps,
	}
}

// CommandDescriptor describes a command processor for Bootstrap.
func CommandDescriptor(name string, fn func(container.Activation) (CommandProcessor, error), deps ...container.ServiceKey) container.Descriptor {
	return container.Descriptor{
		Name:         name,
		Capabilities: []container.ServiceKey{CommandProcessorKey()},
		Factory:      container.Erase(fn),
		Dependencies: deps,
	}
}

// Services matches the capabilities Bootstrap registers as singletons.
func Services() container.KeyPredicate {
	return container.BaseOf(LongRunningServiceBase, CommandProcessorBase)
}
