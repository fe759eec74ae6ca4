// Package behaviors holds the stock cross-cutting behaviors wrapped around
// every handler: logging, validation, metrics, tracing and slow-request
// detection. Each is an open behavior, built per dispatch scope for the
// concrete request pair it wraps.
package behaviors

import (
	"context"
	"fmt"
	"time"

	"github.com/km-arc/go-bootstrap/framework/container"
	"github.com/km-arc/go-bootstrap/framework/logging"
	"github.com/km-arc/go-bootstrap/framework/pipeline"
)

// Logging logs every request with its payload, the response and the time
// the rest of the chain took.
type Logging struct {
	log *logging.NamedLogger
}

// NewLogging creates the logging behavior for one request pair. Its logger
// is named after the pair, e.g. "LoggingBehavior<Ping,Pong>".
func NewLogging(reg *logging.Registry, pair container.ServiceKey) *Logging {
	return &Logging{log: reg.GetOrCreate("LoggingBehavior" + typeArgs(pair))}
}

func (b *Logging) Handle(ctx context.Context, request any, next pipeline.Next) (any, error) {
	b.log.DebugFn(ctx, func() string {
		return fmt.Sprintf("Handling %s: %+v", requestName(request), request)
	})

	start := time.Now()
	response, err := next(ctx)
	elapsed := time.Since(start)

	if err != nil {
		b.log.WarnWithFn(ctx, err, func() string {
			return fmt.Sprintf("Failed %s after %s", requestName(request), elapsed)
		})
		return response, err
	}

	b.log.DebugFn(ctx, func() string {
		return fmt.Sprintf("Handled %s in %s: %+v", requestName(request), elapsed, response)
	})
	return response, nil
}

// LoggingFactory builds a Logging behavior per request pair, with loggers
// from the registry registered in the container (the process-wide one when
// none is).
func LoggingFactory(a container.Activation) (pipeline.Behavior, error) {
	reg, err := registryFrom(a)
	if err != nil {
		return nil, err
	}
	return NewLogging(reg, a.Requested()), nil
}

func registryFrom(r container.Resolver) (*logging.Registry, error) {
	reg, err := container.Resolve[*logging.Registry](r)
	if err == nil {
		return reg, nil
	}
	if isNotRegistered(err, container.Key[*logging.Registry]()) {
		return logging.Default(), nil
	}
	return nil, err
}
