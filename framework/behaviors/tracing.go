package behaviors

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/km-arc/go-bootstrap/framework/container"
	"github.com/km-arc/go-bootstrap/framework/logging"
	"github.com/km-arc/go-bootstrap/framework/pipeline"
)

// TracerName is the instrumentation name of the dispatch spans.
const TracerName = "github.com/km-arc/go-bootstrap/framework/behaviors"

// Tracing opens a span around the rest of the chain.
type Tracing struct {
	tracer  trace.Tracer
	request string
	pair    string
}

func NewTracing(tp trace.TracerProvider, pair container.ServiceKey) *Tracing {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Tracing{
		tracer:  tp.Tracer(TracerName),
		request: pairRequestName(pair),
		pair:    typeArgs(pair),
	}
}

func (b *Tracing) Handle(ctx context.Context, request any, next pipeline.Next) (any, error) {
	ctx, span := b.tracer.Start(ctx, "dispatch "+b.request,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("dispatch.request", b.request),
			attribute.String("dispatch.pair", b.pair),
			attribute.String("dispatch.execution_id", logging.ExecutionID(ctx)),
		),
	)
	defer span.End()

	response, err := next(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return response, err
	}
	span.SetStatus(codes.Ok, "")
	return response, nil
}

// TracingFactory uses the trace.TracerProvider registered in the container,
// or the global provider.
func TracingFactory(a container.Activation) (pipeline.Behavior, error) {
	tp, err := container.Resolve[trace.TracerProvider](a)
	if err != nil {
		if !isNotRegistered(err, container.Key[trace.TracerProvider]()) {
			return nil, err
		}
		tp = nil
	}
	return NewTracing(tp, a.Requested()), nil
}
