package behaviors

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/km-arc/go-bootstrap/framework/container"
	"github.com/km-arc/go-bootstrap/framework/pipeline"
)

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// MetricsCollector holds the dispatch metrics shared by every Metrics
// behavior.
type MetricsCollector struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// NewMetricsCollector creates the dispatch metrics and registers them with
// reg (prometheus.DefaultRegisterer when nil). Metrics registered earlier
// under the same names are reused.
func NewMetricsCollector(reg prometheus.Registerer) (*MetricsCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dispatch",
		Name:      "requests_total",
		Help:      "Requests dispatched, by request type and outcome.",
	}, []string{"request", "outcome"})

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "dispatch",
		Name:      "request_duration_seconds",
		Help:      "Time spent in the handler chain, by request type.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"request"})

	var err error
	if requests, err = register(reg, requests); err != nil {
		return nil, err
	}
	if duration, err = register(reg, duration); err != nil {
		return nil, err
	}
	return &MetricsCollector{Requests: requests, Duration: duration}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// Metrics counts requests and observes how long the rest of the chain took.
type Metrics struct {
	collector *MetricsCollector
	request   string
}

func NewMetrics(c *MetricsCollector, pair container.ServiceKey) *Metrics {
	return &Metrics{collector: c, request: pairRequestName(pair)}
}

func (b *Metrics) Handle(ctx context.Context, request any, next pipeline.Next) (any, error) {
	start := time.Now()
	response, err := next(ctx)

	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	b.collector.Requests.WithLabelValues(b.request, outcome).Inc()
	b.collector.Duration.WithLabelValues(b.request).Observe(time.Since(start).Seconds())
	return response, err
}

// MetricsFactory needs a *MetricsCollector in the container.
func MetricsFactory(a container.Activation) (pipeline.Behavior, error) {
	c, err := container.Resolve[*MetricsCollector](a)
	if err != nil {
		return nil, err
	}
	return NewMetrics(c, a.Requested()), nil
}

// CollectorFactory builds the collector against the prometheus.Registerer
// registered in the container, or the default registerer.
func CollectorFactory(a container.Activation) (*MetricsCollector, error) {
	reg, err := container.Resolve[prometheus.Registerer](a)
	if err != nil {
		if !isNotRegistered(err, container.Key[prometheus.Registerer]()) {
			return nil, err
		}
		reg = nil
	}
	return NewMetricsCollector(reg)
}
