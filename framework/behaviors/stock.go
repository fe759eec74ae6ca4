package behaviors

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/km-arc/go-bootstrap/framework/container"
	"github.com/km-arc/go-bootstrap/framework/pipeline"
)

// Set selects the stock behaviors to register.
type Set struct {
	Tracing       bool
	Metrics       bool
	Logging       bool
	SlowRequest   bool
	Validation    bool
	SlowThreshold time.Duration
}

// DefaultSet is request logging only.
func DefaultSet() Set {
	return Set{Logging: true}
}

// Enabled lists the selected behaviors, outermost first.
func (s Set) Enabled() []string {
	var names []string
	for _, b := range s.stock() {
		names = append(names, b.name)
	}
	return names
}

type stockBehavior struct {
	name    string
	factory func(container.Activation) (pipeline.Behavior, error)
	deps    []container.ServiceKey
}

// stock lists the selected behaviors in chain order. Tracing is outermost
// so its span covers every other behavior; validation is innermost so an
// invalid request is still logged, timed and counted.
func (s Set) stock() []stockBehavior {
	var out []stockBehavior
	if s.Tracing {
		out = append(out, stockBehavior{name: "TracingBehavior", factory: TracingFactory})
	}
	if s.Metrics {
		out = append(out, stockBehavior{name: "MetricsBehavior", factory: MetricsFactory,
			deps: []container.ServiceKey{container.Key[*MetricsCollector]()}})
	}
	if s.Logging {
		out = append(out, stockBehavior{name: "LoggingBehavior", factory: LoggingFactory})
	}
	if s.SlowRequest {
		out = append(out, stockBehavior{name: "SlowRequestBehavior", factory: SlowRequestFactory})
	}
	if s.Validation {
		out = append(out, stockBehavior{name: "ValidationBehavior", factory: ValidationFactory})
	}
	return out
}

// RegisterStock registers the selected behaviors as open behaviors, plus
// the singletons they need unless the catalog already has them. Behaviors
// registered before this call run outside the stock ones, later ones
// inside.
func RegisterStock(cat *container.Catalog, set Set) error {
	if set.Metrics && !cat.Has(container.Key[*MetricsCollector]()) {
		if _, err := container.RegisterFunc(cat, container.Singleton, CollectorFactory); err != nil {
			return err
		}
	}
	if set.Validation && !cat.Has(container.Key[*validator.Validate]()) {
		_, err := container.RegisterFunc(cat, container.Singleton, func(container.Activation) (*validator.Validate, error) {
			return validator.New(validator.WithRequiredStructEnabled()), nil
		})
		if err != nil {
			return err
		}
	}
	if set.SlowRequest && set.SlowThreshold > 0 && !cat.Has(container.Key[SlowThreshold]()) {
		if _, err := cat.Instance(container.Key[SlowThreshold](), SlowThreshold(set.SlowThreshold)); err != nil {
			return err
		}
	}

	for _, b := range set.stock() {
		_, err := pipeline.RegisterOpenBehavior(cat, b.factory,
			container.WithName(b.name), container.WithDependencies(b.deps...))
		if err != nil {
			return err
		}
	}
	return nil
}
