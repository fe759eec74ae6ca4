package routing

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/km-arc/go-bootstrap/framework/app"
	"github.com/km-arc/go-bootstrap/framework/bus"
	"github.com/km-arc/go-bootstrap/framework/config"
	"github.com/km-arc/go-bootstrap/framework/container"
	"github.com/km-arc/go-bootstrap/framework/errs"
	"github.com/km-arc/go-bootstrap/framework/http/validation"
	"github.com/km-arc/go-bootstrap/framework/logging"
)

// Provider registers the HTTP ingress.
//
// Bound keys:
//   - *routing.Router       the router with the application routes
//   - *validator.Validate   a validator naming fields by their json tag
//   - app.LongRunningService a *routing.Server listening on the configured port
//
// The metrics endpoint serves the prometheus.Gatherer registered in the
// catalog, or the default gatherer.
type Provider struct {
	container.BaseProvider

	// Routes adds the application routes.
	Routes func(r *Router, d *bus.Dispatcher)
	// MetricsPath mounts the Prometheus endpoint when set, e.g. "/metrics".
	MetricsPath string
	// Addr overrides the address derived from APP_PORT.
	Addr string
}

func (p *Provider) Register(cat *container.Catalog) error {
	_, err := container.RegisterFunc(cat, container.Singleton, func(container.Activation) (*validator.Validate, error) {
		return validation.New(), nil
	}, container.WithName("routing.Validator"))
	if err != nil {
		return err
	}

	_, err = container.RegisterFunc(cat, container.Singleton, p.router,
		container.WithName("routing.Router"),
		container.WithDependencies(container.Key[*logging.Registry]()))
	if err != nil {
		return err
	}

	_, err = cat.Singleton(app.LongRunningServiceKey(), container.Erase(p.server),
		container.WithName("routing.Server"),
		container.WithDependencies(container.Key[*Router](), container.Key[*config.Config]()))
	return err
}

// Boot builds the router so route wiring problems surface while
// bootstrapping.
func (p *Provider) Boot(_ context.Context, root *container.Scope) error {
	_, err := container.Resolve[*Router](root)
	return err
}

func (p *Provider) Provides() []container.ServiceKey {
	return []container.ServiceKey{
		container.Key[*validator.Validate](),
		container.Key[*Router](),
		app.LongRunningServiceKey(),
	}
}

func (p *Provider) router(a container.Activation) (*Router, error) {
	reg, err := container.Resolve[*logging.Registry](a)
	if err != nil {
		return nil, err
	}
	d, err := container.ResolveKey[*bus.Dispatcher](a, bus.MediatorKey())
	if err != nil {
		return nil, err
	}

	r := New(WithLogger(reg.GetOrCreate("Router")))
	if p.MetricsPath != "" {
		g, err := gatherer(a)
		if err != nil {
			return nil, err
		}
		r.Metrics(p.MetricsPath, g)
	}
	if p.Routes != nil {
		p.Routes(r, d)
	}
	return r, nil
}

func (p *Provider) server(a container.Activation) (app.LongRunningService, error) {
	r, err := container.Resolve[*Router](a)
	if err != nil {
		return nil, err
	}
	reg, err := container.Resolve[*logging.Registry](a)
	if err != nil {
		return nil, err
	}
	addr := p.Addr
	if addr == "" {
		cfg, err := container.Resolve[*config.Config](a)
		if err != nil {
			return nil, err
		}
		addr = cfg.Addr()
	}
	return NewServer(addr, r, reg.GetOrCreate("HttpServer")), nil
}

// gatherer returns the registered prometheus.Gatherer, or nil for the
// default one.
func gatherer(a container.Activation) (prometheus.Gatherer, error) {
	key := container.Key[prometheus.Gatherer]()
	g, err := container.ResolveKey[prometheus.Gatherer](a, key)
	if errors.Is(err, errs.NotRegistered(key.String())) {
		return nil, nil
	}
	return g, err
}
