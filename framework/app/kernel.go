// Package app is the composition root. Bootstrap wires configuration,
// logging, the container and the dispatcher into an Application:
//
//	application, err := app.Bootstrap(ctx, app.Options{
//	    Descriptors: discovered,
//	    Providers:   []container.ServiceProvider{&MailProvider{}},
//	})
//	if err != nil {
//	    return err
//	}
//	defer application.Shutdown()
//	if err := application.Start(ctx); err != nil {
//	    return err
//	}
package app

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"go.uber.org/multierr"

	"github.com/km-arc/go-bootstrap/framework/behaviors"
	"github.com/km-arc/go-bootstrap/framework/bus"
	"github.com/km-arc/go-bootstrap/framework/config"
	"github.com/km-arc/go-bootstrap/framework/container"
	"github.com/km-arc/go-bootstrap/framework/errs"
	"github.com/km-arc/go-bootstrap/framework/logging"
	"github.com/km-arc/go-bootstrap/framework/pipeline"
)

// Version is reported by LogUsefulInformation.
const Version = "0.1.0"

// Options configures Bootstrap. The zero value loads .env, logs with the
// configured format to stdout and registers no application types.
type Options struct {
	// Config is used as is when set; otherwise it is loaded from EnvFiles.
	Config   *config.Config
	EnvFiles []string

	// Registry receives the logger kind (logging.Default() when nil).
	// LogKind overrides the kind derived from the configuration and LogOutput
	// is where that derived kind writes (stdout when nil).
	Registry  *logging.Registry
	LogKind   logging.Kind
	LogOutput io.Writer

	// Banner lines are logged at Info right after logging is initialized.
	Banner string

	// Descriptors lists the discovered handlers, behaviors, notification
	// handlers, long-running services and command processors.
	Descriptors []container.Descriptor

	// Behaviors overrides the stock behaviors selected by the configuration.
	Behaviors *behaviors.Set

	Providers   []container.ServiceProvider
	Environment Environment
}

// Application is the bootstrapped process: its configuration, the frozen
// catalog, the root scope and the dispatcher provided on it.
type Application struct {
	config     *config.Config
	catalog    *container.Catalog
	root       *container.Scope
	dispatcher *bus.Dispatcher
	providers  *container.ProviderRegistry
	registry   *logging.Registry
	log        *logging.NamedLogger
}

// Bootstrap builds the application. Registration order decides the behavior
// chain: discovered behaviors first, then the stock ones, then whatever the
// providers add.
func Bootstrap(ctx context.Context, opts Options) (*Application, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Load(opts.EnvFiles...)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	reg, err := initializeLogging(cfg, opts)
	if err != nil {
		return nil, err
	}
	log := reg.GetOrCreate("Bootstrapper")
	log.Debug(ctx, "Logging initialized.")
	for _, line := range strings.Split(strings.TrimRight(opts.Banner, "\n"), "\n") {
		if line != "" {
			log.Info(ctx, line)
		}
	}

	env := opts.Environment
	if env == nil {
		env = NewEnvironment()
	}
	LogUsefulInformation(ctx, reg.GetOrCreate("LoggingOrchestrator"), env, cfg)

	log.Debug(ctx, "Initializing the container...")
	cat := container.NewCatalog()
	if _, err := cat.Instance(container.Key[*config.Config](), cfg); err != nil {
		return nil, err
	}
	if _, err := cat.Instance(container.Key[*logging.Registry](), reg); err != nil {
		return nil, err
	}
	if err := registerOrchestrators(cat, reg); err != nil {
		return nil, err
	}
	if _, err := cat.RegisterAll(opts.Descriptors, Services(), container.Singleton); err != nil {
		return nil, err
	}
	if _, err := cat.RegisterAll(opts.Descriptors, pipeline.Bases(), container.PerScope); err != nil {
		return nil, err
	}

	set := StockBehaviors(cfg)
	if opts.Behaviors != nil {
		set = *opts.Behaviors
	}
	if err := behaviors.RegisterStock(cat, set); err != nil {
		return nil, err
	}

	providers := container.NewProviderRegistry(cat)
	for _, p := range opts.Providers {
		if err := providers.Register(p); err != nil {
			return nil, err
		}
	}

	if err := cat.Validate(); err != nil {
		return nil, err
	}

	root := container.NewRootScope(cat, container.WithLogging(reg))
	strategy := bus.Sequential
	if cfg.Dispatch.PublishParallel {
		strategy = bus.Parallel
	}
	dispatcher := bus.New(root, bus.WithLogger(reg.GetOrCreate("Dispatcher")), bus.WithPublishStrategy(strategy))
	if err := root.Provide(bus.MediatorKey(), dispatcher); err != nil {
		return nil, err
	}

	if err := providers.Boot(ctx, root); err != nil {
		return nil, multierr.Append(err, root.Dispose())
	}

	log.Debug(ctx, "Finished bootstrapping "+cfg.App.Name)
	return &Application{
		config:     cfg,
		catalog:    cat,
		root:       root,
		dispatcher: dispatcher,
		providers:  providers,
		registry:   reg,
		log:        log,
	}, nil
}

// StockBehaviors derives the stock behavior set from the configuration.
// Request logging is always on.
func StockBehaviors(cfg *config.Config) behaviors.Set {
	return behaviors.Set{
		Tracing:       cfg.Dispatch.Tracing,
		Metrics:       cfg.Dispatch.Metrics,
		Logging:       true,
		SlowRequest:   cfg.Dispatch.SlowThreshold > 0,
		Validation:    cfg.Dispatch.Validate,
		SlowThreshold: cfg.Dispatch.SlowThreshold,
	}
}

func initializeLogging(cfg *config.Config, opts Options) (*logging.Registry, error) {
	reg := opts.Registry
	if reg == nil {
		reg = logging.Default()
	}
	kind := opts.LogKind
	if kind == nil {
		out := opts.LogOutput
		if out == nil {
			out = os.Stdout
		}
		kind = KindFor(cfg.Log, out)
	}
	// a host that already picked a logger keeps it
	if err := reg.InitializeWith(kind); err != nil && !errors.Is(err, errs.ErrAlreadyInitialized) {
		return nil, err
	}
	return reg, nil
}

// ── Lifecycle ─────────────────────────────────────────────────────────────────

// Start starts every long-running service.
func (a *Application) Start(ctx context.Context) error {
	orchestrator, err := container.Resolve[*LongRunningServiceOrchestrator](a.root)
	if err != nil {
		return err
	}
	if err := orchestrator.StartLongRunningServices(ctx); err != nil {
		return err
	}
	a.log.Info(ctx, "All long running services are started.")
	return nil
}

// Commands returns the console command orchestrator.
func (a *Application) Commands() (*CommandOrchestrator, error) {
	return container.Resolve[*CommandOrchestrator](a.root)
}

// Shutdown disposes the root scope, stopping every disposable singleton in
// reverse construction order.
func (a *Application) Shutdown() error {
	a.log.Debug(context.Background(), "Shutting down")
	return a.root.Dispose()
}

// ── Accessors ─────────────────────────────────────────────────────────────────

func (a *Application) Config() *config.Config                 { return a.config }
func (a *Application) Catalog() *container.Catalog            { return a.catalog }
func (a *Application) Root() *container.Scope                 { return a.root }
func (a *Application) Dispatcher() *bus.Dispatcher            { return a.dispatcher }
func (a *Application) Providers() *container.ProviderRegistry { return a.providers }
func (a *Application) Loggers() *logging.Registry             { return a.registry }

// Environment returns APP_ENV value.
func (a *Application) Environment() string { return a.config.App.Env }
func (a *Application) IsLocal() bool       { return a.Environment() == "local" }
func (a *Application) IsProduction() bool  { return a.config.IsProduction() }
func (a *Application) IsTesting() bool     { return a.Environment() == "testing" }
func (a *Application) IsDebug() bool       { return a.config.App.Debug }
func (a *Application) Version() string     { return Version }
