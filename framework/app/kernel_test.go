package app_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-bootstrap/framework/app"
	"github.com/km-arc/go-bootstrap/framework/behaviors"
	"github.com/km-arc/go-bootstrap/framework/bus"
	"github.com/km-arc/go-bootstrap/framework/config"
	"github.com/km-arc/go-bootstrap/framework/container"
	"github.com/km-arc/go-bootstrap/framework/errs"
	"github.com/km-arc/go-bootstrap/framework/logging"
	"github.com/km-arc/go-bootstrap/framework/pipeline"
)

type Ping struct{ Message string }
type Pong struct{ Message string }

type fakeEnv struct{}

func (fakeEnv) Executable() string    { return "/usr/bin/demo" }
func (fakeEnv) ModuleVersion() string { return "v1.2.3" }
func (fakeEnv) GoVersion() string     { return "go1.24.0" }
func (fakeEnv) User() string          { return "svc" }
func (fakeEnv) HostName() string      { return "box" }
func (fakeEnv) IPv4Address() string   { return "10.0.0.7" }
func (fakeEnv) Platform() string      { return "linux/amd64" }

// worker is a long-running service that is also disposable.
type worker struct {
	started  atomic.Int32
	disposed atomic.Int32
	fail     error
}

func (w *worker) Start(context.Context) error {
	w.started.Add(1)
	return w.fail
}

func (w *worker) Dispose() error {
	w.disposed.Add(1)
	return nil
}

type command struct {
	name string
	runs *atomic.Int32
	err  error
}

func (c command) Command() string     { return c.name }
func (c command) Description() string { return "runs " + c.name }
func (c command) Execute(context.Context) error {
	c.runs.Add(1)
	return c.err
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Name: "Demo", Env: "testing", Port: "8000"},
		Log: config.LogConfig{Level: "debug", Format: config.FormatText},
	}
}

func bootstrap(t *testing.T, opts app.Options) (*app.Application, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	if opts.Config == nil {
		opts.Config = testConfig()
	}
	opts.Registry = logging.NewRegistry()
	opts.LogOutput = &buf
	opts.Environment = fakeEnv{}

	application, err := app.Bootstrap(context.Background(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Shutdown() })
	return application, &buf
}

func pingDescriptor() container.Descriptor {
	return pipeline.HandlerDescriptor("PingHandler", func(container.Activation) (pipeline.RequestHandler[Ping, Pong], error) {
		return pipeline.RequestHandlerFunc[Ping, Pong](func(_ context.Context, p Ping) (Pong, error) {
			return Pong{Message: "pong: " + p.Message}, nil
		}), nil
	})
}

// ── Bootstrap ─────────────────────────────────────────────────────────────────

func TestBootstrap_WiresDispatcherAndConfig(t *testing.T) {
	application, _ := bootstrap(t, app.Options{Descriptors: []container.Descriptor{pingDescriptor()}})

	d, err := container.ResolveKey[*bus.Dispatcher](application.Root(), bus.MediatorKey())
	require.NoError(t, err)
	assert.Same(t, application.Dispatcher(), d)

	cfg, err := container.Resolve[*config.Config](application.Root())
	require.NoError(t, err)
	assert.Same(t, application.Config(), cfg)

	pong, err := bus.Send[Ping, Pong](context.Background(), d, Ping{Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "pong: hi", pong.Message)

	assert.True(t, application.Catalog().Frozen())
	assert.True(t, application.Providers().Booted())
	assert.True(t, application.IsTesting())
	assert.Equal(t, app.Version, application.Version())
}

func TestBootstrap_LogsBannerAndUsefulInformation(t *testing.T) {
	_, buf := bootstrap(t, app.Options{Banner: " ___\n|   |\n"})
	out := buf.String()

	assert.Contains(t, out, "[Bootstrapper]   ___")
	assert.Contains(t, out, "[Bootstrapper]  |   |")

	// keys are right-aligned to the longest one, "Dispatch.PublishParallel"
	assert.Contains(t, out, "[LoggingOrchestrator]                Executable: /usr/bin/demo")
	assert.Contains(t, out, "[LoggingOrchestrator]              Network host: box (10.0.0.7)")
	assert.Contains(t, out, "[LoggingOrchestrator]             Configuration: =====================")
	assert.Contains(t, out, "[LoggingOrchestrator]                  App.Name: Demo")
	assert.Contains(t, out, "[LoggingOrchestrator]                   App.URL: [EMPTY]")
	assert.Contains(t, out, "[LoggingOrchestrator]  Dispatch.PublishParallel: false")
	assert.Contains(t, out, "[LoggingOrchestrator]  Starting Demo v0.1.0")
}

func TestBootstrap_InvalidConfigFailsEarly(t *testing.T) {
	cfg := testConfig()
	cfg.Log.Format = "xml"

	_, err := app.Bootstrap(context.Background(), app.Options{Config: cfg, Registry: logging.NewRegistry()})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "LOG_FORMAT")
}

func TestBootstrap_ValidatesDeclaredDependencies(t *testing.T) {
	desc := pingDescriptor()
	desc.Dependencies = []container.ServiceKey{container.NewKey("repository")}

	_, err := app.Bootstrap(context.Background(), app.Options{
		Config:      testConfig(),
		Registry:    logging.NewRegistry(),
		Environment: fakeEnv{},
		Descriptors: []container.Descriptor{desc},
	})

	assert.ErrorIs(t, err, errs.ErrNotRegistered)
}

type failingProvider struct {
	container.BaseProvider
	w *worker
}

func (p *failingProvider) Register(cat *container.Catalog) error {
	_, err := container.RegisterFunc(cat, container.Singleton, func(container.Activation) (*worker, error) {
		return p.w, nil
	})
	return err
}

func (p *failingProvider) Boot(_ context.Context, root *container.Scope) error {
	if _, err := container.Resolve[*worker](root); err != nil {
		return err
	}
	return errors.New("boot failed")
}

func TestBootstrap_BootFailureDisposesRoot(t *testing.T) {
	w := &worker{}

	_, err := app.Bootstrap(context.Background(), app.Options{
		Config:      testConfig(),
		Registry:    logging.NewRegistry(),
		Environment: fakeEnv{},
		Providers:   []container.ServiceProvider{&failingProvider{w: w}},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "boot failed")
	assert.Equal(t, int32(1), w.disposed.Load())
}

func TestBootstrap_ReusesAlreadyInitializedRegistry(t *testing.T) {
	var first, second bytes.Buffer
	reg := logging.NewRegistry()
	require.NoError(t, reg.InitializeWith(logging.NewWriterKind(&first, logging.LevelInfo)))
	reg.GetOrCreate("Host").Info(context.Background(), "host logging")

	application, err := app.Bootstrap(context.Background(), app.Options{
		Config:      testConfig(),
		Registry:    reg,
		LogOutput:   &second,
		Environment: fakeEnv{},
	})
	require.NoError(t, err)
	defer application.Shutdown()

	assert.Contains(t, first.String(), "Starting Demo")
	assert.Empty(t, second.String())
}

func TestBootstrap_LoggersCreatedBeforeBootstrapWriteThroughConfiguredKind(t *testing.T) {
	var out bytes.Buffer
	reg := logging.NewRegistry()
	early := reg.GetOrCreate("Early")

	application, err := app.Bootstrap(context.Background(), app.Options{
		Config:      testConfig(),
		Registry:    reg,
		LogOutput:   &out,
		Environment: fakeEnv{},
	})
	require.NoError(t, err)
	defer application.Shutdown()

	early.Info(context.Background(), "still heard")
	assert.Contains(t, out.String(), "Starting Demo")
	assert.Contains(t, out.String(), "[Early]  still heard")
}

// ── Lifecycle ─────────────────────────────────────────────────────────────────

func TestApplication_StartAndShutdown(t *testing.T) {
	w1, w2 := &worker{}, &worker{}
	descs := []container.Descriptor{
		app.ServiceDescriptor("first", func(container.Activation) (app.LongRunningService, error) { return w1, nil }),
		app.ServiceDescriptor("second", func(container.Activation) (app.LongRunningService, error) { return w2, nil }),
	}
	application, buf := bootstrap(t, app.Options{Descriptors: descs})

	require.NoError(t, application.Start(context.Background()))
	assert.Equal(t, int32(1), w1.started.Load())
	assert.Equal(t, int32(1), w2.started.Load())
	assert.Contains(t, buf.String(), "All long running services are started.")

	require.NoError(t, application.Shutdown())
	assert.Equal(t, int32(1), w1.disposed.Load())
	assert.Equal(t, int32(1), w2.disposed.Load())
}

func TestApplication_StartReportsFailure(t *testing.T) {
	boom := errors.New("port in use")
	descs := []container.Descriptor{
		app.ServiceDescriptor("broken", func(container.Activation) (app.LongRunningService, error) {
			return &worker{fail: boom}, nil
		}),
	}
	application, _ := bootstrap(t, app.Options{Descriptors: descs})

	err := application.Start(context.Background())

	assert.ErrorIs(t, err, boom)
}

// ── Commands ──────────────────────────────────────────────────────────────────

func TestCommandOrchestrator_Run(t *testing.T) {
	var stats, broken atomic.Int32
	descs := []container.Descriptor{
		app.CommandDescriptor("stats", func(container.Activation) (app.CommandProcessor, error) {
			return command{name: "stats", runs: &stats}, nil
		}),
		app.CommandDescriptor("broken", func(container.Activation) (app.CommandProcessor, error) {
			return command{name: "Broken", runs: &broken, err: errors.New("disk full")}, nil
		}),
	}
	application, buf := bootstrap(t, app.Options{Descriptors: descs})
	commands, err := application.Commands()
	require.NoError(t, err)
	assert.Equal(t, []string{"broken", "stats"}, commands.Commands())

	in := strings.NewReader("help\n\n  STATS \nbogus\nbroken\nquit\nstats\n")
	require.NoError(t, commands.Run(context.Background(), in))

	assert.Equal(t, int32(1), stats.Load())
	assert.Equal(t, int32(1), broken.Load())
	out := buf.String()
	assert.Contains(t, out, "[CommandOrchestrator]   stats  runs stats")
	assert.Contains(t, out, "Unknown command bogus")
	assert.Contains(t, out, "Command broken failed")
	assert.Contains(t, out, "disk full")
}

func TestCommandOrchestrator_StopsWhenContextIsDone(t *testing.T) {
	var runs atomic.Int32
	o, err := app.NewCommandOrchestrator([]app.CommandProcessor{command{name: "stats", runs: &runs}}, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = o.Run(ctx, strings.NewReader("stats\n"))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, runs.Load())
}

func TestNewCommandOrchestrator_RejectsConflicts(t *testing.T) {
	var runs atomic.Int32
	tests := []struct {
		name  string
		procs []app.CommandProcessor
	}{
		{"duplicate", []app.CommandProcessor{command{name: "stats", runs: &runs}, command{name: "STATS", runs: &runs}}},
		{"built-in", []app.CommandProcessor{command{name: "help", runs: &runs}}},
		{"empty", []app.CommandProcessor{command{name: " ", runs: &runs}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := app.NewCommandOrchestrator(tt.procs, nil)
			assert.ErrorIs(t, err, errs.ErrInvalidRegistration)
		})
	}
}

func TestCommandOrchestrator_ExecuteUnknown(t *testing.T) {
	o, err := app.NewCommandOrchestrator(nil, nil)
	require.NoError(t, err)

	assert.ErrorIs(t, o.Execute(context.Background(), "nope"), errs.ErrNotRegistered)
}

// ── Settings ──────────────────────────────────────────────────────────────────

func TestStockBehaviors_FollowConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Dispatch = config.DispatchConfig{SlowThreshold: time.Second, Validate: true, Metrics: true}

	set := app.StockBehaviors(cfg)

	assert.Equal(t, behaviors.Set{
		Metrics: true, Logging: true, SlowRequest: true, Validation: true, SlowThreshold: time.Second,
	}, set)
}

func TestKindFor_TextWritesFormattedLines(t *testing.T) {
	var buf bytes.Buffer
	reg := logging.NewRegistry()
	require.NoError(t, reg.InitializeWith(app.KindFor(config.LogConfig{Level: "warn", Format: config.FormatText}, &buf)))

	log := reg.GetOrCreate("Worker")
	log.Info(context.Background(), "dropped")
	log.Warn(logging.WithExecutionID(context.Background(), "x1"), "kept")

	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), " WARN [x1][Worker]  kept")
}

func TestKindFor_ZapJSON(t *testing.T) {
	var buf bytes.Buffer
	reg := logging.NewRegistry()
	require.NoError(t, reg.InitializeWith(app.KindFor(config.LogConfig{Level: "info", Format: config.FormatZapJSON}, &buf)))

	reg.GetOrCreate("Worker").Info(logging.WithExecutionID(context.Background(), "x2"), "hello")

	assert.Contains(t, buf.String(), `"msg":"hello"`)
	assert.Contains(t, buf.String(), `"exec":"x2"`)
	assert.Contains(t, buf.String(), `"logger":"Worker"`)
}
