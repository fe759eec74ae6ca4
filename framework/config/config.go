// Package config loads the typed application settings from .env files and
// the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/km-arc/go-bootstrap/framework/logging"
)

// Log formats.
const (
	FormatZapJSON    = "zap-json"
	FormatZapConsole = "zap-console"
	FormatText       = "text"
)

// Config is the central typed configuration struct. Bootstrap registers it
// as a singleton instance, so services resolve it with
// container.Resolve[*config.Config].
type Config struct {
	App      AppConfig
	Log      LogConfig
	Dispatch DispatchConfig
}

type AppConfig struct {
	Name  string
	Env   string // local | production | testing
	Debug bool
	URL   string
	Port  string
}

type LogConfig struct {
	Level  string // trace | debug | info | warn | error | fatal
	Format string // zap-json | zap-console | text
}

// DispatchConfig selects the stock behaviors and the publish strategy.
type DispatchConfig struct {
	SlowThreshold   time.Duration
	Validate        bool
	Metrics         bool
	Tracing         bool
	PublishParallel bool
}

// Load reads .env (if present) and populates a Config from environment variables.
// Call once at bootstrap: cfg := config.Load()
func Load(envFiles ...string) *Config {
	files := envFiles
	if len(files) == 0 {
		files = []string{".env"}
	}
	// Non-fatal: .env may not exist in production
	_ = godotenv.Load(files...)

	return &Config{
		App: AppConfig{
			Name:  env("APP_NAME", "GoBootstrap"),
			Env:   env("APP_ENV", "local"),
			Debug: envBool("APP_DEBUG", true),
			URL:   env("APP_URL", "http://localhost"),
			Port:  env("APP_PORT", "8000"),
		},
		Log: LogConfig{
			Level:  env("LOG_LEVEL", "info"),
			Format: env("LOG_FORMAT", FormatZapConsole),
		},
		Dispatch: DispatchConfig{
			SlowThreshold:   GetDuration("DISPATCH_SLOW_THRESHOLD", 0),
			Validate:        envBool("DISPATCH_VALIDATE", true),
			Metrics:         envBool("DISPATCH_METRICS", false),
			Tracing:         envBool("DISPATCH_TRACING", false),
			PublishParallel: envBool("DISPATCH_PUBLISH_PARALLEL", false),
		},
	}
}

// Validate reports every setting that cannot be used, not just the first.
func (c *Config) Validate() error {
	var err error
	if _, lerr := logging.ParseLevel(c.Log.Level); lerr != nil {
		err = multierr.Append(err, fmt.Errorf("LOG_LEVEL: %w", lerr))
	}
	switch c.Log.Format {
	case FormatZapJSON, FormatZapConsole, FormatText:
	default:
		err = multierr.Append(err, fmt.Errorf("LOG_FORMAT: unknown format %q", c.Log.Format))
	}
	if c.App.Port == "" {
		err = multierr.Append(err, errors.New("APP_PORT: must not be empty"))
	} else if _, perr := strconv.Atoi(c.App.Port); perr != nil {
		err = multierr.Append(err, fmt.Errorf("APP_PORT: %q is not a port number", c.App.Port))
	}
	if c.Dispatch.SlowThreshold < 0 {
		err = multierr.Append(err, errors.New("DISPATCH_SLOW_THRESHOLD: must not be negative"))
	}
	return err
}

// LogLevel is the parsed Log.Level, Info when it cannot be parsed.
func (c *Config) LogLevel() logging.Level {
	l, err := logging.ParseLevel(c.Log.Level)
	if err != nil {
		return logging.LevelInfo
	}
	return l
}

// IsProduction reports whether App.Env is "production".
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.App.Env, "production")
}

// Addr is the listen address for App.Port.
func (c *Config) Addr() string {
	return ":" + c.App.Port
}

// Get returns a raw env value, falling back to defaultVal.
func Get(key, defaultVal string) string {
	return env(key, defaultVal)
}

// GetInt returns an int env value.
func GetInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

// GetBool returns a bool env value.
func GetBool(key string, defaultVal bool) bool {
	return envBool(key, defaultVal)
}

// GetDuration returns a duration env value ("250ms", "2s"). A bare integer
// is read as milliseconds.
func GetDuration(key string, defaultVal time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

// ── helpers ─────────────────────────────────────────────────────────────────

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
