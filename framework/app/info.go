package app

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/user"
	"reflect"
	"runtime"
	"runtime/debug"
	"strings"

	"go.uber.org/zap/zapcore"

	"github.com/km-arc/go-bootstrap/framework/config"
	"github.com/km-arc/go-bootstrap/framework/logging"
)

// Environment describes the process for LogUsefulInformation.
type Environment interface {
	Executable() string
	ModuleVersion() string
	GoVersion() string
	User() string
	HostName() string
	IPv4Address() string
	Platform() string
}

type hostEnvironment struct{}

// NewEnvironment inspects the running process.
func NewEnvironment() Environment { return hostEnvironment{} }

func (hostEnvironment) Executable() string {
	path, err := os.Executable()
	if err != nil {
		return "[unknown]"
	}
	return path
}

func (hostEnvironment) ModuleVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "(devel)"
}

func (hostEnvironment) GoVersion() string { return runtime.Version() }

func (hostEnvironment) User() string {
	u, err := user.Current()
	if err != nil {
		return "[unknown]"
	}
	return u.Username
}

func (hostEnvironment) HostName() string {
	name, err := os.Hostname()
	if err != nil {
		return "[unknown]"
	}
	return name
}

func (hostEnvironment) IPv4Address() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "[unknown]"
	}
	for _, a := range addrs {
		if ipnet, ok := a.(*net.IPNet); ok && !ipnet.IP.IsLoopback() && ipnet.IP.To4() != nil {
			return ipnet.IP.String()
		}
	}
	return "127.0.0.1"
}

func (hostEnvironment) Platform() string { return runtime.GOOS + "/" + runtime.GOARCH }

// LogUsefulInformation logs a right-aligned summary of the process and every
// configuration setting, so the start of each run is easy to find in the logs.
func LogUsefulInformation(ctx context.Context, log *logging.NamedLogger, env Environment, cfg *config.Config) {
	log.Debug(ctx, "Gathering system information...")

	type kv struct{ key, value string }
	pairs := []kv{
		{"Executable", env.Executable()},
		{"Module version", env.ModuleVersion()},
		{"Go version", env.GoVersion()},
		{"Running as", fmt.Sprintf("%s (pid %d)", env.User(), os.Getpid())},
		{"Network host", fmt.Sprintf("%s (%s)", env.HostName(), env.IPv4Address())},
		{"Platform", env.Platform()},
	}
	if settings := flatten("", reflect.ValueOf(cfg)); len(settings) > 0 {
		pairs = append(pairs, kv{"Configuration", "====================="})
		for _, s := range settings {
			pairs = append(pairs, kv{s[0], s[1]})
		}
	}

	width := 0
	for _, p := range pairs {
		width = max(width, len(p.key))
	}

	log.Info(ctx, "")
	for _, p := range pairs {
		log.Info(ctx, fmt.Sprintf("%*s: %s", width, p.key, p.value))
	}
	log.Info(ctx, "")
	log.Info(ctx, fmt.Sprintf("Starting %s v%s", cfg.App.Name, Version))
	log.Info(ctx, "")
}

// flatten lists the exported leaf fields of v as "Section.Field" pairs.
func flatten(prefix string, v reflect.Value) [][2]string {
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return [][2]string{{prefix, fmt.Sprint(v.Interface())}}
	}

	var out [][2]string
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Name
		if prefix != "" {
			name = prefix + "." + name
		}
		fv := v.Field(i)
		if fv.Kind() == reflect.Struct {
			out = append(out, flatten(name, fv)...)
			continue
		}
		value := fmt.Sprint(fv.Interface())
		if value == "" {
			value = "[EMPTY]"
		}
		out = append(out, [2]string{name, value})
	}
	return out
}

// ── Logger selection ──────────────────────────────────────────────────────────

// KindFor selects the logger implementation for the configured format and
// level: the line formatter for "text", zap otherwise.
func KindFor(cfg config.LogConfig, out io.Writer) logging.Kind {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		level = logging.LevelInfo
	}
	if strings.EqualFold(cfg.Format, config.FormatText) {
		return logging.NewWriterKind(out, level)
	}
	return logging.NewZapKind(logging.NewZapCore(cfg.Format, level, zapcore.Lock(zapcore.AddSync(out))))
}
