package logging

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
)

// ── Levels ────────────────────────────────────────────────────────────────────

// Level is a log severity.
type Level int

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "TRACE"
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a level name (case-insensitive) to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	case "fatal":
		return LevelFatal, nil
	}
	return LevelInfo, fmt.Errorf("logging: unknown level %q", s)
}

// ── Backend ───────────────────────────────────────────────────────────────────

// Backend is the write contract a concrete logger implementation satisfies.
//
// InitializeFor is called exactly once, right after construction, with the
// logical name of the logger. WriteLazy receives a message producer that the
// backend must only call when it actually emits the entry.
type Backend interface {
	InitializeFor(name string)
	Write(ctx context.Context, level Level, message string, err error)
	WriteLazy(ctx context.Context, level Level, message func() string, err error)
}

// Kind constructs a fresh, uninitialized Backend. It selects the logger
// implementation for a Registry.
type Kind func() Backend

// Nop is the Kind used until a Registry is initialized.
func Nop() Backend { return nopBackend{} }

type nopBackend struct{}

func (nopBackend) InitializeFor(string)                                   {}
func (nopBackend) Write(context.Context, Level, string, error)            {}
func (nopBackend) WriteLazy(context.Context, Level, func() string, error) {}

// ── NamedLogger ───────────────────────────────────────────────────────────────

// NamedLogger is the per-name logger handed out by a Registry. Every level has
// an eager and a deferred (Fn) form; Warn, Error and Fatal also accept an
// attached error (With / WithFn).
type NamedLogger struct {
	name string
	impl atomic.Pointer[Backend]
}

func newNamedLogger(name string, kind Kind) *NamedLogger {
	l := &NamedLogger{name: name}
	l.rebind(kind)
	return l
}

// rebind replaces the backend with a fresh one built from kind. The registry
// uses it to move loggers created before initialization onto the chosen kind.
func (l *NamedLogger) rebind(kind Kind) {
	b := kind()
	b.InitializeFor(l.name)
	l.impl.Store(&b)
}

// Name returns the logical name the logger was created for.
func (l *NamedLogger) Name() string { return l.name }

// Backend exposes the underlying implementation.
func (l *NamedLogger) Backend() Backend { return *l.impl.Load() }

func (l *NamedLogger) backend() Backend { return *l.impl.Load() }

func (l *NamedLogger) Trace(ctx context.Context, msg string) {
	l.backend().Write(ctx, LevelTrace, msg, nil)
}
func (l *NamedLogger) TraceFn(ctx context.Context, msg func() string) {
	l.backend().WriteLazy(ctx, LevelTrace, msg, nil)
}

func (l *NamedLogger) Debug(ctx context.Context, msg string) {
	l.backend().Write(ctx, LevelDebug, msg, nil)
}
func (l *NamedLogger) DebugFn(ctx context.Context, msg func() string) {
	l.backend().WriteLazy(ctx, LevelDebug, msg, nil)
}

func (l *NamedLogger) Info(ctx context.Context, msg string) {
	l.backend().Write(ctx, LevelInfo, msg, nil)
}
func (l *NamedLogger) InfoFn(ctx context.Context, msg func() string) {
	l.backend().WriteLazy(ctx, LevelInfo, msg, nil)
}

func (l *NamedLogger) Warn(ctx context.Context, msg string) {
	l.backend().Write(ctx, LevelWarn, msg, nil)
}
func (l *NamedLogger) WarnFn(ctx context.Context, msg func() string) {
	l.backend().WriteLazy(ctx, LevelWarn, msg, nil)
}
func (l *NamedLogger) WarnWith(ctx context.Context, err error, msg string) {
	l.backend().Write(ctx, LevelWarn, msg, err)
}
func (l *NamedLogger) WarnWithFn(ctx context.Context, err error, msg func() string) {
	l.backend().WriteLazy(ctx, LevelWarn, msg, err)
}

func (l *NamedLogger) Error(ctx context.Context, msg string) {
	l.backend().Write(ctx, LevelError, msg, nil)
}
func (l *NamedLogger) ErrorFn(ctx context.Context, msg func() string) {
	l.backend().WriteLazy(ctx, LevelError, msg, nil)
}
func (l *NamedLogger) ErrorWith(ctx context.Context, err error, msg string) {
	l.backend().Write(ctx, LevelError, msg, err)
}
func (l *NamedLogger) ErrorWithFn(ctx context.Context, err error, msg func() string) {
	l.backend().WriteLazy(ctx, LevelError, msg, err)
}

func (l *NamedLogger) Fatal(ctx context.Context, msg string) {
	l.backend().Write(ctx, LevelFatal, msg, nil)
}
func (l *NamedLogger) FatalFn(ctx context.Context, msg func() string) {
	l.backend().WriteLazy(ctx, LevelFatal, msg, nil)
}
func (l *NamedLogger) FatalWith(ctx context.Context, err error, msg string) {
	l.backend().Write(ctx, LevelFatal, msg, err)
}
func (l *NamedLogger) FatalWithFn(ctx context.Context, err error, msg func() string) {
	l.backend().WriteLazy(ctx, LevelFatal, msg, err)
}

// ErrorFmt formats lazily: the arguments are only rendered if the entry is
// emitted.
func (l *NamedLogger) ErrorFmt(ctx context.Context, err error, format string, args ...any) {
	l.backend().WriteLazy(ctx, LevelError, func() string { return fmt.Sprintf(format, args...) }, err)
}

func (l *NamedLogger) FatalFmt(ctx context.Context, err error, format string, args ...any) {
	l.backend().WriteLazy(ctx, LevelFatal, func() string { return fmt.Sprintf(format, args...) }, err)
}

// Header writes an Info entry that looks like
// ' ============= Some message ============= '.
func (l *NamedLogger) Header(ctx context.Context, format string, args ...any) {
	const wrapping = " ============= "
	l.backend().WriteLazy(ctx, LevelInfo, func() string {
		return wrapping + fmt.Sprintf(format, args...) + wrapping
	}, nil)
}
