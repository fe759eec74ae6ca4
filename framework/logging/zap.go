package logging

import (
	"context"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// zapTraceLevel sits one step below zap's DebugLevel.
const zapTraceLevel = zapcore.DebugLevel - 1

// ZapLevel maps a Level onto a zap level.
func ZapLevel(l Level) zapcore.Level {
	switch l {
	case LevelTrace:
		return zapTraceLevel
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelInfo:
		return zapcore.InfoLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.FatalLevel
	}
}

// NewZapKind returns a Kind whose loggers write structured entries to core.
//
// Entries are checked against the core directly, so a Fatal entry is written
// but never terminates the process; deciding what happens after a fatal
// failure is left to the caller.
func NewZapKind(core zapcore.Core) Kind {
	return func() Backend {
		return &zapBackend{core: core}
	}
}

// NewZapCore builds a core for the given format ("zap-json" or
// "zap-console") writing to out (stdout when nil) at or above min.
func NewZapCore(format string, min Level, out zapcore.WriteSyncer) zapcore.Core {
	if out == nil {
		out = zapcore.Lock(os.Stdout)
	}

	cfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      zapcore.OmitKey,
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    levelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}

	var encoder zapcore.Encoder
	if strings.EqualFold(format, "zap-json") || strings.EqualFold(format, "json") {
		encoder = zapcore.NewJSONEncoder(cfg)
	} else {
		encoder = zapcore.NewConsoleEncoder(cfg)
	}
	return zapcore.NewCore(encoder, out, zap.NewAtomicLevelAt(ZapLevel(min)))
}

func levelEncoder(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	if l == zapTraceLevel {
		enc.AppendString("TRACE")
		return
	}
	zapcore.CapitalLevelEncoder(l, enc)
}

type zapBackend struct {
	name string
	core zapcore.Core
}

func (b *zapBackend) InitializeFor(name string) { b.name = name }

func (b *zapBackend) Write(ctx context.Context, level Level, message string, err error) {
	lvl := ZapLevel(level)
	if !b.core.Enabled(lvl) {
		return
	}
	b.emit(ctx, lvl, message, err)
}

func (b *zapBackend) WriteLazy(ctx context.Context, level Level, message func() string, err error) {
	lvl := ZapLevel(level)
	if !b.core.Enabled(lvl) {
		return
	}
	b.emit(ctx, lvl, message(), err)
}

func (b *zapBackend) emit(ctx context.Context, lvl zapcore.Level, message string, err error) {
	entry := zapcore.Entry{
		Level:      lvl,
		Time:       time.Now(),
		LoggerName: b.name,
		Message:    message,
	}
	ce := b.core.Check(entry, nil)
	if ce == nil {
		return
	}

	fields := []zap.Field{zap.String("exec", ExecutionID(ctx))}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	ce.Write(fields...)
}
