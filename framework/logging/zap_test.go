package logging_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/km-arc/go-bootstrap/framework/logging"
)

func TestZapKind_WritesStructuredEntries(t *testing.T) {
	core, logs := observer.New(logging.ZapLevel(logging.LevelTrace))
	reg := logging.NewRegistry()
	require.NoError(t, reg.InitializeWith(logging.NewZapKind(core)))

	ctx := logging.WithExecutionID(context.Background(), "req-7")
	log := reg.GetOrCreate("OrderService")
	log.Trace(ctx, "entering")
	log.ErrorWith(ctx, errors.New("boom"), "failed")
	log.Fatal(ctx, "unrecoverable")

	entries := logs.All()
	require.Len(t, entries, 3)

	assert.Equal(t, zapcore.DebugLevel-1, entries[0].Level)
	assert.Equal(t, "OrderService", entries[0].LoggerName)
	assert.Equal(t, "req-7", entries[0].ContextMap()["exec"])

	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "boom", entries[1].ContextMap()["error"])

	assert.Equal(t, zapcore.FatalLevel, entries[2].Level)
	assert.Equal(t, "unrecoverable", entries[2].Message)
}

func TestZapKind_DisabledLevelSkipsProducer(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	reg := logging.NewRegistry()
	require.NoError(t, reg.InitializeWith(logging.NewZapKind(core)))
	log := reg.GetOrCreate("Quiet")

	calls := 0
	log.InfoFn(context.Background(), func() string {
		calls++
		return "skipped"
	})
	log.WarnFn(context.Background(), func() string {
		calls++
		return "kept"
	})

	assert.Equal(t, 1, calls)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "kept", logs.All()[0].Message)
}

func TestZapKind_ErrorFmtFormatsLazily(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	reg := logging.NewRegistry()
	require.NoError(t, reg.InitializeWith(logging.NewZapKind(core)))

	reg.GetOrCreate("Fmt").ErrorFmt(context.Background(), nil, "%d of %d failed", 2, 5)

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "2 of 5 failed", logs.All()[0].Message)
}

func TestZapLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, logging.ZapLevel(logging.LevelDebug))
	assert.Equal(t, zapcore.InfoLevel, logging.ZapLevel(logging.LevelInfo))
	assert.Equal(t, zapcore.WarnLevel, logging.ZapLevel(logging.LevelWarn))
	assert.Equal(t, zapcore.FatalLevel, logging.ZapLevel(logging.LevelFatal))
}
