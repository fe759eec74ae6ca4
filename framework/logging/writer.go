package logging

import (
	"context"
	"io"
	"sync"
	"time"
)

// NewWriterKind returns a Kind whose loggers write FormatMessage lines to out.
// Entries below min are dropped without evaluating deferred messages. All
// loggers of the kind share one lock so lines never interleave.
func NewWriterKind(out io.Writer, min Level) Kind {
	mu := &sync.Mutex{}
	return func() Backend {
		return &writerBackend{out: out, min: min, mu: mu, now: time.Now}
	}
}

type writerBackend struct {
	name string
	out  io.Writer
	min  Level
	mu   *sync.Mutex
	now  func() time.Time
}

func (b *writerBackend) InitializeFor(name string) { b.name = name }

func (b *writerBackend) Write(ctx context.Context, level Level, message string, err error) {
	if level < b.min {
		return
	}
	b.emit(ctx, level, message, err)
}

func (b *writerBackend) WriteLazy(ctx context.Context, level Level, message func() string, err error) {
	if level < b.min {
		return
	}
	b.emit(ctx, level, message(), err)
}

func (b *writerBackend) emit(ctx context.Context, level Level, message string, err error) {
	line := FormatMessage(b.now(), ExecutionID(ctx), b.name, level, message, err)
	b.mu.Lock()
	defer b.mu.Unlock()
	_, _ = io.WriteString(b.out, line+"\n")
}
