package logging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// TimestampLayout renders the 12-hour wall clock with milliseconds, e.g.
// "09:41:07.250 AM".
const TimestampLayout = "03:04:05.000 PM"

// ── Execution context ─────────────────────────────────────────────────────────

type executionIDKey struct{}

// DefaultExecutionID is reported for contexts that carry no identifier.
const DefaultExecutionID = "main"

// WithExecutionID attaches the identifier of the current unit of work (a
// request, a worker, the main routine) to ctx. Formatted log lines show it
// between the first pair of brackets.
func WithExecutionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, executionIDKey{}, id)
}

// ExecutionID returns the identifier attached to ctx, or DefaultExecutionID.
func ExecutionID(ctx context.Context) string {
	if ctx != nil {
		if id, ok := ctx.Value(executionIDKey{}).(string); ok && id != "" {
			return id
		}
	}
	return DefaultExecutionID
}

// HasExecutionID reports whether ctx carries an explicit identifier.
func HasExecutionID(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	id, ok := ctx.Value(executionIDKey{}).(string)
	return ok && id != ""
}

// ── Formatting ────────────────────────────────────────────────────────────────

// stackTracer is implemented by errors that carry a rendered stack trace.
type stackTracer interface {
	StackTrace() string
}

// FormatMessage renders one log line:
//
//	<timestamp> <level> [<execution-id>][<short-logger-name>]  <message>
//
// The level is aligned in a five character field. When err is non-nil a
// second line "<error-type>: <error-message> <stack-trace>" is appended.
func FormatMessage(now time.Time, executionID, loggerName string, level Level, message string, err error) string {
	prefix := fmt.Sprintf("%s %5s [%s][%s]", now.Format(TimestampLayout), level, executionID, ShortName(loggerName))

	var b strings.Builder
	b.WriteString(prefix)
	b.WriteString("  ")
	b.WriteString(message)

	if err != nil {
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("%T: %s", err, err.Error()))
		var st stackTracer
		if errors.As(err, &st) {
			if trace := st.StackTrace(); trace != "" {
				b.WriteString(" ")
				b.WriteString(trace)
			}
		}
	}
	return b.String()
}

// ShortName keeps the last dot-separated segment of a logger name.
func ShortName(loggerName string) string {
	if loggerName == "" {
		return "None"
	}
	if i := strings.LastIndexByte(loggerName, '.'); i >= 0 {
		if short := loggerName[i+1:]; short != "" {
			return short
		}
		return "None"
	}
	return loggerName
}
