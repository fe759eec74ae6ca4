// Package logging provides the process-wide logger registry.
//
// # Overview
//
// A Registry hands out one NamedLogger per logical name, created lazily on
// first request and cached for the life of the process. The concrete
// implementation behind every logger is chosen once with InitializeWith.
//
//	// once, at startup
//	logging.InitializeWith(logging.NewZapKind(logging.NewZapCore("zap-console", logging.LevelDebug, nil)))
//
//	// per component, computed once and held
//	log := logging.GetOrCreate(logging.NameOf[*OrderService]())
//	log.Info(ctx, "order accepted")
//	log.DebugFn(ctx, func() string { return expensiveDump(order) })
//	log.ErrorWith(ctx, err, "order rejected")
//
// # Execution context
//
// Lines are tagged with the execution identifier carried by ctx rather than
// any goroutine-local state:
//
//	ctx = logging.WithExecutionID(ctx, requestID)
//
// # Implementations
//
//   - NewZapKind: structured entries through a zapcore.Core
//   - NewWriterKind: FormatMessage lines to an io.Writer
//   - Nop: discards everything (default before initialization)
package logging
