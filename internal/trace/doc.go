// Package trace is the logging sink of iocheck.
//
// A Tracer is created once at startup from the CLI flags and attached to the
// command context. Packages that log pull it back out with FromContext and
// never reconfigure it.
//
// # Levels
//
//   - LevelOff: nothing is written
//   - LevelError: failures that abort a case or the run
//   - LevelWarn: suspicious but recoverable conditions
//   - LevelInfo: one line per executed command and per case verdict
//   - LevelDebug: resolved inputs (stdin, exit codes, config)
//   - LevelTrace: captured output contents
//
// # Usage
//
//	ctx = trace.WithTracer(ctx, tracer)
//	t := trace.FromContext(ctx)
//
//	span := trace.Begin(t, trace.LevelInfo, "exec", "cat")
//	defer span.End("")
package trace
