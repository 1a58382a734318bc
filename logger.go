package eventhub

// Logger defines the logging capability the hub depends on. It is a
// capability, never a concrete dependency: the hub and its dispatchers must
// function correctly with a no-op logger (see NoopLogger), and every
// framework operation (registration, dispatch acceptance, shutdown, state
// resolution) logs through this interface rather than a package-level
// logger.
//
// Key-value pairs follow the same variadic convention as the teacher
// framework's Logger, which keeps this interface trivially satisfied by
// slog, zap's SugaredLogger, logrus, or similar.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	Debug(msg string, args ...any)
	// Verbose logs below Debug; dispatch-loop tracing (every offer/drain)
	// uses this level so it can be silenced independently of Debug.
	Verbose(msg string, args ...any)
}

// noopLogger discards everything. It is the hub's default so that a Hub
// constructed without WithLogger (or with WithLogger(nil)) still runs.
type noopLogger struct{}

func (noopLogger) Info(string, ...any)    {}
func (noopLogger) Warn(string, ...any)    {}
func (noopLogger) Error(string, ...any)   {}
func (noopLogger) Debug(string, ...any)   {}
func (noopLogger) Verbose(string, ...any) {}

// NoopLogger returns a Logger implementation that discards all messages.
func NoopLogger() Logger { return noopLogger{} }
