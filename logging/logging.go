// Package logging provides a zap-backed implementation of eventhub.Logger,
// the default being what most hosts will actually wire in: eventhub itself
// depends only on its own Logger interface and runs fine with
// eventhub.NoopLogger, since logging is a capability, not a dependency.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger adapts *zap.SugaredLogger to eventhub.Logger's variadic
// key-value convention. Verbose is logged at zap's Debug level, the same
// level as Debug itself, so the zap level cannot filter verbose tracing
// separately from debug logging; Verbose entries carry a
// "verbosity"="verbose" field instead.
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

// New builds a ZapLogger at the given minimum level ("debug", "info",
// "warn", "error"; anything else defaults to "info").
func New(level string) (*ZapLogger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &ZapLogger{sugar: logger.Sugar()}, nil
}

// NewFromLogger wraps an already-constructed *zap.Logger.
func NewFromLogger(logger *zap.Logger) *ZapLogger {
	return &ZapLogger{sugar: logger.Sugar()}
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug", "verbose":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func (l *ZapLogger) Info(msg string, args ...any)  { l.sugar.Infow(msg, args...) }
func (l *ZapLogger) Warn(msg string, args ...any)  { l.sugar.Warnw(msg, args...) }
func (l *ZapLogger) Error(msg string, args ...any) { l.sugar.Errorw(msg, args...) }
func (l *ZapLogger) Debug(msg string, args ...any) { l.sugar.Debugw(msg, args...) }

// Verbose logs at Debug level, tagged so it can be grepped out separately
// from ordinary debug logging.
func (l *ZapLogger) Verbose(msg string, args ...any) {
	l.sugar.Debugw(msg, append([]any{"verbosity", "verbose"}, args...)...)
}

// Sync flushes any buffered log entries, mirroring zap's own convention of
// deferring logger.Sync() at program exit.
func (l *ZapLogger) Sync() error { return l.sugar.Sync() }
