// Package logger provides a global, sugared Zap logger. It emits JSON lines
// to stdout by default or to a file when one is configured, which keeps the
// terminal UI's alternate screen free of log noise.
package logger

import (
	"context"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// logger is the global SugaredLogger. It discards everything until Init
	// is called so packages can log unconditionally, including in tests.
	logger = zap.NewNop().Sugar()

	// initOnce ensures the logger is only configured a single time.
	initOnce sync.Once
)

// config holds configuration options for the logger.
type config struct {
	level string // minimum log level (debug, info, warn, error)
	path  string // output file; empty means stdout
}

// Option configures the logger before initialization.
type Option func(*config)

// WithLevel sets the minimum log level for the global logger.
func WithLevel(l string) Option {
	return func(c *config) {
		c.level = l
	}
}

// WithFile sends log output to the file at path, appending to it.
func WithFile(path string) Option {
	return func(c *config) {
		c.path = path
	}
}

// Init configures the global logger. By default it logs JSON to stdout at the
// "info" level. Calling Init again after a successful initialization has no
// effect.
//
// Returns an error if the level cannot be parsed or the log file cannot be
// opened.
func Init(opts ...Option) error {
	cfg := config{level: "info"}
	for _, opt := range opts {
		opt(&cfg)
	}

	level, err := zapcore.ParseLevel(cfg.level)
	if err != nil {
		return err
	}

	var initErr error
	initOnce.Do(func() {
		sink := zapcore.AddSync(os.Stdout)
		if cfg.path != "" {
			f, err := os.OpenFile(cfg.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
			if err != nil {
				initErr = err
				return
			}
			sink = zapcore.AddSync(f)
		}

		core := zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			sink,
			level,
		)
		logger = zap.New(core).Sugar()
	})

	return initErr
}

// Sync flushes any buffered log entries.
func Sync() error {
	return logger.Sync()
}

// Debug logs a debug-level message with optional key/value context.
func Debug(ctx context.Context, msg string, keysAndValues ...any) {
	logger.Debugw(msg, keysAndValues...)
}

// Info logs an info-level message with optional key/value context.
func Info(ctx context.Context, msg string, keysAndValues ...any) {
	logger.Infow(msg, keysAndValues...)
}

// Warn logs a warn-level message with optional key/value context.
func Warn(ctx context.Context, msg string, keysAndValues ...any) {
	logger.Warnw(msg, keysAndValues...)
}

// Error logs an error-level message with optional key/value context.
func Error(ctx context.Context, msg string, keysAndValues ...any) {
	logger.Errorw(msg, keysAndValues...)
}
