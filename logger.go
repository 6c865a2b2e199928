package gpuscan

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/gpuscan/gpucore"
)

// nopHandler is a slog.Handler that silently discards all log records.
// The Enabled method returns false so the caller skips message formatting
// entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// newNopLogger creates a logger that silently discards all output.
func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the package logger. Accessed atomically so that
// SetLogger can be called concurrently with running engines.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the default logger for gpuscan and the backends
// opened by engines created afterwards. By default, gpuscan produces no
// log output. Pass nil to restore the silent default.
//
// Log levels used by gpuscan:
//   - [slog.LevelDebug]: per-dispatch detail (kernel, groups, elements)
//   - [slog.LevelInfo]: lifecycle events (backend opened, program built)
//   - [slog.LevelWarn]: non-fatal issues (resource release errors)
//
// Example:
//
//	gpuscan.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
}

// Logger returns the current package logger.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// propagateLogger passes the logger to a backend that accepts one.
func propagateLogger(b gpucore.Backend, l *slog.Logger) {
	if ls, ok := b.(gpucore.LoggerSetter); ok {
		ls.SetLogger(l)
	}
}
