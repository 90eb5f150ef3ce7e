package glyphraster

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
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

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for glyphraster and the GPU backends
// attached to live Rasterizers. By default nothing is logged.
//
// SetLogger is safe for concurrent use. Pass nil to restore the default
// silent behavior.
//
// Log levels used by glyphraster:
//   - [slog.LevelDebug]: cache misses, backend dispatches, CPU/GPU option asymmetry
//   - [slog.LevelInfo]: lifecycle events (GPU device opened, font added)
//   - [slog.LevelWarn]: non-fatal issues (glyphs of a run that failed)
//
// Example:
//
//	glyphraster.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)

	backendsMu.Lock()
	defer backendsMu.Unlock()
	for b := range backends {
		propagateLogger(b, l)
	}
}

// Logger returns the current logger used by glyphraster.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// loggerSetter is implemented by GPU backends that accept a logger.
type loggerSetter interface {
	SetLogger(*slog.Logger)
}

// backends holds the GPU backends of live Rasterizers, counted by the
// number of Rasterizers using each one.
var (
	backendsMu sync.Mutex
	backends   = map[GPUBackend]int{}
)

func registerBackend(b GPUBackend, l *slog.Logger) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	backends[b]++
	propagateLogger(b, l)
}

func unregisterBackend(b GPUBackend) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	if backends[b]--; backends[b] <= 0 {
		delete(backends, b)
	}
}

// propagateLogger passes the logger to a backend if it implements
// loggerSetter.
func propagateLogger(b GPUBackend, l *slog.Logger) {
	if ls, ok := b.(loggerSetter); ok {
		ls.SetLogger(l)
	}
}
