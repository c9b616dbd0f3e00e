package xsync

import (
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/joeycumines/logiface"
	islog "github.com/joeycumines/logiface-slog"
)

// Logger is the structured logger type shared by every package in this
// module. It is a thin alias over logiface.Logger so call sites never
// import logiface-slog directly.
type Logger = logiface.Logger[*islog.Event]

var defaultLogger atomic.Pointer[Logger]

func init() {
	l := islog.L.New(islog.L.WithSlogHandler(slog.NewJSONHandler(io.Discard, nil)))
	defaultLogger.Store(l)
}

// SetDefaultLogger installs the logger used by this module's packages when
// no package-specific logger was configured. Passing nil restores the
// discarding default.
func SetDefaultLogger(l *Logger) {
	if l == nil {
		l = islog.L.New(islog.L.WithSlogHandler(slog.NewJSONHandler(io.Discard, nil)))
	}
	defaultLogger.Store(l)
}

// DefaultLogger returns the module-wide default logger.
func DefaultLogger() *Logger {
	return defaultLogger.Load()
}
