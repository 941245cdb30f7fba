// Package crawllog is the logging facade (spec component C9): a
// PSR-style level-tagged logger with a "source" field, backed by the
// standard library's structured logger. No third-party structured
// logging library appears anywhere in the reference corpus, so this is
// the one ambient concern built directly on log/slog rather than an
// ecosystem package (see DESIGN.md).
package crawllog

import (
	"context"
	"log/slog"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Logger is the narrow facade the Engine and its bundled subscribers
// depend on.
type Logger interface {
	Log(level Level, message string, fields ...any)
}

// Slog adapts a *slog.Logger to the Logger facade, tagging every record
// with a constant "source" field.
type Slog struct {
	inner  *slog.Logger
	source string
}

// NewSlog wraps inner, tagging every emitted record with source.
func NewSlog(inner *slog.Logger, source string) *Slog {
	if inner == nil {
		inner = slog.Default()
	}
	return &Slog{inner: inner, source: source}
}

func (s *Slog) Log(level Level, message string, fields ...any) {
	args := append([]any{"source", s.source}, fields...)
	s.inner.Log(context.Background(), toSlogLevel(level), message, args...)
}

func toSlogLevel(l Level) slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Noop discards every record; used as the Engine's default logger so a
// caller need not configure logging to use the library.
type Noop struct{}

func (Noop) Log(Level, string, ...any) {}
