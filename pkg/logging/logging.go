// Package logging configures structured logging for log/slog.
//
// Usage:
//
//	logging.Setup("debug")                  // level from config
//	logging.SetupWithLevel(slog.LevelDebug)  // explicit level override
//
// On a terminal, records are colored with tint. Otherwise they are written
// as JSON lines so log collectors can parse them.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// Setup installs the default logger at the named level (debug, info, warn,
// error; anything else is info).
func Setup(level string) {
	SetupWithLevel(ParseLevel(level))
}

// SetupWithLevel installs the default logger at the given level, writing to
// stderr.
func SetupWithLevel(level slog.Level) {
	slog.SetDefault(New(os.Stderr, level, isatty.IsTerminal(os.Stderr.Fd())))
}

// New returns a logger writing to w. color selects the tint handler over
// JSON.
func New(w io.Writer, level slog.Level, color bool) *slog.Logger {
	if color {
		return slog.New(tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
			AddSource:  true,
		}))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
