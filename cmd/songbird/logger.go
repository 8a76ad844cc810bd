package main

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/DrTrintignant/Songbird/internal/config"
)

// newLogger builds a text logger at level. When file is set, output goes to a
// rotating log file instead of stderr; the returned closer is then non-nil.
func newLogger(level config.LogLevel, file string) (*slog.Logger, *slog.LevelVar, io.Closer) {
	lv := &slog.LevelVar{}
	lv.Set(slogLevel(level))

	var (
		w      io.Writer = os.Stderr
		closer io.Closer
	)
	if file != "" {
		lj := &lumberjack.Logger{
			Filename:   file,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
		w, closer = lj, lj
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lv})), lv, closer
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
