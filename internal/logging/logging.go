// Package logging builds the process-wide *slog.Logger from configuration.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/sakif/snippet-vault/internal/config"
)

// New returns a logger writing to stdout and, when cfg.File is set, to a
// rotating file as well. The returned closer releases the file; it is a
// no-op when no file is configured.
func New(cfg config.Log) (*slog.Logger, io.Closer) {
	return newLogger(cfg, os.Stdout)
}

func newLogger(cfg config.Log, stdout io.Writer) (*slog.Logger, io.Closer) {
	var (
		out    io.Writer = stdout
		closer io.Closer = nopCloser{}
	)

	if cfg.File != "" {
		// best effort: lumberjack reports the real error on first write
		_ = os.MkdirAll(filepath.Dir(cfg.File), 0o755)

		file := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    50, // MB
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		}
		out = io.MultiWriter(stdout, file)
		closer = file
	}

	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	return slog.New(handler), closer
}

// ParseLevel maps debug|info|warn|error to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// Discard is a logger for tests and for components built without one.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
