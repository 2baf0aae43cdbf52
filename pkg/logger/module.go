package logger

import (
	"io"
	"log/slog"
	"os"

	"github.com/entra-mcp/entra-mcp/pkg/config"
	"go.uber.org/fx"
)

// NewRingBufferFromConfig sizes the recent-log buffer from configuration.
func NewRingBufferFromConfig(cfg *config.ServerConfig) *RingBuffer {
	return NewRingBuffer(cfg.LogBufferSize)
}

func NewSlogLogger(cfg *config.ServerConfig, buffer *RingBuffer) *slog.Logger {
	return newLogger(os.Stderr, cfg, buffer)
}

func newLogger(w io.Writer, cfg *config.ServerConfig, buffer *RingBuffer) *slog.Logger {
	var handler slog.Handler

	// Configure log level
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	if buffer != nil {
		handler = newBufferingHandler(handler, buffer)
	}

	return slog.New(handler)
}

var Module = fx.Module("logger",
	fx.Provide(NewRingBufferFromConfig),
	fx.Provide(NewSlogLogger),
)
