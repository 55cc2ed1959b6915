package logger

import (
	"log/slog"
	"os"
	"strings"
)

// Config holds logger settings with environment variable support.
type Config struct {
	// Level is the minimum level emitted: debug, info, warn or error.
	Level string `env:"LOG_LEVEL" envDefault:"info"`

	// Format selects the handler: "json" for machine consumption,
	// "text" for terminals.
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

// New creates a slog logger writing to stdout per the config. Unknown
// levels and formats fall back to info and json rather than failing:
// a misconfigured logger should still log.
func New(cfg Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
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
