package logger

import (
	"log/slog"
	"time"
)

// Error creates an attribute for a single error under the key "error".
// Returns an empty Attr for nil errors, enabling safe usage without nil
// checks.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Component creates an attribute naming the subsystem a record came from.
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Room creates an attribute for room identifiers.
func Room(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("room", id)
}

// Channel creates an attribute for fan-out channel names.
func Channel(name string) slog.Attr {
	if name == "" {
		return slog.Attr{}
	}
	return slog.String("channel", name)
}

// Subject creates an attribute for subscriber identities.
func Subject(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("subject", id)
}

// Duration creates an attribute for a duration.
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Count creates a generic counter attribute.
func Count(key string, n int) slog.Attr {
	return slog.Int(key, n)
}
