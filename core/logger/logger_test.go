package logger_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/relaykit/core/logger"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("respects the configured level", func(t *testing.T) {
		t.Parallel()

		log := logger.New(logger.Config{Level: "warn", Format: "text"})
		assert.False(t, log.Enabled(context.Background(), slog.LevelInfo))
		assert.True(t, log.Enabled(context.Background(), slog.LevelWarn))
	})

	t.Run("unknown level falls back to info", func(t *testing.T) {
		t.Parallel()

		log := logger.New(logger.Config{Level: "verbose"})
		assert.False(t, log.Enabled(context.Background(), slog.LevelDebug))
		assert.True(t, log.Enabled(context.Background(), slog.LevelInfo))
	})
}

func TestAttrs(t *testing.T) {
	t.Parallel()

	t.Run("nil error yields an empty attr", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, slog.Attr{}, logger.Error(nil))
	})

	t.Run("empty identifiers yield empty attrs", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, slog.Attr{}, logger.Room(""))
		assert.Equal(t, slog.Attr{}, logger.Channel(""))
		assert.Equal(t, slog.Attr{}, logger.Subject(""))
	})

	t.Run("populated attrs carry the expected keys", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, "room", logger.Room("12345").Key)
		assert.Equal(t, "channel", logger.Channel("12345").Key)
		assert.Equal(t, "subject", logger.Subject("abc").Key)
		assert.Equal(t, "component", logger.Component("relay").Key)
	})
}
