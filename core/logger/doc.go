// Package logger builds the process-wide slog logger from environment
// configuration and provides typed attribute helpers for consistent
// structured output across the relay.
//
// Handler construction:
//
//	var cfg logger.Config
//	config.MustLoad(&cfg)
//	log := logger.New(cfg)
//
// Attribute helpers follow the empty-Attr pattern: passing a nil error or
// an empty id yields an attribute slog silently drops, so call sites never
// need nil checks:
//
//	log.Error("broadcast failed", logger.Error(err), logger.Component("relay"))
package logger
