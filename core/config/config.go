package config

import (
	"fmt"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// dotenvOnce makes sure the .env file, when present, is applied to the
// process environment exactly once regardless of how many configs load.
var dotenvOnce sync.Once

// Load populates cfg from the process environment using `env` struct tags.
// A .env file in the working directory is applied first, if present;
// variables already set in the environment win over the file.
func Load(cfg any) error {
	dotenvOnce.Do(func() {
		// Missing .env is the normal production case, not an error.
		_ = godotenv.Load()
	})

	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("config: parse environment: %w", err)
	}
	return nil
}

// MustLoad is Load that panics on failure. Intended for process startup
// where a bad environment should abort immediately.
func MustLoad(cfg any) {
	if err := Load(cfg); err != nil {
		panic(err)
	}
}
