package gateway

import "time"

// Config holds gateway settings with environment variable support.
type Config struct {
	// Secret signs room credentials. Required; there is no safe default.
	Secret string `env:"RELAY_SECRET,required"`

	// TokenTTL is the expiry horizon of minted credentials.
	TokenTTL time.Duration `env:"RELAY_TOKEN_TTL" envDefault:"8h"`

	// AllowedHosts lists origins permitted to open cross-domain
	// websocket connections, in host:port form.
	AllowedHosts []string `env:"RELAY_ALLOWED_HOSTS" envSeparator:","`

	// Debug disables the origin check entirely.
	Debug bool `env:"RELAY_DEBUG" envDefault:"false"`

	// ReadLimit caps the size of a single inbound message in bytes.
	ReadLimit int64 `env:"RELAY_READ_LIMIT" envDefault:"65536"`
}
