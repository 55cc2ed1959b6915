// Package redis provides Redis client construction for the relay's
// distributed backend: connection-string parsing, retry with backoff, ping
// verification, and a health check function.
//
// Configuration comes from the environment:
//
//	type Config struct {
//		ConnectionURL  string        `env:"REDIS_URL" envDefault:""`
//		RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`
//		RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"5s"`
//		ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"30s"`
//	}
//
// An empty ConnectionURL means the process runs without a shared store and
// should fall back to the in-process backend; Config.Enabled reports this.
// Supported URL forms follow redis://[user[:password]@]host:port[/db] plus
// rediss:// for TLS, as parsed by go-redis.
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		// errors.Is(err, redis.ErrRedisNotReady) etc.
//	}
//	defer client.Close()
//
// Connect pings the server before returning, retrying RetryAttempts times
// with a growing interval, bounded overall by ConnectTimeout. Healthcheck
// returns a probe function suitable for readiness endpoints.
package redis
