package redis

import "errors"

var (
	// ErrEmptyConnectionURL is returned by Connect when no URL is set.
	ErrEmptyConnectionURL = errors.New("redis: empty connection URL")

	// ErrFailedToParseConnString is returned for malformed connection URLs.
	ErrFailedToParseConnString = errors.New("redis: failed to parse connection string")

	// ErrRedisNotReady is returned when the server does not answer a ping
	// within the configured retry budget.
	ErrRedisNotReady = errors.New("redis: not ready within the connect timeout")

	// ErrHealthcheckFailed wraps ping failures from the health probe.
	ErrHealthcheckFailed = errors.New("redis: healthcheck failed")
)
