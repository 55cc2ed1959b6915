package token

import "errors"

var (
	// ErrMissingSigningKey is returned by NewCodec when no key is provided.
	ErrMissingSigningKey = errors.New("token: missing signing key")

	// ErrMalformedToken is returned when a credential has an invalid
	// structure, an unexpected algorithm, or a signature that does not
	// verify. It always terminates the connection attempt.
	ErrMalformedToken = errors.New("token: malformed token")

	// ErrExpiredToken is returned when the credential's expiry has passed.
	ErrExpiredToken = errors.New("token: expired token")
)
