package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DefaultTTL is the expiry horizon applied to issued credentials.
const DefaultTTL = 8 * time.Hour

// Claims is the signed payload of a credential. The field names are part of
// the external wire format and must not change.
type Claims struct {
	Room      string `json:"room"`
	Subject   string `json:"uuid"`
	ExpiresAt int64  `json:"exp"`
}

type header struct {
	Alg string `json:"alg"`
	Typ string `json:"typ"`
}

// Codec issues and validates room credentials. Deterministic given the same
// signing key; safe for concurrent use.
type Codec struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// Option configures a Codec.
type Option func(*Codec)

// WithTTL overrides the expiry horizon for issued credentials.
// Non-positive values are ignored.
func WithTTL(ttl time.Duration) Option {
	return func(c *Codec) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock overrides the time source used for expiry. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCodec creates a Codec signing with the given key.
// Keys should be at least 32 bytes of cryptographically secure material.
func NewCodec(key []byte, opts ...Option) (*Codec, error) {
	if len(key) == 0 {
		return nil, ErrMissingSigningKey
	}

	c := &Codec{
		key: key,
		ttl: DefaultTTL,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Issue mints a credential granting subject access to room, expiring after
// the configured TTL. No side effects.
func (c *Codec) Issue(room, subject string) (string, error) {
	claims := Claims{
		Room:      room,
		Subject:   subject,
		ExpiresAt: c.now().Add(c.ttl).Unix(),
	}

	headerJSON, err := json.Marshal(header{Alg: "HS256", Typ: "JWT"})
	if err != nil {
		return "", fmt.Errorf("token: marshal header: %w", err)
	}
	claimsJSON, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("token: marshal claims: %w", err)
	}

	signingInput := encodeSegment(headerJSON) + "." + encodeSegment(claimsJSON)
	return signingInput + "." + c.sign(signingInput), nil
}

// Validate parses a credential, verifies its signature and checks expiry.
// Returns ErrMalformedToken or ErrExpiredToken on failure.
func (c *Codec) Validate(raw string) (Claims, error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return Claims{}, fmt.Errorf("%w: expected three segments", ErrMalformedToken)
	}

	// Verify the signature before trusting any claim.
	signingInput := parts[0] + "." + parts[1]
	expected := c.sign(signingInput)
	if !hmac.Equal([]byte(expected), []byte(parts[2])) {
		return Claims{}, fmt.Errorf("%w: signature mismatch", ErrMalformedToken)
	}

	headerJSON, err := decodeSegment(parts[0])
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	var hdr header
	if err := json.Unmarshal(headerJSON, &hdr); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	if hdr.Alg != "HS256" {
		return Claims{}, fmt.Errorf("%w: unexpected algorithm %q", ErrMalformedToken, hdr.Alg)
	}

	claimsJSON, err := decodeSegment(parts[1])
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	var claims Claims
	if err := json.Unmarshal(claimsJSON, &claims); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	// A credential without an expiry would never expire; treat it as
	// malformed rather than eternal.
	if claims.ExpiresAt <= 0 {
		return Claims{}, fmt.Errorf("%w: missing expiry", ErrMalformedToken)
	}
	if c.now().Unix() >= claims.ExpiresAt {
		return Claims{}, ErrExpiredToken
	}
	return claims, nil
}

func (c *Codec) sign(signingInput string) string {
	mac := hmac.New(sha256.New, c.key)
	mac.Write([]byte(signingInput))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func encodeSegment(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

func decodeSegment(seg string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(seg)
}
