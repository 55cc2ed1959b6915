package token_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/relaykit/core/token"
)

func TestNewCodec(t *testing.T) {
	t.Parallel()

	t.Run("creates codec with valid key", func(t *testing.T) {
		t.Parallel()

		codec, err := token.NewCodec([]byte("test-signing-key"))
		require.NoError(t, err)
		require.NotNil(t, codec)
	})

	t.Run("rejects empty key", func(t *testing.T) {
		t.Parallel()

		codec, err := token.NewCodec(nil)
		require.ErrorIs(t, err, token.ErrMissingSigningKey)
		assert.Nil(t, codec)
	})
}

func TestCodec_RoundTrip(t *testing.T) {
	t.Parallel()

	codec, err := token.NewCodec([]byte("test-signing-key"))
	require.NoError(t, err)

	t.Run("returns room and subject unchanged", func(t *testing.T) {
		t.Parallel()

		raw, err := codec.Issue("54321", "a1b2c3d4")
		require.NoError(t, err)
		require.NotEmpty(t, raw)

		claims, err := codec.Validate(raw)
		require.NoError(t, err)
		assert.Equal(t, "54321", claims.Room)
		assert.Equal(t, "a1b2c3d4", claims.Subject)
		assert.Greater(t, claims.ExpiresAt, time.Now().Unix())
	})

	t.Run("wire format uses room, uuid and exp claims", func(t *testing.T) {
		t.Parallel()

		raw, err := codec.Issue("12345", "bob")
		require.NoError(t, err)

		parts := strings.Split(raw, ".")
		require.Len(t, parts, 3)

		payload, err := base64.RawURLEncoding.DecodeString(parts[1])
		require.NoError(t, err)

		var claims map[string]any
		require.NoError(t, json.Unmarshal(payload, &claims))
		assert.Equal(t, "12345", claims["room"])
		assert.Equal(t, "bob", claims["uuid"])
		assert.Contains(t, claims, "exp")
	})
}

func TestCodec_Validate(t *testing.T) {
	t.Parallel()

	key := []byte("test-signing-key")

	t.Run("rejects expired token", func(t *testing.T) {
		t.Parallel()

		past := time.Now().Add(-2 * time.Hour)
		issuer, err := token.NewCodec(key, token.WithClock(func() time.Time { return past }), token.WithTTL(time.Hour))
		require.NoError(t, err)

		raw, err := issuer.Issue("54321", "alice")
		require.NoError(t, err)

		codec, err := token.NewCodec(key)
		require.NoError(t, err)

		_, err = codec.Validate(raw)
		require.ErrorIs(t, err, token.ErrExpiredToken)
	})

	t.Run("accepts token just inside the horizon", func(t *testing.T) {
		t.Parallel()

		codec, err := token.NewCodec(key, token.WithTTL(time.Minute))
		require.NoError(t, err)

		raw, err := codec.Issue("54321", "alice")
		require.NoError(t, err)

		_, err = codec.Validate(raw)
		require.NoError(t, err)
	})

	t.Run("rejects token signed with another key", func(t *testing.T) {
		t.Parallel()

		other, err := token.NewCodec([]byte("another-key"))
		require.NoError(t, err)
		raw, err := other.Issue("54321", "alice")
		require.NoError(t, err)

		codec, err := token.NewCodec(key)
		require.NoError(t, err)

		_, err = codec.Validate(raw)
		require.ErrorIs(t, err, token.ErrMalformedToken)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		t.Parallel()

		codec, err := token.NewCodec(key)
		require.NoError(t, err)

		for _, raw := range []string{"", "not-a-token", "a.b", "a.b.c.d"} {
			_, err := codec.Validate(raw)
			assert.ErrorIs(t, err, token.ErrMalformedToken, "input %q", raw)
		}
	})

	t.Run("rejects tampered payload", func(t *testing.T) {
		t.Parallel()

		codec, err := token.NewCodec(key)
		require.NoError(t, err)

		raw, err := codec.Issue("54321", "alice")
		require.NoError(t, err)

		forged, err := json.Marshal(map[string]any{"room": "99999", "uuid": "mallory", "exp": time.Now().Add(time.Hour).Unix()})
		require.NoError(t, err)

		parts := strings.Split(raw, ".")
		parts[1] = base64.RawURLEncoding.EncodeToString(forged)

		_, err = codec.Validate(strings.Join(parts, "."))
		require.ErrorIs(t, err, token.ErrMalformedToken)
	})

	t.Run("rejects validly signed token without expiry", func(t *testing.T) {
		t.Parallel()

		codec, err := token.NewCodec(key)
		require.NoError(t, err)

		sign := func(input string) string {
			mac := hmac.New(sha256.New, key)
			mac.Write([]byte(input))
			return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
		}
		hdr := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))

		for _, payload := range []string{
			`{"room":"54321","uuid":"alice"}`,
			`{"room":"54321","uuid":"alice","exp":0}`,
			`{"room":"54321","uuid":"alice","exp":-1}`,
		} {
			body := hdr + "." + base64.RawURLEncoding.EncodeToString([]byte(payload))
			_, err := codec.Validate(body + "." + sign(body))
			assert.ErrorIs(t, err, token.ErrMalformedToken, "payload %s", payload)
		}
	})

	t.Run("rejects unsigned alg none token", func(t *testing.T) {
		t.Parallel()

		codec, err := token.NewCodec(key)
		require.NoError(t, err)

		hdr := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
		payload := base64.RawURLEncoding.EncodeToString([]byte(`{"room":"54321","uuid":"alice"}`))

		_, err = codec.Validate(hdr + "." + payload + ".")
		require.ErrorIs(t, err, token.ErrMalformedToken)
	})
}
