// Package token encodes and decodes the room membership credential as a
// signed compact JWT (HMAC-SHA256).
//
// A credential carries three claims: the room it grants access to, the
// subject it was minted for, and an expiry timestamp. Validity is purely a
// function of the signature and the expiry at validation time; tokens are
// never stored or renewed.
//
// Usage:
//
//	codec, err := token.NewCodec([]byte("signing-secret"))
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	raw, err := codec.Issue("54321", "a1b2c3")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	claims, err := codec.Validate(raw)
//	switch {
//	case errors.Is(err, token.ErrExpiredToken):
//		// credential outlived its horizon
//	case errors.Is(err, token.ErrMalformedToken):
//		// bad structure or signature
//	}
//
// Signature verification uses constant-time comparison. The expiry horizon
// defaults to eight hours and can be changed with WithTTL.
package token
