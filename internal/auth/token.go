// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keygate Contributors

package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// DefaultTokenTTL is how long an issued token stays valid. Expiry is fixed
// at issuance and embedded inside the signed payload, so it cannot be
// extended by tampering.
const DefaultTokenTTL = 24 * time.Hour

// Token verification errors. These stay internal to the service layer;
// callers only ever see ErrUnauthorized.
var (
	ErrTokenMalformed = errors.New("token is malformed")
	ErrTokenSignature = errors.New("token signature is invalid")
	ErrTokenExpired   = errors.New("token has expired")
)

// Claims is the signed payload of an identity token.
type Claims struct {
	jwt.RegisteredClaims

	Email string `json:"email,omitempty"`
}

// UserID parses the token subject as a ULID.
func (c *Claims) UserID() (ulid.ULID, error) {
	id, err := ulid.Parse(c.Subject)
	if err != nil {
		return ulid.ULID{}, oops.Code("TOKEN_BAD_SUBJECT").
			With("subject", c.Subject).
			Wrap(errors.Join(ErrTokenMalformed, err))
	}
	return id, nil
}

// TokenCodec signs and verifies compact identity tokens (JWS compact
// serialization: three base64url segments joined by dots), so any standard
// JWT verifier holding the shared secret can consume them.
//
// Verification is a pure function of (token, secret, now); no external
// state is consulted and there is no grace period on expiry.
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenCodec creates a TokenCodec keyed by the server-held secret.
// The secret is process-wide immutable state, loaded once at startup.
// A non-positive ttl falls back to DefaultTokenTTL.
func NewTokenCodec(secret []byte, ttl time.Duration) (*TokenCodec, error) {
	if len(secret) == 0 {
		return nil, oops.Code("TOKEN_EMPTY_SECRET").Errorf("signing secret cannot be empty")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenCodec{secret: secret, ttl: ttl}, nil
}

// Issue signs a token binding the user's ID and email to an expiry instant
// of now + TTL, using HMAC-SHA-256.
func (c *TokenCodec) Issue(userID ulid.ULID, email string, now time.Time) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
		Email: email,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", oops.Code("TOKEN_SIGN_FAILED").Wrap(err)
	}
	return signed, nil
}

// Verify decodes and validates a token against the shared secret and the
// supplied instant. Failures map onto exactly one of ErrTokenMalformed,
// ErrTokenSignature, or ErrTokenExpired, checked in that order: structural
// decode, signature recomputation (constant-time compare inside the HMAC
// verifier), then expiry.
func (c *TokenCodec) Verify(tokenString string, now time.Time) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, classifyTokenError(err)
	}
	if !token.Valid {
		return nil, oops.Code("TOKEN_SIGNATURE_INVALID").Wrap(ErrTokenSignature)
	}
	return claims, nil
}

// classifyTokenError maps golang-jwt parse errors onto this package's
// token sentinels. Unknown failures are treated as malformed rather than
// leaking library internals upward.
func classifyTokenError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return oops.Code("TOKEN_MALFORMED").Wrap(errors.Join(ErrTokenMalformed, err))
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return oops.Code("TOKEN_SIGNATURE_INVALID").Wrap(errors.Join(ErrTokenSignature, err))
	case errors.Is(err, jwt.ErrTokenExpired):
		return oops.Code("TOKEN_EXPIRED").Wrap(errors.Join(ErrTokenExpired, err))
	default:
		return oops.Code("TOKEN_MALFORMED").Wrap(errors.Join(ErrTokenMalformed, err))
	}
}
