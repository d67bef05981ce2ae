// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keygate Contributors

package auth_test

import (
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keygate/keygate/internal/auth"
)

var testSecret = []byte("test-signing-secret")

func TestNewTokenCodec(t *testing.T) {
	t.Run("rejects empty secret", func(t *testing.T) {
		_, err := auth.NewTokenCodec(nil, time.Hour)
		assert.Error(t, err)
	})

	t.Run("non-positive ttl falls back to default", func(t *testing.T) {
		codec, err := auth.NewTokenCodec(testSecret, 0)
		require.NoError(t, err)

		now := time.Now()
		token, err := codec.Issue(ulid.Make(), "a@b.com", now)
		require.NoError(t, err)

		claims, err := codec.Verify(token, now.Add(auth.DefaultTokenTTL-time.Minute))
		require.NoError(t, err)
		assert.Equal(t, "a@b.com", claims.Email)
	})
}

func TestTokenCodec_Issue(t *testing.T) {
	codec, err := auth.NewTokenCodec(testSecret, time.Hour)
	require.NoError(t, err)

	t.Run("produces three dot-joined segments", func(t *testing.T) {
		token, err := codec.Issue(ulid.Make(), "a@b.com", time.Now())
		require.NoError(t, err)
		assert.Len(t, strings.Split(token, "."), 3)
	})

	t.Run("roundtrips subject and email", func(t *testing.T) {
		userID := ulid.Make()
		now := time.Now()

		token, err := codec.Issue(userID, "a@b.com", now)
		require.NoError(t, err)

		claims, err := codec.Verify(token, now)
		require.NoError(t, err)
		assert.Equal(t, "a@b.com", claims.Email)

		gotID, err := claims.UserID()
		require.NoError(t, err)
		assert.Equal(t, userID, gotID)
	})
}

func TestTokenCodec_Verify(t *testing.T) {
	now := time.Now()

	t.Run("valid until expiry, expired after", func(t *testing.T) {
		codec, err := auth.NewTokenCodec(testSecret, time.Second)
		require.NoError(t, err)

		token, err := codec.Issue(ulid.Make(), "a@b.com", now)
		require.NoError(t, err)

		_, err = codec.Verify(token, now.Add(500*time.Millisecond))
		assert.NoError(t, err)

		_, err = codec.Verify(token, now.Add(2*time.Second))
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrTokenExpired)
	})

	t.Run("different secret fails signature check", func(t *testing.T) {
		codec, err := auth.NewTokenCodec(testSecret, time.Hour)
		require.NoError(t, err)
		other, err := auth.NewTokenCodec([]byte("another-secret"), time.Hour)
		require.NoError(t, err)

		token, err := codec.Issue(ulid.Make(), "a@b.com", now)
		require.NoError(t, err)

		_, err = other.Verify(token, now)
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrTokenSignature)
	})

	t.Run("tampered payload fails signature check", func(t *testing.T) {
		codec, err := auth.NewTokenCodec(testSecret, time.Hour)
		require.NoError(t, err)

		token, err := codec.Issue(ulid.Make(), "a@b.com", now)
		require.NoError(t, err)

		parts := strings.Split(token, ".")
		require.Len(t, parts, 3)
		// Swap the claims segment for one from a different token.
		otherToken, err := codec.Issue(ulid.Make(), "b@c.com", now)
		require.NoError(t, err)
		tampered := parts[0] + "." + strings.Split(otherToken, ".")[1] + "." + parts[2]

		_, err = codec.Verify(tampered, now)
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrTokenSignature)
	})

	t.Run("garbage is malformed", func(t *testing.T) {
		codec, err := auth.NewTokenCodec(testSecret, time.Hour)
		require.NoError(t, err)

		for _, input := range []string{"", "garbage", "a.b", "a.b.c.d"} {
			_, err = codec.Verify(input, now)
			require.Error(t, err, "input %q", input)
			assert.ErrorIs(t, err, auth.ErrTokenMalformed, "input %q", input)
		}
	})
}
