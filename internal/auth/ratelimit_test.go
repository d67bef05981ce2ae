// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keygate Contributors

package auth

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRateLimiter(t *testing.T) {
	t.Run("creates limiter with default values", func(t *testing.T) {
		rl := NewRateLimiter(RateLimiterConfig{})
		defer rl.Close()

		assert.Equal(t, DefaultBurstCapacity, rl.burstCapacity)
		assert.Equal(t, DefaultSustainedRate, rl.sustainedRate)
	})

	t.Run("creates limiter with custom values", func(t *testing.T) {
		rl := NewRateLimiter(RateLimiterConfig{
			BurstCapacity: 20,
			SustainedRate: 5.0,
		})
		defer rl.Close()

		assert.Equal(t, 20, rl.burstCapacity)
		assert.Equal(t, 5.0, rl.sustainedRate)
	})

	t.Run("non-positive burst capacity uses default", func(t *testing.T) {
		rl := NewRateLimiter(RateLimiterConfig{BurstCapacity: -5})
		defer rl.Close()

		assert.Equal(t, DefaultBurstCapacity, rl.burstCapacity)
	})

	t.Run("non-positive sustained rate uses default", func(t *testing.T) {
		rl := NewRateLimiter(RateLimiterConfig{SustainedRate: -1.0})
		defer rl.Close()

		assert.Equal(t, DefaultSustainedRate, rl.sustainedRate)
	})
}

func TestRateLimiter_Allow(t *testing.T) {
	t.Run("allows attempts up to burst capacity", func(t *testing.T) {
		rl := NewRateLimiter(RateLimiterConfig{
			BurstCapacity: 3,
			SustainedRate: 1.0,
		})
		defer rl.Close()

		for i := 0; i < 3; i++ {
			allowed, retryAfter := rl.Allow("198.51.100.7")
			assert.True(t, allowed, "attempt %d should be allowed", i+1)
			assert.Equal(t, time.Duration(0), retryAfter)
		}

		allowed, retryAfter := rl.Allow("198.51.100.7")
		assert.False(t, allowed)
		assert.Greater(t, retryAfter, time.Duration(0))
	})

	t.Run("returns correct retry-after", func(t *testing.T) {
		rl := NewRateLimiter(RateLimiterConfig{
			BurstCapacity: 1,
			SustainedRate: 2.0, // 2 tokens/second = 500ms per token
		})
		defer rl.Close()

		allowed, _ := rl.Allow("client")
		require.True(t, allowed)

		allowed, retryAfter := rl.Allow("client")
		assert.False(t, allowed)
		assert.InDelta(t, 500, float64(retryAfter.Milliseconds()), 50)
	})

	t.Run("different clients have independent limits", func(t *testing.T) {
		rl := NewRateLimiter(RateLimiterConfig{
			BurstCapacity: 1,
			SustainedRate: 1.0,
		})
		defer rl.Close()

		allowed, _ := rl.Allow("client-a")
		require.True(t, allowed)

		allowed, _ = rl.Allow("client-a")
		assert.False(t, allowed)

		allowed, _ = rl.Allow("client-b")
		assert.True(t, allowed)
	})

	t.Run("tokens refill over time", func(t *testing.T) {
		rl := NewRateLimiter(RateLimiterConfig{
			BurstCapacity: 1,
			SustainedRate: 20.0, // 50ms per token
		})
		defer rl.Close()

		allowed, _ := rl.Allow("client")
		require.True(t, allowed)

		allowed, _ = rl.Allow("client")
		require.False(t, allowed)

		time.Sleep(100 * time.Millisecond)

		allowed, _ = rl.Allow("client")
		assert.True(t, allowed)
	})
}

func TestRateLimiter_Cleanup(t *testing.T) {
	t.Run("removes stale clients", func(t *testing.T) {
		rl := NewRateLimiter(RateLimiterConfig{})
		defer rl.Close()

		rl.Allow("client-a")
		rl.Allow("client-b")
		require.Equal(t, 2, rl.ClientCount())

		time.Sleep(20 * time.Millisecond)
		rl.Cleanup(10 * time.Millisecond)

		assert.Equal(t, 0, rl.ClientCount())
	})

	t.Run("keeps recently seen clients", func(t *testing.T) {
		rl := NewRateLimiter(RateLimiterConfig{})
		defer rl.Close()

		rl.Allow("client-a")
		rl.Cleanup(time.Hour)

		assert.Equal(t, 1, rl.ClientCount())
	})
}

func TestRateLimiter_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	rl := NewRateLimiterWithRegistry(RateLimiterConfig{}, reg)
	defer rl.Close()

	rl.Allow("client-a")
	rl.Allow("client-b")
	rl.Cleanup(time.Hour)

	families, err := reg.Gather()
	require.NoError(t, err)

	var found bool
	for _, mf := range families {
		if mf.GetName() == "keygate_ratelimiter_clients" {
			found = true
			require.Len(t, mf.GetMetric(), 1)
			assert.Equal(t, 2.0, mf.GetMetric()[0].GetGauge().GetValue())
		}
	}
	assert.True(t, found, "gauge should be registered")
}
