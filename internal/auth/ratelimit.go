// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keygate Contributors

package auth

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Default rate limiting values for credential endpoints.
const (
	// DefaultBurstCapacity is the maximum number of attempts a client can
	// make in a burst before rate limiting kicks in.
	DefaultBurstCapacity = 10

	// DefaultSustainedRate is the number of attempts per second allowed as
	// sustained rate (token refill rate).
	DefaultSustainedRate = 1.0

	// MinBurstCapacity ensures burst capacity is at least 1.
	MinBurstCapacity = 1

	// MinSustainedRate ensures sustained rate is at least 0.1 tokens/second.
	MinSustainedRate = 0.1

	// DefaultCleanupInterval is the interval at which the background goroutine
	// runs to clean up stale clients.
	DefaultCleanupInterval = 5 * time.Minute

	// DefaultClientMaxAge is the default maximum age for a client bucket
	// before it is considered stale and eligible for cleanup.
	DefaultClientMaxAge = time.Hour
)

// RateLimiterConfig configures the rate limiter.
type RateLimiterConfig struct {
	// BurstCapacity is the maximum number of attempts allowed in a burst.
	// Defaults to DefaultBurstCapacity (10) if zero or negative.
	BurstCapacity int

	// SustainedRate is the number of attempts per second allowed as
	// sustained rate. Defaults to DefaultSustainedRate (1.0) if zero or
	// negative.
	SustainedRate float64

	// CleanupInterval is the interval at which background cleanup runs.
	// Defaults to DefaultCleanupInterval (5 minutes) if zero.
	CleanupInterval time.Duration

	// ClientMaxAge is the maximum age for a client bucket before cleanup
	// removes it. Defaults to DefaultClientMaxAge (1 hour) if zero.
	ClientMaxAge time.Duration
}

// clientBucket tracks rate limiting state for a single client key using the
// token bucket algorithm.
type clientBucket struct {
	tokens    float64
	lastCheck time.Time
}

// RateLimiter throttles credential attempts per client key (typically the
// remote address) using a token bucket algorithm. It is safe for concurrent
// use.
//
// The RateLimiter runs a background goroutine to periodically clean up stale
// clients. Call Close() to stop the goroutine and release resources.
type RateLimiter struct {
	mu            sync.Mutex
	clients       map[string]*clientBucket
	burstCapacity int
	sustainedRate float64 // tokens per second
	clientMaxAge  time.Duration

	// Background cleanup
	stopChan chan struct{}
	wg       sync.WaitGroup

	// Metrics gauge for client count (nil if no registry provided)
	clientGauge prometheus.Gauge
}

// NewRateLimiter creates a new rate limiter with the given configuration.
// It starts a background goroutine for cleanup. Call Close() to stop it.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	return newRateLimiter(cfg, nil)
}

// NewRateLimiterWithRegistry creates a new rate limiter and registers a
// client count gauge with the provided Prometheus registry.
// It starts a background goroutine for cleanup. Call Close() to stop it.
func NewRateLimiterWithRegistry(cfg RateLimiterConfig, reg prometheus.Registerer) *RateLimiter {
	return newRateLimiter(cfg, reg)
}

func newRateLimiter(cfg RateLimiterConfig, reg prometheus.Registerer) *RateLimiter {
	burstCapacity := cfg.BurstCapacity
	if burstCapacity <= 0 {
		burstCapacity = DefaultBurstCapacity
	}
	if burstCapacity < MinBurstCapacity {
		burstCapacity = MinBurstCapacity
	}

	sustainedRate := cfg.SustainedRate
	if sustainedRate <= 0 {
		sustainedRate = DefaultSustainedRate
	}
	if sustainedRate < MinSustainedRate {
		sustainedRate = MinSustainedRate
	}

	cleanupInterval := cfg.CleanupInterval
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}

	clientMaxAge := cfg.ClientMaxAge
	if clientMaxAge <= 0 {
		clientMaxAge = DefaultClientMaxAge
	}

	rl := &RateLimiter{
		clients:       make(map[string]*clientBucket),
		burstCapacity: burstCapacity,
		sustainedRate: sustainedRate,
		clientMaxAge:  clientMaxAge,
		stopChan:      make(chan struct{}),
	}

	if reg != nil {
		rl.clientGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "keygate_ratelimiter_clients",
			Help: "Current number of tracked rate limiter clients",
		})
		reg.MustRegister(rl.clientGauge)
	}

	rl.wg.Add(1)
	go rl.cleanupLoop(cleanupInterval)

	return rl
}

// Allow checks if an attempt is allowed for the given client key.
// Returns (allowed, retryAfter) where:
//   - allowed: true if the attempt should proceed
//   - retryAfter: time until the next token is available (0 if allowed)
//
// Each call to Allow consumes one token if available. Tokens refill at the
// sustained rate, up to the burst capacity.
func (rl *RateLimiter) Allow(clientKey string) (allowed bool, retryAfter time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()

	bucket, exists := rl.clients[clientKey]
	if !exists {
		// New client starts with full bucket
		bucket = &clientBucket{
			tokens:    float64(rl.burstCapacity),
			lastCheck: now,
		}
		rl.clients[clientKey] = bucket
	}

	// Refill tokens based on elapsed time
	elapsed := now.Sub(bucket.lastCheck).Seconds()
	bucket.tokens += elapsed * rl.sustainedRate
	if bucket.tokens > float64(rl.burstCapacity) {
		bucket.tokens = float64(rl.burstCapacity)
	}
	bucket.lastCheck = now

	if bucket.tokens >= 1.0 {
		bucket.tokens -= 1.0
		return true, 0
	}

	// Time until the next token becomes available
	deficit := 1.0 - bucket.tokens
	retryAfter = time.Duration(deficit / rl.sustainedRate * float64(time.Second))

	return false, retryAfter
}

// ClientCount returns the number of tracked clients. Useful for testing and
// monitoring.
func (rl *RateLimiter) ClientCount() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// Cleanup removes clients that haven't been seen since maxAge ago.
// This is called automatically by the background goroutine, but can also
// be called manually if immediate cleanup is desired.
func (rl *RateLimiter) Cleanup(maxAge time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	threshold := time.Now().Add(-maxAge)
	for clientKey, bucket := range rl.clients {
		if bucket.lastCheck.Before(threshold) {
			delete(rl.clients, clientKey)
		}
	}

	if rl.clientGauge != nil {
		rl.clientGauge.Set(float64(len(rl.clients)))
	}
}

// cleanupLoop runs periodic cleanup in the background.
func (rl *RateLimiter) cleanupLoop(interval time.Duration) {
	defer rl.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopChan:
			return
		case <-ticker.C:
			rl.Cleanup(rl.clientMaxAge)
		}
	}
}

// Close stops the background cleanup goroutine and releases resources.
// It blocks until the goroutine has stopped.
func (rl *RateLimiter) Close() {
	close(rl.stopChan)
	rl.wg.Wait()
}
