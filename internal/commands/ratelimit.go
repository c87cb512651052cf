package commands

import (
	"sync"
	"time"
)

// RateLimitConfig holds trigger rate limiting configuration
type RateLimitConfig struct {
	Enabled         bool `yaml:"enabled"`
	TriggersPerHour int  `yaml:"triggers_per_hour"` // Max triggers per hour (default: 30)
	BurstSize       int  `yaml:"burst_size"`        // Burst allowance (default: 5)
}

// DefaultRateLimitConfig returns default rate limit configuration
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		Enabled:         true,
		TriggersPerHour: 30,
		BurstSize:       5,
	}
}

// RateLimiter implements per-channel token bucket rate limiting for
// trigger commands. A channel that empties its bucket has to wait for the
// hourly rate to refill it.
type RateLimiter struct {
	config  *RateLimitConfig
	buckets map[string]*tokenBucket
	mu      sync.Mutex
}

// tokenBucket tracks the trigger budget for a single channel
type tokenBucket struct {
	tokens     float64
	lastRefill time.Time
	rate       float64 // tokens per second
	maxBurst   int
}

// NewRateLimiter creates a new rate limiter with the given configuration
func NewRateLimiter(config *RateLimitConfig) *RateLimiter {
	if config == nil {
		config = DefaultRateLimitConfig()
	}
	return &RateLimiter{
		config:  config,
		buckets: make(map[string]*tokenBucket),
	}
}

// Allow checks if a trigger is allowed for the given channel.
// Returns true if allowed, false if rate limited.
func (r *RateLimiter) Allow(channel string) bool {
	if !r.config.Enabled {
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	bucket := r.getOrCreateBucket(channel)
	bucket.refill()

	if bucket.tokens >= 1 {
		bucket.tokens--
		return true
	}
	return false
}

// Remaining returns the number of triggers left for a channel, -1 when
// rate limiting is disabled.
func (r *RateLimiter) Remaining(channel string) int {
	if !r.config.Enabled {
		return -1
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	bucket := r.getOrCreateBucket(channel)
	bucket.refill()
	return int(bucket.tokens)
}

// getOrCreateBucket returns the token bucket for a channel, creating if needed
func (r *RateLimiter) getOrCreateBucket(channel string) *tokenBucket {
	bucket, exists := r.buckets[channel]
	if !exists {
		maxBurst := r.config.TriggersPerHour
		if r.config.BurstSize > 0 && r.config.BurstSize < maxBurst {
			maxBurst = r.config.BurstSize
		}

		bucket = &tokenBucket{
			tokens:     float64(maxBurst), // Start with burst capacity
			lastRefill: time.Now(),
			rate:       float64(r.config.TriggersPerHour) / 3600.0, // per second
			maxBurst:   maxBurst,
		}
		r.buckets[channel] = bucket
	}
	return bucket
}

// refill adds tokens based on elapsed time
func (b *tokenBucket) refill() {
	now := time.Now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	b.lastRefill = now

	b.tokens += elapsed * b.rate
	if b.tokens > float64(b.maxBurst) {
		b.tokens = float64(b.maxBurst)
	}
}

// Cleanup removes buckets that haven't been used recently
// Call periodically (e.g., every hour) to prevent memory leaks
func (r *RateLimiter) Cleanup(maxAge time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	for channel, bucket := range r.buckets {
		if bucket.lastRefill.Before(cutoff) {
			delete(r.buckets, channel)
		}
	}
}
