// Package ratelimit provides a keyed token-bucket limiter for outbound
// requests. The remote client keeps one bucket per backend endpoint so a
// burst of sync traffic cannot starve the channel listing call.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// KeyedLimiter manages independent token buckets per key.
type KeyedLimiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// New creates a keyed limiter. Every key gets its own bucket refilled at
// rps tokens per second with the given burst capacity.
func New(rps float64, burst int) *KeyedLimiter {
	return &KeyedLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(rps),
		burst:    burst,
	}
}

// Allow reports whether a request for the key may proceed right now.
func (kl *KeyedLimiter) Allow(key string) bool {
	return kl.bucket(key).Allow()
}

// Wait blocks until a request for the key is allowed or ctx is canceled.
func (kl *KeyedLimiter) Wait(ctx context.Context, key string) error {
	return kl.bucket(key).Wait(ctx)
}

func (kl *KeyedLimiter) bucket(key string) *rate.Limiter {
	kl.mu.RLock()
	limiter, ok := kl.limiters[key]
	kl.mu.RUnlock()
	if ok {
		return limiter
	}

	kl.mu.Lock()
	defer kl.mu.Unlock()
	if limiter, ok = kl.limiters[key]; ok {
		return limiter
	}
	limiter = rate.NewLimiter(kl.limit, kl.burst)
	kl.limiters[key] = limiter
	return limiter
}
