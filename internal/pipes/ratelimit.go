package pipes

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter is a token bucket bounding how often file operations may hit
// the filesystem. Tokens refill continuously at maxPerSecond up to the
// burst size. It is safe for concurrent use.
type RateLimiter struct {
	mu           sync.RWMutex
	limiter      *rate.Limiter
	maxPerSecond float64
	burstSize    float64

	// now is replaceable in tests.
	now func() time.Time
}

// NewRateLimiter creates a full bucket. burstSize <= 0 defaults to
// maxPerSecond; the bucket always holds at least one whole token.
func NewRateLimiter(maxPerSecond, burstSize float64) (*RateLimiter, error) {
	if !(maxPerSecond > 0) || math.IsInf(maxPerSecond, 0) {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidRate, maxPerSecond)
	}
	if burstSize <= 0 {
		burstSize = maxPerSecond
	}
	rl := &RateLimiter{
		maxPerSecond: maxPerSecond,
		burstSize:    burstSize,
		now:          time.Now,
	}
	rl.limiter = rl.newBucket()
	return rl, nil
}

// MustRateLimiter is NewRateLimiter for constant arguments; it panics on error.
func MustRateLimiter(maxPerSecond, burstSize float64) *RateLimiter {
	rl, err := NewRateLimiter(maxPerSecond, burstSize)
	if err != nil {
		panic(err)
	}
	return rl
}

func (rl *RateLimiter) newBucket() *rate.Limiter {
	burst := int(math.Floor(rl.burstSize))
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rl.maxPerSecond), burst)
}

func (rl *RateLimiter) bucket() *rate.Limiter {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return rl.limiter
}

// MaxPerSecond returns the refill rate.
func (rl *RateLimiter) MaxPerSecond() float64 {
	return rl.maxPerSecond
}

// BurstSize returns the bucket capacity.
func (rl *RateLimiter) BurstSize() float64 {
	return rl.burstSize
}

// TryAcquire takes one token if available and never blocks.
func (rl *RateLimiter) TryAcquire() bool {
	return rl.bucket().AllowN(rl.now(), 1)
}

// Acquire blocks until a token is available or ctx is done.
// File operations never call it: chain evaluation fails fast instead of waiting.
func (rl *RateLimiter) Acquire(ctx context.Context) error {
	return rl.bucket().Wait(ctx)
}

// AvailableTokens returns the whole tokens currently in the bucket.
func (rl *RateLimiter) AvailableTokens() int {
	tokens := rl.bucket().TokensAt(rl.now())
	if tokens < 0 {
		return 0
	}
	return int(math.Floor(tokens))
}

// Reset refills the bucket and restarts the refill clock.
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.limiter = rl.newBucket()
}

// Drain empties the bucket. Used to simulate exhaustion.
func (rl *RateLimiter) Drain() {
	for rl.TryAcquire() {
	}
}
