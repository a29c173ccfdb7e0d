// Package limiter is the admission gate in front of request handling:
// a token bucket for sustained rate plus a semaphore capping in-flight
// requests.
package limiter

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/nh3bh3/cuthttp/internal/server/config"
	"github.com/nh3bh3/cuthttp/internal/server/fserr"
)

// graceWait bounds how long an admitted-by-rate request may wait for a
// concurrency slot before being rejected, trading a little latency for
// fewer spurious 429s.
const graceWait = 100 * time.Millisecond

type Limiter struct {
	bucket *rate.Limiter
	sem    *semaphore.Weighted
}

func New(c config.RateLimit) *Limiter {
	rps := c.Rps
	burst := c.Burst
	if rps <= 0 {
		// unlimited
		rps = 1_000_000_000
		burst = rps
	}
	if burst <= 0 {
		burst = rps
	}
	maxConcurrent := c.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1 << 30
	}

	return &Limiter{
		bucket: rate.NewLimiter(rate.Limit(rps), burst),
		sem:    semaphore.NewWeighted(int64(maxConcurrent)),
	}
}

// Admit consumes one token and one concurrency slot. The returned
// error is RateLimited or TooManyConcurrent; on nil the caller must
// Release exactly once.
func (l *Limiter) Admit(ctx context.Context) error {
	if !l.bucket.Allow() {
		return fserr.New(fserr.KindRateLimited, "rate limit exceeded")
	}

	if l.sem.TryAcquire(1) {
		return nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, graceWait)
	defer cancel()
	if err := l.sem.Acquire(waitCtx, 1); err != nil {
		return fserr.New(fserr.KindTooManyConcurrent, "too many concurrent requests")
	}
	return nil
}

func (l *Limiter) Release() {
	l.sem.Release(1)
}
