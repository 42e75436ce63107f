package ocr

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter is the blocking token-bucket the pipeline threads through to every
// hosted recognition call. One instance is shared per process; acquisition
// blocks until the minimum inter-call interval has elapsed.
type Limiter interface {
	Wait(ctx context.Context) error
}

// NewCallLimiter builds a limiter that spaces calls at least minInterval
// apart, with no burst allowance beyond the first call.
func NewCallLimiter(minInterval time.Duration) *rate.Limiter {
	if minInterval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(minInterval), 1)
}

// UnlimitedLimiter never blocks; tests and the local engine use it.
type UnlimitedLimiter struct{}

func (UnlimitedLimiter) Wait(ctx context.Context) error { return ctx.Err() }
