package shopify

import (
	"context"
	"sync"
	"time"

	"github.com/niveshsaharan/centire-shopify/internal/ports"
	apperrors "github.com/niveshsaharan/centire-shopify/pkg/errors"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	// Shopify's REST bucket leaks two requests per second
	defaultRatePerSecond = 2
	defaultBurst         = 40
	// slow down once the bucket is this full
	throttleThreshold = 0.8
)

// RateLimiter keeps one token bucket per shop so a busy shop cannot starve the rest
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
	logger   zerolog.Logger
}

// NewRateLimiter creates a new per-shop rate limiter
func NewRateLimiter(logger zerolog.Logger) *RateLimiter {
	return NewRateLimiterWith(defaultRatePerSecond, defaultBurst, logger)
}

// NewRateLimiterWith creates a limiter with an explicit rate and burst
func NewRateLimiterWith(perSecond float64, burst int, logger zerolog.Logger) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(perSecond),
		burst:    burst,
		logger:   logger,
	}
}

func (r *RateLimiter) limiter(shop string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.limiters[shop]
	if !ok {
		l = rate.NewLimiter(r.limit, r.burst)
		r.limiters[shop] = l
	}
	return l
}

// Wait blocks until the shop may issue another request
func (r *RateLimiter) Wait(ctx context.Context, shop string) error {
	if err := r.limiter(shop).Wait(ctx); err != nil {
		return apperrors.Wrap(apperrors.CodeRateLimit, err, "rate limit wait aborted")
	}
	return nil
}

// Observe adjusts the shop's bucket from the limits Shopify reported
func (r *RateLimiter) Observe(shop string, limits ports.RateLimits) {
	l := r.limiter(shop)

	if limits.RetryAfterSeconds > 0 {
		delay := time.Duration(limits.RetryAfterSeconds * float64(time.Second))
		r.logger.Warn().
			Str("shop", shop).
			Dur("retryAfter", delay).
			Msg("Shopify throttled request")
		// drain the bucket so the next caller waits out the retry window
		l.ReserveN(time.Now(), r.burst)
		return
	}

	if limits.BucketSize > 0 && float64(limits.RequestCount) >= float64(limits.BucketSize)*throttleThreshold {
		r.logger.Debug().
			Str("shop", shop).
			Int("requestCount", limits.RequestCount).
			Int("bucketSize", limits.BucketSize).
			Msg("Shopify bucket nearly full")
		l.ReserveN(time.Now(), 1)
	}
}

// Forget drops the bucket kept for a shop
func (r *RateLimiter) Forget(shop string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.limiters, shop)
}
