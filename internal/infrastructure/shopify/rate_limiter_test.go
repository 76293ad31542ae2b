package shopify

import (
	"context"
	"testing"
	"time"

	"github.com/niveshsaharan/centire-shopify/internal/ports"
	apperrors "github.com/niveshsaharan/centire-shopify/pkg/errors"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterKeepsShopsApart(t *testing.T) {
	limiter := NewRateLimiterWith(1, 1, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, limiter.Wait(ctx, "a.myshopify.com"))
	// a different shop has its own full bucket
	require.NoError(t, limiter.Wait(ctx, "b.myshopify.com"))

	short, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	err := limiter.Wait(short, "a.myshopify.com")
	assert.True(t, apperrors.Is(err, apperrors.CodeRateLimit))
}

func TestRateLimiterObserveRetryAfterDrainsBucket(t *testing.T) {
	limiter := NewRateLimiterWith(1, 5, zerolog.Nop())

	limiter.Observe("a.myshopify.com", ports.RateLimits{RetryAfterSeconds: 2})

	short, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, limiter.Wait(short, "a.myshopify.com"))

	limiter.Forget("a.myshopify.com")
	assert.NoError(t, limiter.Wait(context.Background(), "a.myshopify.com"))
}
