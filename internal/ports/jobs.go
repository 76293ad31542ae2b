package ports

import (
	"context"
	"time"

	"github.com/niveshsaharan/centire-shopify/internal/domain"
)

// JobQueue defines the background job transport
type JobQueue interface {
	Enqueue(ctx context.Context, job *domain.Job) error
	// Dequeue blocks up to timeout; it returns (nil, nil) when nothing arrived
	Dequeue(ctx context.Context, timeout time.Duration) (*domain.Job, error)
}

// ShopLocker serialises work per shop
type ShopLocker interface {
	// Acquire returns a release func, or ok=false when the lock is already held
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

// EventPublisher fans shop events out to in-process subscribers
type EventPublisher interface {
	Publish(event *domain.ShopEvent)
}

// Metrics records operational counters
type Metrics interface {
	ObserveReconcile(resource string, created, deleted, failed int, duration time.Duration)
	ObserveChargeVerification(outcome string)
	ObserveWebhook(topic string, status int)
	ObserveJob(kind string, outcome string)
	ObserveShopEvent(eventType string)
}
