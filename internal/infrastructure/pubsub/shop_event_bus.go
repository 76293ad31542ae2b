package pubsub

import (
	"context"
	"fmt"
	"sync"

	"github.com/niveshsaharan/centire-shopify/internal/domain"

	"github.com/rs/zerolog"
)

const subscriberBuffer = 32

// Subscription receives the shop events matching its filter
type Subscription struct {
	ID     string
	Filter *EventFilter
	Events chan *domain.ShopEvent
	ctx    context.Context
	cancel context.CancelFunc
}

// EventFilter narrows a subscription; empty fields match everything
type EventFilter struct {
	Types []domain.ShopEventType
	Shop  string
}

// ShopEventBus fans shop events out to in-process subscribers
type ShopEventBus struct {
	mu            sync.RWMutex
	subscriptions map[string]*Subscription
	nextID        int64
	logger        zerolog.Logger
}

// NewShopEventBus creates a new shop event bus
func NewShopEventBus(logger zerolog.Logger) *ShopEventBus {
	return &ShopEventBus{
		subscriptions: make(map[string]*Subscription),
		logger:        logger,
	}
}

// Subscribe registers a subscription that lives until ctx is cancelled
func (b *ShopEventBus) Subscribe(ctx context.Context, filter *EventFilter) *Subscription {
	subCtx, cancel := context.WithCancel(ctx)

	b.mu.Lock()
	b.nextID++
	sub := &Subscription{
		ID:     fmt.Sprintf("subscription-%d", b.nextID),
		Filter: filter,
		Events: make(chan *domain.ShopEvent, subscriberBuffer),
		ctx:    subCtx,
		cancel: cancel,
	}
	b.subscriptions[sub.ID] = sub
	b.mu.Unlock()

	b.logger.Debug().
		Str("subscriptionId", sub.ID).
		Msg("Shop event subscription created")

	go func() {
		<-subCtx.Done()
		b.Unsubscribe(sub.ID)
	}()

	return sub
}

// Unsubscribe removes a subscription and closes its channel
func (b *ShopEventBus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, ok := b.subscriptions[id]
	if !ok {
		return
	}
	delete(b.subscriptions, id)
	sub.cancel()
	close(sub.Events)
}

// Publish delivers the event to every matching subscriber without blocking
func (b *ShopEventBus) Publish(event *domain.ShopEvent) {
	if event == nil {
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	delivered := 0
	for _, sub := range b.subscriptions {
		if !sub.Filter.matches(event) {
			continue
		}
		select {
		case sub.Events <- event:
			delivered++
		default:
			b.logger.Warn().
				Str("subscriptionId", sub.ID).
				Str("type", string(event.Type)).
				Msg("Subscriber buffer full, dropping event")
		}
	}

	b.logger.Debug().
		Str("type", string(event.Type)).
		Str("shop", event.Shop).
		Int("subscribers", delivered).
		Msg("Published shop event")
}

// Stats returns the number of live subscriptions
func (b *ShopEventBus) Stats() map[string]interface{} {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return map[string]interface{}{
		"active_subscriptions": len(b.subscriptions),
	}
}

func (f *EventFilter) matches(event *domain.ShopEvent) bool {
	if f == nil {
		return true
	}
	if len(f.Types) > 0 {
		found := false
		for _, t := range f.Types {
			if t == event.Type {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return f.Shop == "" || f.Shop == event.Shop
}
