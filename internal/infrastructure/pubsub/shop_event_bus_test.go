package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/niveshsaharan/centire-shopify/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, sub *Subscription) *domain.ShopEvent {
	t.Helper()
	select {
	case event := <-sub.Events:
		return event
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
		return nil
	}
}

func TestShopEventBusFilters(t *testing.T) {
	bus := NewShopEventBus(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	all := bus.Subscribe(ctx, nil)
	charges := bus.Subscribe(ctx, &EventFilter{Types: []domain.ShopEventType{domain.EventChargeActivated}})
	otherShop := bus.Subscribe(ctx, &EventFilter{Shop: "b.myshopify.com"})

	bus.Publish(domain.NewShopEvent(domain.EventWebhookReceived, "a.myshopify.com"))
	bus.Publish(domain.NewShopEvent(domain.EventChargeActivated, "a.myshopify.com"))

	assert.Equal(t, domain.EventWebhookReceived, receive(t, all).Type)
	assert.Equal(t, domain.EventChargeActivated, receive(t, all).Type)
	assert.Equal(t, domain.EventChargeActivated, receive(t, charges).Type)
	assert.Empty(t, charges.Events)
	assert.Empty(t, otherShop.Events)
}

func TestShopEventBusUnsubscribesOnCancel(t *testing.T) {
	bus := NewShopEventBus(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	sub := bus.Subscribe(ctx, nil)
	assert.Equal(t, 1, bus.Stats()["active_subscriptions"])

	cancel()

	assert.Eventually(t, func() bool {
		return bus.Stats()["active_subscriptions"] == 0
	}, time.Second, 5*time.Millisecond)
	_, open := <-sub.Events
	assert.False(t, open)

	// publishing after everyone left is a no-op
	bus.Publish(domain.NewShopEvent(domain.EventShopUninstalled, "a.myshopify.com"))
}

func TestShopEventBusDropsWhenSubscriberIsFull(t *testing.T) {
	bus := NewShopEventBus(zerolog.Nop())
	sub := bus.Subscribe(context.Background(), nil)

	for i := 0; i < subscriberBuffer+5; i++ {
		bus.Publish(domain.NewShopEvent(domain.EventWebhookReceived, "a.myshopify.com"))
	}

	require.Len(t, sub.Events, subscriberBuffer)
	bus.Unsubscribe(sub.ID)
	bus.Unsubscribe(sub.ID)
}
