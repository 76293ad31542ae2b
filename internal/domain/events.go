package domain

import "time"

// WebhookEvent represents a verified webhook delivery from Shopify
type WebhookEvent struct {
	ID         string    `json:"id"`
	Topic      string    `json:"topic"`
	Shop       string    `json:"shop"`
	WebhookID  string    `json:"webhookId,omitempty"`
	APIVersion string    `json:"apiVersion,omitempty"`
	Payload    []byte    `json:"payload"`
	ReceivedAt time.Time `json:"receivedAt"`
}

type ShopEventType string

const (
	EventChargeCreated   ShopEventType = "charge.created"
	EventChargeActivated ShopEventType = "charge.activated"
	EventWebhookReceived ShopEventType = "webhook.received"
	EventShopUninstalled ShopEventType = "shop.uninstalled"
)

// ShopEvent is published on the in-process bus when shop state changes
type ShopEvent struct {
	Type       ShopEventType `json:"type"`
	Shop       string        `json:"shop"`
	ChargeID   uint64        `json:"chargeId,omitempty"`
	Topic      string        `json:"topic,omitempty"`
	OccurredAt time.Time     `json:"occurredAt"`
}

// NewShopEvent stamps an event with the current time
func NewShopEvent(eventType ShopEventType, shop string) *ShopEvent {
	return &ShopEvent{Type: eventType, Shop: shop, OccurredAt: time.Now().UTC()}
}
