package webhook_handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/niveshsaharan/centire-shopify/internal/domain"
	"github.com/niveshsaharan/centire-shopify/internal/ports"

	"github.com/rs/zerolog"
)

// AppUninstalledTopic is the webhook Shopify sends when a merchant removes the app
const AppUninstalledTopic = "app/uninstalled"

// AppUninstalledHandler handles app uninstalled webhook events
type AppUninstalledHandler struct {
	shops   ports.ShopRepository
	billing ports.BillingRepository
	events  ports.EventPublisher
	now     func() time.Time
	logger  zerolog.Logger
}

// NewAppUninstalledHandler creates a new app uninstalled webhook handler
func NewAppUninstalledHandler(
	shops ports.ShopRepository,
	billing ports.BillingRepository,
	events ports.EventPublisher,
	logger zerolog.Logger,
) *AppUninstalledHandler {
	return &AppUninstalledHandler{
		shops:   shops,
		billing: billing,
		events:  events,
		now:     time.Now,
		logger:  logger,
	}
}

// Handle soft deletes the shop, drops its tokens and cancels its charges.
// The shop record is kept so a reinstall can restore it.
func (h *AppUninstalledHandler) Handle(ctx context.Context, session *domain.ShopSession, event *domain.WebhookEvent) error {
	shop := session.Shop
	if shop.IsTrashed() {
		h.logger.Info().Str("shop", shop.Domain).Msg("Shop already uninstalled")
		return nil
	}

	now := h.now().UTC()
	if err := h.billing.CancelCharges(ctx, shop.ID, now); err != nil {
		return fmt.Errorf("failed to cancel charges: %w", err)
	}

	shop.SoftDelete(now)
	if err := h.shops.Save(ctx, shop); err != nil {
		return fmt.Errorf("failed to uninstall shop: %w", err)
	}

	h.logger.Info().
		Str("topic", event.Topic).
		Str("shop", shop.Domain).
		Msg("App uninstalled - cleanup completed")

	if h.events != nil {
		h.events.Publish(domain.NewShopEvent(domain.EventShopUninstalled, shop.Domain))
	}
	return nil
}
