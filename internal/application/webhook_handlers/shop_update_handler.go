package webhook_handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/niveshsaharan/centire-shopify/internal/domain"
	"github.com/niveshsaharan/centire-shopify/internal/ports"

	"github.com/rs/zerolog"
)

// ShopUpdateTopic is sent whenever the merchant changes shop settings
const ShopUpdateTopic = "shop/update"

// ShopUpdateHandler keeps the stored shop details in sync
type ShopUpdateHandler struct {
	shops  ports.ShopRepository
	logger zerolog.Logger
}

// NewShopUpdateHandler creates a new shop update webhook handler
func NewShopUpdateHandler(shops ports.ShopRepository, logger zerolog.Logger) *ShopUpdateHandler {
	return &ShopUpdateHandler{
		shops:  shops,
		logger: logger,
	}
}

// Handle copies the REST shop payload onto the stored details
func (h *ShopUpdateHandler) Handle(ctx context.Context, session *domain.ShopSession, event *domain.WebhookEvent) error {
	var details domain.ShopDetails
	if err := json.Unmarshal(event.Payload, &details); err != nil {
		return fmt.Errorf("failed to parse shop update webhook payload: %w", err)
	}

	shop := session.Shop
	// the payload carries no GraphQL id
	details.GID = shop.Details.GID
	shop.Details = details

	if err := h.shops.Save(ctx, shop); err != nil {
		return fmt.Errorf("failed to save shop details: %w", err)
	}

	h.logger.Info().
		Str("topic", event.Topic).
		Str("shop", shop.Domain).
		Str("plan", details.PlanName).
		Msg("Shop details updated")
	return nil
}
