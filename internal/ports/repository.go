package ports

import (
	"context"
	"time"

	"github.com/niveshsaharan/centire-shopify/internal/domain"
)

// ShopRepository defines the interface for shop persistence.
// Lookups return (nil, nil) when no shop matches.
type ShopRepository interface {
	FindByDomain(ctx context.Context, shopDomain string, withTrashed bool) (*domain.Shop, error)
	FindByAPIToken(ctx context.Context, apiToken string) (*domain.Shop, error)
	// FirstOrCreate returns the shop for the domain, trashed or not, creating it when missing
	FirstOrCreate(ctx context.Context, shopDomain string) (*domain.Shop, error)
	Save(ctx context.Context, shop *domain.Shop) error
}

// WebhookEventLog records every verified webhook delivery
type WebhookEventLog interface {
	LogWebhook(ctx context.Context, event *domain.WebhookEvent) error
}

// BillingRepository defines the interface for the billing ledger
type BillingRepository interface {
	ActivePlans(ctx context.Context) ([]domain.Plan, error)
	LatestActiveDiscount(ctx context.Context, shopID, planID string) (*domain.Discount, error)
	IsTester(ctx context.Context, shopDomain string) (bool, error)

	// LatestCharge returns the most recent recurring or one-time charge, cancelled included
	LatestCharge(ctx context.Context, shopID string) (*domain.Charge, error)
	// CurrentCharge returns the latest charge that has not been cancelled
	CurrentCharge(ctx context.Context, shopID string) (*domain.Charge, error)
	FindCharge(ctx context.Context, shopID string, chargeID uint64) (*domain.Charge, error)

	// CreatePendingCharge cancels every prior charge of the shop and stores the new one in one transaction
	CreatePendingCharge(ctx context.Context, charge *domain.Charge, now time.Time) error
	SaveCharge(ctx context.Context, charge *domain.Charge) error
	// ActivateCharge saves the charge and cancels every other open charge of the shop in one transaction
	ActivateCharge(ctx context.Context, charge *domain.Charge, now time.Time) error
	// CancelCharges cancels and soft deletes every open charge of the shop
	CancelCharges(ctx context.Context, shopID string, now time.Time) error
	RestoreCharges(ctx context.Context, shopID string) error
}
