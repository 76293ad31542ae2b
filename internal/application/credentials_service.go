package application

import (
	"context"
	"fmt"

	"github.com/niveshsaharan/centire-shopify/internal/domain"
	"github.com/niveshsaharan/centire-shopify/internal/ports"
	apperrors "github.com/niveshsaharan/centire-shopify/pkg/errors"

	"github.com/rs/zerolog"
)

// CredentialsService manages per-shop private app credentials
type CredentialsService struct {
	shops  ports.ShopRepository
	logger zerolog.Logger
}

// NewCredentialsService creates a new credentials service
func NewCredentialsService(shops ports.ShopRepository, logger zerolog.Logger) *CredentialsService {
	return &CredentialsService{
		shops:  shops,
		logger: logger,
	}
}

// PrivateAppInput represents the credentials of a private app
type PrivateAppInput struct {
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`
}

func (s *CredentialsService) loadShop(ctx context.Context, shopDomain string) (*domain.Shop, error) {
	shop, err := s.shops.FindByDomain(ctx, shopDomain, false)
	if err != nil {
		return nil, fmt.Errorf("failed to load shop: %w", err)
	}
	if shop == nil {
		return nil, apperrors.New(apperrors.CodeNotFound, fmt.Sprintf("shop %s not found", shopDomain))
	}
	return shop, nil
}

// ConfigurePrivateApp stores private app credentials on the shop
func (s *CredentialsService) ConfigurePrivateApp(ctx context.Context, shopDomain string, input *PrivateAppInput) (*domain.Shop, error) {
	if input == nil || input.APIKey == "" || input.APISecret == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "api key and api secret are required")
	}

	shop, err := s.loadShop(ctx, shopDomain)
	if err != nil {
		return nil, err
	}

	shop.PrivateAPIKey = input.APIKey
	shop.PrivateAPISecret = input.APISecret
	if err := s.shops.Save(ctx, shop); err != nil {
		return nil, fmt.Errorf("failed to save private app credentials: %w", err)
	}

	s.logger.Info().Str("shop", shopDomain).Msg("Private app credentials saved successfully")
	return shop, nil
}

// DeleteCredentials drops the private app credentials; the shop falls back to the app ones
func (s *CredentialsService) DeleteCredentials(ctx context.Context, shopDomain string) error {
	shop, err := s.loadShop(ctx, shopDomain)
	if err != nil {
		return err
	}
	if !shop.IsPrivateApp() {
		return nil
	}

	shop.PrivateAPIKey = ""
	shop.PrivateAPISecret = ""
	if err := s.shops.Save(ctx, shop); err != nil {
		s.logger.Error().Err(err).Str("shop", shopDomain).Msg("Failed to delete private app credentials")
		return fmt.Errorf("failed to delete private app credentials: %w", err)
	}

	s.logger.Info().Str("shop", shopDomain).Msg("Private app credentials deleted successfully")
	return nil
}

// WebhookSecret returns the secret webhooks from this shop are signed with.
// An empty string means the app-wide secret.
func (s *CredentialsService) WebhookSecret(ctx context.Context, shopDomain string) (string, error) {
	shop, err := s.shops.FindByDomain(ctx, shopDomain, true)
	if err != nil {
		return "", fmt.Errorf("failed to load shop: %w", err)
	}
	if shop == nil || !shop.IsPrivateApp() {
		return "", nil
	}
	return shop.PrivateAPISecret, nil
}
