package application

import (
	"context"
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/niveshsaharan/centire-shopify/internal/domain"
	"github.com/niveshsaharan/centire-shopify/internal/ports"
	apperrors "github.com/niveshsaharan/centire-shopify/pkg/errors"

	"github.com/rs/zerolog"
)

const apiTokenLength = 60

// APITokenService manages the internal API token each shop carries
type APITokenService struct {
	shops  ports.ShopRepository
	logger zerolog.Logger
}

// NewAPITokenService creates a new API token service
func NewAPITokenService(shops ports.ShopRepository, logger zerolog.Logger) *APITokenService {
	return &APITokenService{
		shops:  shops,
		logger: logger,
	}
}

// GenerateAPIToken builds a 60 character token: random hex, md5 of the shop id, random hex
func GenerateAPIToken(shopID string) (string, error) {
	head := make([]byte, 7)
	tail := make([]byte, 7)
	if _, err := rand.Read(head); err != nil {
		return "", fmt.Errorf("failed to generate api token: %w", err)
	}
	if _, err := rand.Read(tail); err != nil {
		return "", fmt.Errorf("failed to generate api token: %w", err)
	}

	sum := md5.Sum([]byte(shopID))
	token := hex.EncodeToString(head) + hex.EncodeToString(sum[:]) + hex.EncodeToString(tail)
	if len(token) > apiTokenLength {
		token = token[:apiTokenLength]
	}
	return token, nil
}

// Assign sets a token on the shop when it has none, or always when force is set.
// It reports whether the token changed; the caller saves the shop.
func (s *APITokenService) Assign(shop *domain.Shop, force bool) (bool, error) {
	if shop.APIToken != "" && !force {
		return false, nil
	}
	token, err := GenerateAPIToken(shop.ID)
	if err != nil {
		return false, err
	}
	shop.APIToken = token
	return true, nil
}

// Ensure assigns and saves a token when the shop has none
func (s *APITokenService) Ensure(ctx context.Context, shop *domain.Shop) error {
	changed, err := s.Assign(shop, false)
	if err != nil || !changed {
		return err
	}
	if err := s.shops.Save(ctx, shop); err != nil {
		s.logger.Error().Err(err).Str("shop", shop.Domain).Msg("Failed to save api token")
		return fmt.Errorf("failed to save api token: %w", err)
	}
	s.logger.Info().Str("shop", shop.Domain).Msg("Created api token")
	return nil
}

// ShopForToken resolves a shop from its API token
func (s *APITokenService) ShopForToken(ctx context.Context, token string) (*domain.Shop, error) {
	if len(token) != apiTokenLength {
		return nil, apperrors.New(apperrors.CodeUnauthorized, "invalid api token")
	}

	shop, err := s.shops.FindByAPIToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to get shop by api token: %w", err)
	}
	if shop == nil {
		return nil, apperrors.New(apperrors.CodeUnauthorized, "invalid api token")
	}
	return shop, nil
}
