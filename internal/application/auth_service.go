package application

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/url"
	"time"

	"github.com/niveshsaharan/centire-shopify/internal/domain"
	"github.com/niveshsaharan/centire-shopify/internal/ports"
	apperrors "github.com/niveshsaharan/centire-shopify/pkg/errors"

	"github.com/rs/zerolog"
)

// AuthConfig controls the OAuth install flow
type AuthConfig struct {
	Scopes                []string
	MyshopifyDomain       string
	ImpersonateKey        string
	AfterAuthenticateJobs []string
}

// AuthService implements the install, re-auth and impersonation flows
type AuthService struct {
	oauth     ports.OAuthApp
	clients   ports.ShopClientFactory
	shops     ports.ShopRepository
	billing   ports.BillingRepository
	apiTokens *APITokenService
	queue     ports.JobQueue
	cfg       AuthConfig
	now       func() time.Time
	logger    zerolog.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(
	oauth ports.OAuthApp,
	clients ports.ShopClientFactory,
	shops ports.ShopRepository,
	billing ports.BillingRepository,
	apiTokens *APITokenService,
	queue ports.JobQueue,
	cfg AuthConfig,
	logger zerolog.Logger,
) *AuthService {
	return &AuthService{
		oauth:     oauth,
		clients:   clients,
		shops:     shops,
		billing:   billing,
		apiTokens: apiTokens,
		queue:     queue,
		cfg:       cfg,
		now:       time.Now,
		logger:    logger,
	}
}

// SanitizeShop normalises a shop parameter with the configured myshopify domain
func (s *AuthService) SanitizeShop(raw string) string {
	return domain.SanitizeShopDomain(raw, s.cfg.MyshopifyDomain)
}

// BeginInstall returns the Shopify authorize URL for the shop
func (s *AuthService) BeginInstall(shopParam string) (string, error) {
	shopDomain := s.SanitizeShop(shopParam)
	if shopDomain == "" {
		return "", apperrors.New(apperrors.CodeValidation, "invalid shop domain")
	}

	authURL, err := s.oauth.AuthorizeURL(shopDomain)
	if err != nil {
		s.logger.Error().Err(err).Str("shop", shopDomain).Msg("Failed to generate auth URL")
		return "", fmt.Errorf("failed to generate auth URL: %w", err)
	}

	s.logger.Info().
		Str("shop", shopDomain).
		Strs("scopes", s.cfg.Scopes).
		Msg("Generated OAuth authorization URL")

	return authURL, nil
}

// CompleteInstall handles the OAuth callback: it verifies the request, stores the
// access token and kicks off resource installation for the shop. The callback is
// trusted on its HMAC signature alone; no state is issued by BeginInstall.
func (s *AuthService) CompleteInstall(ctx context.Context, query url.Values) (*domain.Shop, error) {
	shopDomain := s.SanitizeShop(query.Get("shop"))
	if shopDomain == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "invalid shop domain")
	}
	if !s.oauth.VerifyRequest(query) {
		return nil, apperrors.New(apperrors.CodeUnauthorized, "invalid request signature")
	}
	code := query.Get("code")
	if code == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "missing authorization code")
	}

	accessToken, err := s.oauth.ExchangeToken(ctx, shopDomain, code)
	if err != nil {
		s.logger.Error().Err(err).Str("shop", shopDomain).Msg("Failed to exchange token")
		return nil, transportError(err, "exchange token")
	}

	shop, err := s.shops.FirstOrCreate(ctx, shopDomain)
	if err != nil {
		return nil, fmt.Errorf("failed to load shop: %w", err)
	}

	if shop.IsTrashed() {
		shop.Restore()
		if err := s.billing.RestoreCharges(ctx, shop.ID); err != nil {
			return nil, fmt.Errorf("failed to restore charges: %w", err)
		}
		s.logger.Info().Str("shop", shopDomain).Msg("Restored uninstalled shop")
	}

	if _, err := s.apiTokens.Assign(shop, true); err != nil {
		return nil, err
	}
	shop.AccessToken = accessToken
	shop.Scopes = append([]string(nil), s.cfg.Scopes...)
	if err := s.shops.Save(ctx, shop); err != nil {
		s.logger.Error().Err(err).Str("shop", shopDomain).Msg("Failed to save shop")
		return nil, fmt.Errorf("failed to save shop: %w", err)
	}

	s.enqueue(ctx, shop, domain.JobWebhooksInstaller, "")
	s.enqueue(ctx, shop, domain.JobScriptTagsInstaller, "")
	s.enqueue(ctx, shop, domain.JobStorefrontTokensInstaller, "")

	if !shop.IsActive() {
		if err := s.RefreshShopDetails(ctx, shop); err != nil {
			s.logger.Warn().Err(err).Str("shop", shopDomain).Msg("Failed to refresh shop details")
		}
		shop.Active = true
		if err := s.shops.Save(ctx, shop); err != nil {
			return nil, fmt.Errorf("failed to activate shop: %w", err)
		}
		for _, name := range s.cfg.AfterAuthenticateJobs {
			s.enqueue(ctx, shop, domain.JobAfterAuthenticate, name)
		}
	}

	s.logger.Info().Str("shop", shopDomain).Msg("Shop authenticated")
	return shop, nil
}

// Impersonate logs into an installed shop with the shared impersonation key
func (s *AuthService) Impersonate(ctx context.Context, shopParam, code string) (*domain.Shop, error) {
	if s.cfg.ImpersonateKey == "" || subtle.ConstantTimeCompare([]byte(code), []byte(s.cfg.ImpersonateKey)) != 1 {
		return nil, apperrors.New(apperrors.CodeUnauthorized, "invalid impersonation key")
	}

	shopDomain := s.SanitizeShop(shopParam)
	shop, err := s.shops.FindByDomain(ctx, shopDomain, false)
	if err != nil {
		return nil, fmt.Errorf("failed to load shop: %w", err)
	}
	if shop == nil {
		return nil, apperrors.New(apperrors.CodeNotFound, fmt.Sprintf("shop %s not found", shopDomain))
	}

	if err := s.apiTokens.Ensure(ctx, shop); err != nil {
		return nil, err
	}

	s.logger.Warn().Str("shop", shopDomain).Msg("Shop impersonated")
	return shop, nil
}

const shopDetailsQuery = `query shopDetails {
  shop {
    id
    name
    email
    contactEmail
    shopOwnerName
    currencyCode
    ianaTimezone
    primaryDomain { host }
    plan { displayName }
    billingAddress { city province country countryCodeV2 }
    currencyFormats { moneyFormat moneyWithCurrencyFormat }
  }
}`

// RefreshShopDetails copies the shop's descriptive data from Shopify
func (s *AuthService) RefreshShopDetails(ctx context.Context, shop *domain.Shop) error {
	client, err := clientForSession(s.clients, domain.NewShopSession(shop))
	if err != nil {
		return err
	}

	var response struct {
		Shop struct {
			ID            string `json:"id"`
			Name          string `json:"name"`
			Email         string `json:"email"`
			ContactEmail  string `json:"contactEmail"`
			ShopOwnerName string `json:"shopOwnerName"`
			CurrencyCode  string `json:"currencyCode"`
			IANATimezone  string `json:"ianaTimezone"`
			PrimaryDomain struct {
				Host string `json:"host"`
			} `json:"primaryDomain"`
			Plan struct {
				DisplayName string `json:"displayName"`
			} `json:"plan"`
			BillingAddress struct {
				City          string `json:"city"`
				Province      string `json:"province"`
				Country       string `json:"country"`
				CountryCodeV2 string `json:"countryCodeV2"`
			} `json:"billingAddress"`
			CurrencyFormats struct {
				MoneyFormat             string `json:"moneyFormat"`
				MoneyWithCurrencyFormat string `json:"moneyWithCurrencyFormat"`
			} `json:"currencyFormats"`
		} `json:"shop"`
	}
	if err := client.GraphQL(ctx, shopDetailsQuery, nil, &response); err != nil {
		return transportError(err, "query shop details")
	}

	remote := response.Shop
	shop.Details = domain.ShopDetails{
		GID:                     remote.ID,
		Name:                    remote.Name,
		Email:                   remote.Email,
		CustomerEmail:           remote.ContactEmail,
		ShopOwner:               remote.ShopOwnerName,
		PrimaryDomain:           remote.PrimaryDomain.Host,
		City:                    remote.BillingAddress.City,
		Province:                remote.BillingAddress.Province,
		Country:                 remote.BillingAddress.Country,
		CountryCode:             remote.BillingAddress.CountryCodeV2,
		Currency:                remote.CurrencyCode,
		MoneyFormat:             remote.CurrencyFormats.MoneyFormat,
		MoneyWithCurrencyFormat: remote.CurrencyFormats.MoneyWithCurrencyFormat,
		IANATimezone:            remote.IANATimezone,
		PlanName:                remote.Plan.DisplayName,
		PlanDisplayName:         remote.Plan.DisplayName,
	}
	return nil
}

func (s *AuthService) enqueue(ctx context.Context, shop *domain.Shop, kind domain.JobKind, name string) {
	job := domain.NewJob(kind, shop.Domain, name, nil)
	if err := s.queue.Enqueue(ctx, job); err != nil {
		s.logger.Error().Err(err).Strs("tags", job.Tags()).Msg("Failed to enqueue job")
	}
}
