package ports

import (
	"context"
	"net/url"

	"github.com/niveshsaharan/centire-shopify/internal/domain"
	"github.com/shopspring/decimal"
)

// ShopClient defines the Shopify admin API calls made on behalf of one shop
type ShopClient interface {
	// GraphQL runs a query or mutation and decodes the "data" object into out
	GraphQL(ctx context.Context, query string, variables map[string]any, out any) error

	// Billing API
	CreateCharge(ctx context.Context, chargeType domain.ChargeType, req ChargeRequest) (*domain.RemoteCharge, error)
	GetCharge(ctx context.Context, chargeType domain.ChargeType, chargeID uint64) (*domain.RemoteCharge, error)
	ActivateCharge(ctx context.Context, chargeType domain.ChargeType, chargeID uint64) (*domain.RemoteCharge, error)

	// RateLimits reports the counters from the last response
	RateLimits() RateLimits
}

// ChargeRequest is the payload sent to Shopify when creating a charge
type ChargeRequest struct {
	Name         string
	Price        decimal.Decimal
	ReturnURL    string
	TrialDays    int
	Test         bool
	CappedAmount *decimal.Decimal
	Terms        string
}

// RateLimits mirrors Shopify's leaky bucket headers
type RateLimits struct {
	RequestCount      int
	BucketSize        int
	RetryAfterSeconds float64
}

// ShopClientFactory builds an authenticated client for a shop
type ShopClientFactory interface {
	ForShop(shop *domain.Shop) (ShopClient, error)
}

// OAuthApp defines the app-level OAuth and signature operations
type OAuthApp interface {
	AuthorizeURL(shopDomain string) (string, error)
	ExchangeToken(ctx context.Context, shopDomain, code string) (string, error)
	// VerifyRequest checks the hmac parameter of an OAuth or proxy query string
	VerifyRequest(query url.Values) bool
	// VerifyWebhook checks a base64 X-Shopify-Hmac-Sha256 header; an empty secret uses the app secret
	VerifyWebhook(body []byte, hmacHeader, secret string) bool
}

// SessionTokens issues and parses shop session tokens
type SessionTokens interface {
	Issue(shopDomain string, impersonating bool) (string, error)
	Parse(token string) (*domain.SessionClaims, error)
	// ParseAppBridge validates an App Bridge session token and returns its shop domain
	ParseAppBridge(token string) (string, error)
}
