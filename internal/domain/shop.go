package domain

import (
	"net/url"
	"regexp"
	"strings"
	"time"
)

// DefaultMyshopifyDomain is the suffix Shopify assigns to every shop.
const DefaultMyshopifyDomain = "myshopify.com"

// Shop represents one installed Shopify store
type Shop struct {
	ID              string      `json:"id"`
	Domain          string      `json:"shopify_domain"`
	AccessToken     string      `json:"-"`
	Scopes          []string    `json:"shopify_scopes"`
	StorefrontToken string      `json:"-"`
	APIToken        string      `json:"-"`
	ChargeID        uint64      `json:"charge_id,omitempty"`
	Grandfathered   bool        `json:"grandfathered"`
	Active          bool        `json:"status"`
	Details         ShopDetails `json:"details"`

	// Private apps carry their own credentials instead of the app-wide ones.
	PrivateAPIKey    string `json:"-"`
	PrivateAPISecret string `json:"-"`

	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// ShopDetails is the descriptive shop data refreshed from Shopify
type ShopDetails struct {
	GID                     string `json:"gid,omitempty"`
	Name                    string `json:"name,omitempty"`
	Email                   string `json:"email,omitempty"`
	CustomerEmail           string `json:"customer_email,omitempty"`
	ShopOwner               string `json:"shop_owner,omitempty"`
	PrimaryDomain           string `json:"domain,omitempty"`
	City                    string `json:"city,omitempty"`
	Province                string `json:"province,omitempty"`
	Country                 string `json:"country,omitempty"`
	CountryCode             string `json:"country_code,omitempty"`
	Currency                string `json:"currency,omitempty"`
	MoneyFormat             string `json:"money_format,omitempty"`
	MoneyWithCurrencyFormat string `json:"money_with_currency_format,omitempty"`
	IANATimezone            string `json:"iana_timezone,omitempty"`
	PlanName                string `json:"plan_name,omitempty"`
	PlanDisplayName         string `json:"plan_display_name,omitempty"`
}

// HasScope reports whether the shop was granted the given OAuth scope
func (s *Shop) HasScope(scope string) bool {
	for _, granted := range s.Scopes {
		if granted == scope {
			return true
		}
	}
	return false
}

// HasScopes reports whether every scope is granted
func (s *Shop) HasScopes(scopes ...string) bool {
	for _, scope := range scopes {
		if !s.HasScope(scope) {
			return false
		}
	}
	return true
}

func (s *Shop) IsPaid() bool          { return s.ChargeID != 0 }
func (s *Shop) IsGrandfathered() bool { return s.Grandfathered }
func (s *Shop) IsActive() bool        { return s.Active }
func (s *Shop) IsTrashed() bool       { return s.DeletedAt != nil }

func (s *Shop) IsPrivateApp() bool {
	return s.PrivateAPIKey != "" && s.PrivateAPISecret != ""
}

// SoftDelete marks the shop uninstalled and drops every credential it held
func (s *Shop) SoftDelete(at time.Time) {
	s.AccessToken = ""
	s.StorefrontToken = ""
	s.ChargeID = 0
	s.Active = false
	s.DeletedAt = &at
}

func (s *Shop) Restore() {
	s.DeletedAt = nil
}

var schemePattern = regexp.MustCompile(`(?i)https?://`)

// SanitizeShopDomain normalises user input into a bare shop host.
// "example" becomes "example.myshopify.com"; schemes and paths are dropped.
func SanitizeShopDomain(raw, myshopifyDomain string) string {
	if myshopifyDomain == "" {
		myshopifyDomain = DefaultMyshopifyDomain
	}

	shop := strings.TrimSpace(raw)
	if shop == "" {
		return ""
	}
	shop = schemePattern.ReplaceAllString(shop, "")

	if !strings.Contains(shop, myshopifyDomain) && !strings.Contains(shop, ".") {
		shop = shop + "." + myshopifyDomain
	}

	parsed, err := url.Parse("http://" + shop)
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Hostname())
}

// ParseScopes splits a comma separated scope list, dropping blanks
func ParseScopes(raw string) []string {
	var scopes []string
	for _, part := range strings.Split(raw, ",") {
		if scope := strings.TrimSpace(part); scope != "" {
			scopes = append(scopes, scope)
		}
	}
	return scopes
}
