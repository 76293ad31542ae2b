package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/niveshsaharan/centire-shopify/internal/domain"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
)

// Config is the process configuration read from the environment
type Config struct {
	AppURL string `envconfig:"APP_URL" default:"http://localhost:8080"`
	Port   string `envconfig:"PORT" default:"8080"`

	Log LogConfig `envconfig:"LOG"`

	MongoURI      string `envconfig:"MONGODB_URI" default:"mongodb://localhost:27017"`
	MongoDatabase string `envconfig:"MONGODB_DATABASE" default:"shopify_app"`
	DatabaseURL   string `envconfig:"DATABASE_URL"`
	RedisURL      string `envconfig:"REDIS_URL" default:"redis://localhost:6379/0"`

	Shopify ShopifyConfig `envconfig:"SHOPIFY"`

	ReconcileLockTTL  time.Duration `envconfig:"RECONCILE_LOCK_TTL" default:"5m"`
	WorkerMaxAttempts int           `envconfig:"WORKER_MAX_ATTEMPTS" default:"5"`
}

type LogConfig struct {
	Level  string `envconfig:"LEVEL" default:"info"`
	Format string `envconfig:"FORMAT" default:"json"`
}

// ShopifyConfig holds the app credentials and the desired per-shop resources
type ShopifyConfig struct {
	APIKey      string   `envconfig:"API_KEY"`
	APISecret   string   `envconfig:"API_SECRET"`
	APIVersion  string   `envconfig:"API_VERSION" default:"2024-10"`
	APIScopes   []string `envconfig:"API_SCOPES" default:"read_products"`
	APIRedirect string   `envconfig:"API_REDIRECT" default:"/auth"`

	AppName         string `envconfig:"APP_NAME" default:"Shopify App"`
	AppSlug         string `envconfig:"APP_SLUG"`
	MyshopifyDomain string `envconfig:"MYSHOPIFY_DOMAIN" default:"myshopify.com"`

	BillingEnabled         bool            `envconfig:"BILLING_ENABLED" default:"false"`
	BillingFreePlanEnabled bool            `envconfig:"BILLING_FREE_PLAN_ENABLED" default:"false"`
	BillingRedirect        string          `envconfig:"BILLING_REDIRECT" default:"/billing/process"`
	BillingMinPrice        decimal.Decimal `envconfig:"BILLING_MIN_PRICE" default:"0"`

	Webhooks              WebhookList   `envconfig:"WEBHOOKS"`
	ScriptTags            ScriptTagList `envconfig:"SCRIPT_TAGS"`
	AfterAuthenticateJobs []string      `envconfig:"AFTER_AUTHENTICATE_JOBS"`

	ImpersonateKey string        `envconfig:"IMPERSONATE_KEY"`
	SessionTTL     time.Duration `envconfig:"SESSION_TTL" default:"24h"`
}

// Load reads the environment and resolves relative addresses against APP_URL
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}
	cfg.resolve()
	return &cfg, nil
}

func (c *Config) resolve() {
	c.AppURL = strings.TrimRight(c.AppURL, "/")
	for i := range c.Shopify.Webhooks {
		c.Shopify.Webhooks[i].Address = SecureURL(c.ResolveURL(c.Shopify.Webhooks[i].Address))
	}
	for i := range c.Shopify.ScriptTags {
		c.Shopify.ScriptTags[i].Src = SecureURL(c.ResolveURL(c.Shopify.ScriptTags[i].Src))
	}
}

// Validate fails fast on configuration the app cannot run without
func (c *Config) Validate() error {
	var err error
	if c.Shopify.APIKey == "" {
		err = multierr.Append(err, fmt.Errorf("SHOPIFY_API_KEY is required"))
	}
	if c.Shopify.APISecret == "" {
		err = multierr.Append(err, fmt.Errorf("SHOPIFY_API_SECRET is required"))
	}
	if _, parseErr := url.ParseRequestURI(c.AppURL); parseErr != nil {
		err = multierr.Append(err, fmt.Errorf("APP_URL is not a valid url: %w", parseErr))
	}
	if c.Shopify.BillingMinPrice.IsNegative() {
		err = multierr.Append(err, fmt.Errorf("SHOPIFY_BILLING_MIN_PRICE cannot be negative"))
	}
	if c.WorkerMaxAttempts < 1 {
		err = multierr.Append(err, fmt.Errorf("WORKER_MAX_ATTEMPTS must be at least 1"))
	}
	return err
}

// ResolveURL makes a relative path absolute against APP_URL
func (c *Config) ResolveURL(address string) string {
	address = strings.TrimSpace(address)
	if address == "" || strings.Contains(address, "://") {
		return address
	}
	return c.AppURL + "/" + strings.TrimLeft(address, "/")
}

// RedirectURL is the OAuth callback Shopify sends the merchant back to
func (c *Config) RedirectURL() string {
	return c.ResolveURL(c.Shopify.APIRedirect)
}

// BillingReturnURL is where Shopify returns after a charge is confirmed
func (c *Config) BillingReturnURL() string {
	return c.ResolveURL(c.Shopify.BillingRedirect)
}

// SecureURL upgrades http:// to https://, which Shopify requires for callbacks
func SecureURL(address string) string {
	if strings.HasPrefix(strings.ToLower(address), "http://") {
		return "https://" + address[len("http://"):]
	}
	return address
}

// WebhookList decodes "topic=address,topic=address"
type WebhookList []domain.WebhookSpec

func (l *WebhookList) Decode(value string) error {
	var specs WebhookList
	for _, entry := range strings.Split(value, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		topic, address, ok := strings.Cut(entry, "=")
		topic, address = strings.TrimSpace(topic), strings.TrimSpace(address)
		if !ok || topic == "" || address == "" {
			return fmt.Errorf("invalid webhook %q, expected topic=address", entry)
		}
		specs = append(specs, domain.WebhookSpec{Topic: topic, Address: address})
	}
	*l = specs
	return nil
}

// ScriptTagList decodes "src|event|display_scope,..."; event and display scope are optional
type ScriptTagList []domain.ScriptTagSpec

func (l *ScriptTagList) Decode(value string) error {
	var specs ScriptTagList
	for _, entry := range strings.Split(value, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, "|")
		if len(parts) > 3 || strings.TrimSpace(parts[0]) == "" {
			return fmt.Errorf("invalid script tag %q, expected src|event|display_scope", entry)
		}
		spec := domain.ScriptTagSpec{Src: strings.TrimSpace(parts[0]), Event: "onload"}
		if len(parts) > 1 && strings.TrimSpace(parts[1]) != "" {
			spec.Event = strings.TrimSpace(parts[1])
		}
		if len(parts) > 2 {
			spec.DisplayScope = strings.TrimSpace(parts[2])
		}
		specs = append(specs, spec)
	}
	*l = specs
	return nil
}
