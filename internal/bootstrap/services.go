package bootstrap

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/niveshsaharan/centire-shopify/internal/application"
	"github.com/niveshsaharan/centire-shopify/internal/application/webhook_handlers"
	"github.com/niveshsaharan/centire-shopify/internal/config"
	"github.com/niveshsaharan/centire-shopify/internal/domain"
	"github.com/niveshsaharan/centire-shopify/internal/infrastructure/api"
	"github.com/niveshsaharan/centire-shopify/internal/infrastructure/metrics"
	"github.com/niveshsaharan/centire-shopify/internal/infrastructure/pubsub"
	shopifyinfra "github.com/niveshsaharan/centire-shopify/internal/infrastructure/shopify"
	"github.com/niveshsaharan/centire-shopify/internal/ports"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"
)

// After-authenticate jobs shipped with the app
const (
	JobShopDetails      = "shop_details"
	JobStorefrontTokens = "storefront_tokens"
)

// WebhookLog stores deliveries and lists them back
type WebhookLog interface {
	ports.WebhookEventLog
	api.WebhookHistory
}

// Dependencies are the stores the services run on
type Dependencies struct {
	Shops      ports.ShopRepository
	WebhookLog WebhookLog
	Billing    ports.BillingRepository
	Queue      ports.JobQueue
	Locker     ports.ShopLocker
	Registry   *prometheus.Registry
}

// Services is the wired application shared by the api and worker binaries
type Services struct {
	Config  *config.Config
	Events  *pubsub.ShopEventBus
	Metrics *metrics.Collectors

	Clients *shopifyinfra.ClientFactory
	OAuth   *shopifyinfra.OAuthApp
	Tokens  *shopifyinfra.TokenManager

	APITokens   *application.APITokenService
	Auth        *application.AuthService
	Sessions    *application.ShopSessionManager
	Billing     *application.BillingService
	Credentials *application.CredentialsService
	Webhooks    *application.WebhookService
	Registry    *application.WebhookRegistry
	WebhookSubs *application.WebhookManager
	ScriptTags  *application.ScriptTagManager
	Storefront  *application.StorefrontTokenManager
	Jobs        *application.JobRunner

	deps   Dependencies
	logger zerolog.Logger
}

// Wire builds every service and fails when the configured webhooks or
// after-authenticate jobs have no implementation
func Wire(cfg *config.Config, deps Dependencies, logger zerolog.Logger) (*Services, error) {
	if deps.Registry == nil {
		deps.Registry = prometheus.NewRegistry()
	}

	s := &Services{
		Config:  cfg,
		Events:  pubsub.NewShopEventBus(logger.With().Str("component", "events").Logger()),
		Metrics: metrics.NewCollectors(deps.Registry),
		deps:    deps,
		logger:  logger,
	}

	shopifyCfg := shopifyinfra.Config{
		APIKey:      cfg.Shopify.APIKey,
		APISecret:   cfg.Shopify.APISecret,
		APIVersion:  cfg.Shopify.APIVersion,
		Scopes:      cfg.Shopify.APIScopes,
		RedirectURL: cfg.RedirectURL(),
	}
	s.Clients = shopifyinfra.NewClientFactory(shopifyCfg, shopifyinfra.NewRateLimiter(logger), logger)
	s.OAuth = shopifyinfra.NewOAuthApp(shopifyCfg, logger)
	s.Tokens = shopifyinfra.NewTokenManager(shopifyinfra.TokenManagerConfig{
		APIKey:    cfg.Shopify.APIKey,
		APISecret: cfg.Shopify.APISecret,
		TTL:       cfg.Shopify.SessionTTL,
	}, logger)

	webhooks := []domain.WebhookSpec(cfg.Shopify.Webhooks)
	scriptTags := []domain.ScriptTagSpec(cfg.Shopify.ScriptTags)

	s.APITokens = application.NewAPITokenService(deps.Shops, logger)
	s.Auth = application.NewAuthService(s.OAuth, s.Clients, deps.Shops, deps.Billing, s.APITokens, deps.Queue, application.AuthConfig{
		Scopes:                cfg.Shopify.APIScopes,
		MyshopifyDomain:       cfg.Shopify.MyshopifyDomain,
		ImpersonateKey:        cfg.Shopify.ImpersonateKey,
		AfterAuthenticateJobs: cfg.Shopify.AfterAuthenticateJobs,
	}, logger)
	s.Sessions = application.NewShopSessionManager(deps.Shops, s.Tokens, s.APITokens, logger)

	plan := application.NewBillingPlan(s.Clients, deps.Billing, s.Events, logger)
	s.Billing = application.NewBillingService(plan, deps.Billing, deps.Shops, s.Events, s.Metrics, application.BillingConfig{
		Enabled:         cfg.Shopify.BillingEnabled,
		FreePlanEnabled: cfg.Shopify.BillingFreePlanEnabled,
		ReturnURL:       cfg.BillingReturnURL(),
		MinPrice:        cfg.Shopify.BillingMinPrice,
	}, logger)

	s.Credentials = application.NewCredentialsService(deps.Shops, logger)

	s.Registry = application.NewWebhookRegistry()
	var err error
	err = multierr.Append(err, s.Registry.Register(webhook_handlers.AppUninstalledTopic,
		webhook_handlers.NewAppUninstalledHandler(deps.Shops, deps.Billing, s.Events, logger)))
	err = multierr.Append(err, s.Registry.Register(webhook_handlers.ShopUpdateTopic,
		webhook_handlers.NewShopUpdateHandler(deps.Shops, logger)))
	if err != nil {
		return nil, err
	}
	if err := s.Registry.Validate(webhooks); err != nil {
		return nil, fmt.Errorf("invalid webhook configuration: %w", err)
	}
	s.Webhooks = application.NewWebhookService(s.OAuth, s.Credentials, s.Registry, deps.WebhookLog, deps.Queue, s.Events, webhooks, logger)

	s.WebhookSubs = application.NewWebhookManager(s.Clients, webhooks, s.Metrics, logger)
	s.ScriptTags = application.NewScriptTagManager(s.Clients, scriptTags, s.Metrics, logger)
	s.Storefront = application.NewStorefrontTokenManager(s.Clients, deps.Shops, cfg.Shopify.APIScopes, cfg.Shopify.AppName, s.Metrics, logger)

	s.Jobs = application.NewJobRunner(deps.Queue, deps.Locker, deps.Shops, s.WebhookSubs, s.ScriptTags, s.Storefront, s.Registry, s.Metrics,
		application.JobRunnerConfig{
			LockTTL:     cfg.ReconcileLockTTL,
			MaxAttempts: cfg.WorkerMaxAttempts,
		}, logger)
	if err := s.registerAfterAuthenticate(); err != nil {
		return nil, err
	}
	if err := s.Jobs.ValidateAfterAuthenticate(cfg.Shopify.AfterAuthenticateJobs); err != nil {
		return nil, fmt.Errorf("invalid after authenticate configuration: %w", err)
	}

	return s, nil
}

func (s *Services) registerAfterAuthenticate() error {
	var err error
	err = multierr.Append(err, s.Jobs.RegisterAfterAuthenticate(JobShopDetails, func(ctx context.Context, session *domain.ShopSession) error {
		if err := s.Auth.RefreshShopDetails(ctx, session.Shop); err != nil {
			return err
		}
		if err := s.deps.Shops.Save(ctx, session.Shop); err != nil {
			return fmt.Errorf("failed to save shop details: %w", err)
		}
		return nil
	}))
	err = multierr.Append(err, s.Jobs.RegisterAfterAuthenticate(JobStorefrontTokens, func(ctx context.Context, session *domain.ShopSession) error {
		_, err := s.Storefront.Recreate(ctx, session)
		return err
	}))
	return err
}

// Server builds the HTTP server on top of the services
func (s *Services) Server() *api.Server {
	return api.NewServer(api.RouterConfig{
		AppName:     s.Config.Shopify.AppName,
		AuthPath:    routePath(s.Config.Shopify.APIRedirect),
		BillingPath: strings.TrimSuffix(routePath(s.Config.Shopify.BillingRedirect), "/process"),
		CookieTTL:   s.Config.Shopify.SessionTTL,
		Gatherer:    s.deps.Registry,
	}, api.Services{
		Auth:        s.Auth,
		Sessions:    s.Sessions,
		Billing:     s.Billing,
		Webhooks:    s.Webhooks,
		Credentials: s.Credentials,
		History:     s.deps.WebhookLog,
		Metrics:     s.Metrics,
	}, s.logger)
}

// routePath keeps the path of a configured address, which may be absolute
func routePath(address string) string {
	parsed, err := url.Parse(address)
	if err != nil || parsed.Path == "" {
		return ""
	}
	return parsed.Path
}

// WatchEvents logs and counts shop events until ctx is cancelled
func (s *Services) WatchEvents(ctx context.Context) {
	sub := s.Events.Subscribe(ctx, nil)
	for event := range sub.Events {
		s.Metrics.ObserveShopEvent(string(event.Type))
		s.logger.Info().
			Str("type", string(event.Type)).
			Str("shop", event.Shop).
			Uint64("charge_id", event.ChargeID).
			Str("topic", event.Topic).
			Msg("Shop event")
	}
}
