package shopify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/niveshsaharan/centire-shopify/internal/domain"
	"github.com/niveshsaharan/centire-shopify/internal/ports"
	apperrors "github.com/niveshsaharan/centire-shopify/pkg/errors"

	goshopify "github.com/bold-commerce/go-shopify/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Config holds the app credentials shared by every shop client
type Config struct {
	APIKey      string
	APISecret   string
	APIVersion  string
	Scopes      []string
	RedirectURL string
	Retries     int
}

func (c Config) app() goshopify.App {
	return goshopify.App{
		ApiKey:      c.APIKey,
		ApiSecret:   c.APISecret,
		RedirectUrl: c.RedirectURL,
		Scope:       strings.Join(c.Scopes, ","),
	}
}

// ClientFactory builds per-shop admin API clients
type ClientFactory struct {
	app         goshopify.App
	cfg         Config
	rateLimiter *RateLimiter
	logger      zerolog.Logger
}

// NewClientFactory creates a new Shopify client factory
func NewClientFactory(cfg Config, rateLimiter *RateLimiter, logger zerolog.Logger) *ClientFactory {
	return &ClientFactory{
		app:         cfg.app(),
		cfg:         cfg,
		rateLimiter: rateLimiter,
		logger:      logger,
	}
}

// ForShop creates a client authenticated with the shop's access token
func (f *ClientFactory) ForShop(shop *domain.Shop) (ports.ShopClient, error) {
	if shop == nil || shop.Domain == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "shop domain is required")
	}

	opts := []goshopify.Option{goshopify.WithLogger(&leveledLogger{logger: f.logger})}
	if f.cfg.APIVersion != "" {
		opts = append(opts, goshopify.WithVersion(f.cfg.APIVersion))
	}
	if f.cfg.Retries > 0 {
		opts = append(opts, goshopify.WithRetry(f.cfg.Retries))
	}

	app := f.app
	if shop.IsPrivateApp() {
		app.ApiKey = shop.PrivateAPIKey
		app.ApiSecret = shop.PrivateAPISecret
	}

	client, err := goshopify.NewClient(app, shop.Domain, shop.AccessToken, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &shopClient{
		client:      client,
		shop:        shop.Domain,
		rateLimiter: f.rateLimiter,
		logger:      f.logger.With().Str("shop", shop.Domain).Logger(),
	}, nil
}

type shopClient struct {
	client      *goshopify.Client
	shop        string
	rateLimiter *RateLimiter
	logger      zerolog.Logger
}

func (c *shopClient) wait(ctx context.Context) error {
	if c.rateLimiter == nil {
		return nil
	}
	return c.rateLimiter.Wait(ctx, c.shop)
}

func (c *shopClient) observe() {
	if c.rateLimiter != nil {
		c.rateLimiter.Observe(c.shop, c.RateLimits())
	}
}

// GraphQL runs a query or mutation against the admin GraphQL API
func (c *shopClient) GraphQL(ctx context.Context, query string, vars map[string]any, out any) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	var variables any
	if len(vars) > 0 {
		variables = vars
	}
	err := c.client.GraphQL.Query(ctx, query, variables, out)
	c.observe()
	if err != nil {
		c.logger.Debug().Err(err).Msg("GraphQL request failed")
		return mapError(err, "graphql request")
	}
	return nil
}

func (c *shopClient) RateLimits() ports.RateLimits {
	return ports.RateLimits{
		RequestCount:      c.client.RateLimits.RequestCount,
		BucketSize:        c.client.RateLimits.BucketSize,
		RetryAfterSeconds: c.client.RateLimits.RetryAfterSeconds,
	}
}

// Charge API

func unsupportedCharge(chargeType domain.ChargeType) error {
	return apperrors.New(apperrors.CodeValidation, fmt.Sprintf("charge type %q is not billed through the charge API", chargeType))
}

func (c *shopClient) CreateCharge(ctx context.Context, chargeType domain.ChargeType, req ports.ChargeRequest) (*domain.RemoteCharge, error) {
	price := req.Price
	var test *bool
	if req.Test {
		test = &req.Test
	}

	switch chargeType {
	case domain.ChargeTypeRecurring:
		charge := goshopify.RecurringApplicationCharge{
			Name:         req.Name,
			Price:        &price,
			ReturnURL:    req.ReturnURL,
			TrialDays:    req.TrialDays,
			CappedAmount: req.CappedAmount,
			Terms:        req.Terms,
			Test:         test,
		}
		return chargeCall(ctx, c, "create charge", func() (*goshopify.RecurringApplicationCharge, error) {
			return c.client.RecurringApplicationCharge.Create(ctx, charge)
		}, recurringToDomain)
	case domain.ChargeTypeSingle:
		charge := goshopify.ApplicationCharge{
			Name:      req.Name,
			Price:     &price,
			ReturnURL: req.ReturnURL,
			Test:      test,
		}
		return chargeCall(ctx, c, "create charge", func() (*goshopify.ApplicationCharge, error) {
			return c.client.ApplicationCharge.Create(ctx, charge)
		}, oneTimeToDomain)
	default:
		return nil, unsupportedCharge(chargeType)
	}
}

func (c *shopClient) GetCharge(ctx context.Context, chargeType domain.ChargeType, id uint64) (*domain.RemoteCharge, error) {
	switch chargeType {
	case domain.ChargeTypeRecurring:
		return chargeCall(ctx, c, "get charge", func() (*goshopify.RecurringApplicationCharge, error) {
			return c.client.RecurringApplicationCharge.Get(ctx, id, nil)
		}, recurringToDomain)
	case domain.ChargeTypeSingle:
		return chargeCall(ctx, c, "get charge", func() (*goshopify.ApplicationCharge, error) {
			return c.client.ApplicationCharge.Get(ctx, id, nil)
		}, oneTimeToDomain)
	default:
		return nil, unsupportedCharge(chargeType)
	}
}

func (c *shopClient) ActivateCharge(ctx context.Context, chargeType domain.ChargeType, id uint64) (*domain.RemoteCharge, error) {
	switch chargeType {
	case domain.ChargeTypeRecurring:
		return chargeCall(ctx, c, "activate charge", func() (*goshopify.RecurringApplicationCharge, error) {
			return c.client.RecurringApplicationCharge.Activate(ctx, goshopify.RecurringApplicationCharge{Id: id})
		}, recurringToDomain)
	case domain.ChargeTypeSingle:
		return chargeCall(ctx, c, "activate charge", func() (*goshopify.ApplicationCharge, error) {
			return c.client.ApplicationCharge.Activate(ctx, goshopify.ApplicationCharge{Id: id})
		}, oneTimeToDomain)
	default:
		return nil, unsupportedCharge(chargeType)
	}
}

func chargeCall[T any](ctx context.Context, c *shopClient, action string, call func() (*T, error), convert func(*T) (*domain.RemoteCharge, error)) (*domain.RemoteCharge, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	charge, err := call()
	c.observe()
	if err != nil {
		return nil, mapError(err, action)
	}
	if charge == nil {
		return nil, apperrors.New(apperrors.CodeNotFound, "charge was not found")
	}
	return convert(charge)
}

func recurringToDomain(rc *goshopify.RecurringApplicationCharge) (*domain.RemoteCharge, error) {
	charge := &domain.RemoteCharge{
		ID:              rc.Id,
		Name:            rc.Name,
		TrialDays:       rc.TrialDays,
		ConfirmationURL: rc.ConfirmationURL,
		ReturnURL:       rc.ReturnURL,
		CappedAmount:    rc.CappedAmount,
		Terms:           rc.Terms,
		BillingOn:       utc(rc.BillingOn),
		ActivatedOn:     utc(rc.ActivatedOn),
		TrialEndsOn:     utc(rc.TrialEndsOn),
		CancelledOn:     utc(rc.CancelledOn),
		CreatedAt:       utc(rc.CreatedAt),
	}
	return withCommon(charge, rc.Price, rc.Test, rc.Status)
}

func oneTimeToDomain(ac *goshopify.ApplicationCharge) (*domain.RemoteCharge, error) {
	charge := &domain.RemoteCharge{
		ID:              ac.Id,
		Name:            ac.Name,
		ConfirmationURL: ac.ConfirmationURL,
		ReturnURL:       ac.ReturnURL,
		CreatedAt:       utc(ac.CreatedAt),
	}
	return withCommon(charge, ac.Price, ac.Test, ac.Status)
}

func withCommon(charge *domain.RemoteCharge, price *decimal.Decimal, test *bool, status string) (*domain.RemoteCharge, error) {
	if price != nil {
		charge.Price = *price
	}
	if test != nil {
		charge.Test = *test
	}
	if status != "" {
		parsed, err := domain.ParseChargeStatus(status)
		if err != nil {
			return nil, err
		}
		charge.Status = parsed
	}
	return charge, nil
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	value := t.UTC()
	return &value
}

// mapError translates go-shopify response errors into coded errors
func mapError(err error, action string) error {
	var status interface{ GetStatus() int }
	if errors.As(err, &status) {
		switch code := status.GetStatus(); {
		case code == http.StatusNotFound:
			return apperrors.Wrap(apperrors.CodeNotFound, err, "failed to "+action)
		case code == http.StatusUnauthorized || code == http.StatusForbidden:
			return apperrors.Wrap(apperrors.CodeUnauthorized, err, "failed to "+action)
		case code == http.StatusTooManyRequests:
			return apperrors.Wrap(apperrors.CodeRateLimit, err, "failed to "+action)
		case code == http.StatusUnprocessableEntity:
			return apperrors.Wrap(apperrors.CodeValidation, err, "failed to "+action)
		}
	}
	return apperrors.Wrap(apperrors.CodeDependency, err, "failed to "+action)
}

// leveledLogger routes go-shopify's request logging into zerolog
type leveledLogger struct {
	logger zerolog.Logger
}

func (l *leveledLogger) Debugf(format string, v ...interface{}) { l.logger.Debug().Msgf(format, v...) }
func (l *leveledLogger) Infof(format string, v ...interface{})  { l.logger.Debug().Msgf(format, v...) }
func (l *leveledLogger) Warnf(format string, v ...interface{})  { l.logger.Warn().Msgf(format, v...) }
func (l *leveledLogger) Errorf(format string, v ...interface{}) { l.logger.Error().Msgf(format, v...) }
