package api

import (
	"context"
	"net/url"

	"github.com/niveshsaharan/centire-shopify/internal/application"
	"github.com/niveshsaharan/centire-shopify/internal/domain"
	apperrors "github.com/niveshsaharan/centire-shopify/pkg/errors"
)

type stubAuth struct {
	beginFn       func(shop string) (string, error)
	completeFn    func(ctx context.Context, query url.Values) (*domain.Shop, error)
	impersonateFn func(ctx context.Context, shop, code string) (*domain.Shop, error)
}

func (s *stubAuth) SanitizeShop(raw string) string {
	return domain.SanitizeShopDomain(raw, "")
}

func (s *stubAuth) BeginInstall(shop string) (string, error) {
	if s.beginFn != nil {
		return s.beginFn(shop)
	}
	return "https://" + shop + "/admin/oauth/authorize", nil
}

func (s *stubAuth) CompleteInstall(ctx context.Context, query url.Values) (*domain.Shop, error) {
	if s.completeFn != nil {
		return s.completeFn(ctx, query)
	}
	return nil, apperrors.New(apperrors.CodeUnauthorized, "invalid request signature")
}

func (s *stubAuth) Impersonate(ctx context.Context, shop, code string) (*domain.Shop, error) {
	if s.impersonateFn != nil {
		return s.impersonateFn(ctx, shop, code)
	}
	return nil, apperrors.New(apperrors.CodeUnauthorized, "invalid impersonation key")
}

type stubSessions struct {
	shops    map[string]*domain.Shop
	resolved []application.SessionCredentials
	logins   []bool
}

func (s *stubSessions) Login(ctx context.Context, shop *domain.Shop, impersonating bool) (*domain.ShopSession, string, error) {
	s.logins = append(s.logins, impersonating)
	session := domain.NewShopSession(shop)
	session.Impersonating = impersonating
	return session, "token-" + shop.Domain, nil
}

func (s *stubSessions) Resolve(ctx context.Context, creds application.SessionCredentials) (*domain.ShopSession, error) {
	s.resolved = append(s.resolved, creds)
	key := creds.APIToken
	if key == "" {
		key = creds.Cookie
	}
	if key == "" {
		key = creds.Bearer
	}
	if key == "" {
		return nil, nil
	}
	shop, ok := s.shops[key]
	if !ok {
		return nil, apperrors.New(apperrors.CodeUnauthorized, "unknown shop")
	}
	return domain.NewShopSession(shop), nil
}

type stubBilling struct {
	enabled      bool
	verification application.Verification
	processed    []uint64
	confirmURL   string
	confirmErr   error
	paymentErr   error
}

func (s *stubBilling) Enabled() bool { return s.enabled }

func (s *stubBilling) ConfirmationURL(ctx context.Context, session *domain.ShopSession) (string, error) {
	return s.confirmURL, s.confirmErr
}

func (s *stubBilling) VerifyCharge(ctx context.Context, session *domain.ShopSession) application.Verification {
	return s.verification
}

func (s *stubBilling) Process(ctx context.Context, session *domain.ShopSession, chargeID uint64) application.Verification {
	s.processed = append(s.processed, chargeID)
	return s.verification
}

func (s *stubBilling) RequirePayment(session *domain.ShopSession) error {
	return s.paymentErr
}

type stubWebhooks struct {
	verifyErr  error
	receiveErr error
	received   []*domain.WebhookEvent
}

func (s *stubWebhooks) Verify(ctx context.Context, shopDomain string, body []byte, hmacHeader string) error {
	return s.verifyErr
}

func (s *stubWebhooks) Receive(ctx context.Context, event *domain.WebhookEvent) error {
	s.received = append(s.received, event)
	return s.receiveErr
}

type stubCredentials struct {
	inputs  []*application.PrivateAppInput
	deleted []string
}

func (s *stubCredentials) ConfigurePrivateApp(ctx context.Context, shopDomain string, input *application.PrivateAppInput) (*domain.Shop, error) {
	s.inputs = append(s.inputs, input)
	if input.APIKey == "" || input.APISecret == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "api key and api secret are required")
	}
	return &domain.Shop{Domain: shopDomain, PrivateAPIKey: input.APIKey, PrivateAPISecret: input.APISecret}, nil
}

func (s *stubCredentials) DeleteCredentials(ctx context.Context, shopDomain string) error {
	s.deleted = append(s.deleted, shopDomain)
	return nil
}

type stubHistory struct {
	events []*domain.WebhookEvent
	limits []int64
}

func (s *stubHistory) RecentWebhooks(ctx context.Context, shopDomain string, limit int64) ([]*domain.WebhookEvent, error) {
	s.limits = append(s.limits, limit)
	return s.events, nil
}

type webhookObservation struct {
	topic  string
	status int
}

type stubMetrics struct {
	observed []webhookObservation
}

func (s *stubMetrics) ObserveWebhook(topic string, status int) {
	s.observed = append(s.observed, webhookObservation{topic: topic, status: status})
}
