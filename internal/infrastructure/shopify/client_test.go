package shopify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/niveshsaharan/centire-shopify/internal/domain"
	"github.com/niveshsaharan/centire-shopify/internal/ports"
	apperrors "github.com/niveshsaharan/centire-shopify/pkg/errors"

	goshopify "github.com/bold-commerce/go-shopify/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		APIKey:      "api-key",
		APISecret:   "api-secret",
		APIVersion:  "2024-10",
		Scopes:      []string{"read_products", "write_script_tags"},
		RedirectURL: "https://app.test/auth",
	}
}

type stubRecurringCharges struct {
	goshopify.RecurringApplicationChargeService
	created   []goshopify.RecurringApplicationCharge
	activated []uint64
	charge    *goshopify.RecurringApplicationCharge
	err       error
}

func (s *stubRecurringCharges) Create(_ context.Context, charge goshopify.RecurringApplicationCharge) (*goshopify.RecurringApplicationCharge, error) {
	s.created = append(s.created, charge)
	return s.charge, s.err
}

func (s *stubRecurringCharges) Get(context.Context, uint64, interface{}) (*goshopify.RecurringApplicationCharge, error) {
	return s.charge, s.err
}

func (s *stubRecurringCharges) Activate(_ context.Context, charge goshopify.RecurringApplicationCharge) (*goshopify.RecurringApplicationCharge, error) {
	s.activated = append(s.activated, charge.Id)
	return s.charge, s.err
}

type stubOneTimeCharges struct {
	goshopify.ApplicationChargeService
	created []goshopify.ApplicationCharge
	charge  *goshopify.ApplicationCharge
}

func (s *stubOneTimeCharges) Create(_ context.Context, charge goshopify.ApplicationCharge) (*goshopify.ApplicationCharge, error) {
	s.created = append(s.created, charge)
	return s.charge, nil
}

func TestRecurringChargeToDomain(t *testing.T) {
	raw := `{"recurring_application_charge": {
		"id": 1029266947,
		"name": "Pro",
		"status": "accepted",
		"price": "9.99",
		"test": true,
		"trial_days": 7,
		"capped_amount": "100.00",
		"billing_on": "2024-05-01",
		"created_at": "2024-04-24T10:00:00-04:00",
		"confirmation_url": "https://example.myshopify.com/admin/charges/confirm"
	}}`

	var resource goshopify.RecurringApplicationChargeResource
	require.NoError(t, json.Unmarshal([]byte(raw), &resource))
	charge, err := recurringToDomain(resource.Charge)
	require.NoError(t, err)

	assert.Equal(t, uint64(1029266947), charge.ID)
	assert.Equal(t, domain.ChargeStatusAccepted, charge.Status)
	assert.Equal(t, "9.99", charge.Price.StringFixed(2))
	assert.True(t, charge.Test)
	assert.Equal(t, 7, charge.TrialDays)
	require.NotNil(t, charge.CappedAmount)
	assert.Equal(t, "100", charge.CappedAmount.String())
	require.NotNil(t, charge.BillingOn)
	assert.True(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC).Equal(*charge.BillingOn))
	require.NotNil(t, charge.CreatedAt)
	assert.Equal(t, time.Date(2024, 4, 24, 14, 0, 0, 0, time.UTC), *charge.CreatedAt)
	assert.Nil(t, charge.ActivatedOn)
}

func TestRecurringChargeRejectsUnknownStatus(t *testing.T) {
	_, err := recurringToDomain(&goshopify.RecurringApplicationCharge{Status: "refunded"})
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))
}

func TestShopClientRecurringCharges(t *testing.T) {
	price := decimal.RequireFromString("9.99")
	charges := &stubRecurringCharges{charge: &goshopify.RecurringApplicationCharge{Id: 42, Name: "Pro", Price: &price, Status: "active"}}
	client := &shopClient{client: &goshopify.Client{RecurringApplicationCharge: charges}, shop: "example.myshopify.com"}
	ctx := context.Background()

	created, err := client.CreateCharge(ctx, domain.ChargeTypeRecurring, ports.ChargeRequest{Name: "Pro", Price: price, TrialDays: 7, ReturnURL: "https://app.test/billing/process"})
	require.NoError(t, err)
	assert.Equal(t, uint64(42), created.ID)
	require.Len(t, charges.created, 1)
	assert.Nil(t, charges.created[0].Test, "live charges omit the test flag")
	assert.Equal(t, 7, charges.created[0].TrialDays)
	assert.True(t, price.Equal(*charges.created[0].Price))

	activated, err := client.ActivateCharge(ctx, domain.ChargeTypeRecurring, 42)
	require.NoError(t, err)
	assert.Equal(t, domain.ChargeStatusActive, activated.Status)
	assert.Equal(t, []uint64{42}, charges.activated)

	charges.charge = nil
	_, err = client.GetCharge(ctx, domain.ChargeTypeRecurring, 42)
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))

	charges.err = goshopify.ResponseError{Status: 404, Message: "Not Found"}
	_, err = client.GetCharge(ctx, domain.ChargeTypeRecurring, 42)
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))
}

func TestShopClientOneTimeCharge(t *testing.T) {
	price := decimal.NewFromInt(50)
	charges := &stubOneTimeCharges{charge: &goshopify.ApplicationCharge{Id: 7, Price: &price, Status: "pending", ConfirmationURL: "https://example.myshopify.com/confirm"}}
	client := &shopClient{client: &goshopify.Client{ApplicationCharge: charges}, shop: "example.myshopify.com"}

	charge, err := client.CreateCharge(context.Background(), domain.ChargeTypeSingle, ports.ChargeRequest{Name: "Setup", Price: price, Test: true})

	require.NoError(t, err)
	assert.Equal(t, domain.ChargeStatusPending, charge.Status)
	assert.Equal(t, "https://example.myshopify.com/confirm", charge.ConfirmationURL)
	require.Len(t, charges.created, 1)
	require.NotNil(t, charges.created[0].Test)
	assert.True(t, *charges.created[0].Test)
}

func TestShopClientRejectsUnbilledChargeTypes(t *testing.T) {
	client := &shopClient{client: &goshopify.Client{}, shop: "example.myshopify.com"}

	_, err := client.CreateCharge(context.Background(), domain.ChargeTypeUsage, ports.ChargeRequest{})
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))
	_, err = client.GetCharge(context.Background(), domain.ChargeTypeCredit, 1)
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))
}

func TestMapError(t *testing.T) {
	tests := []struct {
		status int
		code   apperrors.Code
	}{
		{404, apperrors.CodeNotFound},
		{401, apperrors.CodeUnauthorized},
		{403, apperrors.CodeUnauthorized},
		{429, apperrors.CodeRateLimit},
		{422, apperrors.CodeValidation},
		{500, apperrors.CodeDependency},
	}
	for _, tt := range tests {
		err := mapError(goshopify.ResponseError{Status: tt.status, Message: "boom"}, "get charge")
		assert.Equal(t, tt.code, apperrors.CodeOf(err), "status %d", tt.status)
	}

	err := mapError(errors.New("dial tcp: timeout"), "graphql request")
	assert.True(t, apperrors.Is(err, apperrors.CodeDependency))
	assert.True(t, apperrors.IsRetryable(err))
}

func TestClientFactoryForShop(t *testing.T) {
	factory := NewClientFactory(testConfig(), NewRateLimiter(zerolog.Nop()), zerolog.Nop())

	client, err := factory.ForShop(&domain.Shop{Domain: "example.myshopify.com", AccessToken: "shpat"})
	require.NoError(t, err)
	assert.Equal(t, ports.RateLimits{}, client.RateLimits())

	_, err = factory.ForShop(&domain.Shop{})
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))
}

func TestOAuthVerifyWebhook(t *testing.T) {
	app := NewOAuthApp(testConfig(), zerolog.Nop())
	body := []byte(`{"id":1}`)
	sign := func(secret string) string {
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write(body)
		return base64.StdEncoding.EncodeToString(mac.Sum(nil))
	}

	assert.True(t, app.VerifyWebhook(body, sign("api-secret"), ""))
	assert.True(t, app.VerifyWebhook(body, sign("private"), "private"))
	assert.False(t, app.VerifyWebhook(body, sign("private"), ""))
	assert.False(t, app.VerifyWebhook(body, "", ""))
	assert.False(t, app.VerifyWebhook(body, "%%%", ""))
}

func TestOAuthVerifyRequest(t *testing.T) {
	app := NewOAuthApp(testConfig(), zerolog.Nop())
	query := url.Values{}
	query.Set("code", "abc")
	query.Set("shop", "example.myshopify.com")
	query.Set("timestamp", "1700000000")

	mac := hmac.New(sha256.New, []byte("api-secret"))
	mac.Write([]byte(query.Encode()))
	query.Set("hmac", hex.EncodeToString(mac.Sum(nil)))

	assert.True(t, app.VerifyRequest(query))

	query.Set("shop", "evil.myshopify.com")
	assert.False(t, app.VerifyRequest(query))

	query.Del("hmac")
	assert.False(t, app.VerifyRequest(query))
}

func TestOAuthAuthorizeURL(t *testing.T) {
	app := NewOAuthApp(testConfig(), zerolog.Nop())

	authURL, err := app.AuthorizeURL("example.myshopify.com")
	require.NoError(t, err)

	parsed, err := url.Parse(authURL)
	require.NoError(t, err)
	assert.Equal(t, "example.myshopify.com", parsed.Host)
	assert.Equal(t, "api-key", parsed.Query().Get("client_id"))
	assert.Empty(t, parsed.Query().Get("state"))
	assert.Equal(t, "read_products,write_script_tags", parsed.Query().Get("scope"))
}
