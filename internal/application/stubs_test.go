package application

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"
	"time"

	"github.com/niveshsaharan/centire-shopify/internal/domain"
	"github.com/niveshsaharan/centire-shopify/internal/ports"
)

type graphqlCall struct {
	query string
	vars  map[string]any
}

type stubShopClient struct {
	graphql  func(query string, vars map[string]any) (string, error)
	create   func(chargeType domain.ChargeType, req ports.ChargeRequest) (*domain.RemoteCharge, error)
	get      func(chargeType domain.ChargeType, id uint64) (*domain.RemoteCharge, error)
	activate func(chargeType domain.ChargeType, id uint64) (*domain.RemoteCharge, error)

	mu    sync.Mutex
	calls []graphqlCall
	gets  int
}

func (c *stubShopClient) GraphQL(_ context.Context, query string, vars map[string]any, out any) error {
	c.mu.Lock()
	c.calls = append(c.calls, graphqlCall{query: query, vars: vars})
	c.mu.Unlock()

	data, err := c.graphql(query, vars)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(data), out)
}

func (c *stubShopClient) CreateCharge(_ context.Context, chargeType domain.ChargeType, req ports.ChargeRequest) (*domain.RemoteCharge, error) {
	return c.create(chargeType, req)
}

func (c *stubShopClient) GetCharge(_ context.Context, chargeType domain.ChargeType, id uint64) (*domain.RemoteCharge, error) {
	c.mu.Lock()
	c.gets++
	c.mu.Unlock()
	return c.get(chargeType, id)
}

func (c *stubShopClient) ActivateCharge(_ context.Context, chargeType domain.ChargeType, id uint64) (*domain.RemoteCharge, error) {
	return c.activate(chargeType, id)
}

func (c *stubShopClient) RateLimits() ports.RateLimits { return ports.RateLimits{} }

func (c *stubShopClient) mutations() []graphqlCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []graphqlCall
	for _, call := range c.calls {
		if len(call.query) >= 8 && call.query[:8] == "mutation" {
			out = append(out, call)
		}
	}
	return out
}

func (c *stubShopClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

type stubClientFactory struct {
	client *stubShopClient
	built  int
}

func (f *stubClientFactory) ForShop(*domain.Shop) (ports.ShopClient, error) {
	f.built++
	return f.client, nil
}

type stubShopRepo struct {
	mu     sync.Mutex
	shops  map[string]*domain.Shop
	saves  int
	nextID int
}

func newStubShopRepo(shops ...*domain.Shop) *stubShopRepo {
	repo := &stubShopRepo{shops: make(map[string]*domain.Shop)}
	for _, shop := range shops {
		repo.shops[shop.Domain] = shop
	}
	return repo
}

func (r *stubShopRepo) FindByDomain(_ context.Context, shopDomain string, withTrashed bool) (*domain.Shop, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	shop, ok := r.shops[shopDomain]
	if !ok || (!withTrashed && shop.IsTrashed()) {
		return nil, nil
	}
	return shop, nil
}

func (r *stubShopRepo) FindByAPIToken(_ context.Context, token string) (*domain.Shop, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, shop := range r.shops {
		if shop.APIToken == token && !shop.IsTrashed() {
			return shop, nil
		}
	}
	return nil, nil
}

func (r *stubShopRepo) FirstOrCreate(_ context.Context, shopDomain string) (*domain.Shop, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if shop, ok := r.shops[shopDomain]; ok {
		return shop, nil
	}
	r.nextID++
	shop := &domain.Shop{ID: "shop-" + string(rune('0'+r.nextID)), Domain: shopDomain}
	r.shops[shopDomain] = shop
	return shop, nil
}

func (r *stubShopRepo) Save(_ context.Context, shop *domain.Shop) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	r.shops[shop.Domain] = shop
	return nil
}

type stubBillingRepo struct {
	plans     []domain.Plan
	discount  *domain.Discount
	tester    bool
	last      *domain.Charge
	current   *domain.Charge
	charges   map[uint64]*domain.Charge
	saved     []*domain.Charge
	created   []*domain.Charge
	activated []*domain.Charge
	cancelled []string
	restored  []string
}

func newStubBillingRepo() *stubBillingRepo {
	return &stubBillingRepo{charges: make(map[uint64]*domain.Charge)}
}

func (r *stubBillingRepo) ActivePlans(context.Context) ([]domain.Plan, error) { return r.plans, nil }

func (r *stubBillingRepo) LatestActiveDiscount(context.Context, string, string) (*domain.Discount, error) {
	return r.discount, nil
}

func (r *stubBillingRepo) IsTester(context.Context, string) (bool, error) { return r.tester, nil }

func (r *stubBillingRepo) LatestCharge(context.Context, string) (*domain.Charge, error) {
	return r.last, nil
}

func (r *stubBillingRepo) CurrentCharge(context.Context, string) (*domain.Charge, error) {
	return r.current, nil
}

func (r *stubBillingRepo) FindCharge(_ context.Context, _ string, chargeID uint64) (*domain.Charge, error) {
	return r.charges[chargeID], nil
}

func (r *stubBillingRepo) CreatePendingCharge(_ context.Context, charge *domain.Charge, _ time.Time) error {
	r.created = append(r.created, charge)
	r.charges[charge.ChargeID] = charge
	return nil
}

func (r *stubBillingRepo) SaveCharge(_ context.Context, charge *domain.Charge) error {
	r.saved = append(r.saved, charge)
	r.charges[charge.ChargeID] = charge
	return nil
}

func (r *stubBillingRepo) ActivateCharge(_ context.Context, charge *domain.Charge, now time.Time) error {
	r.activated = append(r.activated, charge)
	for id, other := range r.charges {
		if id != charge.ChargeID && other.CancelledOn == nil {
			other.Cancel(now)
		}
	}
	r.charges[charge.ChargeID] = charge
	return nil
}

func (r *stubBillingRepo) CancelCharges(_ context.Context, shopID string, _ time.Time) error {
	r.cancelled = append(r.cancelled, shopID)
	return nil
}

func (r *stubBillingRepo) RestoreCharges(_ context.Context, shopID string) error {
	r.restored = append(r.restored, shopID)
	return nil
}

type stubQueue struct {
	mu   sync.Mutex
	jobs []*domain.Job
	err  error
}

func (q *stubQueue) Enqueue(_ context.Context, job *domain.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *stubQueue) Dequeue(ctx context.Context, _ time.Duration) (*domain.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 {
		select {
		case <-ctx.Done():
		case <-time.After(5 * time.Millisecond):
		}
		return nil, nil
	}
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	return job, nil
}

func (q *stubQueue) kinds() []domain.JobKind {
	q.mu.Lock()
	defer q.mu.Unlock()
	kinds := make([]domain.JobKind, 0, len(q.jobs))
	for _, job := range q.jobs {
		kinds = append(kinds, job.Kind)
	}
	return kinds
}

type stubLocker struct {
	held     map[string]bool
	released []string
}

func newStubLocker() *stubLocker {
	return &stubLocker{held: make(map[string]bool)}
}

func (l *stubLocker) Acquire(_ context.Context, key string, _ time.Duration) (func(context.Context) error, bool, error) {
	if l.held[key] {
		return nil, false, nil
	}
	l.held[key] = true
	return func(context.Context) error {
		delete(l.held, key)
		l.released = append(l.released, key)
		return nil
	}, true, nil
}

type stubEvents struct {
	mu     sync.Mutex
	events []*domain.ShopEvent
}

func (e *stubEvents) Publish(event *domain.ShopEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
}

func (e *stubEvents) types() []domain.ShopEventType {
	e.mu.Lock()
	defer e.mu.Unlock()
	types := make([]domain.ShopEventType, 0, len(e.events))
	for _, event := range e.events {
		types = append(types, event.Type)
	}
	return types
}

type stubOAuth struct {
	validQuery   bool
	token        string
	exchangeErr  error
	webhookValid func(body []byte, hmac, secret string) bool
}

func (o *stubOAuth) AuthorizeURL(shopDomain string) (string, error) {
	return "https://" + shopDomain + "/admin/oauth/authorize", nil
}

func (o *stubOAuth) ExchangeToken(context.Context, string, string) (string, error) {
	return o.token, o.exchangeErr
}

func (o *stubOAuth) VerifyRequest(url.Values) bool { return o.validQuery }

func (o *stubOAuth) VerifyWebhook(body []byte, hmac, secret string) bool {
	return o.webhookValid(body, hmac, secret)
}

type stubEventLog struct {
	logged []*domain.WebhookEvent
}

func (l *stubEventLog) LogWebhook(_ context.Context, event *domain.WebhookEvent) error {
	l.logged = append(l.logged, event)
	return nil
}

type stubMetrics struct {
	verifications []string
	jobs          []string
	reconciles    []string
}

func (m *stubMetrics) ObserveReconcile(resource string, _, _, _ int, _ time.Duration) {
	m.reconciles = append(m.reconciles, resource)
}
func (m *stubMetrics) ObserveChargeVerification(outcome string) {
	m.verifications = append(m.verifications, outcome)
}
func (m *stubMetrics) ObserveWebhook(string, int) {}
func (m *stubMetrics) ObserveJob(kind string, outcome string) {
	m.jobs = append(m.jobs, kind+":"+outcome)
}
func (m *stubMetrics) ObserveShopEvent(string) {}

func installedShop() *domain.Shop {
	return &domain.Shop{
		ID:          "shop-1",
		Domain:      "example.myshopify.com",
		AccessToken: "shpat_test",
		Scopes:      []string{"read_products", domain.ScopeReadScriptTags, domain.ScopeWriteScriptTags},
		Active:      true,
	}
}
