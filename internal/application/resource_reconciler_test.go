package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/niveshsaharan/centire-shopify/internal/domain"
	"github.com/niveshsaharan/centire-shopify/internal/ports"
	apperrors "github.com/niveshsaharan/centire-shopify/pkg/errors"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeDiff(t *testing.T) {
	desired := []domain.WebhookSpec{
		{Topic: "orders/create", Address: "https://app.test/webhook/orders-create"},
		{Topic: "app/uninstalled", Address: "https://app.test/webhook/app-uninstalled"},
		{Topic: "app/uninstalled", Address: "https://app.test/webhook/app-uninstalled"},
	}
	remote := []domain.RemoteWebhook{
		{ID: "1", CallbackURL: "https://app.test/webhook/app-uninstalled"},
		{ID: "2", CallbackURL: "https://old.test/webhook"},
	}

	diff := ComputeDiff(desired, remote)

	require.Len(t, diff.Create, 1)
	assert.Equal(t, "orders/create", diff.Create[0].Topic)
	require.Len(t, diff.Delete, 1)
	assert.Equal(t, "2", diff.Delete[0].ID)
}

func TestComputeDiffTopicsSharingAddress(t *testing.T) {
	desired := []domain.WebhookSpec{
		{Topic: "orders/create", Address: "https://app.test/webhook"},
		{Topic: "orders/paid", Address: "https://app.test/webhook"},
		{Topic: "orders/paid", Address: "https://app.test/webhook"},
	}

	diff := ComputeDiff[domain.WebhookSpec, domain.RemoteWebhook](desired, nil)

	require.Len(t, diff.Create, 2)
	assert.Equal(t, "orders/create", diff.Create[0].Topic)
	assert.Equal(t, "orders/paid", diff.Create[1].Topic)

	remote := []domain.RemoteWebhook{{ID: "1", CallbackURL: "https://app.test/webhook", Topic: "ORDERS_CREATE"}}
	diff = ComputeDiff(desired, remote)
	assert.Empty(t, diff.Delete)
}

func TestComputeDiffConverged(t *testing.T) {
	desired := []domain.ScriptTagSpec{{Src: "https://cdn.test/app.js"}}
	remote := []domain.RemoteScriptTag{{ID: "1", Src: "https://cdn.test/app.js"}}

	diff := ComputeDiff(desired, remote)

	assert.Empty(t, diff.Create)
	assert.Empty(t, diff.Delete)
}

func newWebhookManager(fake *fakeShopify, webhooks []domain.WebhookSpec, metrics ports.Metrics) (*WebhookManager, *stubShopClient) {
	client := fake.client()
	manager := NewWebhookManager(&stubClientFactory{client: client}, webhooks, metrics, zerolog.Nop())
	return manager, client
}

func TestWebhookManagerReconcile(t *testing.T) {
	ctx := context.Background()
	fake := newFakeShopify()
	fake.webhooks = []domain.RemoteWebhook{{ID: "gid://shopify/WebhookSubscription/99", CallbackURL: "https://x/old", Topic: "ORDERS_CREATE"}}
	metrics := &stubMetrics{}
	manager, client := newWebhookManager(fake, []domain.WebhookSpec{{Topic: "orders/create", Address: "https://x/wh1"}}, metrics)
	session := domain.NewShopSession(installedShop())

	result, err := manager.Reconcile(ctx, session)

	require.NoError(t, err)
	require.Len(t, result.Created, 1)
	assert.Equal(t, "https://x/wh1", result.Created[0].Address)
	require.Len(t, result.Deleted, 1)
	assert.Equal(t, "https://x/old", result.Deleted[0].CallbackURL)
	assert.NoError(t, result.Failures)
	assert.Len(t, client.mutations(), 1, "creates and deletes share one composite request")
	assert.Equal(t, []string{"webhooks"}, metrics.reconciles)

	require.Len(t, fake.webhooks, 1)
	assert.Equal(t, "https://x/wh1", fake.webhooks[0].CallbackURL)
	assert.Equal(t, "ORDERS_CREATE", fake.webhooks[0].Topic)

	calls := client.callCount()
	second, err := manager.Reconcile(ctx, session)

	require.NoError(t, err)
	assert.False(t, second.Changed())
	assert.Equal(t, calls+1, client.callCount(), "a converged shop only lists webhooks")
	assert.Len(t, client.mutations(), 1)
}

func TestWebhookManagerAbsorbsUserErrors(t *testing.T) {
	fake := newFakeShopify()
	fake.userErrors["WEBHOOK_1"] = "Address for this topic has already been taken"
	manager, _ := newWebhookManager(fake, []domain.WebhookSpec{
		{Topic: "orders/create", Address: "https://x/a"},
		{Topic: "orders/paid", Address: "https://x/b"},
	}, nil)

	result, err := manager.Reconcile(context.Background(), domain.NewShopSession(installedShop()))

	require.NoError(t, err)
	require.Len(t, result.Created, 1)
	assert.Equal(t, "https://x/a", result.Created[0].Address)
	assert.Equal(t, 1, result.FailureCount())
	assert.Contains(t, result.Failures.Error(), "already been taken")
}

func TestWebhookManagerTransportFailure(t *testing.T) {
	fake := newFakeShopify()
	fake.failWith = errors.New("connection reset")
	manager, _ := newWebhookManager(fake, []domain.WebhookSpec{{Topic: "orders/create", Address: "https://x/a"}}, nil)

	_, err := manager.Reconcile(context.Background(), domain.NewShopSession(installedShop()))

	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeDependency))
	assert.True(t, apperrors.IsRetryable(err))
}

func TestWebhookManagerRequiresAccessToken(t *testing.T) {
	fake := newFakeShopify()
	manager, client := newWebhookManager(fake, nil, nil)
	shop := installedShop()
	shop.AccessToken = ""

	_, err := manager.Reconcile(context.Background(), domain.NewShopSession(shop))

	assert.True(t, apperrors.Is(err, apperrors.CodeUnauthorized))
	assert.Zero(t, client.callCount())
}

func TestWebhookManagerDeleteAllAndRecreate(t *testing.T) {
	ctx := context.Background()
	fake := newFakeShopify()
	fake.webhooks = []domain.RemoteWebhook{
		{ID: "gid://shopify/WebhookSubscription/1", CallbackURL: "https://x/a"},
		{ID: "gid://shopify/WebhookSubscription/2", CallbackURL: "https://x/b"},
	}
	manager, _ := newWebhookManager(fake, []domain.WebhookSpec{{Topic: "app/uninstalled", Address: "https://x/a"}}, nil)
	session := domain.NewShopSession(installedShop())

	recreated, err := manager.Recreate(ctx, session)

	require.NoError(t, err)
	assert.Len(t, recreated.Deleted, 2)
	assert.Len(t, recreated.Created, 1)
	require.Len(t, fake.webhooks, 1)
	assert.Equal(t, "https://x/a", fake.webhooks[0].CallbackURL)
	assert.NotEqual(t, "gid://shopify/WebhookSubscription/1", fake.webhooks[0].ID)

	deleted, err := manager.DeleteAll(ctx, session)

	require.NoError(t, err)
	assert.Len(t, deleted.Deleted, 1)
	assert.Empty(t, fake.webhooks)
}

func TestScriptTagManagerSkipsWithoutScopes(t *testing.T) {
	fake := newFakeShopify()
	client := fake.client()
	manager := NewScriptTagManager(&stubClientFactory{client: client}, []domain.ScriptTagSpec{{Src: "https://cdn.test/app.js"}}, nil, zerolog.Nop())
	shop := installedShop()
	shop.Scopes = []string{domain.ScopeReadScriptTags}

	result, err := manager.Reconcile(context.Background(), domain.NewShopSession(shop))

	require.NoError(t, err)
	assert.False(t, result.Changed())
	assert.Zero(t, client.callCount())
}

func TestScriptTagManagerReconcile(t *testing.T) {
	fake := newFakeShopify()
	fake.scriptTags = []domain.RemoteScriptTag{{ID: "gid://shopify/ScriptTag/7", Src: "https://cdn.test/old.js"}}
	client := fake.client()
	manager := NewScriptTagManager(&stubClientFactory{client: client}, []domain.ScriptTagSpec{
		{Src: "https://cdn.test/app.js"},
		{Src: "https://cdn.test/order.js", DisplayScope: "order_status"},
	}, nil, zerolog.Nop())

	result, err := manager.Reconcile(context.Background(), domain.NewShopSession(installedShop()))

	require.NoError(t, err)
	assert.Len(t, result.Created, 2)
	assert.Len(t, result.Deleted, 1)
	require.Len(t, fake.scriptTags, 2)
	assert.Equal(t, "ONLINE_STORE", fake.scriptTags[0].DisplayScope)
	assert.Equal(t, "ORDER_STATUS", fake.scriptTags[1].DisplayScope)
}

func TestMutationBatchDocument(t *testing.T) {
	batch := NewMutationBatch("webhooksReconcile")
	ops := []MutationOp{
		webhookSchema{}.CreateOp(0, domain.WebhookSpec{Topic: "orders/create", Address: "https://x/a"}),
		webhookSchema{}.DeleteOp(0, domain.RemoteWebhook{ID: "gid://shopify/WebhookSubscription/1"}),
	}

	doc, vars, err := batch.Document(ops)

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(doc, "mutation webhooksReconcile("))
	assert.Contains(t, doc, "WEBHOOK_0: webhookSubscriptionCreate(topic: $topic_0, webhookSubscription: $webhookSubscription_0)")
	assert.Contains(t, doc, "WEBHOOK_DELETE_0: webhookSubscriptionDelete(id: $id_1)")
	assert.Equal(t, "ORDERS_CREATE", vars["topic_0"])
	assert.Equal(t, "gid://shopify/WebhookSubscription/1", vars["id_1"])
}

func TestMutationBatchDocumentRejectsMalformedOps(t *testing.T) {
	batch := NewMutationBatch("broken")
	_, _, err := batch.Document([]MutationOp{CreateOp("A", "thing", "thing", "id {", MutationArg{Name: "input", Type: "X!", Value: 1})})

	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))
}

func TestMutationBatchChunksLargeBatches(t *testing.T) {
	fake := newFakeShopify()
	client := fake.client()
	batch := NewMutationBatch("webhooksReconcile")
	for i := 0; i < maxBatchOperations+5; i++ {
		batch.Add(webhookSchema{}.CreateOp(i, domain.WebhookSpec{Topic: "orders/create", Address: fmt.Sprintf("https://x/%d", i)}))
	}

	outcomes, err := batch.Execute(context.Background(), client)

	require.NoError(t, err)
	assert.Len(t, outcomes, maxBatchOperations+5)
	assert.Len(t, client.mutations(), 2)
	for _, outcome := range outcomes {
		assert.True(t, outcome.OK, outcome.Alias)
	}
}

func TestDemultiplexMissingResult(t *testing.T) {
	op := DeleteOp("WEBHOOK_DELETE_0", "webhookSubscriptionDelete", "deletedWebhookSubscriptionId")

	outcome := demultiplex(op, []byte(`{"deletedWebhookSubscriptionId": null, "userErrors": []}`))
	assert.False(t, outcome.OK)
	assert.Error(t, outcome.Err)

	outcome = demultiplex(op, nil)
	assert.False(t, outcome.OK)
	assert.Error(t, outcome.Err)
}
