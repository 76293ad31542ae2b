package application

import (
	"context"
	"fmt"

	"github.com/niveshsaharan/centire-shopify/internal/domain"
	"github.com/niveshsaharan/centire-shopify/internal/ports"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"
)

const webhookSubscriptionsQuery = `query webhookSubscriptions {
  webhookSubscriptions(first: 250) {
    edges { node { id callbackUrl topic } }
  }
}`

type webhookSchema struct{}

func (webhookSchema) Name() string { return "webhooks" }

func (webhookSchema) Fetch(ctx context.Context, client ports.ShopClient) ([]domain.RemoteWebhook, error) {
	var response struct {
		WebhookSubscriptions struct {
			Edges []struct {
				Node domain.RemoteWebhook `json:"node"`
			} `json:"edges"`
		} `json:"webhookSubscriptions"`
	}
	if err := client.GraphQL(ctx, webhookSubscriptionsQuery, nil, &response); err != nil {
		return nil, err
	}

	webhooks := make([]domain.RemoteWebhook, 0, len(response.WebhookSubscriptions.Edges))
	for _, edge := range response.WebhookSubscriptions.Edges {
		webhooks = append(webhooks, edge.Node)
	}
	return webhooks, nil
}

func (webhookSchema) CreateOp(i int, w domain.WebhookSpec) MutationOp {
	return CreateOp(fmt.Sprintf("WEBHOOK_%d", i), "webhookSubscriptionCreate", "webhookSubscription", "id callbackUrl topic",
		MutationArg{Name: "topic", Type: "WebhookSubscriptionTopic!", Value: w.TopicEnum()},
		MutationArg{Name: "webhookSubscription", Type: "WebhookSubscriptionInput!", Value: map[string]any{
			"callbackUrl": w.Address,
			"format":      "JSON",
		}},
	)
}

func (webhookSchema) DeleteOp(i int, w domain.RemoteWebhook) MutationOp {
	return DeleteOp(fmt.Sprintf("WEBHOOK_DELETE_%d", i), "webhookSubscriptionDelete", "deletedWebhookSubscriptionId",
		MutationArg{Name: "id", Type: "ID!", Value: w.ID},
	)
}

type WebhookResult = Result[domain.WebhookSpec, domain.RemoteWebhook]

// WebhookManager keeps a shop's webhook subscriptions in line with configuration
type WebhookManager struct {
	clients    ports.ShopClientFactory
	reconciler *ResourceReconciler[domain.WebhookSpec, domain.RemoteWebhook]
	webhooks   []domain.WebhookSpec
	logger     zerolog.Logger
}

// NewWebhookManager creates a manager for the configured webhooks
func NewWebhookManager(clients ports.ShopClientFactory, webhooks []domain.WebhookSpec, metrics ports.Metrics, logger zerolog.Logger) *WebhookManager {
	return &WebhookManager{
		clients:    clients,
		reconciler: NewResourceReconciler[domain.WebhookSpec, domain.RemoteWebhook](webhookSchema{}, metrics, logger),
		webhooks:   webhooks,
		logger:     logger,
	}
}

// Topics lists the configured webhook topics
func (m *WebhookManager) Topics() []string {
	topics := make([]string, 0, len(m.webhooks))
	for _, w := range m.webhooks {
		topics = append(topics, w.Topic)
	}
	return topics
}

// Reconcile creates missing webhooks and deletes ones no longer configured
func (m *WebhookManager) Reconcile(ctx context.Context, session *domain.ShopSession) (*WebhookResult, error) {
	client, err := clientForSession(m.clients, session)
	if err != nil {
		return nil, err
	}
	return m.reconciler.Reconcile(ctx, client, m.webhooks)
}

// DeleteAll removes every webhook subscription on the shop
func (m *WebhookManager) DeleteAll(ctx context.Context, session *domain.ShopSession) (*WebhookResult, error) {
	client, err := clientForSession(m.clients, session)
	if err != nil {
		return nil, err
	}
	remote, err := m.reconciler.Remote(ctx, client)
	if err != nil {
		return nil, err
	}
	return m.reconciler.Apply(ctx, client, nil, remote)
}

// Recreate deletes every webhook and installs the configured set again
func (m *WebhookManager) Recreate(ctx context.Context, session *domain.ShopSession) (*WebhookResult, error) {
	deleted, err := m.DeleteAll(ctx, session)
	if err != nil {
		return nil, err
	}
	client, err := clientForSession(m.clients, session)
	if err != nil {
		return nil, err
	}
	desired := ComputeDiff[domain.WebhookSpec, domain.RemoteWebhook](m.webhooks, nil).Create
	created, err := m.reconciler.Apply(ctx, client, desired, nil)
	if err != nil {
		return nil, err
	}
	created.Deleted = deleted.Deleted
	created.Failures = multierr.Append(deleted.Failures, created.Failures)
	return created, nil
}
