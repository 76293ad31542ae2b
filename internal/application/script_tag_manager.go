package application

import (
	"context"
	"fmt"

	"github.com/niveshsaharan/centire-shopify/internal/domain"
	"github.com/niveshsaharan/centire-shopify/internal/ports"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"
)

const scriptTagsQuery = `query scriptTags {
  scriptTags(first: 250) {
    edges { node { id src displayScope } }
  }
}`

type scriptTagSchema struct{}

func (scriptTagSchema) Name() string { return "script_tags" }

func (scriptTagSchema) Fetch(ctx context.Context, client ports.ShopClient) ([]domain.RemoteScriptTag, error) {
	var response struct {
		ScriptTags struct {
			Edges []struct {
				Node domain.RemoteScriptTag `json:"node"`
			} `json:"edges"`
		} `json:"scriptTags"`
	}
	if err := client.GraphQL(ctx, scriptTagsQuery, nil, &response); err != nil {
		return nil, err
	}

	tags := make([]domain.RemoteScriptTag, 0, len(response.ScriptTags.Edges))
	for _, edge := range response.ScriptTags.Edges {
		tags = append(tags, edge.Node)
	}
	return tags, nil
}

func (scriptTagSchema) CreateOp(i int, s domain.ScriptTagSpec) MutationOp {
	return CreateOp(fmt.Sprintf("SCRIPT_TAG_%d", i), "scriptTagCreate", "scriptTag", "id src displayScope",
		MutationArg{Name: "input", Type: "ScriptTagInput!", Value: map[string]any{
			"src":          s.Src,
			"displayScope": s.DisplayScopeEnum(),
		}},
	)
}

func (scriptTagSchema) DeleteOp(i int, s domain.RemoteScriptTag) MutationOp {
	return DeleteOp(fmt.Sprintf("SCRIPT_TAG_DELETE_%d", i), "scriptTagDelete", "deletedScriptTagId",
		MutationArg{Name: "id", Type: "ID!", Value: s.ID},
	)
}

type ScriptTagResult = Result[domain.ScriptTagSpec, domain.RemoteScriptTag]

// ScriptTagManager keeps a shop's script tags in line with configuration.
// Shops without both script tag scopes are skipped without any API call.
type ScriptTagManager struct {
	clients    ports.ShopClientFactory
	reconciler *ResourceReconciler[domain.ScriptTagSpec, domain.RemoteScriptTag]
	scriptTags []domain.ScriptTagSpec
	logger     zerolog.Logger
}

// NewScriptTagManager creates a manager for the configured script tags
func NewScriptTagManager(clients ports.ShopClientFactory, scriptTags []domain.ScriptTagSpec, metrics ports.Metrics, logger zerolog.Logger) *ScriptTagManager {
	return &ScriptTagManager{
		clients:    clients,
		reconciler: NewResourceReconciler[domain.ScriptTagSpec, domain.RemoteScriptTag](scriptTagSchema{}, metrics, logger),
		scriptTags: scriptTags,
		logger:     logger,
	}
}

func (m *ScriptTagManager) allowed(session *domain.ShopSession) bool {
	if session == nil || session.Shop == nil {
		return false
	}
	if !session.Shop.HasScopes(domain.ScopeReadScriptTags, domain.ScopeWriteScriptTags) {
		m.logger.Debug().Str("shop", session.Domain()).Msg("Shop lacks script tag scopes, skipping")
		return false
	}
	return true
}

// Reconcile creates missing script tags and deletes ones no longer configured
func (m *ScriptTagManager) Reconcile(ctx context.Context, session *domain.ShopSession) (*ScriptTagResult, error) {
	if !m.allowed(session) {
		return &ScriptTagResult{}, nil
	}
	client, err := clientForSession(m.clients, session)
	if err != nil {
		return nil, err
	}
	return m.reconciler.Reconcile(ctx, client, m.scriptTags)
}

// DeleteAll removes every script tag on the shop
func (m *ScriptTagManager) DeleteAll(ctx context.Context, session *domain.ShopSession) (*ScriptTagResult, error) {
	if !m.allowed(session) {
		return &ScriptTagResult{}, nil
	}
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

// Recreate deletes every script tag and installs the configured set again
func (m *ScriptTagManager) Recreate(ctx context.Context, session *domain.ShopSession) (*ScriptTagResult, error) {
	if !m.allowed(session) {
		return &ScriptTagResult{}, nil
	}
	deleted, err := m.DeleteAll(ctx, session)
	if err != nil {
		return nil, err
	}
	client, err := clientForSession(m.clients, session)
	if err != nil {
		return nil, err
	}
	desired := ComputeDiff[domain.ScriptTagSpec, domain.RemoteScriptTag](m.scriptTags, nil).Create
	created, err := m.reconciler.Apply(ctx, client, desired, nil)
	if err != nil {
		return nil, err
	}
	created.Deleted = deleted.Deleted
	created.Failures = multierr.Append(deleted.Failures, created.Failures)
	return created, nil
}
