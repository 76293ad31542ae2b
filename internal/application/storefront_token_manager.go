package application

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/niveshsaharan/centire-shopify/internal/domain"
	"github.com/niveshsaharan/centire-shopify/internal/ports"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"
)

const storefrontTokensQuery = `query storefrontAccessTokens {
  shop {
    storefrontAccessTokens(first: 250) {
      edges { node { id title accessToken accessScopes { handle } } }
    }
  }
}`

type storefrontTokenNode struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	AccessToken  string `json:"accessToken"`
	AccessScopes []struct {
		Handle string `json:"handle"`
	} `json:"accessScopes"`
}

func (n storefrontTokenNode) toDomain() domain.StorefrontToken {
	token := domain.StorefrontToken{ID: n.ID, Title: n.Title, AccessToken: n.AccessToken}
	for _, scope := range n.AccessScopes {
		token.Scopes = append(token.Scopes, scope.Handle)
	}
	return token
}

// StorefrontTokenResult reports what one storefront token pass changed
type StorefrontTokenResult struct {
	Created  *domain.StorefrontToken
	Deleted  []string
	Failures error
}

// StorefrontTokenManager makes sure the shop holds a storefront token covering
// every unauthenticated_ scope the app requests
type StorefrontTokenManager struct {
	clients ports.ShopClientFactory
	shops   ports.ShopRepository
	scopes  []string
	title   string
	metrics ports.Metrics
	logger  zerolog.Logger
}

// NewStorefrontTokenManager creates a manager; title names created tokens
func NewStorefrontTokenManager(
	clients ports.ShopClientFactory,
	shops ports.ShopRepository,
	apiScopes []string,
	title string,
	metrics ports.Metrics,
	logger zerolog.Logger,
) *StorefrontTokenManager {
	return &StorefrontTokenManager{
		clients: clients,
		shops:   shops,
		scopes:  domain.UnauthenticatedScopes(apiScopes),
		title:   title,
		metrics: metrics,
		logger:  logger.With().Str("resource", "storefront_tokens").Logger(),
	}
}

// Tokens lists the storefront tokens on the shop
func (m *StorefrontTokenManager) Tokens(ctx context.Context, client ports.ShopClient) ([]domain.StorefrontToken, error) {
	var response struct {
		Shop struct {
			StorefrontAccessTokens struct {
				Edges []struct {
					Node storefrontTokenNode `json:"node"`
				} `json:"edges"`
			} `json:"storefrontAccessTokens"`
		} `json:"shop"`
	}
	if err := client.GraphQL(ctx, storefrontTokensQuery, nil, &response); err != nil {
		return nil, transportError(err, "list storefront tokens")
	}

	tokens := make([]domain.StorefrontToken, 0, len(response.Shop.StorefrontAccessTokens.Edges))
	for _, edge := range response.Shop.StorefrontAccessTokens.Edges {
		tokens = append(tokens, edge.Node.toDomain())
	}
	return tokens, nil
}

// Ensure creates one token when the existing tokens do not cover the required scopes
func (m *StorefrontTokenManager) Ensure(ctx context.Context, session *domain.ShopSession) (*StorefrontTokenResult, error) {
	result := &StorefrontTokenResult{}
	if len(m.scopes) == 0 {
		return result, nil
	}

	client, err := clientForSession(m.clients, session)
	if err != nil {
		return nil, err
	}
	tokens, err := m.Tokens(ctx, client)
	if err != nil {
		return nil, err
	}
	if domain.TokensCoverScopes(tokens, m.scopes) {
		return result, nil
	}

	started := time.Now()
	batch := NewMutationBatch("storefrontAccessTokenCreate")
	batch.Add(CreateOp("STOREFRONTTOKEN_0", "storefrontAccessTokenCreate", "storefrontAccessToken",
		"id title accessToken accessScopes { handle }",
		MutationArg{Name: "input", Type: "StorefrontAccessTokenInput!", Value: map[string]any{"title": m.title}},
	))

	outcomes, err := batch.Execute(ctx, client)
	if err != nil {
		return nil, err
	}

	outcome := outcomes[0]
	if !outcome.OK {
		result.Failures = outcome.Err
		m.logger.Warn().Err(outcome.Err).Str("shop", session.Domain()).Msg("Failed to create storefront token")
		m.observe(0, 0, 1, started)
		return result, nil
	}

	var node storefrontTokenNode
	if err := json.Unmarshal(outcome.Data, &node); err != nil {
		return nil, fmt.Errorf("failed to decode storefront token: %w", err)
	}
	token := node.toDomain()
	result.Created = &token

	session.Shop.StorefrontToken = token.AccessToken
	if err := m.shops.Save(ctx, session.Shop); err != nil {
		return nil, fmt.Errorf("failed to save storefront token: %w", err)
	}

	m.logger.Info().Str("shop", session.Domain()).Str("token_id", token.ID).Msg("Created storefront token")
	m.observe(1, 0, 0, started)
	return result, nil
}

// DeleteTokens removes every storefront token on the shop and clears the stored one
func (m *StorefrontTokenManager) DeleteTokens(ctx context.Context, session *domain.ShopSession) (*StorefrontTokenResult, error) {
	result := &StorefrontTokenResult{}

	client, err := clientForSession(m.clients, session)
	if err != nil {
		return nil, err
	}
	tokens, err := m.Tokens(ctx, client)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return result, nil
	}

	started := time.Now()
	batch := NewMutationBatch("storefrontAccessTokenDelete")
	for i, token := range tokens {
		batch.Add(DeleteOp(fmt.Sprintf("STOREFRONTTOKEN_DELETE_%d", i), "storefrontAccessTokenDelete", "deletedStorefrontAccessTokenId",
			MutationArg{Name: "input", Type: "StorefrontAccessTokenDeleteInput!", Value: map[string]any{"id": token.ID}},
		))
	}

	outcomes, err := batch.Execute(ctx, client)
	if err != nil {
		return nil, err
	}
	for i, outcome := range outcomes {
		if outcome.OK {
			result.Deleted = append(result.Deleted, tokens[i].ID)
		} else {
			result.Failures = multierr.Append(result.Failures, outcome.Err)
		}
	}

	if len(result.Deleted) > 0 && session.Shop.StorefrontToken != "" {
		session.Shop.StorefrontToken = ""
		if err := m.shops.Save(ctx, session.Shop); err != nil {
			return nil, fmt.Errorf("failed to clear storefront token: %w", err)
		}
	}

	m.observe(0, len(result.Deleted), len(multierr.Errors(result.Failures)), started)
	return result, nil
}

// Recreate deletes every token and creates a fresh one
func (m *StorefrontTokenManager) Recreate(ctx context.Context, session *domain.ShopSession) (*StorefrontTokenResult, error) {
	deleted, err := m.DeleteTokens(ctx, session)
	if err != nil {
		return nil, err
	}
	created, err := m.Ensure(ctx, session)
	if err != nil {
		return nil, err
	}
	created.Deleted = deleted.Deleted
	created.Failures = multierr.Append(deleted.Failures, created.Failures)
	return created, nil
}

func (m *StorefrontTokenManager) observe(created, deleted, failed int, started time.Time) {
	if m.metrics != nil {
		m.metrics.ObserveReconcile("storefront_tokens", created, deleted, failed, time.Since(started))
	}
}
