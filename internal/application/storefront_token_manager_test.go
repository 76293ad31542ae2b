package application

import (
	"context"
	"testing"

	"github.com/niveshsaharan/centire-shopify/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var storefrontAPIScopes = []string{"read_products", "unauthenticated_read_product_listings", "unauthenticated_read_checkouts"}

func newStorefrontManager(fake *fakeShopify, shops *stubShopRepo, scopes []string) (*StorefrontTokenManager, *stubShopClient) {
	client := fake.client()
	manager := NewStorefrontTokenManager(&stubClientFactory{client: client}, shops, scopes, "Storefront", nil, zerolog.Nop())
	return manager, client
}

func TestStorefrontTokenManagerEnsureCreatesToken(t *testing.T) {
	fake := newFakeShopify()
	fake.storefrontScopes = domain.UnauthenticatedScopes(storefrontAPIScopes)
	shop := installedShop()
	shops := newStubShopRepo(shop)
	manager, client := newStorefrontManager(fake, shops, storefrontAPIScopes)
	session := domain.NewShopSession(shop)

	result, err := manager.Ensure(context.Background(), session)

	require.NoError(t, err)
	require.NotNil(t, result.Created)
	assert.Equal(t, "Storefront", result.Created.Title)
	assert.Equal(t, result.Created.AccessToken, shop.StorefrontToken)
	assert.Equal(t, 1, shops.saves)
	assert.Len(t, client.mutations(), 1)

	again, err := manager.Ensure(context.Background(), session)

	require.NoError(t, err)
	assert.Nil(t, again.Created)
	assert.Len(t, client.mutations(), 1)
}

func TestStorefrontTokenManagerEnsureCoveredByExistingTokens(t *testing.T) {
	fake := newFakeShopify()
	fake.tokens = []storefrontTokenNode{
		{ID: "1", AccessToken: "a", AccessScopes: []struct {
			Handle string `json:"handle"`
		}{{Handle: "unauthenticated_read_product_listings"}}},
		{ID: "2", AccessToken: "b", AccessScopes: []struct {
			Handle string `json:"handle"`
		}{{Handle: "unauthenticated_read_checkouts"}}},
	}
	manager, client := newStorefrontManager(fake, newStubShopRepo(), storefrontAPIScopes)

	result, err := manager.Ensure(context.Background(), domain.NewShopSession(installedShop()))

	require.NoError(t, err)
	assert.Nil(t, result.Created)
	assert.Empty(t, client.mutations())
}

func TestStorefrontTokenManagerEnsureWithoutStorefrontScopes(t *testing.T) {
	manager, client := newStorefrontManager(newFakeShopify(), newStubShopRepo(), []string{"read_products"})

	result, err := manager.Ensure(context.Background(), domain.NewShopSession(installedShop()))

	require.NoError(t, err)
	assert.Nil(t, result.Created)
	assert.Zero(t, client.callCount())
}

func TestStorefrontTokenManagerEnsureUserError(t *testing.T) {
	fake := newFakeShopify()
	fake.userErrors["STOREFRONTTOKEN_0"] = "Access denied"
	shop := installedShop()
	shops := newStubShopRepo(shop)
	manager, _ := newStorefrontManager(fake, shops, storefrontAPIScopes)

	result, err := manager.Ensure(context.Background(), domain.NewShopSession(shop))

	require.NoError(t, err)
	assert.Nil(t, result.Created)
	assert.ErrorContains(t, result.Failures, "Access denied")
	assert.Empty(t, shop.StorefrontToken)
	assert.Zero(t, shops.saves)
}

func TestStorefrontTokenManagerRecreate(t *testing.T) {
	fake := newFakeShopify()
	fake.storefrontScopes = domain.UnauthenticatedScopes(storefrontAPIScopes)
	fake.tokens = []storefrontTokenNode{{ID: "old", AccessToken: "stale"}}
	shop := installedShop()
	shop.StorefrontToken = "stale"
	manager, _ := newStorefrontManager(fake, newStubShopRepo(shop), storefrontAPIScopes)

	result, err := manager.Recreate(context.Background(), domain.NewShopSession(shop))

	require.NoError(t, err)
	assert.Equal(t, []string{"old"}, result.Deleted)
	require.NotNil(t, result.Created)
	assert.Equal(t, result.Created.AccessToken, shop.StorefrontToken)
	require.Len(t, fake.tokens, 1)
	assert.NotEqual(t, "old", fake.tokens[0].ID)
}
