package domain

import (
	"context"
	"time"
)

// ShopSession is the authenticated shop bound to one request or job.
// It is passed explicitly into every service call.
type ShopSession struct {
	Shop          *Shop
	Impersonating bool
	IssuedAt      time.Time
}

// NewShopSession wraps a loaded shop
func NewShopSession(shop *Shop) *ShopSession {
	return &ShopSession{Shop: shop, IssuedAt: time.Now()}
}

// Domain returns the shop domain, or "" for an empty session
func (s *ShopSession) Domain() string {
	if s == nil || s.Shop == nil {
		return ""
	}
	return s.Shop.Domain
}

// SessionClaims is the payload carried by an app-issued session token
type SessionClaims struct {
	ShopDomain    string
	Impersonating bool
	ExpiresAt     time.Time
}

type contextKey string

const shopSessionKey contextKey = "shop_session"

// WithShopSession stores the session on the request context
func WithShopSession(ctx context.Context, session *ShopSession) context.Context {
	return context.WithValue(ctx, shopSessionKey, session)
}

// ShopSessionFromContext returns the session stored by WithShopSession, or nil
func ShopSessionFromContext(ctx context.Context) *ShopSession {
	if session, ok := ctx.Value(shopSessionKey).(*ShopSession); ok {
		return session
	}
	return nil
}
