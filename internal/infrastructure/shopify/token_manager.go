package shopify

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/niveshsaharan/centire-shopify/internal/domain"
	apperrors "github.com/niveshsaharan/centire-shopify/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

const sessionIssuer = "centire-shopify"

// TokenManager issues app session tokens and validates App Bridge session tokens
type TokenManager struct {
	apiKey     string
	apiSecret  string
	sessionKey []byte
	ttl        time.Duration
	leeway     time.Duration
	now        func() time.Time
	logger     zerolog.Logger
}

// TokenManagerConfig holds signing material and lifetimes
type TokenManagerConfig struct {
	APIKey     string
	APISecret  string
	SessionKey string
	TTL        time.Duration
	Leeway     time.Duration
}

type sessionClaims struct {
	Shop          string `json:"shop"`
	Impersonating bool   `json:"imp,omitempty"`
	jwt.RegisteredClaims
}

type appBridgeClaims struct {
	Dest string `json:"dest"`
	jwt.RegisteredClaims
}

// NewTokenManager creates a new token manager
func NewTokenManager(cfg TokenManagerConfig, logger zerolog.Logger) *TokenManager {
	key := cfg.SessionKey
	if key == "" {
		key = cfg.APISecret
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenManager{
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		sessionKey: []byte(key),
		ttl:        ttl,
		leeway:     cfg.Leeway,
		now:        time.Now,
		logger:     logger,
	}
}

// Issue signs a session token for the shop
func (tm *TokenManager) Issue(shopDomain string, impersonating bool) (string, error) {
	if shopDomain == "" {
		return "", apperrors.New(apperrors.CodeValidation, "shop domain is required")
	}
	now := tm.now()
	claims := sessionClaims{
		Shop:          shopDomain,
		Impersonating: impersonating,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    sessionIssuer,
			Subject:   shopDomain,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tm.sessionKey)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeInternal, err, "failed to sign session token")
	}
	return signed, nil
}

// Parse validates a session token issued by Issue
func (tm *TokenManager) Parse(token string) (*domain.SessionClaims, error) {
	claims := &sessionClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return tm.sessionKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithLeeway(tm.leeway),
		jwt.WithTimeFunc(tm.now),
	)
	if err != nil {
		return nil, tm.invalid(err, "invalid session token")
	}
	if claims.Shop == "" {
		return nil, apperrors.New(apperrors.CodeUnauthorized, "session token carries no shop")
	}

	result := &domain.SessionClaims{ShopDomain: claims.Shop, Impersonating: claims.Impersonating}
	if claims.ExpiresAt != nil {
		result.ExpiresAt = claims.ExpiresAt.Time
	}
	return result, nil
}

// ParseAppBridge validates an embedded-app session token signed with the app secret
func (tm *TokenManager) ParseAppBridge(token string) (string, error) {
	claims := &appBridgeClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(tm.apiSecret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(tm.apiKey),
		jwt.WithLeeway(tm.leeway),
		jwt.WithTimeFunc(tm.now),
	)
	if err != nil {
		return "", tm.invalid(err, "invalid app bridge token")
	}

	destHost := hostOf(claims.Dest)
	issuerHost := hostOf(claims.Issuer)
	if destHost == "" || destHost != issuerHost {
		return "", apperrors.New(apperrors.CodeUnauthorized, "app bridge token issuer does not match destination")
	}
	return destHost, nil
}

func (tm *TokenManager) invalid(err error, message string) error {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return apperrors.Wrap(apperrors.CodeUnauthorized, err, "session token expired")
	}
	tm.logger.Debug().Err(err).Msg("Rejected token")
	return apperrors.Wrap(apperrors.CodeUnauthorized, err, message)
}

func hostOf(raw string) string {
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Hostname())
}
