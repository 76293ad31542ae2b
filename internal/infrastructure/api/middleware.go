package api

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/niveshsaharan/centire-shopify/internal/application"
	"github.com/niveshsaharan/centire-shopify/internal/domain"
	apperrors "github.com/niveshsaharan/centire-shopify/pkg/errors"

	"github.com/rs/zerolog"
)

// AuthShop resolves the shop session from the cookie, an App Bridge bearer token
// or the X-Api-Token header and stores it on the request context.
// Shops that are unknown, uninstalled, inactive or missing a token are sent back to authentication.
func (s *Server) AuthShop(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		shopParam := s.svc.Auth.SanitizeShop(r.URL.Query().Get("shop"))

		session, err := s.svc.Sessions.Resolve(ctx, s.credentials(r))
		if err != nil && !apperrors.Is(err, apperrors.CodeUnauthorized) {
			WriteError(w, r, err)
			return
		}
		if reason := rejectSession(session, shopParam); reason != "" {
			zerolog.Ctx(ctx).Debug().
				Str("shop", session.Domain()).
				Str("shop_param", shopParam).
				Str("reason", reason).
				Msg("Shop session rejected")
			s.unauthenticated(w, r, shopParam)
			return
		}

		ctx = domain.WithShopSession(ctx, session)
		ctx = zerolog.Ctx(ctx).With().Str("shop", session.Domain()).Logger().WithContext(ctx)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func rejectSession(session *domain.ShopSession, shopParam string) string {
	switch {
	case session == nil || session.Shop == nil:
		return "no session"
	case shopParam != "" && shopParam != session.Shop.Domain:
		return "shop mismatch"
	case session.Shop.AccessToken == "":
		return "missing access token"
	case session.Shop.IsTrashed():
		return "shop uninstalled"
	case !session.Shop.IsActive():
		return "shop inactive"
	}
	return ""
}

// Billable rejects shops that have not paid when billing is enforced
func (s *Server) Billable(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session := domain.ShopSessionFromContext(r.Context())
		if err := s.svc.Billing.RequirePayment(session); err != nil {
			if !wantsJSON(r) && apperrors.Is(err, apperrors.CodePaymentRequired) {
				http.Redirect(w, r, s.cfg.BillingPath, http.StatusFound)
				return
			}
			WriteError(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) credentials(r *http.Request) application.SessionCredentials {
	creds := application.SessionCredentials{
		APIToken: strings.TrimSpace(r.Header.Get("X-Api-Token")),
	}
	if auth := strings.TrimSpace(r.Header.Get("Authorization")); len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		creds.Bearer = strings.TrimSpace(auth[7:])
	}
	if cookie, err := r.Cookie(s.cfg.CookieName); err == nil {
		creds.Cookie = cookie.Value
	}
	return creds
}

func (s *Server) unauthenticated(w http.ResponseWriter, r *http.Request, shopDomain string) {
	if wantsJSON(r) {
		WriteError(w, r, apperrors.New(apperrors.CodeUnauthorized, "unauthenticated"))
		return
	}
	http.Redirect(w, r, s.authURL(shopDomain, ""), http.StatusFound)
}

func (s *Server) authURL(shopDomain, message string) string {
	query := url.Values{}
	if shopDomain != "" {
		query.Set("shop", shopDomain)
	}
	if message != "" {
		query.Set("error", message)
	}
	if len(query) == 0 {
		return s.cfg.AuthPath
	}
	return s.cfg.AuthPath + "?" + query.Encode()
}
