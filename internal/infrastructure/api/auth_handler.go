package api

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/niveshsaharan/centire-shopify/internal/application"
	"github.com/niveshsaharan/centire-shopify/internal/domain"
	apperrors "github.com/niveshsaharan/centire-shopify/pkg/errors"

	"github.com/rs/zerolog"
)

// authenticate starts the OAuth install, or completes it when Shopify calls back with a code
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if query.Get("code") != "" {
		s.completeInstall(w, r)
		return
	}

	if message := query.Get("error"); message != "" {
		WriteError(w, r, apperrors.New(apperrors.CodeUnauthorized, message))
		return
	}

	authURL, err := s.svc.Auth.BeginInstall(query.Get("shop"))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

func (s *Server) completeInstall(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	shop, err := s.svc.Auth.CompleteInstall(ctx, r.URL.Query())
	if err != nil {
		WriteError(w, r, err)
		return
	}

	session, token, err := s.svc.Sessions.Login(ctx, shop, false)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	s.setSessionCookie(w, token)

	verification := s.svc.Billing.VerifyCharge(ctx, session)
	s.redirectVerification(w, r, session, verification)
}

// impersonate logs in as an installed shop with the impersonation key
func (s *Server) impersonate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	shop, err := s.svc.Auth.Impersonate(ctx, query.Get("shop"), query.Get("code"))
	if err != nil {
		WriteError(w, r, err)
		return
	}

	_, token, err := s.svc.Sessions.Login(ctx, shop, true)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	s.setSessionCookie(w, token)
	http.Redirect(w, r, "/", http.StatusFound)
}

// logout clears the session cookie
func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.cfg.CookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
}

// redirectVerification turns a charge verification into the next page for the merchant
func (s *Server) redirectVerification(w http.ResponseWriter, r *http.Request, session *domain.ShopSession, v application.Verification) {
	target := "/"
	switch v.Outcome {
	case application.VerifyRedirectProcess:
		target = s.cfg.BillingPath + "/process?charge_id=" + strconv.FormatUint(v.ChargeID, 10)
	case application.VerifyRedirectConfirmation:
		target = v.URL
	case application.VerifyRedirectBilling:
		target = s.cfg.BillingPath
		if v.Message != "" {
			target += "?error=" + url.QueryEscape(v.Message)
		}
	case application.VerifyRedirectAuth:
		target = s.authURL(session.Domain(), v.Message)
	}

	zerolog.Ctx(r.Context()).Debug().
		Str("shop", session.Domain()).
		Str("outcome", v.Outcome.String()).
		Str("target", target).
		Msg("Routing after charge verification")
	http.Redirect(w, r, target, http.StatusFound)
}
