package api

import (
	"net/http"
	"strconv"

	"github.com/niveshsaharan/centire-shopify/internal/domain"
	apperrors "github.com/niveshsaharan/centire-shopify/pkg/errors"

	"github.com/rs/zerolog"
)

// billing creates a charge for the shop's plan and sends the merchant to approve it
func (s *Server) billing(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session := domain.ShopSessionFromContext(ctx)

	if !s.svc.Billing.Enabled() {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	if message := r.URL.Query().Get("error"); message != "" {
		zerolog.Ctx(ctx).Warn().Str("message", message).Msg("Returning to billing")
	}

	confirmationURL, err := s.svc.Billing.ConfirmationURL(ctx, session)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	if wantsJSON(r) {
		WriteJSON(w, http.StatusOK, map[string]string{"confirmation_url": confirmationURL})
		return
	}
	http.Redirect(w, r, confirmationURL, http.StatusFound)
}

// processCharge handles the merchant returning from the approval page
func (s *Server) processCharge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session := domain.ShopSessionFromContext(ctx)

	chargeID, err := strconv.ParseUint(r.URL.Query().Get("charge_id"), 10, 64)
	if err != nil || chargeID == 0 {
		WriteError(w, r, apperrors.New(apperrors.CodeValidation, "charge_id must be a positive integer"))
		return
	}

	verification := s.svc.Billing.Process(ctx, session, chargeID)
	s.redirectVerification(w, r, session, verification)
}
