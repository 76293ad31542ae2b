package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/niveshsaharan/centire-shopify/internal/application"
	"github.com/niveshsaharan/centire-shopify/internal/domain"
	apperrors "github.com/niveshsaharan/centire-shopify/pkg/errors"
)

const defaultHistoryLimit = 50

// ShopResponse describes the authenticated shop
type ShopResponse struct {
	App           string       `json:"app,omitempty"`
	Shop          *domain.Shop `json:"shop"`
	Impersonating bool         `json:"impersonating"`
	PrivateApp    bool         `json:"private_app"`
}

// WebhookResponse is one logged webhook delivery
type WebhookResponse struct {
	ID         string          `json:"id"`
	Topic      string          `json:"topic"`
	WebhookID  string          `json:"webhook_id,omitempty"`
	APIVersion string          `json:"api_version,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	ReceivedAt string          `json:"received_at"`
}

func (s *Server) shopResponse(session *domain.ShopSession) ShopResponse {
	return ShopResponse{
		App:           s.cfg.AppName,
		Shop:          session.Shop,
		Impersonating: session.Impersonating,
		PrivateApp:    session.Shop.IsPrivateApp(),
	}
}

// home is the app landing page for paying shops
func (s *Server) home(w http.ResponseWriter, r *http.Request) {
	session := domain.ShopSessionFromContext(r.Context())
	WriteJSON(w, http.StatusOK, s.shopResponse(session))
}

// shop returns the authenticated shop regardless of billing state
func (s *Server) shop(w http.ResponseWriter, r *http.Request) {
	session := domain.ShopSessionFromContext(r.Context())
	WriteJSON(w, http.StatusOK, s.shopResponse(session))
}

// webhookHistory lists the shop's latest webhook deliveries
func (s *Server) webhookHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session := domain.ShopSessionFromContext(ctx)

	limit := int64(defaultHistoryLimit)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 || parsed > 250 {
			WriteError(w, r, apperrors.New(apperrors.CodeValidation, "limit must be between 1 and 250"))
			return
		}
		limit = parsed
	}

	events, err := s.svc.History.RecentWebhooks(ctx, session.Domain(), limit)
	if err != nil {
		WriteError(w, r, apperrors.Wrap(apperrors.CodeDependency, err, "failed to list webhooks"))
		return
	}

	out := make([]WebhookResponse, 0, len(events))
	for _, event := range events {
		item := WebhookResponse{
			ID:         event.ID,
			Topic:      event.Topic,
			WebhookID:  event.WebhookID,
			APIVersion: event.APIVersion,
			ReceivedAt: event.ReceivedAt.UTC().Format(time.RFC3339),
		}
		if json.Valid(event.Payload) {
			item.Payload = event.Payload
		}
		out = append(out, item)
	}
	WriteJSON(w, http.StatusOK, map[string]any{"webhooks": out})
}

// configureCredentials stores private app credentials for the shop
func (s *Server) configureCredentials(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session := domain.ShopSessionFromContext(ctx)

	var input application.PrivateAppInput
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&input); err != nil {
		WriteError(w, r, apperrors.Wrap(apperrors.CodeValidation, err, "invalid request body"))
		return
	}

	shop, err := s.svc.Credentials.ConfigurePrivateApp(ctx, session.Domain(), &input)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"shop": shop.Domain, "private_app": shop.IsPrivateApp()})
}

// deleteCredentials reverts the shop to the app-wide credentials
func (s *Server) deleteCredentials(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session := domain.ShopSessionFromContext(ctx)

	if err := s.svc.Credentials.DeleteCredentials(ctx, session.Domain()); err != nil {
		WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
