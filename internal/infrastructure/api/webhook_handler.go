package api

import (
	"io"
	"net/http"
	"time"

	"github.com/niveshsaharan/centire-shopify/internal/domain"
	apperrors "github.com/niveshsaharan/centire-shopify/pkg/errors"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const maxWebhookBody = 5 << 20

// webhook verifies a Shopify delivery and queues its handler.
// Shopify retries anything that is not a 2xx, so a configured topic without a
// handler answers 500.
func (s *Server) webhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)

	topic := r.Header.Get("X-Shopify-Topic")
	if topic == "" {
		topic = chi.URLParam(r, "type")
	}
	topic = domain.NormalizeTopic(topic)
	shopDomain := s.svc.Auth.SanitizeShop(r.Header.Get("X-Shopify-Shop-Domain"))

	status := http.StatusCreated
	defer func() {
		if s.svc.Metrics != nil {
			s.svc.Metrics.ObserveWebhook(topic, status)
		}
	}()

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		status = http.StatusBadRequest
		logger.Error().Err(err).Msg("Failed to read webhook payload")
		http.Error(w, "Failed to read request body", status)
		return
	}
	defer r.Body.Close()

	if err := s.svc.Webhooks.Verify(ctx, shopDomain, payload, r.Header.Get("X-Shopify-Hmac-Sha256")); err != nil {
		status = apperrors.MetadataFor(apperrors.CodeOf(err)).HTTPStatus
		WriteError(w, r, err)
		return
	}

	event := &domain.WebhookEvent{
		ID:         r.Header.Get("X-Shopify-Webhook-Id"),
		Topic:      topic,
		Shop:       shopDomain,
		WebhookID:  r.Header.Get("X-Shopify-Webhook-Id"),
		APIVersion: r.Header.Get("X-Shopify-Api-Version"),
		Payload:    payload,
		ReceivedAt: time.Now().UTC(),
	}

	if err := s.svc.Webhooks.Receive(ctx, event); err != nil {
		status = http.StatusInternalServerError
		logger.Error().
			Err(err).
			Str("topic", topic).
			Str("shop", shopDomain).
			Msg("Failed to accept webhook")
		message := "Failed to process webhook event"
		if apperrors.Is(err, apperrors.CodeValidation) {
			message = apperrors.As(err).Message()
		}
		WriteJSON(w, status, ErrorBody{Error: ErrorDetail{
			Code:    string(apperrors.CodeOf(err)),
			Message: message,
		}})
		return
	}

	w.WriteHeader(status)
}
