package application

import (
	"context"
	"fmt"
	"sort"

	"github.com/niveshsaharan/centire-shopify/internal/domain"
	apperrors "github.com/niveshsaharan/centire-shopify/pkg/errors"

	"go.uber.org/multierr"
)

// WebhookHandler processes one webhook delivery for a shop
type WebhookHandler interface {
	Handle(ctx context.Context, session *domain.ShopSession, event *domain.WebhookEvent) error
}

// WebhookHandlerFunc adapts a function to WebhookHandler
type WebhookHandlerFunc func(ctx context.Context, session *domain.ShopSession, event *domain.WebhookEvent) error

func (f WebhookHandlerFunc) Handle(ctx context.Context, session *domain.ShopSession, event *domain.WebhookEvent) error {
	return f(ctx, session, event)
}

// WebhookRegistry maps webhook topics to handlers. It is filled at startup
// and read-only afterwards.
type WebhookRegistry struct {
	handlers map[string]WebhookHandler
}

// NewWebhookRegistry creates an empty registry
func NewWebhookRegistry() *WebhookRegistry {
	return &WebhookRegistry{handlers: make(map[string]WebhookHandler)}
}

// Register binds a handler to a topic; registering a topic twice is an error
func (r *WebhookRegistry) Register(topic string, handler WebhookHandler) error {
	key := domain.NormalizeTopic(topic)
	if key == "" || handler == nil {
		return apperrors.New(apperrors.CodeValidation, "webhook topic and handler are required")
	}
	if _, exists := r.handlers[key]; exists {
		return apperrors.New(apperrors.CodeValidation, fmt.Sprintf("webhook handler already registered for: %s", key))
	}
	r.handlers[key] = handler
	return nil
}

// HandlerFor returns the handler bound to a topic
func (r *WebhookRegistry) HandlerFor(topic string) (WebhookHandler, bool) {
	handler, ok := r.handlers[domain.NormalizeTopic(topic)]
	return handler, ok
}

// Topics lists the registered topics in order
func (r *WebhookRegistry) Topics() []string {
	topics := make([]string, 0, len(r.handlers))
	for topic := range r.handlers {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics
}

// Validate fails when a configured webhook has no registered handler
func (r *WebhookRegistry) Validate(webhooks []domain.WebhookSpec) error {
	var errs error
	for _, w := range webhooks {
		if _, ok := r.HandlerFor(w.Topic); !ok {
			errs = multierr.Append(errs, MissingHandlerError(w.Topic))
		}
	}
	return errs
}

// MissingHandlerError names a configured topic that nothing handles
func MissingHandlerError(topic string) error {
	return apperrors.New(apperrors.CodeValidation, fmt.Sprintf("Missing webhook job for: %s", domain.NormalizeTopic(topic)))
}
