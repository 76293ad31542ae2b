package application

import (
	"context"
	"fmt"

	"github.com/niveshsaharan/centire-shopify/internal/domain"
	"github.com/niveshsaharan/centire-shopify/internal/ports"
	apperrors "github.com/niveshsaharan/centire-shopify/pkg/errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// WebhookService verifies webhook deliveries and hands them to the job queue
type WebhookService struct {
	oauth       ports.OAuthApp
	credentials *CredentialsService
	registry    *WebhookRegistry
	eventLog    ports.WebhookEventLog
	queue       ports.JobQueue
	events      ports.EventPublisher
	configured  map[string]struct{}
	logger      zerolog.Logger
}

// NewWebhookService creates a new webhook service; webhooks is the configured set
func NewWebhookService(
	oauth ports.OAuthApp,
	credentials *CredentialsService,
	registry *WebhookRegistry,
	eventLog ports.WebhookEventLog,
	queue ports.JobQueue,
	events ports.EventPublisher,
	webhooks []domain.WebhookSpec,
	logger zerolog.Logger,
) *WebhookService {
	configured := make(map[string]struct{}, len(webhooks))
	for _, w := range webhooks {
		configured[domain.NormalizeTopic(w.Topic)] = struct{}{}
	}
	return &WebhookService{
		oauth:       oauth,
		credentials: credentials,
		registry:    registry,
		eventLog:    eventLog,
		queue:       queue,
		events:      events,
		configured:  configured,
		logger:      logger,
	}
}

// Verify checks the delivery signature against the shop's private app secret
// when it has one, otherwise against the app secret
func (s *WebhookService) Verify(ctx context.Context, shopDomain string, body []byte, hmacHeader string) error {
	if shopDomain == "" || hmacHeader == "" {
		return apperrors.New(apperrors.CodeUnauthorized, "missing webhook signature headers")
	}

	secret, err := s.credentials.WebhookSecret(ctx, shopDomain)
	if err != nil {
		return err
	}
	if !s.oauth.VerifyWebhook(body, hmacHeader, secret) {
		s.logger.Warn().Str("shop", shopDomain).Msg("Invalid webhook signature")
		return apperrors.New(apperrors.CodeUnauthorized, "invalid webhook signature")
	}
	return nil
}

// Receive logs a verified delivery and queues its handler.
// A configured topic without a handler is a validation error; any other
// unhandled topic is accepted and dropped.
func (s *WebhookService) Receive(ctx context.Context, event *domain.WebhookEvent) error {
	event.Topic = domain.NormalizeTopic(event.Topic)
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	if err := s.eventLog.LogWebhook(ctx, event); err != nil {
		s.logger.Error().Err(err).Str("topic", event.Topic).Str("shop", event.Shop).Msg("Failed to log webhook")
	}

	if s.events != nil {
		published := domain.NewShopEvent(domain.EventWebhookReceived, event.Shop)
		published.Topic = event.Topic
		s.events.Publish(published)
	}

	if _, ok := s.registry.HandlerFor(event.Topic); !ok {
		if _, expected := s.configured[event.Topic]; expected {
			return MissingHandlerError(event.Topic)
		}
		s.logger.Debug().Str("topic", event.Topic).Str("shop", event.Shop).Msg("No handler for webhook topic")
		return nil
	}

	job := domain.NewJob(domain.JobWebhook, event.Shop, event.Topic, event.Payload)
	if err := s.queue.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("failed to enqueue webhook job: %w", err)
	}

	s.logger.Info().
		Str("topic", event.Topic).
		Str("shop", event.Shop).
		Str("job_id", job.ID).
		Msg("Queued webhook job")
	return nil
}
