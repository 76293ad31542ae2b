package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/niveshsaharan/centire-shopify/internal/domain"
	"github.com/niveshsaharan/centire-shopify/internal/ports"
	apperrors "github.com/niveshsaharan/centire-shopify/pkg/errors"

	"github.com/rs/zerolog"
)

// ErrJobSkipped is returned when another worker holds the shop's lock
var ErrJobSkipped = errors.New("job skipped: shop is locked")

// AfterAuthenticateFunc runs once after a shop first authenticates
type AfterAuthenticateFunc func(ctx context.Context, session *domain.ShopSession) error

// JobRunnerConfig bounds retries and lock lifetimes
type JobRunnerConfig struct {
	LockTTL     time.Duration
	MaxAttempts int
	PollTimeout time.Duration
}

// JobRunner executes queued jobs for shops
type JobRunner struct {
	queue      ports.JobQueue
	locker     ports.ShopLocker
	shops      ports.ShopRepository
	webhooks   *WebhookManager
	scriptTags *ScriptTagManager
	storefront *StorefrontTokenManager
	registry   *WebhookRegistry
	afterAuth  map[string]AfterAuthenticateFunc
	metrics    ports.Metrics
	cfg        JobRunnerConfig
	logger     zerolog.Logger
}

// NewJobRunner creates a new job runner
func NewJobRunner(
	queue ports.JobQueue,
	locker ports.ShopLocker,
	shops ports.ShopRepository,
	webhooks *WebhookManager,
	scriptTags *ScriptTagManager,
	storefront *StorefrontTokenManager,
	registry *WebhookRegistry,
	metrics ports.Metrics,
	cfg JobRunnerConfig,
	logger zerolog.Logger,
) *JobRunner {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 2 * time.Minute
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 5 * time.Second
	}
	return &JobRunner{
		queue:      queue,
		locker:     locker,
		shops:      shops,
		webhooks:   webhooks,
		scriptTags: scriptTags,
		storefront: storefront,
		registry:   registry,
		afterAuth:  make(map[string]AfterAuthenticateFunc),
		metrics:    metrics,
		cfg:        cfg,
		logger:     logger,
	}
}

// RegisterAfterAuthenticate binds a named after-authenticate job
func (r *JobRunner) RegisterAfterAuthenticate(name string, fn AfterAuthenticateFunc) error {
	if _, exists := r.afterAuth[name]; exists {
		return apperrors.New(apperrors.CodeValidation, fmt.Sprintf("after authenticate job already registered: %s", name))
	}
	r.afterAuth[name] = fn
	return nil
}

// ValidateAfterAuthenticate fails when a configured job name has no implementation
func (r *JobRunner) ValidateAfterAuthenticate(names []string) error {
	for _, name := range names {
		if _, ok := r.afterAuth[name]; !ok {
			return apperrors.New(apperrors.CodeValidation, fmt.Sprintf("unknown after authenticate job: %s", name))
		}
	}
	return nil
}

// Run executes a single job
func (r *JobRunner) Run(ctx context.Context, job *domain.Job) error {
	// uninstall webhooks arrive after the shop may already be trashed
	shop, err := r.shops.FindByDomain(ctx, job.Shop, job.Kind == domain.JobWebhook)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDependency, err, "load shop")
	}
	if shop == nil {
		r.logger.Warn().Strs("tags", job.Tags()).Msg("Shop not found, dropping job")
		return nil
	}
	session := domain.NewShopSession(shop)

	switch job.Kind {
	case domain.JobWebhook:
		handler, ok := r.registry.HandlerFor(job.Name)
		if !ok {
			return MissingHandlerError(job.Name)
		}
		event := &domain.WebhookEvent{ID: job.ID, Topic: job.Name, Shop: job.Shop, Payload: job.Payload, ReceivedAt: job.EnqueuedAt}
		return handler.Handle(ctx, session, event)

	case domain.JobWebhooksInstaller:
		return r.locked(ctx, job, func() error {
			_, err := r.webhooks.Reconcile(ctx, session)
			return err
		})

	case domain.JobScriptTagsInstaller:
		return r.locked(ctx, job, func() error {
			_, err := r.scriptTags.Reconcile(ctx, session)
			return err
		})

	case domain.JobStorefrontTokensInstaller:
		return r.locked(ctx, job, func() error {
			_, err := r.storefront.Ensure(ctx, session)
			return err
		})

	case domain.JobAfterAuthenticate:
		fn, ok := r.afterAuth[job.Name]
		if !ok {
			return apperrors.New(apperrors.CodeValidation, fmt.Sprintf("unknown after authenticate job: %s", job.Name))
		}
		return r.locked(ctx, job, func() error {
			return fn(ctx, session)
		})

	default:
		return apperrors.New(apperrors.CodeValidation, fmt.Sprintf("unknown job kind: %s", job.Kind))
	}
}

func (r *JobRunner) locked(ctx context.Context, job *domain.Job, fn func() error) error {
	key := fmt.Sprintf("lock:%s:%s:%s", job.Shop, job.Kind, job.Name)
	release, ok, err := r.locker.Acquire(ctx, key, r.cfg.LockTTL)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDependency, err, "acquire shop lock")
	}
	if !ok {
		return ErrJobSkipped
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			r.logger.Warn().Err(err).Str("lock", key).Msg("Failed to release shop lock")
		}
	}()
	return fn()
}

// Process runs a job and re-enqueues retryable failures until MaxAttempts
func (r *JobRunner) Process(ctx context.Context, job *domain.Job) {
	logger := r.logger.With().Strs("tags", job.Tags()).Str("job_id", job.ID).Logger()
	started := time.Now()

	err := r.Run(ctx, job)
	outcome := "succeeded"

	switch {
	case err == nil:
		logger.Info().Dur("duration", time.Since(started)).Msg("Job completed")
	case errors.Is(err, ErrJobSkipped):
		outcome = "skipped"
		logger.Info().Msg("Job skipped, shop is locked")
	case apperrors.IsRetryable(err) && job.Attempts+1 < r.cfg.MaxAttempts:
		outcome = "retried"
		job.Attempts++
		logger.Warn().Err(err).Int("attempts", job.Attempts).Msg("Job failed, retrying")
		if qerr := r.queue.Enqueue(ctx, job); qerr != nil {
			outcome = "failed"
			logger.Error().Err(qerr).Msg("Failed to re-enqueue job")
		}
	default:
		outcome = "failed"
		logger.Error().Err(err).Int("attempts", job.Attempts+1).Msg("Job failed")
	}

	if r.metrics != nil {
		r.metrics.ObserveJob(string(job.Kind), outcome)
	}
}

// Work consumes the queue until ctx is cancelled
func (r *JobRunner) Work(ctx context.Context) error {
	r.logger.Info().Msg("Worker started")
	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("Worker stopped")
			return nil
		default:
		}

		job, err := r.queue.Dequeue(ctx, r.cfg.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.logger.Error().Err(err).Msg("Failed to dequeue job")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}
		if job == nil {
			continue
		}
		r.Process(ctx, job)
	}
}
