package application

import (
	"context"
	"fmt"
	"time"

	"github.com/niveshsaharan/centire-shopify/internal/domain"
	"github.com/niveshsaharan/centire-shopify/internal/ports"
	apperrors "github.com/niveshsaharan/centire-shopify/pkg/errors"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// LookupKind discriminates the result of a remote charge lookup
type LookupKind int

const (
	LookupOK LookupKind = iota
	LookupNotFound
	LookupTransportFailure
)

func (k LookupKind) String() string {
	switch k {
	case LookupOK:
		return "ok"
	case LookupNotFound:
		return "not_found"
	default:
		return "transport_failure"
	}
}

// ChargeLookup is either a charge, a not-found, or a transport failure
type ChargeLookup struct {
	Kind   LookupKind
	Charge *domain.RemoteCharge
	Err    error
}

// BillingPlan wraps a single charge lifecycle against the Shopify billing API
type BillingPlan struct {
	clients  ports.ShopClientFactory
	billing  ports.BillingRepository
	events   ports.EventPublisher
	validate *validator.Validate
	now      func() time.Time
	logger   zerolog.Logger
}

// NewBillingPlan creates a new billing plan
func NewBillingPlan(
	clients ports.ShopClientFactory,
	billing ports.BillingRepository,
	events ports.EventPublisher,
	logger zerolog.Logger,
) *BillingPlan {
	return &BillingPlan{
		clients:  clients,
		billing:  billing,
		events:   events,
		validate: validator.New(),
		now:      time.Now,
		logger:   logger,
	}
}

func (p *BillingPlan) validateDetails(details *domain.ChargeDetails) error {
	if details == nil {
		return apperrors.New(apperrors.CodeValidation, "plan details are missing for confirmation url request")
	}
	if err := p.validate.Struct(details); err != nil {
		fields := map[string]string{}
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				fields[fe.Field()] = fe.Tag()
			}
		}
		return apperrors.Wrap(apperrors.CodeValidation, err, "invalid charge details").WithDetails(fields)
	}
	return nil
}

// CreateCharge creates the charge on Shopify, then cancels every earlier charge of
// the shop and stores the new one as pending
func (p *BillingPlan) CreateCharge(ctx context.Context, session *domain.ShopSession, details *domain.ChargeDetails) (*domain.RemoteCharge, error) {
	if err := p.validateDetails(details); err != nil {
		return nil, err
	}

	client, err := clientForSession(p.clients, session)
	if err != nil {
		return nil, err
	}

	remote, err := client.CreateCharge(ctx, details.Type, ports.ChargeRequest{
		Name:         details.Name,
		Price:        *details.Price,
		ReturnURL:    details.ReturnURL,
		TrialDays:    details.TrialDays,
		Test:         details.Test,
		CappedAmount: details.CappedAmount,
		Terms:        details.Terms,
	})
	if err != nil {
		return nil, transportError(err, "create charge")
	}
	if remote == nil || remote.ID == 0 {
		return nil, apperrors.New(apperrors.CodeDependency, "charge could not be created")
	}

	now := p.now().UTC()
	charge := &domain.Charge{
		ID:           uuid.NewString(),
		ChargeID:     remote.ID,
		ShopID:       session.Shop.ID,
		PlanID:       details.PlanID,
		Type:         details.Type,
		Name:         details.Name,
		Price:        remote.Price,
		Discount:     details.Discount,
		CappedAmount: details.CappedAmount,
		Terms:        details.Terms,
		Test:         remote.Test,
		TrialDays:    remote.TrialDays,
		TrialEndsOn:  remote.TrialEndsOn,
		BillingOn:    remote.BillingOn,
		ActivatedOn:  remote.ActivatedOn,
		CreatedAt:    now,
	}
	if remote.CreatedAt != nil {
		charge.CreatedAt = remote.CreatedAt.UTC()
	}
	if err := charge.Transition(domain.ChargeStatusPending); err != nil {
		return nil, err
	}

	if err := p.billing.CreatePendingCharge(ctx, charge, now); err != nil {
		return nil, fmt.Errorf("failed to store charge: %w", err)
	}

	p.logger.Info().
		Str("shop", session.Domain()).
		Uint64("charge_id", remote.ID).
		Str("type", string(details.Type)).
		Bool("test", remote.Test).
		Msg("Created charge")

	if p.events != nil {
		event := domain.NewShopEvent(domain.EventChargeCreated, session.Domain())
		event.ChargeID = remote.ID
		p.events.Publish(event)
	}

	return remote, nil
}

// ConfirmationURL creates the charge and returns where the merchant approves it
func (p *BillingPlan) ConfirmationURL(ctx context.Context, session *domain.ShopSession, details *domain.ChargeDetails) (string, error) {
	remote, err := p.CreateCharge(ctx, session, details)
	if err != nil {
		return "", err
	}
	if remote.ConfirmationURL == "" {
		return "", apperrors.New(apperrors.CodeNotFound, "charge was not found")
	}
	return remote.ConfirmationURL, nil
}

// GetCharge fetches the live status of a charge
func (p *BillingPlan) GetCharge(ctx context.Context, session *domain.ShopSession, chargeType domain.ChargeType, chargeID uint64) ChargeLookup {
	if chargeID == 0 {
		return ChargeLookup{Kind: LookupNotFound, Err: apperrors.New(apperrors.CodeValidation, "no charge id set")}
	}

	client, err := clientForSession(p.clients, session)
	if err != nil {
		return ChargeLookup{Kind: LookupTransportFailure, Err: err}
	}

	remote, err := client.GetCharge(ctx, chargeType, chargeID)
	switch {
	case apperrors.Is(err, apperrors.CodeNotFound):
		return ChargeLookup{Kind: LookupNotFound, Err: err}
	case err != nil:
		return ChargeLookup{Kind: LookupTransportFailure, Err: transportError(err, "get charge")}
	case remote == nil || remote.ID == 0:
		return ChargeLookup{Kind: LookupNotFound, Err: apperrors.New(apperrors.CodeNotFound, "charge was not found")}
	}
	return ChargeLookup{Kind: LookupOK, Charge: remote}
}

// Activate activates an accepted charge
func (p *BillingPlan) Activate(ctx context.Context, session *domain.ShopSession, chargeType domain.ChargeType, chargeID uint64) (*domain.RemoteCharge, error) {
	if chargeID == 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "no charge id set")
	}

	client, err := clientForSession(p.clients, session)
	if err != nil {
		return nil, err
	}

	remote, err := client.ActivateCharge(ctx, chargeType, chargeID)
	if err != nil {
		return nil, transportError(err, "activate charge")
	}
	if remote == nil || remote.ID == 0 {
		return nil, apperrors.New(apperrors.CodeNotFound, "charge could not be activated")
	}
	return remote, nil
}
