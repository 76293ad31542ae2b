package application

import (
	"context"
	"fmt"
	"time"

	"github.com/niveshsaharan/centire-shopify/internal/domain"
	"github.com/niveshsaharan/centire-shopify/internal/ports"
	apperrors "github.com/niveshsaharan/centire-shopify/pkg/errors"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	MessageChargeDeclined   = "It seems you have declined the billing charge for this application."
	MessageActivationFailed = "An error has occurred while activating the charge."
	MessageVerifyFailed     = "An error has occurred while verifying the charge."
	MessageChargeNotFound   = "Charge was not found."
)

// BillingConfig controls charge verification and plan pricing
type BillingConfig struct {
	Enabled         bool
	FreePlanEnabled bool
	ReturnURL       string
	MinPrice        decimal.Decimal
}

// VerificationOutcome tells the caller where a shop must go next
type VerificationOutcome int

const (
	VerifyPass VerificationOutcome = iota
	VerifyRedirectProcess
	VerifyRedirectConfirmation
	VerifyRedirectBilling
	VerifyRedirectAuth
)

func (o VerificationOutcome) String() string {
	switch o {
	case VerifyPass:
		return "pass"
	case VerifyRedirectProcess:
		return "redirect_process"
	case VerifyRedirectConfirmation:
		return "redirect_confirmation"
	case VerifyRedirectBilling:
		return "redirect_billing"
	default:
		return "redirect_auth"
	}
}

// Verification is the routing decision of the charge state machine
type Verification struct {
	Outcome  VerificationOutcome
	ChargeID uint64
	URL      string
	Message  string
}

// BillingService composes plan selection, charge verification and activation
type BillingService struct {
	plan    *BillingPlan
	billing ports.BillingRepository
	shops   ports.ShopRepository
	events  ports.EventPublisher
	metrics ports.Metrics
	cfg     BillingConfig
	now     func() time.Time
	logger  zerolog.Logger
}

// NewBillingService creates a new billing service
func NewBillingService(
	plan *BillingPlan,
	billing ports.BillingRepository,
	shops ports.ShopRepository,
	events ports.EventPublisher,
	metrics ports.Metrics,
	cfg BillingConfig,
	logger zerolog.Logger,
) *BillingService {
	return &BillingService{
		plan:    plan,
		billing: billing,
		shops:   shops,
		events:  events,
		metrics: metrics,
		cfg:     cfg,
		now:     time.Now,
		logger:  logger,
	}
}

// Enabled reports whether charge verification runs at all
func (s *BillingService) Enabled() bool {
	return s.cfg.Enabled
}

// PlanDetails picks the plan for the shop and prices it: discount, minimum price,
// test flag, capped amount and trial days carried over from a cancelled charge
func (s *BillingService) PlanDetails(ctx context.Context, session *domain.ShopSession) (*domain.ChargeDetails, error) {
	if session == nil || session.Shop == nil {
		return nil, apperrors.New(apperrors.CodeUnauthorized, "login is required to access the billing page")
	}
	shop := session.Shop

	plans, err := s.billing.ActivePlans(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load plans: %w", err)
	}
	plan := domain.SelectPlan(plans)
	if plan == nil {
		return nil, apperrors.New(apperrors.CodeNotFound, "no active billing plan")
	}

	discount, err := s.billing.LatestActiveDiscount(ctx, shop.ID, plan.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load discount: %w", err)
	}
	price, off := domain.DiscountedPrice(plan.Price, discount, s.cfg.MinPrice)

	tester, err := s.billing.IsTester(ctx, shop.Domain)
	if err != nil {
		return nil, fmt.Errorf("failed to load testers: %w", err)
	}

	details := &domain.ChargeDetails{
		PlanID:    plan.ID,
		Type:      plan.Type,
		Name:      plan.Name,
		Price:     &price,
		ReturnURL: s.cfg.ReturnURL,
		TrialDays: plan.TrialDays,
		Test:      !price.IsPositive() || tester,
		Discount:  off,
	}

	if plan.IsCapped() {
		capped := *plan.CappedAmount
		if capped.IsZero() {
			capped = decimal.NewFromInt(1)
		}
		details.CappedAmount = &capped
		details.Terms = plan.Terms
	}

	last, err := s.billing.LatestCharge(ctx, shop.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load last charge: %w", err)
	}
	if last != nil && last.IsCancelled() {
		details.TrialDays = last.RemainingTrialDaysFromCancel()
	}

	return details, nil
}

// ConfirmationURL prices the plan, creates the charge and returns Shopify's approval page
func (s *BillingService) ConfirmationURL(ctx context.Context, session *domain.ShopSession) (string, error) {
	details, err := s.PlanDetails(ctx, session)
	if err != nil {
		return "", err
	}
	return s.plan.ConfirmationURL(ctx, session, details)
}

// VerifyCharge routes the shop according to the live status of its current charge.
// Lookup failures cancel the local charge and send the shop back to billing.
func (s *BillingService) VerifyCharge(ctx context.Context, session *domain.ShopSession) Verification {
	verification := s.verifyCharge(ctx, session)
	if s.metrics != nil {
		s.metrics.ObserveChargeVerification(verification.Outcome.String())
	}
	return verification
}

func (s *BillingService) verifyCharge(ctx context.Context, session *domain.ShopSession) Verification {
	if !s.cfg.Enabled {
		return Verification{Outcome: VerifyPass}
	}
	if session == nil || session.Shop == nil {
		return Verification{Outcome: VerifyRedirectAuth}
	}
	if session.Shop.IsGrandfathered() {
		return Verification{Outcome: VerifyPass}
	}

	current, err := s.billing.CurrentCharge(ctx, session.Shop.ID)
	if err != nil {
		s.logger.Error().Err(err).Str("shop", session.Domain()).Msg("Failed to load current charge")
		return Verification{Outcome: VerifyRedirectBilling, Message: MessageVerifyFailed}
	}
	if current == nil {
		return Verification{Outcome: VerifyRedirectBilling}
	}

	lookup := s.plan.GetCharge(ctx, session, current.Type, current.ChargeID)
	switch lookup.Kind {
	case LookupTransportFailure:
		s.logger.Error().Err(lookup.Err).Str("shop", session.Domain()).Uint64("charge_id", current.ChargeID).Msg("Charge verification failed")
		s.cancelLocal(ctx, session, current)
		return Verification{Outcome: VerifyRedirectBilling, Message: MessageVerifyFailed}
	case LookupNotFound:
		s.cancelLocal(ctx, session, current)
		return Verification{Outcome: VerifyRedirectBilling}
	}

	remote := lookup.Charge
	switch remote.Status {
	case domain.ChargeStatusAccepted:
		return Verification{Outcome: VerifyRedirectProcess, ChargeID: remote.ID}
	case domain.ChargeStatusActive:
		return Verification{Outcome: VerifyPass, ChargeID: remote.ID}
	case domain.ChargeStatusPending:
		return Verification{Outcome: VerifyRedirectConfirmation, ChargeID: remote.ID, URL: remote.ConfirmationURL}
	default:
		s.logger.Info().
			Str("shop", session.Domain()).
			Uint64("charge_id", remote.ID).
			Str("status", string(remote.Status)).
			Msg("Charge no longer valid, cancelling")
		s.cancelLocal(ctx, session, current)
		return Verification{Outcome: VerifyRedirectBilling}
	}
}

// cancelLocal is last-write-wins; failures are logged and swallowed
func (s *BillingService) cancelLocal(ctx context.Context, session *domain.ShopSession, charge *domain.Charge) {
	charge.Cancel(s.now().UTC())
	if err := s.billing.SaveCharge(ctx, charge); err != nil {
		s.logger.Error().Err(err).Uint64("charge_id", charge.ChargeID).Msg("Failed to cancel local charge")
	}

	shop := session.Shop
	if shop.ChargeID == charge.ChargeID {
		shop.ChargeID = 0
		if err := s.shops.Save(ctx, shop); err != nil {
			s.logger.Error().Err(err).Str("shop", shop.Domain).Msg("Failed to clear shop charge")
		}
	}
}

// Process handles the merchant returning from Shopify's approval page.
// Accepted charges are activated; anything else is recorded as declined.
func (s *BillingService) Process(ctx context.Context, session *domain.ShopSession, chargeID uint64) Verification {
	if session == nil || session.Shop == nil {
		return Verification{Outcome: VerifyRedirectAuth, Message: "Login is required to access the billing page."}
	}
	shop := session.Shop

	local, err := s.billing.FindCharge(ctx, shop.ID, chargeID)
	if err != nil || local == nil {
		s.logger.Warn().Err(err).Str("shop", shop.Domain).Uint64("charge_id", chargeID).Msg("Charge not found locally")
		return Verification{Outcome: VerifyRedirectAuth, Message: MessageChargeNotFound}
	}

	lookup := s.plan.GetCharge(ctx, session, local.Type, chargeID)
	if lookup.Kind != LookupOK {
		s.logger.Error().Err(lookup.Err).Str("shop", shop.Domain).Str("lookup", lookup.Kind.String()).Msg("Charge activation lookup failed")
		return Verification{Outcome: VerifyRedirectAuth, Message: MessageActivationFailed}
	}
	remote := lookup.Charge

	local.Name = remote.Name
	local.Price = remote.Price
	local.Test = remote.Test
	local.TrialDays = remote.TrialDays
	if remote.CappedAmount != nil {
		local.CappedAmount = remote.CappedAmount
		local.Terms = remote.Terms
	}

	switch remote.Status {
	case domain.ChargeStatusAccepted, domain.ChargeStatusActive:
		return s.activate(ctx, session, local, remote)
	default:
		local.Decline(s.now().UTC())
		if err := s.billing.SaveCharge(ctx, local); err != nil {
			s.logger.Error().Err(err).Uint64("charge_id", chargeID).Msg("Failed to record declined charge")
		}
		return Verification{Outcome: VerifyRedirectAuth, ChargeID: chargeID, Message: MessageChargeDeclined}
	}
}

func (s *BillingService) activate(ctx context.Context, session *domain.ShopSession, local *domain.Charge, remote *domain.RemoteCharge) Verification {
	shop := session.Shop

	// the remote approval wins over a local cancel from a newer /billing visit
	if local.IsCancelled() {
		s.logger.Info().Str("shop", shop.Domain).Uint64("charge_id", remote.ID).Str("status", string(local.Status)).Msg("Reinstating charge approved on Shopify")
		local.Reinstate()
	}

	if remote.Status == domain.ChargeStatusAccepted {
		activated, err := s.plan.Activate(ctx, session, local.Type, remote.ID)
		if err != nil {
			s.logger.Error().Err(err).Str("shop", shop.Domain).Uint64("charge_id", remote.ID).Msg("Charge activation failed")
			return Verification{Outcome: VerifyRedirectAuth, Message: MessageActivationFailed}
		}
		remote = activated
		if local.Status == domain.ChargeStatusPending {
			_ = local.Transition(domain.ChargeStatusAccepted)
		}
	}

	if local.Status != domain.ChargeStatusActive {
		if err := local.Transition(domain.ChargeStatusActive); err != nil {
			s.logger.Error().Err(err).Str("shop", shop.Domain).Msg("Charge cannot be activated")
			return Verification{Outcome: VerifyRedirectAuth, Message: MessageActivationFailed}
		}
	}
	local.BillingOn = remote.BillingOn
	local.TrialEndsOn = remote.TrialEndsOn
	local.ActivatedOn = remote.ActivatedOn
	if local.ActivatedOn == nil {
		now := s.now().UTC()
		local.ActivatedOn = &now
	}

	if err := s.billing.ActivateCharge(ctx, local, s.now().UTC()); err != nil {
		s.logger.Error().Err(err).Uint64("charge_id", remote.ID).Msg("Failed to save activated charge")
		return Verification{Outcome: VerifyRedirectAuth, Message: MessageActivationFailed}
	}

	shop.ChargeID = remote.ID
	if err := s.shops.Save(ctx, shop); err != nil {
		s.logger.Error().Err(err).Str("shop", shop.Domain).Msg("Failed to store shop charge")
		return Verification{Outcome: VerifyRedirectAuth, Message: MessageActivationFailed}
	}

	s.logger.Info().Str("shop", shop.Domain).Uint64("charge_id", remote.ID).Msg("Charge activated")
	if s.events != nil {
		event := domain.NewShopEvent(domain.EventChargeActivated, shop.Domain)
		event.ChargeID = remote.ID
		s.events.Publish(event)
	}

	return Verification{Outcome: VerifyPass, ChargeID: remote.ID}
}

// RequirePayment gates paid routes: a shop must hold a charge or be grandfathered
func (s *BillingService) RequirePayment(session *domain.ShopSession) error {
	if !s.cfg.Enabled || s.cfg.FreePlanEnabled {
		return nil
	}
	if session == nil || session.Shop == nil {
		return apperrors.New(apperrors.CodeUnauthorized, "unauthorized")
	}
	if session.Shop.IsPaid() || session.Shop.IsGrandfathered() {
		return nil
	}
	return apperrors.New(apperrors.CodePaymentRequired, "payment required")
}
