package domain

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/niveshsaharan/centire-shopify/pkg/errors"
	"github.com/shopspring/decimal"
)

// ChargeType selects the Shopify billing API a charge lives in
type ChargeType string

const (
	ChargeTypeRecurring ChargeType = "recurring"
	ChargeTypeSingle    ChargeType = "single"
	ChargeTypeUsage     ChargeType = "usage"
	ChargeTypeCredit    ChargeType = "credit"
)

// IsOneTime reports whether the charge is billed through the application charge API
func (t ChargeType) IsOneTime() bool {
	return t == ChargeTypeSingle
}

// ChargeStatus is the Shopify status of a charge
type ChargeStatus string

const (
	// ChargeStatusNone is the status of a charge that does not exist remotely yet
	ChargeStatusNone      ChargeStatus = ""
	ChargeStatusPending   ChargeStatus = "pending"
	ChargeStatusAccepted  ChargeStatus = "accepted"
	ChargeStatusActive    ChargeStatus = "active"
	ChargeStatusDeclined  ChargeStatus = "declined"
	ChargeStatusExpired   ChargeStatus = "expired"
	ChargeStatusFrozen    ChargeStatus = "frozen"
	ChargeStatusCancelled ChargeStatus = "cancelled"
)

// IsValid reports whether the status is one Shopify can return
func (s ChargeStatus) IsValid() bool {
	switch s {
	case ChargeStatusPending, ChargeStatusAccepted, ChargeStatusActive, ChargeStatusDeclined,
		ChargeStatusExpired, ChargeStatusFrozen, ChargeStatusCancelled:
		return true
	default:
		return false
	}
}

// ParseChargeStatus accepts both REST ("active") and GraphQL ("ACTIVE") spellings
func ParseChargeStatus(raw string) (ChargeStatus, error) {
	status := ChargeStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !status.IsValid() {
		return ChargeStatusNone, apperrors.New(apperrors.CodeValidation, fmt.Sprintf("unknown charge status %q", raw))
	}
	return status, nil
}

// CanTransition encodes none -> pending -> accepted|declined, accepted -> active, any -> cancelled.
// pending -> active is an implied accept; active and frozen toggle when Shopify freezes a shop.
func CanTransition(from, to ChargeStatus) bool {
	if to == ChargeStatusCancelled {
		return true
	}
	switch from {
	case ChargeStatusNone:
		return to == ChargeStatusPending
	case ChargeStatusPending:
		return to == ChargeStatusAccepted || to == ChargeStatusDeclined ||
			to == ChargeStatusActive || to == ChargeStatusExpired
	case ChargeStatusAccepted:
		return to == ChargeStatusActive || to == ChargeStatusExpired
	case ChargeStatusActive:
		return to == ChargeStatusFrozen
	case ChargeStatusFrozen:
		return to == ChargeStatusActive
	default:
		return false
	}
}

// Charge is the local record of one billing attempt for a shop
type Charge struct {
	ID           string
	ChargeID     uint64
	ShopID       string
	PlanID       string
	Type         ChargeType
	Status       ChargeStatus
	Name         string
	Price        decimal.Decimal
	Discount     decimal.Decimal
	CappedAmount *decimal.Decimal
	Terms        string
	Test         bool
	TrialDays    int
	TrialEndsOn  *time.Time
	BillingOn    *time.Time
	ActivatedOn  *time.Time
	CancelledOn  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (c *Charge) IsTest() bool  { return c.Test }
func (c *Charge) IsTrial() bool { return c.TrialDays > 0 }

func (c *Charge) IsAccepted() bool { return c.Status == ChargeStatusAccepted }
func (c *Charge) IsDeclined() bool { return c.Status == ChargeStatusDeclined }
func (c *Charge) IsActive() bool   { return c.Status == ChargeStatusActive }

// IsCancelled reports a charge that was cancelled or declined with a cancel date
func (c *Charge) IsCancelled() bool {
	return c.CancelledOn != nil || c.Status == ChargeStatusCancelled
}

// IsOngoing reports an active charge that has not been cancelled
func (c *Charge) IsOngoing() bool {
	return c.IsActive() && !c.IsCancelled()
}

// RemainingTrialDays counts whole days from today until the trial ends, never negative
func (c *Charge) RemainingTrialDays(now time.Time) int {
	if !c.IsTrial() || c.TrialEndsOn == nil {
		return 0
	}
	days := wholeDays(now, *c.TrialEndsOn)
	if days < 0 {
		return 0
	}
	return days
}

func (c *Charge) IsActiveTrial(now time.Time) bool {
	return c.IsTrial() && c.RemainingTrialDays(now) > 0
}

func (c *Charge) UsedTrialDays(now time.Time) int {
	if !c.IsTrial() {
		return 0
	}
	return c.TrialDays - c.RemainingTrialDays(now)
}

// RemainingTrialDaysFromCancel is the trial left unused when the charge was cancelled
func (c *Charge) RemainingTrialDaysFromCancel() int {
	if !c.IsTrial() || c.CancelledOn == nil {
		return 0
	}
	remaining := c.TrialDays - wholeDays(c.CreatedAt, *c.CancelledOn)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Transition moves the charge to a new status or returns a state conflict
func (c *Charge) Transition(to ChargeStatus) error {
	if !CanTransition(c.Status, to) {
		return apperrors.New(apperrors.CodeStateConflict,
			fmt.Sprintf("charge %d cannot move from %q to %q", c.ChargeID, c.Status, to))
	}
	c.Status = to
	return nil
}

func (c *Charge) Cancel(now time.Time) {
	c.Status = ChargeStatusCancelled
	c.CancelledOn = &now
}

func (c *Charge) Decline(now time.Time) {
	c.Status = ChargeStatusDeclined
	c.CancelledOn = &now
}

// Reinstate reopens a cancelled or declined charge that Shopify still reports as approved
func (c *Charge) Reinstate() {
	c.Status = ChargeStatusPending
	c.CancelledOn = nil
}

// RemoteCharge is a charge as Shopify reports it
type RemoteCharge struct {
	ID              uint64
	Name            string
	Status          ChargeStatus
	Price           decimal.Decimal
	Test            bool
	TrialDays       int
	ConfirmationURL string
	ReturnURL       string
	CappedAmount    *decimal.Decimal
	Terms           string
	BillingOn       *time.Time
	ActivatedOn     *time.Time
	TrialEndsOn     *time.Time
	CancelledOn     *time.Time
	CreatedAt       *time.Time
}

func wholeDays(from, to time.Time) int {
	start := truncateDay(from)
	end := truncateDay(to)
	return int(end.Sub(start).Hours() / 24)
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
