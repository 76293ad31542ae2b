package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Plan is an admin-managed billing plan
type Plan struct {
	ID           string
	Name         string
	Type         ChargeType
	Price        decimal.Decimal
	CappedAmount *decimal.Decimal
	Terms        string
	TrialDays    int
	Priority     int
	Active       bool
	CreatedAt    time.Time
}

// IsCapped reports whether the plan bills usage up to a capped amount
func (p *Plan) IsCapped() bool {
	return p.CappedAmount != nil
}

// SelectPlan returns the active plan with the lowest priority.
// Ties keep the first plan found.
func SelectPlan(plans []Plan) *Plan {
	var selected *Plan
	for i := range plans {
		plan := &plans[i]
		if !plan.Active {
			continue
		}
		if selected == nil || plan.Priority < selected.Priority {
			selected = plan
		}
	}
	return selected
}

type DiscountType string

const (
	DiscountTypeFlat       DiscountType = "FLAT"
	DiscountTypePercentage DiscountType = "PERCENTAGE"
)

// Discount reduces a plan price for one shop
type Discount struct {
	ID        string
	ShopID    string
	PlanID    string
	Type      DiscountType
	Amount    decimal.Decimal
	Active    bool
	CreatedAt time.Time
}

var hundred = decimal.NewFromInt(100)

// AmountFor computes the discount for a price, clamped to [0, price]
func (d *Discount) AmountFor(price decimal.Decimal) decimal.Decimal {
	if d == nil || !d.Active || !price.IsPositive() {
		return decimal.Zero
	}

	var amount decimal.Decimal
	switch d.Type {
	case DiscountTypePercentage:
		amount = price.Mul(d.Amount).Div(hundred)
	default:
		amount = d.Amount
	}

	if amount.IsNegative() {
		return decimal.Zero
	}
	if amount.GreaterThan(price) {
		return price
	}
	return amount
}

// DiscountedPrice applies a discount and floors the result at the minimum price.
// The returned discount is the amount actually taken off.
func DiscountedPrice(price decimal.Decimal, discount *Discount, minimum decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	off := discount.AmountFor(price)
	final := price.Sub(off)
	if final.LessThan(minimum) {
		final = minimum
		off = decimal.Max(price.Sub(final), decimal.Zero)
	}
	if final.IsNegative() {
		final = decimal.Zero
	}
	return final, off
}

// ChargeDetails is everything needed to create a charge on Shopify
type ChargeDetails struct {
	PlanID       string
	Type         ChargeType       `validate:"required,oneof=recurring single usage credit"`
	Name         string           `validate:"required"`
	Price        *decimal.Decimal `validate:"required"`
	ReturnURL    string           `validate:"required,url"`
	TrialDays    int              `validate:"gte=0"`
	Test         bool
	Discount     decimal.Decimal
	CappedAmount *decimal.Decimal
	Terms        string
}
