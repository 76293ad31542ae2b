package entity

import (
	"time"

	"github.com/niveshsaharan/centire-shopify/internal/domain"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PlanRow is an admin-managed billing plan
type PlanRow struct {
	ID           string              `gorm:"primaryKey;type:varchar(36)"`
	Name         string              `gorm:"not null"`
	Type         string              `gorm:"not null;default:recurring"`
	Price        decimal.Decimal     `gorm:"type:decimal(10,2);not null"`
	CappedAmount decimal.NullDecimal `gorm:"type:decimal(10,2)"`
	Terms        string
	TrialDays    int  `gorm:"not null;default:0"`
	Priority     int  `gorm:"not null;default:0;index"`
	Active       bool `gorm:"not null;default:true"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (PlanRow) TableName() string { return "plans" }

func (p *PlanRow) ToDomain() domain.Plan {
	return domain.Plan{
		ID:           p.ID,
		Name:         p.Name,
		Type:         domain.ChargeType(p.Type),
		Price:        p.Price,
		CappedAmount: fromNull(p.CappedAmount),
		Terms:        p.Terms,
		TrialDays:    p.TrialDays,
		Priority:     p.Priority,
		Active:       p.Active,
		CreatedAt:    p.CreatedAt,
	}
}

// DiscountRow reduces a plan price for one shop
type DiscountRow struct {
	ID        string          `gorm:"primaryKey;type:varchar(36)"`
	ShopID    string          `gorm:"not null;index:idx_discounts_shop_plan"`
	PlanID    string          `gorm:"not null;index:idx_discounts_shop_plan"`
	Type      string          `gorm:"not null;default:FLAT"`
	Amount    decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Active    bool            `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (DiscountRow) TableName() string { return "discounts" }

func (d *DiscountRow) ToDomain() *domain.Discount {
	return &domain.Discount{
		ID:        d.ID,
		ShopID:    d.ShopID,
		PlanID:    d.PlanID,
		Type:      domain.DiscountType(d.Type),
		Amount:    d.Amount,
		Active:    d.Active,
		CreatedAt: d.CreatedAt,
	}
}

// TesterRow marks a shop domain that is always billed in test mode
type TesterRow struct {
	ID         uint   `gorm:"primaryKey"`
	ShopDomain string `gorm:"not null;uniqueIndex"`
	CreatedAt  time.Time
}

func (TesterRow) TableName() string { return "testers" }

// ChargeRow is the local record of one Shopify charge
type ChargeRow struct {
	ID           string              `gorm:"primaryKey;type:varchar(36)"`
	ChargeID     uint64              `gorm:"not null;index:idx_charges_shop_charge"`
	ShopID       string              `gorm:"not null;index:idx_charges_shop_charge"`
	PlanID       string              `gorm:"type:varchar(36)"`
	Type         string              `gorm:"not null"`
	Status       string              `gorm:"not null"`
	Name         string
	Price        decimal.Decimal     `gorm:"type:decimal(10,2);not null"`
	Discount     decimal.Decimal     `gorm:"type:decimal(10,2);not null;default:0"`
	CappedAmount decimal.NullDecimal `gorm:"type:decimal(10,2)"`
	Terms        string
	Test         bool `gorm:"not null;default:false"`
	TrialDays    int  `gorm:"not null;default:0"`
	TrialEndsOn  *time.Time
	BillingOn    *time.Time
	ActivatedOn  *time.Time
	CancelledOn  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    gorm.DeletedAt `gorm:"index"`
}

func (ChargeRow) TableName() string { return "charges" }

func (c *ChargeRow) ToDomain() *domain.Charge {
	return &domain.Charge{
		ID:           c.ID,
		ChargeID:     c.ChargeID,
		ShopID:       c.ShopID,
		PlanID:       c.PlanID,
		Type:         domain.ChargeType(c.Type),
		Status:       domain.ChargeStatus(c.Status),
		Name:         c.Name,
		Price:        c.Price,
		Discount:     c.Discount,
		CappedAmount: fromNull(c.CappedAmount),
		Terms:        c.Terms,
		Test:         c.Test,
		TrialDays:    c.TrialDays,
		TrialEndsOn:  c.TrialEndsOn,
		BillingOn:    c.BillingOn,
		ActivatedOn:  c.ActivatedOn,
		CancelledOn:  c.CancelledOn,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

// ChargeRowFromDomain converts a domain charge into a row
func ChargeRowFromDomain(charge *domain.Charge) *ChargeRow {
	return &ChargeRow{
		ID:           charge.ID,
		ChargeID:     charge.ChargeID,
		ShopID:       charge.ShopID,
		PlanID:       charge.PlanID,
		Type:         string(charge.Type),
		Status:       string(charge.Status),
		Name:         charge.Name,
		Price:        charge.Price,
		Discount:     charge.Discount,
		CappedAmount: toNull(charge.CappedAmount),
		Terms:        charge.Terms,
		Test:         charge.Test,
		TrialDays:    charge.TrialDays,
		TrialEndsOn:  charge.TrialEndsOn,
		BillingOn:    charge.BillingOn,
		ActivatedOn:  charge.ActivatedOn,
		CancelledOn:  charge.CancelledOn,
		CreatedAt:    charge.CreatedAt,
		UpdatedAt:    charge.UpdatedAt,
	}
}

// BillingModels lists every billing table for migrations
func BillingModels() []any {
	return []any{&PlanRow{}, &DiscountRow{}, &TesterRow{}, &ChargeRow{}}
}

func fromNull(value decimal.NullDecimal) *decimal.Decimal {
	if !value.Valid {
		return nil
	}
	d := value.Decimal
	return &d
}

func toNull(value *decimal.Decimal) decimal.NullDecimal {
	if value == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(*value)
}
