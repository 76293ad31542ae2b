package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/niveshsaharan/centire-shopify/internal/domain"
	"github.com/niveshsaharan/centire-shopify/internal/infrastructure/repository/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var billableTypes = []string{string(domain.ChargeTypeRecurring), string(domain.ChargeTypeSingle)}

// GormBillingRepository implements BillingRepository on a SQL database
type GormBillingRepository struct {
	db *gorm.DB
}

// NewGormBillingRepository creates a new billing repository
func NewGormBillingRepository(db *gorm.DB) *GormBillingRepository {
	return &GormBillingRepository{db: db}
}

// ActivePlans returns active plans ordered by priority
func (r *GormBillingRepository) ActivePlans(ctx context.Context) ([]domain.Plan, error) {
	var rows []entity.PlanRow
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("priority ASC").Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}

	plans := make([]domain.Plan, 0, len(rows))
	for i := range rows {
		plans = append(plans, rows[i].ToDomain())
	}
	return plans, nil
}

// LatestActiveDiscount returns the newest active discount for the shop and plan
func (r *GormBillingRepository) LatestActiveDiscount(ctx context.Context, shopID, planID string) (*domain.Discount, error) {
	var row entity.DiscountRow
	err := r.db.WithContext(ctx).
		Where("shop_id = ? AND plan_id = ? AND active = ?", shopID, planID, true).
		Order("created_at DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get discount: %w", err)
	}
	return row.ToDomain(), nil
}

// IsTester reports whether the shop is billed in test mode
func (r *GormBillingRepository) IsTester(ctx context.Context, shopDomain string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.TesterRow{}).
		Where("shop_domain = ?", shopDomain).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check tester: %w", err)
	}
	return count > 0, nil
}

// LatestCharge includes cancelled and soft deleted charges
func (r *GormBillingRepository) LatestCharge(ctx context.Context, shopID string) (*domain.Charge, error) {
	return r.firstCharge(r.db.WithContext(ctx).Unscoped().
		Where("shop_id = ? AND type IN ?", shopID, billableTypes))
}

// CurrentCharge returns the latest charge that was not cancelled
func (r *GormBillingRepository) CurrentCharge(ctx context.Context, shopID string) (*domain.Charge, error) {
	return r.firstCharge(r.db.WithContext(ctx).
		Where("shop_id = ? AND type IN ? AND cancelled_on IS NULL AND status <> ?",
			shopID, billableTypes, string(domain.ChargeStatusCancelled)))
}

// FindCharge looks a charge up by its Shopify id
func (r *GormBillingRepository) FindCharge(ctx context.Context, shopID string, chargeID uint64) (*domain.Charge, error) {
	return r.firstCharge(r.db.WithContext(ctx).
		Where("shop_id = ? AND charge_id = ?", shopID, chargeID))
}

func (r *GormBillingRepository) firstCharge(query *gorm.DB) (*domain.Charge, error) {
	var row entity.ChargeRow
	err := query.Order("created_at DESC").Order("charge_id DESC").First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get charge: %w", err)
	}
	return row.ToDomain(), nil
}

// CreatePendingCharge cancels the shop's open charges and stores the new one
func (r *GormBillingRepository) CreatePendingCharge(ctx context.Context, charge *domain.Charge, now time.Time) error {
	row := entity.ChargeRowFromDomain(charge)
	if row.ID == "" {
		row.ID = uuid.NewString()
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := cancelOpen(tx, charge.ShopID, now); err != nil {
			return err
		}
		return tx.Create(row).Error
	})
	if err != nil {
		return fmt.Errorf("failed to create charge: %w", err)
	}

	charge.ID = row.ID
	charge.CreatedAt = row.CreatedAt
	charge.UpdatedAt = row.UpdatedAt
	return nil
}

// SaveCharge upserts a charge by its Shopify id
func (r *GormBillingRepository) SaveCharge(ctx context.Context, charge *domain.Charge) error {
	row := entity.ChargeRowFromDomain(charge)
	db := r.db.WithContext(ctx)

	if row.ID == "" {
		var existing entity.ChargeRow
		err := db.Unscoped().
			Where("shop_id = ? AND charge_id = ?", charge.ShopID, charge.ChargeID).
			First(&existing).Error
		switch {
		case err == nil:
			row.ID = existing.ID
			row.CreatedAt = existing.CreatedAt
		case errors.Is(err, gorm.ErrRecordNotFound):
			row.ID = uuid.NewString()
		default:
			return fmt.Errorf("failed to get charge: %w", err)
		}
	}

	if err := db.Save(row).Error; err != nil {
		return fmt.Errorf("failed to save charge: %w", err)
	}

	charge.ID = row.ID
	charge.CreatedAt = row.CreatedAt
	charge.UpdatedAt = row.UpdatedAt
	return nil
}

// ActivateCharge saves the activated charge and cancels the shop's other open charges
func (r *GormBillingRepository) ActivateCharge(ctx context.Context, charge *domain.Charge, now time.Time) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&entity.ChargeRow{}).
			Where("shop_id = ? AND charge_id <> ? AND cancelled_on IS NULL", charge.ShopID, charge.ChargeID).
			Updates(map[string]any{
				"status":       string(domain.ChargeStatusCancelled),
				"cancelled_on": now,
			}).Error
		if err != nil {
			return err
		}
		return NewGormBillingRepository(tx).SaveCharge(ctx, charge)
	})
	if err != nil {
		return fmt.Errorf("failed to activate charge: %w", err)
	}
	return nil
}

// CancelCharges cancels and soft deletes every charge of the shop
func (r *GormBillingRepository) CancelCharges(ctx context.Context, shopID string, now time.Time) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := cancelOpen(tx, shopID, now); err != nil {
			return err
		}
		return tx.Where("shop_id = ?", shopID).Delete(&entity.ChargeRow{}).Error
	})
	if err != nil {
		return fmt.Errorf("failed to cancel charges: %w", err)
	}
	return nil
}

// RestoreCharges undoes the soft delete applied on uninstall
func (r *GormBillingRepository) RestoreCharges(ctx context.Context, shopID string) error {
	err := r.db.WithContext(ctx).Unscoped().
		Model(&entity.ChargeRow{}).
		Where("shop_id = ? AND deleted_at IS NOT NULL", shopID).
		Update("deleted_at", nil).Error
	if err != nil {
		return fmt.Errorf("failed to restore charges: %w", err)
	}
	return nil
}

func cancelOpen(tx *gorm.DB, shopID string, now time.Time) error {
	return tx.Model(&entity.ChargeRow{}).
		Where("shop_id = ? AND cancelled_on IS NULL", shopID).
		Updates(map[string]any{
			"status":       string(domain.ChargeStatusCancelled),
			"cancelled_on": now,
		}).Error
}
