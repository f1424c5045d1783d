package repository

import (
	"context"
	"course-checkout/internal/model"

	"gorm.io/gorm"
)

type ItemRepository interface {
	FindBySlug(ctx context.Context, kind model.ItemKind, slug string) (*model.PurchasableItem, error)
}

type PriceRepository interface {
	// FindActive returns active rows for the item and currency whose scope is
	// the given network or any. durationDays of 0 matches every duration.
	FindActive(ctx context.Context, itemID, currency string, scope model.Network, durationDays int) ([]*model.PriceRow, error)
}

type itemRepoImpl struct {
	db *gorm.DB
}

func NewItemRepository(db *gorm.DB) ItemRepository {
	return &itemRepoImpl{
		db: db,
	}
}

func (r *itemRepoImpl) FindBySlug(ctx context.Context, kind model.ItemKind, slug string) (*model.PurchasableItem, error) {
	var item model.PurchasableItem
	err := r.db.WithContext(ctx).
		Where("kind = ? AND slug = ?", kind, slug).
		First(&item).Error

	if err != nil {
		return nil, err
	}

	return &item, nil
}

type priceRepoImpl struct {
	db *gorm.DB
}

func NewPriceRepository(db *gorm.DB) PriceRepository {
	return &priceRepoImpl{
		db: db,
	}
}

func (r *priceRepoImpl) FindActive(ctx context.Context, itemID, currency string, scope model.Network, durationDays int) ([]*model.PriceRow, error) {
	var rows []*model.PriceRow
	q := r.db.WithContext(ctx).
		Where("item_id = ? AND currency_code = ? AND is_active = ?", itemID, currency, true).
		Where("scope IN ?", []model.Network{scope, model.NetworkAny})
	if durationDays > 0 {
		q = q.Where("duration_days = ?", durationDays)
	}

	err := q.Order("id").Find(&rows).Error
	if err != nil {
		return nil, err
	}

	return rows, nil
}
