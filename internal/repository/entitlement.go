package repository

import (
	"context"
	"course-checkout/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type EntitlementRepository interface {
	// Grant inserts the entitlement unless one already exists for the same
	// provider reference. created is false for a repeated grant.
	Grant(ctx context.Context, entitlement *model.Entitlement) (created bool, err error)
	FindByReference(ctx context.Context, provider, reference string) (*model.Entitlement, error)
}

type entitlementRepoImpl struct {
	db *gorm.DB
}

func NewEntitlementRepository(db *gorm.DB) EntitlementRepository {
	return &entitlementRepoImpl{
		db: db,
	}
}

func (r *entitlementRepoImpl) Grant(ctx context.Context, entitlement *model.Entitlement) (bool, error) {
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "provider"}, {Name: "provider_reference"}},
		DoNothing: true,
	}).Create(entitlement)
	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}

func (r *entitlementRepoImpl) FindByReference(ctx context.Context, provider, reference string) (*model.Entitlement, error) {
	var entitlement model.Entitlement
	err := r.db.WithContext(ctx).
		Where("provider = ? AND provider_reference = ?", provider, reference).
		First(&entitlement).Error
	if err != nil {
		return nil, err
	}

	return &entitlement, nil
}
