package repository

import (
	"context"
	"course-checkout/internal/model"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrCouponExhausted is returned by Redeem when either the global or the
// per-user limit has already been reached.
var ErrCouponExhausted = errors.New("coupon usage limit reached")

type CouponRepository interface {
	FindByCode(ctx context.Context, code string) (*model.Coupon, error)
	UserUses(ctx context.Context, couponID, userID string) (int, error)
	Redeem(ctx context.Context, couponID, userID string, perUserLimit int) error
}

type couponRepoImpl struct {
	db *gorm.DB
}

func NewCouponRepository(db *gorm.DB) CouponRepository {
	return &couponRepoImpl{
		db: db,
	}
}

func (r *couponRepoImpl) FindByCode(ctx context.Context, code string) (*model.Coupon, error) {
	var coupon model.Coupon
	err := r.db.WithContext(ctx).
		Where("code = ?", code).
		First(&coupon).Error
	if err != nil {
		return nil, err
	}

	return &coupon, nil
}

func (r *couponRepoImpl) UserUses(ctx context.Context, couponID, userID string) (int, error) {
	var uses []int
	err := r.db.WithContext(ctx).
		Model(&model.CouponUserUsage{}).
		Where("coupon_id = ? AND user_id = ?", couponID, userID).
		Pluck("uses", &uses).Error
	if err != nil {
		return 0, err
	}
	if len(uses) == 0 {
		return 0, nil
	}

	return uses[0], nil
}

// Redeem counts one use of the coupon for the user. Both counters are bumped
// with conditional updates inside one transaction, so concurrent callers can
// never push a counter past its limit.
func (r *couponRepoImpl) Redeem(ctx context.Context, couponID, userID string, perUserLimit int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		if perUserLimit > 0 {
			err := tx.Clauses(clause.OnConflict{DoNothing: true}).
				Create(&model.CouponUserUsage{CouponID: couponID, UserID: userID}).Error
			if err != nil {
				return err
			}

			result := tx.Model(&model.CouponUserUsage{}).
				Where("coupon_id = ? AND user_id = ? AND uses < ?", couponID, userID, perUserLimit).
				Updates(map[string]interface{}{
					"uses":       gorm.Expr("uses + 1"),
					"updated_at": now,
				})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return ErrCouponExhausted
			}
		}

		result := tx.Model(&model.Coupon{}).
			Where("id = ? AND (usage_limit = 0 OR usage_count < usage_limit)", couponID).
			Updates(map[string]interface{}{
				"usage_count": gorm.Expr("usage_count + 1"),
				"updated_at":  now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrCouponExhausted
		}

		return nil
	})
}
