package service

import (
	"context"
	"course-checkout/internal/apperror"
	"course-checkout/internal/identity"
	"course-checkout/internal/model"
	"course-checkout/internal/repository"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var hundred = decimal.NewFromInt(100)

type CouponRequest struct {
	Code     string
	Item     *model.PurchasableItem
	Amount   decimal.Decimal
	Currency string
	Caller   identity.Caller
}

// CouponOutcome is the result of an accepted coupon. When Free is set the
// amounts are meaningless and no use has been counted yet.
type CouponOutcome struct {
	Coupon      *model.Coupon
	Free        bool
	Discount    decimal.Decimal
	FinalAmount decimal.Decimal
}

type CouponEngine interface {
	// Apply validates the coupon and, for a discount coupon, counts one use.
	Apply(ctx context.Context, req CouponRequest) (*CouponOutcome, error)
	// RedeemFree validates a free-entitlement coupon and counts one use.
	RedeemFree(ctx context.Context, req CouponRequest) (*model.Coupon, error)
}

type couponEngineImpl struct {
	couponRepo repository.CouponRepository
	now        func() time.Time
}

func NewCouponEngine(couponRepo repository.CouponRepository) CouponEngine {
	return &couponEngineImpl{
		couponRepo: couponRepo,
		now:        time.Now,
	}
}

// NormalizeCouponCode trims and upper-cases a user supplied code.
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (e *couponEngineImpl) Apply(ctx context.Context, req CouponRequest) (*CouponOutcome, error) {
	coupon, err := e.validate(ctx, req)
	if err != nil {
		return nil, err
	}

	if coupon.GrantsFree {
		return &CouponOutcome{Coupon: coupon, Free: true}, nil
	}

	discount, err := discountFor(coupon, req.Amount)
	if err != nil {
		return nil, err
	}
	final := req.Amount.Sub(discount)
	if !final.IsPositive() {
		return nil, apperror.CouponRejected(apperror.ReasonFreeEnrollmentMismatch,
			"coupon covers the full price, use the free enrollment flow")
	}

	if err := e.redeem(ctx, coupon, req.Caller); err != nil {
		return nil, err
	}

	return &CouponOutcome{
		Coupon:      coupon,
		Discount:    discount,
		FinalAmount: final,
	}, nil
}

func (e *couponEngineImpl) RedeemFree(ctx context.Context, req CouponRequest) (*model.Coupon, error) {
	coupon, err := e.validate(ctx, req)
	if err != nil {
		return nil, err
	}
	if !coupon.GrantsFree {
		return nil, apperror.CouponRejected(apperror.ReasonFreeEnrollmentMismatch,
			"coupon does not grant free access")
	}

	if err := e.redeem(ctx, coupon, req.Caller); err != nil {
		return nil, err
	}
	return coupon, nil
}

// validate runs the eligibility checks in a fixed order and stops at the
// first failure.
func (e *couponEngineImpl) validate(ctx context.Context, req CouponRequest) (*model.Coupon, error) {
	code := NormalizeCouponCode(req.Code)
	if code == "" {
		return nil, apperror.CouponRejected(apperror.ReasonInvalid, "coupon code is empty")
	}

	coupon, err := e.couponRepo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.CouponRejected(apperror.ReasonInvalid, "coupon does not exist")
		}
		return nil, fmt.Errorf("find coupon: %w", err)
	}
	if !coupon.IsActive {
		return nil, apperror.CouponRejected(apperror.ReasonInvalid, "coupon is not active")
	}

	now := e.now()
	if coupon.ValidFrom != nil && now.Before(*coupon.ValidFrom) {
		return nil, apperror.CouponRejected(apperror.ReasonExpired, "coupon is not valid yet")
	}
	if coupon.ValidUntil != nil && now.After(*coupon.ValidUntil) {
		return nil, apperror.CouponRejected(apperror.ReasonExpired, "coupon has expired")
	}

	if coupon.CurrencyCode != nil && *coupon.CurrencyCode != "" &&
		!strings.EqualFold(*coupon.CurrencyCode, req.Currency) {
		return nil, apperror.CouponRejected(apperror.ReasonWrongCurrency,
			fmt.Sprintf("coupon only applies to %s", *coupon.CurrencyCode))
	}

	if coupon.ItemID != nil && *coupon.ItemID != "" && (req.Item == nil || *coupon.ItemID != req.Item.ID) {
		return nil, apperror.CouponRejected(apperror.ReasonWrongScope, "coupon does not apply to this item")
	}

	if coupon.PerUserLimit > 0 {
		uses, err := e.couponRepo.UserUses(ctx, coupon.ID, req.Caller.ID())
		if err != nil {
			return nil, fmt.Errorf("count coupon uses: %w", err)
		}
		if uses >= coupon.PerUserLimit {
			return nil, exhausted()
		}
	}
	if coupon.UsageLimit > 0 && coupon.UsageCount >= coupon.UsageLimit {
		return nil, exhausted()
	}

	return coupon, nil
}

func (e *couponEngineImpl) redeem(ctx context.Context, coupon *model.Coupon, caller identity.Caller) error {
	err := e.couponRepo.Redeem(ctx, coupon.ID, caller.ID(), coupon.PerUserLimit)
	if errors.Is(err, repository.ErrCouponExhausted) {
		return exhausted()
	}
	if err != nil {
		return fmt.Errorf("redeem coupon: %w", err)
	}
	return nil
}

func discountFor(coupon *model.Coupon, amount decimal.Decimal) (decimal.Decimal, error) {
	value := decimal.NewFromFloat(coupon.DiscountValue)
	if !value.IsPositive() {
		return decimal.Zero, apperror.CouponRejected(apperror.ReasonInvalid, "coupon has no discount")
	}

	switch coupon.DiscountType {
	case model.DiscountPercent:
		if value.GreaterThan(hundred) {
			value = hundred
		}
		return amount.Mul(value).Div(hundred).Round(2), nil
	case model.DiscountFixed:
		return value.Round(2), nil
	default:
		return decimal.Zero, apperror.CouponRejected(apperror.ReasonInvalid,
			fmt.Sprintf("unknown discount type %q", coupon.DiscountType))
	}
}

func exhausted() error {
	return apperror.CouponRejected(apperror.ReasonExhausted, "coupon usage limit reached")
}
