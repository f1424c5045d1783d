package service

import (
	"context"
	"course-checkout/internal/apperror"
	"course-checkout/internal/identity"
	"course-checkout/internal/model"
	"course-checkout/internal/repository"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type PricingRequest struct {
	Network      model.Network
	ItemKind     model.ItemKind
	ItemSlug     string
	Currency     string
	DurationDays int
	CouponCode   string
	Caller       identity.Caller
}

// Quote is either a charge (Free == false, Amount > 0) or a free enrollment
// that must not reach any provider.
type Quote struct {
	Item         *model.PurchasableItem
	Currency     string
	DurationDays int
	BaseAmount   decimal.Decimal
	Amount       decimal.Decimal
	Discount     decimal.Decimal
	Coupon       *model.Coupon
	Free         bool
	CouponCode   string
}

type PricingResolver interface {
	Resolve(ctx context.Context, req PricingRequest) (*Quote, error)
}

type pricingResolverImpl struct {
	itemRepo  repository.ItemRepository
	priceRepo repository.PriceRepository
	coupons   CouponEngine
}

func NewPricingResolver(
	itemRepo repository.ItemRepository,
	priceRepo repository.PriceRepository,
	coupons CouponEngine,
) PricingResolver {
	return &pricingResolverImpl{
		itemRepo:  itemRepo,
		priceRepo: priceRepo,
		coupons:   coupons,
	}
}

func (r *pricingResolverImpl) Resolve(ctx context.Context, req PricingRequest) (*Quote, error) {
	item, err := r.itemRepo.FindBySlug(ctx, req.ItemKind, req.ItemSlug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound(apperror.ReasonNotFound, "%s %q not found", req.ItemKind, req.ItemSlug)
		}
		return nil, fmt.Errorf("find item: %w", err)
	}
	if !item.IsActive {
		return nil, apperror.NotFound(apperror.ReasonNotFound, "%s %q is not available", req.ItemKind, req.ItemSlug)
	}

	currency := strings.ToUpper(req.Currency)
	rows, err := r.priceRepo.FindActive(ctx, item.ID, currency, req.Network, req.DurationDays)
	if err != nil {
		return nil, fmt.Errorf("find prices: %w", err)
	}
	row := selectPrice(rows, req.Network)
	if row == nil {
		return nil, apperror.NotFound(apperror.ReasonNoActivePrice, "no active %s price for %q", currency, req.ItemSlug)
	}

	if math.IsNaN(row.Amount) || math.IsInf(row.Amount, 0) || row.Amount <= 0 {
		log.WithFields(log.Fields{
			"item":     item.Slug,
			"currency": currency,
			"price_id": row.ID,
			"amount":   row.Amount,
		}).Error("catalog price is not a positive amount")
		return nil, apperror.CatalogMisconfigured("price %d for %q is not a positive amount", row.ID, item.Slug)
	}
	if row.DurationDays <= 0 {
		return nil, apperror.CatalogMisconfigured("price %d for %q has no entitlement duration", row.ID, item.Slug)
	}

	base := decimal.NewFromFloat(row.Amount).Round(2)
	if !base.IsPositive() {
		return nil, apperror.CatalogMisconfigured("price %d for %q rounds to zero", row.ID, item.Slug)
	}

	quote := &Quote{
		Item:         item,
		Currency:     currency,
		DurationDays: row.DurationDays,
		BaseAmount:   base,
		Amount:       base,
		Discount:     decimal.Zero,
	}

	code := NormalizeCouponCode(req.CouponCode)
	if code == "" {
		return quote, nil
	}

	outcome, err := r.coupons.Apply(ctx, CouponRequest{
		Code:     code,
		Item:     item,
		Amount:   base,
		Currency: currency,
		Caller:   req.Caller,
	})
	if err != nil {
		return nil, err
	}

	quote.Coupon = outcome.Coupon
	quote.CouponCode = code
	if outcome.Free {
		quote.Free = true
		quote.Amount = decimal.Zero
		return quote, nil
	}

	quote.Discount = outcome.Discount
	quote.Amount = outcome.FinalAmount
	return quote, nil
}

// selectPrice prefers a row scoped to the network over a provider-agnostic
// one; rows keep their store order within each group.
func selectPrice(rows []*model.PriceRow, network model.Network) *model.PriceRow {
	var fallback *model.PriceRow
	for _, row := range rows {
		if row.Scope == network {
			return row
		}
		if row.Scope == model.NetworkAny && fallback == nil {
			fallback = row
		}
	}
	return fallback
}
