package service

import (
	"context"
	"course-checkout/internal/apperror"
	"course-checkout/internal/model"
	"course-checkout/internal/repository"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestPricing(t *testing.T) (PricingResolver, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	resolver := NewPricingResolver(
		repository.NewItemRepository(db),
		repository.NewPriceRepository(db),
		NewCouponEngine(repository.NewCouponRepository(db)),
	)
	return resolver, db
}

func TestPricingResolver_PrefersNetworkSpecificRow(t *testing.T) {
	pricing, db := newTestPricing(t)
	seedItem(t, db, course101,
		model.PriceRow{CurrencyCode: "USD", Amount: 50, Scope: model.NetworkAny, IsActive: true, DurationDays: 365},
		model.PriceRow{CurrencyCode: "USD", Amount: 40, Scope: model.NetworkPaypal, IsActive: true, DurationDays: 365},
	)
	caller := callerFor(t, "user-1", "")

	quote, err := pricing.Resolve(context.Background(), PricingRequest{
		Network: model.NetworkPaypal, ItemKind: model.ItemKindCourse, ItemSlug: "course-101", Currency: "usd", Caller: caller,
	})
	require.NoError(t, err)
	assert.Equal(t, "40", quote.Amount.String())
	assert.Equal(t, "USD", quote.Currency)
	assert.Equal(t, 365, quote.DurationDays)

	quote, err = pricing.Resolve(context.Background(), PricingRequest{
		Network: model.NetworkMercadoPago, ItemKind: model.ItemKindCourse, ItemSlug: "course-101", Currency: "USD", Caller: caller,
	})
	require.NoError(t, err)
	assert.Equal(t, "50", quote.Amount.String())
}

func TestPricingResolver_Errors(t *testing.T) {
	pricing, db := newTestPricing(t)
	seedItem(t, db, course101,
		model.PriceRow{CurrencyCode: "ARS", Amount: 50000, Scope: model.NetworkAny, IsActive: true, DurationDays: 365},
		model.PriceRow{CurrencyCode: "BRL", Amount: 0, Scope: model.NetworkAny, IsActive: true, DurationDays: 365},
		model.PriceRow{CurrencyCode: "CLP", Amount: -10, Scope: model.NetworkAny, IsActive: true, DurationDays: 365},
		model.PriceRow{CurrencyCode: "MXN", Amount: 900, Scope: model.NetworkAny, IsActive: true, DurationDays: 0},
		model.PriceRow{CurrencyCode: "UYU", Amount: 0.001, Scope: model.NetworkAny, IsActive: true, DurationDays: 30},
	)
	seedItem(t, db, model.PurchasableItem{ID: "item-old", Kind: model.ItemKindCourse, Slug: "retired", Title: "Retired", IsActive: false},
		model.PriceRow{CurrencyCode: "ARS", Amount: 100, Scope: model.NetworkAny, IsActive: true, DurationDays: 30},
	)
	caller := callerFor(t, "user-1", "")

	tests := []struct {
		name     string
		slug     string
		kind     model.ItemKind
		currency string
		duration int
		status   int
		reason   string
	}{
		{"unknown item", "course-999", model.ItemKindCourse, "ARS", 0, http.StatusNotFound, apperror.ReasonNotFound},
		{"wrong kind", "course-101", model.ItemKindPlan, "ARS", 0, http.StatusNotFound, apperror.ReasonNotFound},
		{"inactive item", "retired", model.ItemKindCourse, "ARS", 0, http.StatusNotFound, apperror.ReasonNotFound},
		{"no price in currency", "course-101", model.ItemKindCourse, "EUR", 0, http.StatusNotFound, apperror.ReasonNoActivePrice},
		{"no price for duration", "course-101", model.ItemKindCourse, "ARS", 30, http.StatusNotFound, apperror.ReasonNoActivePrice},
		{"zero price", "course-101", model.ItemKindCourse, "BRL", 0, http.StatusInternalServerError, ""},
		{"negative price", "course-101", model.ItemKindCourse, "CLP", 0, http.StatusInternalServerError, ""},
		{"no duration", "course-101", model.ItemKindCourse, "MXN", 0, http.StatusInternalServerError, ""},
		{"rounds to zero", "course-101", model.ItemKindCourse, "UYU", 0, http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := pricing.Resolve(context.Background(), PricingRequest{
				Network:      model.NetworkMercadoPago,
				ItemKind:     tt.kind,
				ItemSlug:     tt.slug,
				Currency:     tt.currency,
				DurationDays: tt.duration,
				Caller:       caller,
			})
			require.Error(t, err)
			appErr := apperror.From(err)
			assert.Equal(t, tt.status, appErr.Status)
			assert.Equal(t, tt.reason, appErr.Reason)
			if tt.status == http.StatusInternalServerError {
				assert.Equal(t, apperror.KindCatalogMisconfigured, appErr.Kind)
			}
		})
	}
}

func TestPricingResolver_FreeCouponShortCircuits(t *testing.T) {
	pricing, db := newTestPricing(t)
	seedItem(t, db, course101,
		model.PriceRow{CurrencyCode: "ARS", Amount: 50000, Scope: model.NetworkAny, IsActive: true, DurationDays: 365},
	)
	seedCoupon(t, db, model.Coupon{ID: "c-free", Code: "BECA100", IsActive: true, DiscountType: model.DiscountPercent, GrantsFree: true})

	quote, err := pricing.Resolve(context.Background(), PricingRequest{
		Network: model.NetworkMercadoPago, ItemKind: model.ItemKindCourse, ItemSlug: "course-101", Currency: "ARS",
		CouponCode: " beca100 ", Caller: callerFor(t, "user-1", ""),
	})
	require.NoError(t, err)
	assert.True(t, quote.Free)
	assert.True(t, quote.Amount.IsZero())
	assert.Equal(t, "BECA100", quote.CouponCode)
	assert.Equal(t, "c-free", quote.Coupon.ID)
}
