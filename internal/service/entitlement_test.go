package service

import (
	"context"
	"course-checkout/internal/model"
	"course-checkout/internal/repository"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntitlementGranter_GrantIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	granter := &entitlementGranterImpl{
		entitlementRepo: repository.NewEntitlementRepository(db),
		now:             func() time.Time { return now },
	}

	req := GrantRequest{
		Payload: CorrelationPayload{
			UserID: "user-1", ItemType: model.ItemKindCourse, ItemRef: "course-101", DurationDays: 30, CouponID: "c-1",
		},
		Provider:          string(model.NetworkMercadoPago),
		ProviderReference: "1319412345",
	}

	first, err := granter.Grant(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, now.AddDate(0, 0, 30), first.ExpiresAt)
	require.NotNil(t, first.CouponID)
	assert.Equal(t, "c-1", *first.CouponID)

	second, err := granter.Grant(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, db.Model(&model.Entitlement{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestEntitlementGranter_RequiresReference(t *testing.T) {
	granter := NewEntitlementGranter(repository.NewEntitlementRepository(newTestDB(t)))
	_, err := granter.Grant(context.Background(), GrantRequest{Provider: "paypal"})
	assert.Error(t, err)
}

func TestFreeEnrollmentReference(t *testing.T) {
	assert.Equal(t, "coupon:c-1:user-1", FreeEnrollmentReference("c-1", "user-1"))
}
