package service

import (
	"context"
	"course-checkout/internal/model"
	"course-checkout/internal/repository"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// ProviderCoupon is the provider recorded for entitlements granted by a free
// enrollment coupon.
const ProviderCoupon = "coupon"

type GrantRequest struct {
	Payload           CorrelationPayload
	Provider          string
	ProviderReference string
}

// EntitlementGranter activates access after a confirmed payment. Granting the
// same provider reference twice is a no-op.
type EntitlementGranter interface {
	Grant(ctx context.Context, req GrantRequest) (*model.Entitlement, error)
}

type entitlementGranterImpl struct {
	entitlementRepo repository.EntitlementRepository
	now             func() time.Time
}

func NewEntitlementGranter(entitlementRepo repository.EntitlementRepository) EntitlementGranter {
	return &entitlementGranterImpl{
		entitlementRepo: entitlementRepo,
		now:             time.Now,
	}
}

func (g *entitlementGranterImpl) Grant(ctx context.Context, req GrantRequest) (*model.Entitlement, error) {
	if req.Provider == "" || req.ProviderReference == "" {
		return nil, fmt.Errorf("grant entitlement: missing provider reference")
	}

	now := g.now().UTC()
	entitlement := &model.Entitlement{
		ID:                uuid.NewString(),
		UserID:            req.Payload.UserID,
		ItemKind:          req.Payload.ItemType,
		ItemSlug:          req.Payload.ItemRef,
		Provider:          req.Provider,
		ProviderReference: req.ProviderReference,
		ExpiresAt:         now.AddDate(0, 0, req.Payload.DurationDays),
		CreatedAt:         now,
	}
	if req.Payload.CouponID != "" {
		couponID := req.Payload.CouponID
		entitlement.CouponID = &couponID
	}

	created, err := g.entitlementRepo.Grant(ctx, entitlement)
	if err != nil {
		return nil, fmt.Errorf("grant entitlement: %w", err)
	}
	if !created {
		log.WithFields(log.Fields{
			"provider":  req.Provider,
			"reference": req.ProviderReference,
		}).Info("entitlement already granted")
		return g.entitlementRepo.FindByReference(ctx, req.Provider, req.ProviderReference)
	}

	log.WithFields(log.Fields{
		"user_id":   entitlement.UserID,
		"item":      entitlement.ItemSlug,
		"provider":  entitlement.Provider,
		"reference": entitlement.ProviderReference,
	}).Info("entitlement granted")
	return entitlement, nil
}

// FreeEnrollmentReference is the provider reference of a coupon grant; one
// per coupon and user.
func FreeEnrollmentReference(couponID, userID string) string {
	return fmt.Sprintf("coupon:%s:%s", couponID, userID)
}
