package service

import (
	"context"
	"course-checkout/internal/apperror"
	"course-checkout/internal/client"
	"course-checkout/internal/identity"
	"course-checkout/internal/metrics"
	"course-checkout/internal/model"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

type CheckoutRequest struct {
	Network      model.Network
	ItemKind     model.ItemKind
	ItemSlug     string
	Currency     string
	DurationDays int
	CouponCode   string
	Caller       identity.Caller
	// Inbound is the client request; its headers give the public origin.
	Inbound *http.Request
}

type FreeEnrollmentRequest struct {
	ItemKind   model.ItemKind
	ItemSlug   string
	Currency   string
	CouponCode string
	Caller     identity.Caller
}

// CheckoutResult is either a provider redirect or, when Free is set, a free
// enrollment that never reached a provider.
type CheckoutResult struct {
	Free              bool
	CouponCode        string
	CouponID          string
	RedirectURL       string
	ProviderReference string
}

type CheckoutService interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error)
	FreeEnrollment(ctx context.Context, req FreeEnrollmentRequest) (*CheckoutResult, error)
}

type checkoutServiceImpl struct {
	pricing         PricingResolver
	coupons         CouponEngine
	codec           CorrelationCodec
	urls            *URLBuilder
	granter         EntitlementGranter
	metrics         *metrics.Checkout
	adapters        map[model.Network]client.ProviderAdapter
	defaultCurrency map[model.Network]string
}

// NewCheckoutService wires the orchestrator. defaultCurrency is keyed by
// network; the NetworkAny entry is used for free enrollments.
func NewCheckoutService(
	pricing PricingResolver,
	coupons CouponEngine,
	urls *URLBuilder,
	granter EntitlementGranter,
	m *metrics.Checkout,
	defaultCurrency map[model.Network]string,
	adapters ...client.ProviderAdapter,
) CheckoutService {
	byNetwork := make(map[model.Network]client.ProviderAdapter, len(adapters))
	for _, a := range adapters {
		byNetwork[a.Network()] = a
	}
	return &checkoutServiceImpl{
		pricing:         pricing,
		coupons:         coupons,
		urls:            urls,
		granter:         granter,
		metrics:         m,
		adapters:        byNetwork,
		defaultCurrency: defaultCurrency,
	}
}

func (s *checkoutServiceImpl) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	operation := "create-" + operationSuffix(req.ItemKind)

	result, err := s.createCheckout(ctx, req)
	s.metrics.Observe(string(req.Network), operation, outcomeOf(result, err))
	return result, err
}

func (s *checkoutServiceImpl) createCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	adapter, ok := s.adapters[req.Network]
	if !ok {
		return nil, apperror.Validation("unsupported payment network %q", req.Network)
	}

	req.ItemSlug = strings.TrimSpace(req.ItemSlug)
	if req.ItemSlug == "" {
		return nil, apperror.Validation("item_slug is required")
	}
	if req.DurationDays < 0 {
		return nil, apperror.Validation("duration must not be negative")
	}
	if req.Inbound == nil {
		return nil, fmt.Errorf("checkout request has no inbound http request")
	}

	if req.Caller.IsZero() {
		return nil, apperror.Unauthenticated("no authenticated caller", nil)
	}

	currency := strings.TrimSpace(req.Currency)
	if currency == "" {
		currency = s.defaultCurrency[req.Network]
	}

	quote, err := s.pricing.Resolve(ctx, PricingRequest{
		Network:      req.Network,
		ItemKind:     req.ItemKind,
		ItemSlug:     req.ItemSlug,
		Currency:     currency,
		DurationDays: req.DurationDays,
		CouponCode:   req.CouponCode,
		Caller:       req.Caller,
	})
	if err != nil {
		return nil, err
	}

	if quote.Free {
		log.WithFields(log.Fields{
			"network": req.Network,
			"item":    req.ItemSlug,
			"coupon":  quote.CouponCode,
		}).Info("coupon grants free access, skipping provider")
		return &CheckoutResult{
			Free:       true,
			CouponCode: quote.CouponCode,
			CouponID:   quote.Coupon.ID,
		}, nil
	}

	payload := CorrelationPayload{
		UserID:       req.Caller.ID(),
		ItemType:     req.ItemKind,
		ItemRef:      quote.Item.Slug,
		DurationDays: quote.DurationDays,
	}
	if quote.Coupon != nil {
		payload.CouponID = quote.Coupon.ID
	}
	token, err := s.codec.Encode(payload)
	if err != nil {
		return nil, err
	}

	intent := client.ChargeIntent{
		ItemID:           quote.Item.ID,
		Title:            quote.Item.Title,
		Description:      quote.Item.Description,
		Amount:           quote.Amount,
		Currency:         quote.Currency,
		PayerEmail:       req.Caller.Email(),
		CorrelationToken: token,
		URLs:             s.urls.BackURLs(req.Inbound, req.Network, req.ItemKind, quote.Item.Slug),
	}

	start := time.Now()
	charge, err := adapter.CreateCharge(ctx, intent)
	s.metrics.ObserveProviderCall(string(req.Network), "create-charge", start)
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"network": req.Network,
			"item":    req.ItemSlug,
		}).Warn("provider rejected charge")
		return nil, err
	}

	log.WithFields(log.Fields{
		"network":   req.Network,
		"item":      req.ItemSlug,
		"amount":    quote.Amount.StringFixed(2),
		"currency":  quote.Currency,
		"reference": charge.ProviderReference,
	}).Info("charge created")

	return &CheckoutResult{
		RedirectURL:       charge.RedirectURL,
		ProviderReference: charge.ProviderReference,
	}, nil
}

// FreeEnrollment redeems a free access coupon and grants the entitlement
// directly. A coupon that only discounts is rejected before any use is
// counted.
func (s *checkoutServiceImpl) FreeEnrollment(ctx context.Context, req FreeEnrollmentRequest) (*CheckoutResult, error) {
	result, err := s.freeEnrollment(ctx, req)
	s.metrics.Observe(string(model.NetworkAny), "free-enrollment", outcomeOf(result, err))
	return result, err
}

func (s *checkoutServiceImpl) freeEnrollment(ctx context.Context, req FreeEnrollmentRequest) (*CheckoutResult, error) {
	req.ItemSlug = strings.TrimSpace(req.ItemSlug)
	code := NormalizeCouponCode(req.CouponCode)
	if req.ItemSlug == "" {
		return nil, apperror.Validation("item_slug is required")
	}
	if code == "" {
		return nil, apperror.Validation("coupon_code is required")
	}
	if req.Caller.IsZero() {
		return nil, apperror.Unauthenticated("no authenticated caller", nil)
	}

	currency := strings.TrimSpace(req.Currency)
	if currency == "" {
		currency = s.defaultCurrency[model.NetworkAny]
	}

	// priced without the coupon so that a discount coupon is not redeemed here
	quote, err := s.pricing.Resolve(ctx, PricingRequest{
		Network:  model.NetworkAny,
		ItemKind: req.ItemKind,
		ItemSlug: req.ItemSlug,
		Currency: currency,
		Caller:   req.Caller,
	})
	if err != nil {
		return nil, err
	}

	coupon, err := s.coupons.RedeemFree(ctx, CouponRequest{
		Code:     code,
		Item:     quote.Item,
		Amount:   quote.BaseAmount,
		Currency: quote.Currency,
		Caller:   req.Caller,
	})
	if err != nil {
		return nil, err
	}

	_, err = s.granter.Grant(ctx, GrantRequest{
		Payload: CorrelationPayload{
			UserID:       req.Caller.ID(),
			ItemType:     req.ItemKind,
			ItemRef:      quote.Item.Slug,
			DurationDays: quote.DurationDays,
			CouponID:     coupon.ID,
		},
		Provider:          ProviderCoupon,
		ProviderReference: FreeEnrollmentReference(coupon.ID, req.Caller.ID()),
	})
	if err != nil {
		return nil, err
	}

	return &CheckoutResult{
		Free:       true,
		CouponCode: code,
		CouponID:   coupon.ID,
	}, nil
}

func operationSuffix(kind model.ItemKind) string {
	if kind == model.ItemKindPlan {
		return "subscription"
	}
	return "course"
}

func outcomeOf(result *CheckoutResult, err error) string {
	if err == nil {
		if result != nil && result.Free {
			return metrics.OutcomeFreeEnrollment
		}
		return metrics.OutcomeOK
	}

	var appErr *apperror.Error
	if !errors.As(err, &appErr) {
		return metrics.OutcomeError
	}
	switch appErr.Kind {
	case apperror.KindProvider:
		return metrics.OutcomeProviderError
	case apperror.KindCatalogMisconfigured, apperror.KindFatal:
		return metrics.OutcomeError
	default:
		return metrics.OutcomeRejected
	}
}
