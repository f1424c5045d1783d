package handler

import (
	"course-checkout/internal/apperror"
	"course-checkout/internal/dto"
	"course-checkout/internal/middleware"
	"course-checkout/internal/model"
	"course-checkout/internal/service"
	"net/http"

	"github.com/labstack/echo/v4"
)

type CheckoutHandler struct {
	checkoutService service.CheckoutService
}

func NewCheckoutHandler(checkoutService service.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{
		checkoutService: checkoutService,
	}
}

func (h *CheckoutHandler) CreateCourse(c echo.Context) error {
	return h.create(c, model.ItemKindCourse)
}

func (h *CheckoutHandler) CreateSubscription(c echo.Context) error {
	return h.create(c, model.ItemKindPlan)
}

func (h *CheckoutHandler) create(c echo.Context, kind model.ItemKind) error {
	var req dto.CreateCheckoutRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	caller, err := middleware.Caller(c)
	if err != nil {
		return err
	}

	result, err := h.checkoutService.CreateCheckout(c.Request().Context(), service.CheckoutRequest{
		Network:      model.Network(c.Param("network")),
		ItemKind:     kind,
		ItemSlug:     req.ItemSlug,
		Currency:     req.Currency,
		DurationDays: req.Duration,
		CouponCode:   req.CouponCode,
		Caller:       caller,
		Inbound:      c.Request(),
	})
	if err != nil {
		return err
	}

	if result.Free {
		return c.JSON(http.StatusOK, &dto.FreeEnrollmentResponse{
			OK:             true,
			FreeEnrollment: true,
			CouponCode:     result.CouponCode,
			CouponID:       result.CouponID,
		})
	}

	return c.JSON(http.StatusOK, &dto.CreateCheckoutResponse{
		OK:                true,
		RedirectURL:       result.RedirectURL,
		ProviderReference: result.ProviderReference,
	})
}

func (h *CheckoutHandler) FreeEnrollment(c echo.Context) error {
	var req dto.FreeEnrollmentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	caller, err := middleware.Caller(c)
	if err != nil {
		return err
	}

	kind := model.ItemKindCourse
	if req.ItemType != "" {
		kind = model.ItemKind(req.ItemType)
	}

	result, err := h.checkoutService.FreeEnrollment(c.Request().Context(), service.FreeEnrollmentRequest{
		ItemKind:   kind,
		ItemSlug:   req.ItemSlug,
		Currency:   req.Currency,
		CouponCode: req.CouponCode,
		Caller:     caller,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, &dto.FreeEnrollmentResponse{
		OK:             true,
		FreeEnrollment: true,
		CouponCode:     result.CouponCode,
		CouponID:       result.CouponID,
	})
}

func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return apperror.Validation("invalid request body")
	}
	return c.Validate(req)
}
