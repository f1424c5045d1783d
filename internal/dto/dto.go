package dto

// CreateCheckoutRequest is the body of create-course and create-subscription.
// It carries no caller identity; any user field a client sends is dropped by
// the binder.
type CreateCheckoutRequest struct {
	ItemSlug   string `json:"item_slug" validate:"required"`
	Currency   string `json:"currency" validate:"omitempty,alpha,len=3"`
	Duration   int    `json:"duration" validate:"gte=0"`
	CouponCode string `json:"coupon_code" validate:"omitempty,max=64"`
}

type FreeEnrollmentRequest struct {
	ItemSlug   string `json:"item_slug" validate:"required"`
	ItemType   string `json:"item_type" validate:"omitempty,oneof=course plan"`
	Currency   string `json:"currency" validate:"omitempty,alpha,len=3"`
	CouponCode string `json:"coupon_code" validate:"required,max=64"`
}

type CreateCheckoutResponse struct {
	OK                bool   `json:"ok"`
	RedirectURL       string `json:"redirect_url"`
	ProviderReference string `json:"provider_reference"`
}

type FreeEnrollmentResponse struct {
	OK             bool   `json:"ok"`
	FreeEnrollment bool   `json:"free_enrollment"`
	CouponCode     string `json:"coupon_code"`
	CouponID       string `json:"coupon_id"`
}

type WebhookResponse struct {
	OK        bool   `json:"ok"`
	Confirmed bool   `json:"confirmed"`
	Reference string `json:"reference,omitempty"`
}

type ErrorResponse struct {
	OK     bool   `json:"ok"`
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}
