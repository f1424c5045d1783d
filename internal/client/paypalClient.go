package client

import (
	"context"
	"course-checkout/internal/apperror"
	"course-checkout/internal/config"
	"course-checkout/internal/model"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	paypalOrderCompleted      = "COMPLETED"
	paypalCaptureCompleted    = "PAYMENT.CAPTURE.COMPLETED"
	paypalOrderCompletedEvent = "CHECKOUT.ORDER.COMPLETED"
)

type paypalClientImpl struct {
	providerHTTP
	baseApiURL         string
	paypalClientID     string
	paypalClientSecret string
}

type paypalErrorBody struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Details []struct {
		Issue       string `json:"issue"`
		Description string `json:"description"`
	} `json:"details"`
}

// PaypalAdapter is the order/capture network: CreateCharge creates an order,
// CaptureCharge finalizes it after the payer approves.
type PaypalAdapter interface {
	ProviderAdapter
	ChargeCapturer
}

func NewPaypalClient(paypalCfg *config.Paypal, mode string, timeout time.Duration) PaypalAdapter {
	creds := paypalCfg.Credentials(mode)
	return &paypalClientImpl{
		providerHTTP:       newProviderHTTP(model.NetworkPaypal, timeout),
		baseApiURL:         strings.TrimRight(creds.BaseApiURL, "/"),
		paypalClientID:     creds.ClientID,
		paypalClientSecret: creds.ClientSecret,
	}
}

func (c *paypalClientImpl) Network() model.Network {
	return model.NetworkPaypal
}

func (c *paypalClientImpl) getAccessToken(ctx context.Context) (string, error) {
	auth := base64.StdEncoding.EncodeToString(
		[]byte(c.paypalClientID + ":" + c.paypalClientSecret),
	)

	req, err := http.NewRequest(http.MethodPost, c.baseApiURL+"/v1/oauth2/token",
		strings.NewReader("grant_type=client_credentials"))
	if err != nil {
		return "", fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var res struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.do(ctx, req, &res, decodePaypalError); err != nil {
		return "", err
	}
	if res.AccessToken == "" {
		return "", apperror.Provider(http.StatusBadGateway, "paypal returned an empty access token", nil)
	}

	return res.AccessToken, nil
}

func (c *paypalClientImpl) CreateCharge(ctx context.Context, intent ChargeIntent) (*ChargeResult, error) {
	accessToken, err := c.getAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	payload := model.PaypalCreateOrderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []model.PaypalPurchaseUnit{
			{
				ReferenceID: intent.CorrelationToken,
				Description: truncate(intent.Title, 127),
				Amount: &model.PaypalAmount{
					Currency: intent.Currency,
					Value:    intent.Amount.StringFixed(2),
				},
			},
		},
		ApplicationContext: model.PaypalApplicationContext{
			ReturnURL:  intent.URLs.Success,
			CancelURL:  intent.URLs.Failure,
			UserAction: "PAY_NOW",
		},
	}

	req, err := newJSONRequest(http.MethodPost, c.baseApiURL+"/v2/checkout/orders", payload)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	var order model.PaypalOrder
	if err := c.do(ctx, req, &order, decodePaypalError); err != nil {
		return nil, err
	}

	approveURL := extractApproveURL(order.Links)
	if order.ID == "" || approveURL == "" {
		return nil, apperror.Provider(http.StatusBadGateway, "paypal order has no approval link", nil)
	}

	return &ChargeResult{
		ProviderReference: order.ID,
		RedirectURL:       approveURL,
	}, nil
}

func (c *paypalClientImpl) CaptureCharge(ctx context.Context, orderID string) (*ConfirmedPayment, error) {
	accessToken, err := c.getAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	req, err := newJSONRequest(http.MethodPost,
		fmt.Sprintf("%s/v2/checkout/orders/%s/capture", c.baseApiURL, url.PathEscape(orderID)),
		struct{}{})
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("PayPal-Request-Id", "capture-"+orderID)

	var order model.PaypalOrder
	err = c.do(ctx, req, &order, decodePaypalError)
	if err != nil {
		// a reload of the return page captures twice; report the order as it stands
		var appErr *apperror.Error
		if errors.As(err, &appErr) && appErr.Status == http.StatusUnprocessableEntity &&
			strings.Contains(appErr.Message, "ORDER_ALREADY_CAPTURED") {
			return c.confirmOrder(ctx, accessToken, orderID)
		}
		return nil, err
	}

	return orderPayment(&order), nil
}

// ResolveNotification handles PAYMENT.CAPTURE.COMPLETED, whose resource is a
// capture pointing at its order, and CHECKOUT.ORDER.COMPLETED, whose resource
// is the order itself. Either way the order is read back from PayPal.
func (c *paypalClientImpl) ResolveNotification(ctx context.Context, n Notification) (*ConfirmedPayment, error) {
	var event model.PaypalWebhookEvent
	if err := json.Unmarshal(n.Body, &event); err != nil {
		return nil, apperror.Validation("decode paypal webhook payload: %v", err)
	}

	var orderID string
	switch event.EventType {
	case paypalCaptureCompleted:
		orderID = event.Resource.SupplementaryData.RelatedIDs.OrderID
	case paypalOrderCompletedEvent:
		orderID = event.Resource.ID
	default:
		return nil, nil
	}
	if orderID == "" {
		return nil, apperror.Validation("could not find order id in paypal webhook payload")
	}

	// the event body is unsigned; status and reference id come from the order itself
	accessToken, err := c.getAccessToken(ctx)
	if err != nil {
		return nil, err
	}
	return c.confirmOrder(ctx, accessToken, orderID)
}

func (c *paypalClientImpl) confirmOrder(ctx context.Context, accessToken, orderID string) (*ConfirmedPayment, error) {
	req, err := newJSONRequest(http.MethodGet,
		fmt.Sprintf("%s/v2/checkout/orders/%s", c.baseApiURL, url.PathEscape(orderID)), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	var order model.PaypalOrder
	if err := c.do(ctx, req, &order, decodePaypalError); err != nil {
		return nil, err
	}
	return orderPayment(&order), nil
}

// orderPayment keys the payment by order id so the capture leg and the
// webhook confirm the same reference.
func orderPayment(order *model.PaypalOrder) *ConfirmedPayment {
	payment := &ConfirmedPayment{
		ProviderReference: order.ID,
		Status:            order.Status,
		Approved:          order.Status == paypalOrderCompleted,
	}
	if len(order.PurchaseUnits) > 0 {
		payment.CorrelationToken = order.PurchaseUnits[0].ReferenceID
	}
	return payment
}

func extractApproveURL(links []model.PaypalLink) string {
	for _, link := range links {
		if link.Rel == "approve" || link.Rel == "payer-action" {
			return link.Href
		}
	}
	return ""
}

func decodePaypalError(body []byte) string {
	var e paypalErrorBody
	if err := json.Unmarshal(body, &e); err != nil || e.Name == "" {
		return strings.TrimSpace(string(body))
	}
	msg := e.Name
	if len(e.Details) > 0 && e.Details[0].Issue != "" {
		msg += " " + e.Details[0].Issue
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
