package client

import (
	"context"
	"course-checkout/internal/config"
	"course-checkout/internal/model"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const mercadopagoStatusApproved = "approved"

type mercadopagoClientImpl struct {
	providerHTTP
	baseApiURL  string
	accessToken string
	live        bool
}

func NewMercadoPagoClient(cfg *config.MercadoPago, mode string, timeout time.Duration) ProviderAdapter {
	return &mercadopagoClientImpl{
		providerHTTP: newProviderHTTP(model.NetworkMercadoPago, timeout),
		baseApiURL:   strings.TrimRight(cfg.BaseApiURL, "/"),
		accessToken:  cfg.AccessToken(mode),
		live:         mode == config.ModeLive,
	}
}

func (c *mercadopagoClientImpl) Network() model.Network {
	return model.NetworkMercadoPago
}

// CreateCharge creates a checkout preference with a single line and binary
// settlement, so a payment is either approved or rejected.
func (c *mercadopagoClientImpl) CreateCharge(ctx context.Context, intent ChargeIntent) (*ChargeResult, error) {
	payload := model.MercadoPagoPreferenceRequest{
		Items: []model.MercadoPagoItem{
			{
				ID:          intent.ItemID,
				Title:       intent.Title,
				Description: intent.Description,
				Quantity:    1,
				UnitPrice:   intent.Amount.Round(2).InexactFloat64(),
				CurrencyID:  intent.Currency,
			},
		},
		Payer: model.MercadoPagoPayer{Email: intent.PayerEmail},
		BackURLs: model.MercadoPagoBackURLs{
			Success: intent.URLs.Success,
			Failure: intent.URLs.Failure,
			Pending: intent.URLs.Pending,
		},
		AutoReturn:        "approved",
		BinaryMode:        true,
		ExternalReference: intent.CorrelationToken,
		NotificationURL:   intent.URLs.Notification,
	}

	req, err := newJSONRequest(http.MethodPost, c.baseApiURL+"/checkout/preferences", payload)
	if err != nil {
		return nil, err
	}
	c.authorize(req)
	req.Header.Set("X-Idempotency-Key", uuid.NewString())

	var pref model.MercadoPagoPreference
	if err := c.do(ctx, req, &pref, decodeMercadoPagoError); err != nil {
		return nil, err
	}

	redirect := pref.SandboxInitPoint
	if c.live || redirect == "" {
		redirect = pref.InitPoint
	}

	return &ChargeResult{
		ProviderReference: pref.ID,
		RedirectURL:       redirect,
	}, nil
}

// ResolveNotification accepts both webhook bodies ({"type":"payment",
// "data":{"id":...}}) and IPN query strings (topic=payment&id=...). Only
// payment events are resolved; the payment itself is fetched from the API
// because notifications do not carry the external reference.
func (c *mercadopagoClientImpl) ResolveNotification(ctx context.Context, n Notification) (*ConfirmedPayment, error) {
	kind, paymentID := parseMercadoPagoNotification(n)
	if kind != "payment" || paymentID == "" {
		return nil, nil
	}

	payment, err := c.getPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	return &ConfirmedPayment{
		ProviderReference: strconv.FormatInt(payment.ID, 10),
		CorrelationToken:  payment.ExternalReference,
		Status:            payment.Status,
		Approved:          payment.Status == mercadopagoStatusApproved,
	}, nil
}

func (c *mercadopagoClientImpl) getPayment(ctx context.Context, paymentID string) (*model.MercadoPagoPayment, error) {
	req, err := newJSONRequest(http.MethodGet, c.baseApiURL+"/v1/payments/"+url.PathEscape(paymentID), nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req)

	var payment model.MercadoPagoPayment
	if err := c.do(ctx, req, &payment, decodeMercadoPagoError); err != nil {
		return nil, err
	}
	if payment.ID == 0 {
		return nil, fmt.Errorf("mercadopago payment %s: empty response", paymentID)
	}
	return &payment, nil
}

func (c *mercadopagoClientImpl) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
}

func parseMercadoPagoNotification(n Notification) (kind, id string) {
	if len(n.Body) > 0 {
		var body model.MercadoPagoNotification
		if err := json.Unmarshal(n.Body, &body); err == nil {
			kind = body.Type
			id = body.Data.ID
		}
	}
	if kind == "" {
		kind = n.Query.Get("type")
	}
	if kind == "" {
		kind = n.Query.Get("topic")
	}
	if id == "" {
		id = n.Query.Get("data.id")
	}
	if id == "" {
		id = n.Query.Get("id")
	}
	return kind, id
}

func decodeMercadoPagoError(body []byte) string {
	var e model.MercadoPagoErrorBody
	if err := json.Unmarshal(body, &e); err != nil {
		return strings.TrimSpace(string(body))
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}
