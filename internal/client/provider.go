package client

import (
	"bytes"
	"context"
	"course-checkout/internal/apperror"
	"course-checkout/internal/model"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

// BackURLs are the browser return targets plus the asynchronous
// notification endpoint handed to the provider.
type BackURLs struct {
	Success      string
	Failure      string
	Pending      string
	Notification string
}

// ChargeIntent is a normalized request for one charge. It is never stored on
// our side; the provider keeps its own record.
type ChargeIntent struct {
	ItemID           string
	Title            string
	Description      string
	Amount           decimal.Decimal
	Currency         string
	PayerEmail       string
	CorrelationToken string
	URLs             BackURLs
}

type ChargeResult struct {
	ProviderReference string
	RedirectURL       string
}

// Notification is an inbound provider callback as received over HTTP.
type Notification struct {
	Query url.Values
	Body  []byte
}

// ConfirmedPayment is what a provider reports about a payment after a
// notification or a capture.
type ConfirmedPayment struct {
	ProviderReference string
	CorrelationToken  string
	Status            string
	Approved          bool
}

type ProviderAdapter interface {
	Network() model.Network
	CreateCharge(ctx context.Context, intent ChargeIntent) (*ChargeResult, error)
	// ResolveNotification turns a callback into the payment it refers to. It
	// returns nil, nil for events that carry nothing to confirm.
	ResolveNotification(ctx context.Context, n Notification) (*ConfirmedPayment, error)
}

// ChargeCapturer is implemented by order/capture networks, where the payment
// is finalized after the payer returns from the approval redirect.
type ChargeCapturer interface {
	CaptureCharge(ctx context.Context, reference string) (*ConfirmedPayment, error)
}

// providerHTTP is the request plumbing shared by the adapters. Every call is
// bounded by timeout and never retried.
type providerHTTP struct {
	network    model.Network
	httpClient *http.Client
	timeout    time.Duration
}

func newProviderHTTP(network model.Network, timeout time.Duration) providerHTTP {
	return providerHTTP{
		network: network,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		timeout: timeout,
	}
}

// errorDecoder extracts a message from a non-2xx body.
type errorDecoder func(body []byte) string

func (p providerHTTP) do(ctx context.Context, req *http.Request, out any, decodeErr errorDecoder) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.httpClient.Do(req.WithContext(ctx))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return apperror.Provider(http.StatusGatewayTimeout, fmt.Sprintf("%s request timed out", p.network), err)
		}
		return apperror.Provider(http.StatusBadGateway, fmt.Sprintf("%s request failed", p.network), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperror.Provider(http.StatusBadGateway, fmt.Sprintf("read %s response", p.network), err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := ""
		if decodeErr != nil {
			msg = decodeErr(body)
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &apperror.Error{
			Kind:    apperror.KindProvider,
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("%s error %d: %s", p.network, resp.StatusCode, msg),
		}
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return apperror.Provider(http.StatusBadGateway, fmt.Sprintf("decode %s response", p.network), err)
	}
	return nil
}

func newJSONRequest(method, target string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal req payload: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, target, body)
	if err != nil {
		return nil, fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func isTimeout(err error) bool {
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
