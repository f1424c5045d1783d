package client

import (
	"context"
	"course-checkout/internal/apperror"
	"course-checkout/internal/config"
	"course-checkout/internal/model"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMercadoPago(t *testing.T, mode string, timeout time.Duration, h http.HandlerFunc) ProviderAdapter {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewMercadoPagoClient(&config.MercadoPago{
		BaseApiURL:      srv.URL,
		TestAccessToken: "TEST-123",
		LiveAccessToken: "APP_USR-456",
	}, mode, timeout)
}

func testIntent() ChargeIntent {
	return ChargeIntent{
		ItemID:           "item-101",
		Title:            "Seguridad en obra 101",
		Amount:           decimal.RequireFromString("42500.5"),
		Currency:         "ARS",
		PayerEmail:       "y@example.com",
		CorrelationToken: "v1.eyJ1IjoieSJ9.0a1b2c3d",
		URLs: BackURLs{
			Success:      "https://obras.example.com/courses/course-101?payment=success",
			Failure:      "https://obras.example.com/courses/course-101?payment=failure",
			Pending:      "https://obras.example.com/courses/course-101?payment=pending",
			Notification: "https://hooks.example.com/mercadopago/webhook?secret=s3cret",
		},
	}
}

func TestMercadoPago_CreateCharge(t *testing.T) {
	var got model.MercadoPagoPreferenceRequest
	adapter := newTestMercadoPago(t, config.ModeTest, time.Second, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/checkout/preferences", r.URL.Path)
		assert.Equal(t, "Bearer TEST-123", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Idempotency-Key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pref-1","init_point":"https://www.mercadopago.com/checkout?pref_id=pref-1","sandbox_init_point":"https://sandbox.mercadopago.com/checkout?pref_id=pref-1"}`))
	})

	result, err := adapter.CreateCharge(context.Background(), testIntent())
	require.NoError(t, err)
	assert.Equal(t, "pref-1", result.ProviderReference)
	assert.Equal(t, "https://sandbox.mercadopago.com/checkout?pref_id=pref-1", result.RedirectURL)

	require.Len(t, got.Items, 1)
	assert.Equal(t, 1, got.Items[0].Quantity)
	assert.Equal(t, 42500.5, got.Items[0].UnitPrice)
	assert.Equal(t, "ARS", got.Items[0].CurrencyID)
	assert.True(t, got.BinaryMode)
	assert.Equal(t, "approved", got.AutoReturn)
	assert.Equal(t, "v1.eyJ1IjoieSJ9.0a1b2c3d", got.ExternalReference)
	assert.Equal(t, "https://hooks.example.com/mercadopago/webhook?secret=s3cret", got.NotificationURL)
	assert.Equal(t, "https://obras.example.com/courses/course-101?payment=pending", got.BackURLs.Pending)
	assert.Equal(t, "y@example.com", got.Payer.Email)
}

func TestMercadoPago_LiveModeUsesInitPoint(t *testing.T) {
	adapter := newTestMercadoPago(t, config.ModeLive, time.Second, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer APP_USR-456", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"id":"pref-2","init_point":"https://www.mercadopago.com/live","sandbox_init_point":"https://sandbox.mercadopago.com/x"}`))
	})

	result, err := adapter.CreateCharge(context.Background(), testIntent())
	require.NoError(t, err)
	assert.Equal(t, "https://www.mercadopago.com/live", result.RedirectURL)
}

func TestMercadoPago_ErrorStatusPassesThrough(t *testing.T) {
	var calls atomic.Int32
	adapter := newTestMercadoPago(t, config.ModeTest, time.Second, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"auto_return invalid. back_url.success must be defined","error":"invalid_auto_return","status":400}`))
	})

	_, err := adapter.CreateCharge(context.Background(), testIntent())
	require.Error(t, err)
	appErr := apperror.From(err)
	assert.Equal(t, apperror.KindProvider, appErr.Kind)
	assert.Equal(t, http.StatusBadRequest, appErr.Status)
	assert.Contains(t, appErr.Message, "back_url.success must be defined")
	assert.Equal(t, int32(1), calls.Load(), "provider calls are never retried")
}

func TestMercadoPago_TimeoutIsGatewayTimeout(t *testing.T) {
	adapter := newTestMercadoPago(t, config.ModeTest, 50*time.Millisecond, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	_, err := adapter.CreateCharge(context.Background(), testIntent())
	require.Error(t, err)
	assert.Equal(t, http.StatusGatewayTimeout, apperror.From(err).Status)
}

func TestMercadoPago_ResolveNotification(t *testing.T) {
	var requests atomic.Int32
	adapter := newTestMercadoPago(t, config.ModeTest, time.Second, func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		switch r.URL.Path {
		case "/v1/payments/1319412345":
			_, _ = w.Write([]byte(`{"id":1319412345,"status":"approved","external_reference":"v1.tok.00000000"}`))
		case "/v1/payments/777":
			_, _ = w.Write([]byte(`{"id":777,"status":"rejected","status_detail":"cc_rejected_other_reason","external_reference":"v1.tok.00000000"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	t.Run("webhook body", func(t *testing.T) {
		payment, err := adapter.ResolveNotification(context.Background(), Notification{
			Body: []byte(`{"action":"payment.created","type":"payment","data":{"id":"1319412345"}}`),
		})
		require.NoError(t, err)
		assert.Equal(t, "1319412345", payment.ProviderReference)
		assert.Equal(t, "v1.tok.00000000", payment.CorrelationToken)
		assert.True(t, payment.Approved)
	})

	t.Run("ipn query", func(t *testing.T) {
		payment, err := adapter.ResolveNotification(context.Background(), Notification{
			Query: url.Values{"topic": {"payment"}, "id": {"777"}},
		})
		require.NoError(t, err)
		assert.False(t, payment.Approved)
		assert.Equal(t, "rejected", payment.Status)
	})

	t.Run("other topics are ignored", func(t *testing.T) {
		before := requests.Load()
		payment, err := adapter.ResolveNotification(context.Background(), Notification{
			Query: url.Values{"topic": {"merchant_order"}, "id": {"555"}},
		})
		require.NoError(t, err)
		assert.Nil(t, payment)
		assert.Equal(t, before, requests.Load())
	})

	t.Run("unknown payment", func(t *testing.T) {
		_, err := adapter.ResolveNotification(context.Background(), Notification{
			Query: url.Values{"type": {"payment"}, "data.id": {"404"}},
		})
		require.Error(t, err)
		assert.Equal(t, http.StatusNotFound, apperror.From(err).Status)
	})
}
