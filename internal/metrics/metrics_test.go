package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCheckout_Observe(t *testing.T) {
	m := NewCheckout(prometheus.NewRegistry())

	m.Observe("paypal", "create-course", OutcomeOK)
	m.Observe("paypal", "create-course", OutcomeOK)
	m.Observe("paypal", "create-course", OutcomeRejected)
	m.ObserveProviderCall("paypal", "create-charge", time.Now())

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Requests.WithLabelValues("paypal", "create-course", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("paypal", "create-course", OutcomeRejected)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.ProviderCall))
}

func TestCheckout_NilIsNoop(t *testing.T) {
	var m *Checkout
	assert.NotPanics(t, func() {
		m.Observe("mercadopago", "webhook", OutcomeIgnored)
		m.ObserveProviderCall("mercadopago", "resolve-notification", time.Now())
	})
}
