package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeOK             = "ok"
	OutcomeFreeEnrollment = "free_enrollment"
	OutcomeRejected       = "rejected"
	OutcomeProviderError  = "provider_error"
	OutcomeError          = "error"
	OutcomeConfirmed      = "confirmed"
	OutcomeIgnored        = "ignored"
)

type Checkout struct {
	Requests     *prometheus.CounterVec
	ProviderCall *prometheus.HistogramVec
}

func NewCheckout(reg prometheus.Registerer) *Checkout {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "checkout",
		Name:      "requests_total",
		Help:      "Checkout operations by network and outcome.",
	}, []string{"network", "operation", "outcome"})
	providerCall := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "checkout",
		Name:      "provider_call_duration_ms",
		Help:      "Payment network call latency in milliseconds.",
		Buckets:   []float64{25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 15000},
	}, []string{"network", "operation"})

	reg.MustRegister(requests, providerCall)
	return &Checkout{Requests: requests, ProviderCall: providerCall}
}

func (m *Checkout) Observe(network, operation, outcome string) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(network, operation, outcome).Inc()
}

func (m *Checkout) ObserveProviderCall(network, operation string, start time.Time) {
	if m == nil {
		return
	}
	m.ProviderCall.WithLabelValues(network, operation).Observe(float64(time.Since(start).Milliseconds()))
}

func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
