package service

import (
	"context"
	"course-checkout/internal/apperror"
	"course-checkout/internal/client"
	"course-checkout/internal/metrics"
	"course-checkout/internal/model"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// Confirmation describes what a callback did. Payload and Entitlement are
// set only when Confirmed is true.
type Confirmation struct {
	Confirmed   bool
	Payment     *client.ConfirmedPayment
	Payload     *CorrelationPayload
	Entitlement *model.Entitlement
}

type CallbackConfirmer interface {
	// AuthorizeWebhook checks the shared secret alone, so a caller can reject
	// a webhook before reading its body.
	AuthorizeWebhook(network model.Network, secret string) error
	// HandleWebhook verifies the shared secret before looking at the
	// notification at all.
	HandleWebhook(ctx context.Context, network model.Network, secret string, n client.Notification) (*Confirmation, error)
	// Capture finalizes an order/capture payment after the browser returns
	// from the approval redirect.
	Capture(ctx context.Context, network model.Network, kind model.ItemKind, reference string) (*Confirmation, error)
}

type callbackConfirmerImpl struct {
	codec         CorrelationCodec
	granter       EntitlementGranter
	metrics       *metrics.Checkout
	webhookSecret string
	adapters      map[model.Network]client.ProviderAdapter
}

func NewCallbackConfirmer(
	granter EntitlementGranter,
	m *metrics.Checkout,
	webhookSecret string,
	adapters ...client.ProviderAdapter,
) CallbackConfirmer {
	byNetwork := make(map[model.Network]client.ProviderAdapter, len(adapters))
	for _, a := range adapters {
		byNetwork[a.Network()] = a
	}
	return &callbackConfirmerImpl{
		granter:       granter,
		metrics:       m,
		webhookSecret: webhookSecret,
		adapters:      byNetwork,
	}
}

func (c *callbackConfirmerImpl) AuthorizeWebhook(network model.Network, secret string) error {
	err := c.authorize(network, secret)
	if err != nil {
		c.metrics.Observe(string(network), "webhook", confirmationOutcome(nil, err))
	}
	return err
}

func (c *callbackConfirmerImpl) authorize(network model.Network, secret string) error {
	if !c.secretMatches(secret) {
		log.WithField("network", network).Warn("webhook secret mismatch")
		return apperror.Unauthenticated("invalid webhook secret", nil)
	}
	return nil
}

func (c *callbackConfirmerImpl) HandleWebhook(
	ctx context.Context,
	network model.Network,
	secret string,
	n client.Notification,
) (*Confirmation, error) {
	confirmation, err := c.handleWebhook(ctx, network, secret, n)
	c.metrics.Observe(string(network), "webhook", confirmationOutcome(confirmation, err))
	return confirmation, err
}

func (c *callbackConfirmerImpl) handleWebhook(
	ctx context.Context,
	network model.Network,
	secret string,
	n client.Notification,
) (*Confirmation, error) {
	if err := c.authorize(network, secret); err != nil {
		return nil, err
	}

	adapter, ok := c.adapters[network]
	if !ok {
		return nil, apperror.Validation("unsupported payment network %q", network)
	}

	start := time.Now()
	payment, err := adapter.ResolveNotification(ctx, n)
	c.metrics.ObserveProviderCall(string(network), "resolve-notification", start)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return &Confirmation{}, nil
	}
	if !payment.Approved {
		log.WithFields(log.Fields{
			"network":   network,
			"reference": payment.ProviderReference,
			"status":    payment.Status,
		}).Info("payment not approved, nothing to confirm")
		return &Confirmation{Payment: payment}, nil
	}

	return c.confirm(ctx, network, payment)
}

func (c *callbackConfirmerImpl) Capture(
	ctx context.Context,
	network model.Network,
	kind model.ItemKind,
	reference string,
) (*Confirmation, error) {
	confirmation, err := c.capture(ctx, network, reference)
	c.metrics.Observe(string(network), "capture-"+operationSuffix(kind), confirmationOutcome(confirmation, err))
	return confirmation, err
}

func (c *callbackConfirmerImpl) capture(ctx context.Context, network model.Network, reference string) (*Confirmation, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, apperror.Validation("missing order token")
	}

	adapter, ok := c.adapters[network]
	if !ok {
		return nil, apperror.Validation("unsupported payment network %q", network)
	}
	capturer, ok := adapter.(client.ChargeCapturer)
	if !ok {
		return nil, apperror.Validation("%s payments are not captured", network)
	}

	start := time.Now()
	payment, err := capturer.CaptureCharge(ctx, reference)
	c.metrics.ObserveProviderCall(string(network), "capture-charge", start)
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"network":   network,
			"reference": reference,
		}).Warn("capture failed")
		return nil, err
	}
	if !payment.Approved {
		return nil, apperror.Provider(http.StatusPaymentRequired,
			"payment was not completed, status "+payment.Status, nil)
	}

	return c.confirm(ctx, network, payment)
}

// confirm decodes the correlation token once and dispatches a single grant.
// A token that does not decode grants nothing.
func (c *callbackConfirmerImpl) confirm(
	ctx context.Context,
	network model.Network,
	payment *client.ConfirmedPayment,
) (*Confirmation, error) {
	payload, err := c.codec.Decode(payment.CorrelationToken)
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"network":   network,
			"reference": payment.ProviderReference,
		}).Error("correlation token rejected, entitlement not granted")
		return nil, err
	}

	entitlement, err := c.granter.Grant(ctx, GrantRequest{
		Payload:           payload,
		Provider:          string(network),
		ProviderReference: payment.ProviderReference,
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"network":   network,
		"reference": payment.ProviderReference,
		"user_id":   payload.UserID,
		"item":      payload.ItemRef,
	}).Info("payment confirmed")

	return &Confirmation{
		Confirmed:   true,
		Payment:     payment,
		Payload:     &payload,
		Entitlement: entitlement,
	}, nil
}

func (c *callbackConfirmerImpl) secretMatches(secret string) bool {
	if c.webhookSecret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(secret), []byte(c.webhookSecret)) == 1
}

func confirmationOutcome(confirmation *Confirmation, err error) string {
	switch {
	case err != nil && apperror.Is(err, apperror.KindProvider):
		return metrics.OutcomeProviderError
	case err != nil && (apperror.Is(err, apperror.KindUnauthenticated) || apperror.Is(err, apperror.KindValidation)):
		return metrics.OutcomeRejected
	case err != nil:
		return metrics.OutcomeError
	case confirmation != nil && confirmation.Confirmed:
		return metrics.OutcomeConfirmed
	default:
		return metrics.OutcomeIgnored
	}
}
