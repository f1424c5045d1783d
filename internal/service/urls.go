package service

import (
	"course-checkout/internal/client"
	"course-checkout/internal/model"
	"net/http"
	"net/url"
	"strings"
)

// URLBuilder derives the browser and webhook URLs for a checkout from the
// inbound request. The service runs behind a reverse proxy, so the origin is
// taken from the forwarded headers when present.
type URLBuilder struct {
	publicBaseURL string
	webhookSecret string
}

func NewURLBuilder(publicBaseURL, webhookSecret string) *URLBuilder {
	return &URLBuilder{
		publicBaseURL: strings.TrimRight(strings.TrimSpace(publicBaseURL), "/"),
		webhookSecret: webhookSecret,
	}
}

// Origin returns scheme://host as seen by the client.
func (b *URLBuilder) Origin(r *http.Request) string {
	scheme := firstHeaderValue(r.Header.Get("X-Forwarded-Proto"))
	if scheme == "" {
		scheme = "http"
		if r.TLS != nil {
			scheme = "https"
		}
	}

	host := firstHeaderValue(r.Header.Get("X-Forwarded-Host"))
	if host == "" {
		host = r.Host
	}

	return strings.ToLower(scheme) + "://" + host
}

// WebhookURL is the notification target handed to the network. The shared
// secret travels as a query parameter.
func (b *URLBuilder) WebhookURL(r *http.Request, network model.Network) string {
	base := b.publicBaseURL
	if base == "" {
		base = b.Origin(r)
	}
	q := url.Values{}
	q.Set("secret", b.webhookSecret)
	return base + "/" + string(network) + "/webhook?" + q.Encode()
}

// ItemPage is the frontend page of an item, optionally with a payment flag.
func (b *URLBuilder) ItemPage(origin string, kind model.ItemKind, slug, flag string) string {
	section := "courses"
	if kind == model.ItemKindPlan {
		section = "subscription"
	}
	page := origin + "/" + section + "/" + url.PathEscape(slug)
	if flag == "" {
		return page
	}
	return page + "?payment=" + url.QueryEscape(flag)
}

// BackURLs builds the redirect targets for one checkout. MercadoPago lands
// the browser on the item page with a flag; PayPal returns to the capture
// handler, which finalizes the order server side.
func (b *URLBuilder) BackURLs(r *http.Request, network model.Network, kind model.ItemKind, slug string) client.BackURLs {
	origin := b.Origin(r)
	urls := client.BackURLs{
		Notification: b.WebhookURL(r, network),
	}

	switch network {
	case model.NetworkPaypal:
		urls.Success = origin + "/checkout/paypal/" + captureRoute(kind)
		urls.Failure = b.ItemPage(origin, kind, slug, "cancelled")
	default:
		urls.Success = b.ItemPage(origin, kind, slug, "success")
		urls.Failure = b.ItemPage(origin, kind, slug, "failure")
		urls.Pending = b.ItemPage(origin, kind, slug, "pending")
	}
	return urls
}

func captureRoute(kind model.ItemKind) string {
	if kind == model.ItemKindPlan {
		return "capture-subscription"
	}
	return "capture-course"
}

// firstHeaderValue returns the first entry of a comma separated header, as
// appended by chained proxies.
func firstHeaderValue(v string) string {
	if i := strings.IndexByte(v, ','); i >= 0 {
		v = v[:i]
	}
	return strings.TrimSpace(v)
}
