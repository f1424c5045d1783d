package handler

import (
	"bytes"
	"course-checkout/internal/apperror"
	"course-checkout/internal/client"
	"course-checkout/internal/dto"
	"course-checkout/internal/model"
	"course-checkout/internal/service"
	"html/template"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

const maxWebhookBody = 1 << 20

var capturePage = template.Must(template.New("capture").Parse(`<!DOCTYPE html>
<html>
<head>
	<meta charset="utf-8">
	<title>{{.Title}}</title>
	<style>
		body {
			font-family: Arial, sans-serif;
			text-align: center;
			margin-top: 80px;
		}
		.countdown {
			font-size: 24px;
			font-weight: bold;
		}
	</style>
</head>
<body>
	<h2>{{.Heading}}</h2>
	<p>{{.Message}}</p>
	<p>Redirecting in <span class="countdown" id="countdown">{{.Seconds}}</span> seconds…</p>
	<p><a id="next" href="{{.Link}}">Continue</a></p>

	<script>
		let seconds = {{.Seconds}};
		const el = document.getElementById("countdown");
		const next = document.getElementById("next").href;

		const timer = setInterval(function () {
			seconds--;
			el.textContent = seconds;

			if (seconds <= 0) {
				clearInterval(timer);
				window.location.href = next;
			}
		}, 1000);
	</script>
</body>
</html>
`))

type capturePageData struct {
	Title   string
	Heading string
	Message string
	Link    string
	Seconds int
}

type CallbackHandler struct {
	confirmer service.CallbackConfirmer
	urls      *service.URLBuilder
}

func NewCallbackHandler(confirmer service.CallbackConfirmer, urls *service.URLBuilder) *CallbackHandler {
	return &CallbackHandler{
		confirmer: confirmer,
		urls:      urls,
	}
}

func (h *CallbackHandler) Webhook(c echo.Context) error {
	ctx := c.Request().Context()
	network := model.Network(c.Param("network"))
	secret := c.QueryParam("secret")

	if err := h.confirmer.AuthorizeWebhook(network, secret); err != nil {
		return err
	}

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return apperror.Validation("read webhook body: %v", err)
	}

	confirmation, err := h.confirmer.HandleWebhook(ctx, network, secret,
		client.Notification{Query: c.QueryParams(), Body: body},
	)
	if err != nil {
		return err
	}

	resp := &dto.WebhookResponse{OK: true, Confirmed: confirmation.Confirmed}
	if confirmation.Payment != nil {
		resp.Reference = confirmation.Payment.ProviderReference
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *CallbackHandler) CaptureCourse(c echo.Context) error {
	return h.capture(c, model.ItemKindCourse)
}

func (h *CallbackHandler) CaptureSubscription(c echo.Context) error {
	return h.capture(c, model.ItemKindPlan)
}

// capture is reached by browser navigation, so it answers with a page even
// when the capture fails.
func (h *CallbackHandler) capture(c echo.Context, kind model.ItemKind) error {
	ctx := c.Request().Context()
	network := model.Network(c.Param("network"))
	origin := h.urls.Origin(c.Request())

	// PayPal appends the order id as ?token=
	confirmation, err := h.confirmer.Capture(ctx, network, kind, c.QueryParam("token"))
	if err != nil {
		appErr := apperror.From(err)
		log.WithError(err).WithField("network", network).Warn("capture leg failed")
		return renderCapturePage(c, http.StatusInternalServerError, capturePageData{
			Title:   "Payment failed",
			Heading: "We could not confirm your payment",
			Message: failureMessage(appErr),
			Link:    origin + "/",
			Seconds: 15,
		})
	}

	payload := confirmation.Payload
	heading := "Payment approved"
	message := "Your enrollment is active."
	if payload.ItemType == model.ItemKindPlan {
		heading = "Subscription approved"
		message = "Your subscription is active."
	}

	return renderCapturePage(c, http.StatusOK, capturePageData{
		Title:   "Payment complete",
		Heading: heading,
		Message: message,
		Link:    h.urls.ItemPage(origin, payload.ItemType, payload.ItemRef, "success"),
		Seconds: 5,
	})
}

func renderCapturePage(c echo.Context, status int, data capturePageData) error {
	var buf bytes.Buffer
	if err := capturePage.Execute(&buf, data); err != nil {
		return err
	}
	return c.HTMLBlob(status, buf.Bytes())
}

// failureMessage keeps internal error text off the page.
func failureMessage(err *apperror.Error) string {
	switch err.Kind {
	case apperror.KindProvider:
		return "The payment provider did not complete the payment. Please try again from the course page."
	case apperror.KindValidation:
		return "The payment link is incomplete. Please start the checkout again."
	default:
		return "Something went wrong while activating your purchase. Please contact support with your payment receipt."
	}
}
