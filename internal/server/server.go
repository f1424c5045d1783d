package server

import (
	"context"
	"course-checkout/internal/apperror"
	"course-checkout/internal/dto"
	"course-checkout/internal/handler"
	"course-checkout/internal/metrics"
	"course-checkout/internal/middleware"
	"course-checkout/internal/service"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

type Server struct {
	echo            *echo.Echo
	checkoutHandler *handler.CheckoutHandler
	callbackHandler *handler.CallbackHandler
	resolver        middleware.CallerResolver
	gatherer        prometheus.Gatherer
}

func NewServer(
	checkoutService service.CheckoutService,
	confirmer service.CallbackConfirmer,
	resolver middleware.CallerResolver,
	urls *service.URLBuilder,
	gatherer prometheus.Gatherer,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = newRequestValidator()
	e.HTTPErrorHandler = errorHandler

	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURIPath:   true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			entry := log.WithFields(log.Fields{
				"method":     v.Method,
				"path":       v.URIPath,
				"status":     v.Status,
				"latency_ms": v.Latency.Milliseconds(),
				"request_id": v.RequestID,
			})
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("request")
			return nil
		},
	}))
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())

	s := &Server{
		echo:            e,
		checkoutHandler: handler.NewCheckoutHandler(checkoutService),
		callbackHandler: handler.NewCallbackHandler(confirmer, urls),
		resolver:        resolver,
		gatherer:        gatherer,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	s.echo.GET("/metrics", echo.WrapHandler(metrics.Handler(s.gatherer)))

	auth := middleware.Identity(s.resolver)

	// -------- checkout intents --------
	checkout := s.echo.Group("/checkout", corsFor(http.MethodPost))
	post(checkout, "/:network/create-course", s.checkoutHandler.CreateCourse, auth)
	post(checkout, "/:network/create-subscription", s.checkoutHandler.CreateSubscription, auth)
	post(checkout, "/free-enrollment", s.checkoutHandler.FreeEnrollment, auth)

	// -------- browser capture legs --------
	capture := s.echo.Group("/checkout", corsFor(http.MethodGet))
	get(capture, "/:network/capture-course", s.callbackHandler.CaptureCourse)
	get(capture, "/:network/capture-subscription", s.callbackHandler.CaptureSubscription)

	// -------- provider webhooks --------
	webhooks := s.echo.Group("", corsFor(http.MethodPost))
	post(webhooks, "/:network/webhook", s.callbackHandler.Webhook)
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

func post(g *echo.Group, path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	g.POST(path, h, m...)
	g.OPTIONS(path, preflight)
}

func get(g *echo.Group, path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	g.GET(path, h, m...)
	g.OPTIONS(path, preflight)
}

// corsFor allows any origin and only the given method plus OPTIONS. Preflight
// requests are answered with a bare 200.
func corsFor(method string) echo.MiddlewareFunc {
	cors := echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{method, http.MethodOptions},
		AllowHeaders: []string{
			echo.HeaderAuthorization,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderOrigin,
		},
	})
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		handle := cors(next)
		return func(c echo.Context) error {
			if c.Request().Method == http.MethodOptions {
				res := c.Response()
				res.Before(func() {
					if res.Status == http.StatusNoContent {
						res.Status = http.StatusOK
					}
				})
			}
			return handle(c)
		}
	}
}

func preflight(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

// errorHandler is the single place where failures become responses.
// Unexpected errors are reported as fatal with their message.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var resp dto.ErrorResponse
	status := http.StatusInternalServerError

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		status = httpErr.Code
		resp.Error = fmt.Sprint(httpErr.Message)
	} else {
		appErr := apperror.From(err)
		status = appErr.Status
		resp.Error = appErr.Message
		resp.Reason = appErr.Reason
		if appErr.Kind == apperror.KindFatal || status >= http.StatusInternalServerError {
			log.WithError(err).WithFields(log.Fields{
				"kind": appErr.Kind,
				"path": c.Request().URL.Path,
			}).Error("request failed")
		}
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, &resp)
	}
	if err != nil {
		log.WithError(err).Error("write error response")
	}
}
