package middleware

import (
	"context"
	"course-checkout/internal/apperror"
	"course-checkout/internal/identity"

	"github.com/labstack/echo/v4"
)

const (
	resolverKey = "caller_resolver"
	callerKey   = "caller"
)

type CallerResolver interface {
	Resolve(ctx context.Context, authorization string) (identity.Caller, error)
}

// Identity marks a route as authenticated. The credential is not exchanged
// here: handlers call Caller once the request body has been validated, so a
// malformed request is rejected before any session lookup.
func Identity(resolver CallerResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(resolverKey, resolver)
			return next(c)
		}
	}
}

// Caller resolves the bearer credential of the request at most once. Routes
// without Identity have no caller.
func Caller(c echo.Context) (identity.Caller, error) {
	if caller, ok := c.Get(callerKey).(identity.Caller); ok {
		return caller, nil
	}

	resolver, ok := c.Get(resolverKey).(CallerResolver)
	if !ok {
		return identity.Caller{}, apperror.Unauthenticated("route is not authenticated", nil)
	}

	caller, err := resolver.Resolve(c.Request().Context(), c.Request().Header.Get(echo.HeaderAuthorization))
	if err != nil {
		return identity.Caller{}, err
	}
	c.Set(callerKey, caller)
	return caller, nil
}
