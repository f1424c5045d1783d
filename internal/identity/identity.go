// Package identity turns the bearer credential of an inbound request into the
// caller the rest of the checkout trusts. A Caller can only be produced here,
// so no handler can smuggle an identity in from a request body.
package identity

import (
	"context"
	"course-checkout/internal/apperror"
	"errors"
	"strings"
)

// Caller is the authenticated user of the current request.
type Caller struct {
	id    string
	email string
}

func (c Caller) ID() string {
	return c.id
}

func (c Caller) Email() string {
	return c.email
}

// IsZero reports whether c was never resolved.
func (c Caller) IsZero() bool {
	return c.id == ""
}

// Session is what the identity provider reports for a credential.
type Session struct {
	UserID string
	Email  string
}

type SessionExchanger interface {
	Exchange(ctx context.Context, credential string) (*Session, error)
}

type Resolver struct {
	exchanger SessionExchanger
}

func NewResolver(exchanger SessionExchanger) *Resolver {
	return &Resolver{exchanger: exchanger}
}

// Resolve extracts the bearer credential from an Authorization header value
// and exchanges it for a caller. Every failure is Unauthenticated.
func (r *Resolver) Resolve(ctx context.Context, authorization string) (Caller, error) {
	credential := BearerToken(authorization)
	if credential == "" {
		return Caller{}, apperror.Unauthenticated("missing bearer credential", nil)
	}

	session, err := r.exchanger.Exchange(ctx, credential)
	if err != nil {
		var appErr *apperror.Error
		if errors.As(err, &appErr) && appErr.Kind == apperror.KindUnauthenticated {
			return Caller{}, appErr
		}
		return Caller{}, apperror.Unauthenticated("session exchange failed", err)
	}
	if session == nil || strings.TrimSpace(session.UserID) == "" {
		return Caller{}, apperror.Unauthenticated("no user for session", nil)
	}

	return Caller{id: session.UserID, email: session.Email}, nil
}

// BearerToken strips a case-insensitive "Bearer " prefix. It returns "" when
// the header carries no bearer credential.
func BearerToken(authorization string) string {
	authorization = strings.TrimSpace(authorization)
	const prefix = "bearer "
	if len(authorization) < len(prefix) || !strings.EqualFold(authorization[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(authorization[len(prefix):])
}
