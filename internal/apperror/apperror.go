// Package apperror carries the expected failure kinds of the checkout flow.
// Anything that is not an *Error is treated as fatal at the HTTP boundary.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindValidation           Kind = "validation"
	KindUnauthenticated      Kind = "unauthenticated"
	KindNotFound             Kind = "not_found"
	KindCouponRejected       Kind = "coupon_rejected"
	KindCatalogMisconfigured Kind = "catalog_misconfigured"
	KindProvider             Kind = "provider"
	KindCorrelationCorrupt   Kind = "correlation_corrupt"
	KindFatal                Kind = "fatal"
)

// Reason codes are stable and meant for clients to switch on.
const (
	ReasonInvalid                = "invalid"
	ReasonExpired                = "expired"
	ReasonWrongScope             = "wrong-scope"
	ReasonWrongCurrency          = "wrong-currency"
	ReasonExhausted              = "exhausted"
	ReasonFreeEnrollmentMismatch = "free-enrollment-mismatch"
	ReasonNotFound               = "not-found"
	ReasonNoActivePrice          = "no-active-price"
)

type Error struct {
	Kind    Kind
	Reason  string
	Message string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Status: http.StatusBadRequest, Message: fmt.Sprintf(format, args...)}
}

func Unauthenticated(message string, err error) *Error {
	return &Error{Kind: KindUnauthenticated, Status: http.StatusUnauthorized, Message: message, Err: err}
}

func NotFound(reason, format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Status: http.StatusNotFound, Reason: reason, Message: fmt.Sprintf(format, args...)}
}

func CouponRejected(reason, message string) *Error {
	return &Error{Kind: KindCouponRejected, Status: http.StatusBadRequest, Reason: reason, Message: message}
}

func CatalogMisconfigured(format string, args ...any) *Error {
	return &Error{Kind: KindCatalogMisconfigured, Status: http.StatusInternalServerError, Message: fmt.Sprintf(format, args...)}
}

// Provider wraps a payment network failure. status is the network's own
// HTTP status when it answered, or a gateway status when it did not.
func Provider(status int, message string, err error) *Error {
	if status < 400 {
		status = http.StatusBadGateway
	}
	return &Error{Kind: KindProvider, Status: status, Message: message, Err: err}
}

func CorrelationCorrupt(message string, err error) *Error {
	return &Error{Kind: KindCorrelationCorrupt, Status: http.StatusUnprocessableEntity, Message: message, Err: err}
}

// From returns the *Error in err's chain, or a Fatal error carrying err's
// message when err is unexpected.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return &Error{Kind: KindFatal, Status: http.StatusInternalServerError, Message: err.Error(), Err: err}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Kind == kind
}

// ReasonOf returns the reason code of err, or "" when it carries none.
func ReasonOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Reason
	}
	return ""
}
