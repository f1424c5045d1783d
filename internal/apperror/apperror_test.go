package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrom_UnwrapsWrappedError(t *testing.T) {
	base := CouponRejected(ReasonExpired, "coupon expired")
	wrapped := fmt.Errorf("resolve pricing: %w", base)

	got := From(wrapped)
	assert.Same(t, base, got)
	assert.Equal(t, http.StatusBadRequest, got.Status)
	assert.Equal(t, ReasonExpired, ReasonOf(wrapped))
	assert.True(t, Is(wrapped, KindCouponRejected))
}

func TestFrom_UnexpectedIsFatal(t *testing.T) {
	got := From(errors.New("connection reset"))
	assert.Equal(t, KindFatal, got.Kind)
	assert.Equal(t, http.StatusInternalServerError, got.Status)
	assert.Equal(t, "connection reset", got.Message)
}

func TestProvider_DefaultsToBadGateway(t *testing.T) {
	assert.Equal(t, http.StatusBadGateway, Provider(0, "dial failed", nil).Status)
	assert.Equal(t, http.StatusUnprocessableEntity, Provider(422, "rejected", nil).Status)
}
