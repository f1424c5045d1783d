package middleware

import (
	"context"
	"course-checkout/internal/apperror"
	"course-checkout/internal/identity"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockExchanger struct {
	Calls int
}

func (m *mockExchanger) Exchange(ctx context.Context, credential string) (*identity.Session, error) {
	m.Calls++
	if credential != "tok-1" {
		return nil, apperror.Unauthenticated("unknown session", nil)
	}
	return &identity.Session{UserID: "user-1", Email: "a@example.com"}, nil
}

func newContext(authorization string) echo.Context {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	if authorization != "" {
		req.Header.Set(echo.HeaderAuthorization, authorization)
	}
	return echo.New().NewContext(req, httptest.NewRecorder())
}

func TestIdentity_ResolvesLazilyAndOnce(t *testing.T) {
	ex := &mockExchanger{}
	c := newContext("Bearer tok-1")

	var calls []int
	h := Identity(identity.NewResolver(ex))(func(c echo.Context) error {
		calls = append(calls, ex.Calls)
		first, err := Caller(c)
		require.NoError(t, err)
		second, err := Caller(c)
		require.NoError(t, err)
		assert.Equal(t, first, second)
		assert.Equal(t, "user-1", first.ID())
		return nil
	})

	require.NoError(t, h(c))
	assert.Equal(t, []int{0}, calls, "nothing is exchanged before the handler asks")
	assert.Equal(t, 1, ex.Calls)
}

func TestCaller_Errors(t *testing.T) {
	_, err := Caller(newContext("Bearer tok-1"))
	assert.True(t, apperror.Is(err, apperror.KindUnauthenticated), "route without Identity")

	ex := &mockExchanger{}
	c := newContext("Bearer tok-2")
	err = Identity(identity.NewResolver(ex))(func(c echo.Context) error {
		_, err := Caller(c)
		return err
	})(c)
	assert.True(t, apperror.Is(err, apperror.KindUnauthenticated))
}
