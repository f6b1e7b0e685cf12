package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/chatter/internal/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthMiddleware(t *testing.T) {
	oracle, err := identity.NewJWTOracle("middleware-test-secret")
	require.NoError(t, err)

	e := echo.New()
	e.GET("/api/me", func(c echo.Context) error {
		who, ok := Identity(c)
		require.True(t, ok)
		return c.String(http.StatusOK, "Welcome "+who)
	}, Auth(oracle))

	token, err := oracle.Issue("alice", time.Hour)
	require.NoError(t, err)

	t.Run("missing token is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("bearer header is accepted", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Welcome alice", rec.Body.String())
	})

	t.Run("query token is accepted", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/me?token="+token, nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("foreign token is rejected", func(t *testing.T) {
		other, err := identity.NewJWTOracle("someone-else")
		require.NoError(t, err)
		forged, err := other.Issue("mallory", time.Hour)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+forged)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestCredential_PrefersHeader(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/ws?token=from-query", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer from-header")
	c := e.NewContext(req, httptest.NewRecorder())
	assert.Equal(t, "from-header", Credential(c))
}
