package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/chatter/internal/identity"
)

// UserContextKey holds the authenticated identity on the echo context.
const UserContextKey = "user"

// Credential extracts the bearer token from the Authorization header, falling
// back to the "token" query parameter used by browser websocket clients.
func Credential(c echo.Context) string {
	if h := c.Request().Header.Get(echo.HeaderAuthorization); h != "" {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return c.QueryParam("token")
}

// Auth rejects requests without a valid token and stores the identity under
// UserContextKey.
func Auth(oracle identity.Oracle) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			who, err := oracle.Verify(c.Request().Context(), Credential(c))
			if err != nil {
				FromContext(c.Request().Context()).Debug("rejected request", "path", c.Path(), "error", err)
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or missing token")
			}
			c.Set(UserContextKey, who)
			return next(c)
		}
	}
}

// Identity returns the identity set by Auth.
func Identity(c echo.Context) (string, bool) {
	who, ok := c.Get(UserContextKey).(string)
	return who, ok && who != ""
}
