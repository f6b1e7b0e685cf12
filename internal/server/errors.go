package server

import (
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/chatter/internal/handlers"
	"github.com/nfrund/chatter/internal/middleware"
)

// setupErrorHandling installs a JSON error handler. Echo HTTP errors keep
// their status; anything else is logged with a stack trace and becomes 500.
func setupErrorHandling(e *echo.Echo) {
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		message := http.StatusText(code)

		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if msg, ok := he.Message.(string); ok {
				message = msg
			} else {
				message = http.StatusText(code)
			}
		} else {
			middleware.FromContext(c.Request().Context()).Error("Internal Server Error (Unhandled)",
				"error", err.Error(),
				"stack_trace", string(debug.Stack()),
			)
		}

		resp := handlers.ErrorResponse{Code: http.StatusText(code), Message: message}
		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(code)
		} else {
			writeErr = c.JSON(code, resp)
		}
		if writeErr != nil {
			middleware.FromContext(c.Request().Context()).Error("failed to write error response", "error", writeErr)
		}
	}
}
