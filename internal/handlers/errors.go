package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/chatter/internal/chat"
	"github.com/nfrund/chatter/internal/middleware"
	"github.com/nfrund/chatter/internal/store"
)

// respondError maps domain errors onto HTTP status codes. Unexpected errors
// are logged and reported as 500 without detail.
func respondError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, chat.ErrForbidden):
		return c.JSON(http.StatusForbidden, ErrorResponse{Code: "forbidden", Message: "you are not allowed to access this message"})
	case errors.Is(err, store.ErrNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{Code: "not_found", Message: "message not found"})
	case errors.Is(err, store.ErrInvalidInput):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Code: "invalid_input", Message: err.Error()})
	}
	middleware.FromContext(c.Request().Context()).Error("request failed", "error", err)
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Code: "internal", Message: "internal server error"})
}

func caller(c echo.Context) (string, error) {
	who, ok := middleware.Identity(c)
	if !ok {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "invalid or missing token")
	}
	return who, nil
}
