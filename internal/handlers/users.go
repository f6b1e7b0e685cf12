package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Snapshotter lists online identities.
type Snapshotter interface {
	Snapshot() []string
}

type UserHandler struct {
	presence Snapshotter
}

func NewUserHandler(presence Snapshotter) *UserHandler {
	return &UserHandler{presence: presence}
}

// Profile handles GET /api/user/profile.
func (h *UserHandler) Profile(c echo.Context) error {
	who, err := caller(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ProfileResponse{Username: who, Message: "Welcome " + who})
}

// Online handles GET /api/online.
func (h *UserHandler) Online(c echo.Context) error {
	users := h.presence.Snapshot()
	if users == nil {
		users = []string{}
	}
	return c.JSON(http.StatusOK, OnlineResponse{Users: users, Count: len(users)})
}

// Health handles GET /api/health.
func Health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}
