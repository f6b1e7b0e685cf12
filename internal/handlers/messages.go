package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/chatter/internal/store"
)

// MessageService is the chat history and moderation surface.
type MessageService interface {
	History(ctx context.Context) ([]store.Message, error)
	RoomHistory(ctx context.Context, room string) ([]store.Message, error)
	Private(ctx context.Context, caller, from, to string) ([]store.Message, error)
	Edit(ctx context.Context, caller, id, text string) (*store.Message, error)
	Delete(ctx context.Context, caller, id string) error
}

// MessageHandler serves the REST view of stored messages.
type MessageHandler struct {
	messages MessageService
}

func NewMessageHandler(messages MessageService) *MessageHandler {
	return &MessageHandler{messages: messages}
}

// List handles GET /api/messages.
func (h *MessageHandler) List(c echo.Context) error {
	msgs, err := h.messages.History(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, nonNil(msgs))
}

// Room handles GET /api/rooms/:room/messages.
func (h *MessageHandler) Room(c echo.Context) error {
	msgs, err := h.messages.RoomHistory(c.Request().Context(), c.Param("room"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, nonNil(msgs))
}

// Private handles GET /api/private-messages/:from/:to.
func (h *MessageHandler) Private(c echo.Context) error {
	who, err := caller(c)
	if err != nil {
		return err
	}
	msgs, err := h.messages.Private(c.Request().Context(), who, c.Param("from"), c.Param("to"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, nonNil(msgs))
}

// Edit handles PUT /api/messages/:id.
func (h *MessageHandler) Edit(c echo.Context) error {
	who, err := caller(c)
	if err != nil {
		return err
	}
	var req EditMessageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Code: "invalid_input", Message: "malformed request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Code: "invalid_input", Message: "text is required"})
	}

	msg, err := h.messages.Edit(c.Request().Context(), who, c.Param("id"), req.Text)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, msg)
}

// Delete handles DELETE /api/messages/:id.
func (h *MessageHandler) Delete(c echo.Context) error {
	who, err := caller(c)
	if err != nil {
		return err
	}
	id := c.Param("id")
	if err := h.messages.Delete(c.Request().Context(), who, id); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, DeletedResponse{ID: id, Deleted: true})
}

func nonNil(msgs []store.Message) []store.Message {
	if msgs == nil {
		return []store.Message{}
	}
	return msgs
}
