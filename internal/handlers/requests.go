package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/nfrund/chatter/internal/protocol"
)

// CustomValidator wraps the go-playground/validator library to implement Echo's Validator interface.
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator creates a CustomValidator that knows the chat payload rules.
func NewValidator() *CustomValidator {
	return &CustomValidator{validator: protocol.NewValidator()}
}

// Validate implements the echo.Validator interface.
func (cv *CustomValidator) Validate(i any) error {
	return cv.validator.Struct(i)
}

// EditMessageRequest is the body of PUT /api/messages/:id.
type EditMessageRequest struct {
	Text string `json:"text" validate:"nonblank,max=4000"`
}
