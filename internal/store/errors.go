package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no message has the requested id.
	ErrNotFound = errors.New("message not found")

	// ErrInvalidInput is returned for messages or filters that break the model.
	ErrInvalidInput = errors.New("invalid input data")

	// ErrUnknownDriver is returned by Open for an unsupported driver name.
	ErrUnknownDriver = errors.New("unknown store driver")
)

// Error carries backend context for a failed store operation.
type Error struct {
	Driver string
	Op     string
	Query  string
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s store: %s", e.Driver, e.Op)
	if e.Query != "" {
		msg = fmt.Sprintf("%s (query: %s)", msg, e.Query)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrap(driver, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Driver: driver, Op: op, Err: err}
}

func wrapQuery(driver, op, query string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Driver: driver, Op: op, Query: query, Err: err}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
