package internal

import (
	"errors"
	"fmt"
)

// Engine and cache error kinds. Handlers map each kind to a distinct HTTP
// status; services classify and propagate, they never retry.
var (
	ErrSessionConflict       = errors.New("an active session already exists")
	ErrNoActiveSession       = errors.New("no active session")
	ErrInvalidDuration       = errors.New("planned duration out of range")
	ErrProviderUnavailable   = errors.New("weather provider unavailable")
	ErrProviderMisconfigured = errors.New("weather provider misconfigured")
	ErrProviderError         = errors.New("weather provider error")
)

// StoreError wraps an opaque persistence failure with the operation that hit it.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func NewStoreError(op string, err error) *StoreError {
	return &StoreError{Op: op, Err: err}
}

// AppError is the error payload of the API response envelope.
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *AppError) Error() string {
	return e.Message
}

func NewAppError(code int, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}
