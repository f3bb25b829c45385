package service

import (
	"errors"
	"strings"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("conflict")
)

// ValidationError reports every problem found in a payload
type ValidationError struct {
	Message  string
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 0 {
		return e.Message
	}
	return e.Message + ": " + strings.Join(e.Problems, "; ")
}

func invalid(message string, problems ...string) *ValidationError {
	return &ValidationError{Message: message, Problems: problems}
}

// ConflictError is returned for a repeated idempotency key
type ConflictError struct {
	Key      string
	OrderIDs []string
}

func (e *ConflictError) Error() string {
	if len(e.OrderIDs) == 0 {
		return "request with idempotency key " + e.Key + " is still in progress"
	}
	return "request with idempotency key " + e.Key + " already created " + strings.Join(e.OrderIDs, ", ")
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}
