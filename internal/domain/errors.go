// internal/domain/errors.go
package domain

import "errors"

var (
	ErrInvalidAmount   = errors.New("amount must be a positive value with at most 2 decimal places")
	ErrInvalidInput    = errors.New("invalid input")
	ErrAccountNotFound = errors.New("account not found")
	ErrUnknownCategory = errors.New("unknown category")
	ErrEmailTaken      = errors.New("email already registered")
)
