package models

import (
	"errors"
)

// Failure kinds returned by the lifecycle services. Callers match them with
// errors.Is; services wrap them with the offending ids and states.
var (
	ErrNotFound          = errors.New("models: resource not found")
	ErrForbidden         = errors.New("models: forbidden")
	ErrInvalidTransition = errors.New("models: invalid status transition")
	ErrInvalidState      = errors.New("models: invalid state for operation")
	ErrInvalidAgent      = errors.New("models: invalid or inactive agent")
	ErrValidation        = errors.New("models: validation failed")
	ErrAlreadyResolved   = errors.New("models: appeal already resolved")
)

var (
	ErrInvalidCredentials = errors.New("models: invalid credentials")
	ErrDuplicateEmail     = errors.New("models: duplicate email")
	ErrAccountNotActive   = errors.New("models: account is not active")
)
