// Package common defines shared constants and sentinel errors used across
// client and server layers of gophauth. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorValidation   = errors.New("validation error")

	// Credential check failures. The messages are the only text ever shown
	// to end users for a failed login or delete.
	ErrInvalidPassword = errors.New("password incorrect")
	ErrAccountNotFound = errors.New("account does not exist")
	ErrTooManyAttempts = errors.New("too many failed attempts, try again later")
	ErrAccountDisabled = errors.New("account disabled")
	ErrUnknownProvider = errors.New("email address or password is incorrect")

	// Remote account mutation failures.
	ErrProviderCreate = errors.New("identity provider account creation failed")
	ErrProviderDelete = errors.New("identity provider account deletion failed")

	// Local hashing failure.
	ErrHashing = errors.New("password hashing failed")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired = errors.New("token expired")
)

// IsCredentialFailure reports whether err is one of the classified credential
// check failures.
func IsCredentialFailure(err error) bool {
	return errors.Is(err, ErrInvalidPassword) ||
		errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrTooManyAttempts) ||
		errors.Is(err, ErrAccountDisabled) ||
		errors.Is(err, ErrUnknownProvider)
}
