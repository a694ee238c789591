package client

import "errors"

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotLoggedIn  = errors.New("not logged in")
	ErrRejected     = errors.New("request rejected")
	ErrIncomplete   = errors.New("operation incomplete")
)
