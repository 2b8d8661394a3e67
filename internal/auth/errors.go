package auth

import "errors"

var (
	// ErrMissingToken is returned when no bearer token can be extracted from the request
	ErrMissingToken = errors.New("authentication required")

	// ErrInvalidToken is returned when a token cannot be resolved to a user
	ErrInvalidToken = errors.New("invalid access token")
)
