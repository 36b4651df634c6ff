package application

import "errors"

var (
	// ErrInvalidInput signals a token request that cannot be issued.
	ErrInvalidInput = errors.New("invalid identity input")
	// ErrSigningKeyRequired is returned when the service has no secret to sign with.
	ErrSigningKeyRequired = errors.New("token signing key is required")
)
