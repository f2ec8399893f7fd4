package token

import "errors"

// ErrExpiredToken and ErrInvalidToken stay distinct here; HTTP handlers
// collapse both into one 401 response.
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingClaim = errors.New("token missing required claim")
	ErrEmptySecret  = errors.New("token signing secret is empty")
)
