// Package common defines shared constants and sentinel errors used across
// ViewTube components. Callers should use errors.Is to match these values.
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

	// Upstream collaborators (media storage).
	ErrorUpstream = errors.New("upstream dependency error")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired       = errors.New("token expired")
	ErrRefreshTokenReused = errors.New("refresh token expired or already used")
)
