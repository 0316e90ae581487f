// Package common defines the shared error taxonomy used across all layers.
// Callers match these values with errors.Is; detail codes are attached by
// wrapping, e.g. fmt.Errorf("%w: INCORRECT_FILE_TYPE", common.ErrorBadRequest).
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Caller supplied invalid input (wrong content type, empty body, bad id).
	ErrorBadRequest = errors.New("bad request")

	// A uniqueness or state constraint was violated.
	ErrorConflict = errors.New("conflict")

	// Auth errors.
	ErrorUnauthorized = errors.New("unauthorized")
	ErrInvalidToken   = errors.New("invalid token")
	ErrTokenExpired   = errors.New("token expired")

	// Unexpected transport/storage failure.
	ErrorInternal = errors.New("internal error")
)
