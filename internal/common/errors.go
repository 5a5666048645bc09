// Package common defines shared constants and sentinel errors used across
// versiman components. Callers should use errors.Is to match these values.
package common

import "errors"

var (

	// repository specific errors
	ErrorNotFound = errors.New("not found")

	// service specific errors
	ErrorConflict     = errors.New("conflict")
	ErrorFailure      = errors.New("operation failure")
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	ErrInvalidToken = errors.New("invalid token")
)
