// Package sentinel defines the errors stores return at their boundary.
// Services match on these with errors.Is and translate them into coded
// domain errors exactly once, so the stores stay free of HTTP or domain
// error knowledge.
package sentinel

import "errors"

var (
	// ErrNotFound means the requested record does not exist in the store.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyUsed means a uniqueness constraint (id, name, email) was hit.
	ErrAlreadyUsed = errors.New("already used")
	// ErrInvalidInput means the store rejected malformed input.
	ErrInvalidInput = errors.New("invalid input")
)
