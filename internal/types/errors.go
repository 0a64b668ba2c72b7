package types

import "errors"

// Error kinds shared across packages. The HTTP layer maps each one to a
// status code; anything else is treated as an internal failure.
var (
	ErrNotFound        = errors.New("requested item not found")
	ErrConflict        = errors.New("item already exists or conflict")
	ErrUnauthenticated = errors.New("authentication required or invalid credentials")
	ErrForbidden       = errors.New("action forbidden")
	ErrValidation      = errors.New("validation failed")
)
