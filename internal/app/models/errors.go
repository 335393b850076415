package models

import "errors"

// Domain specific errors for authentication, authorization and role management.
var (
	ErrNotFound        = errors.New("requested item not found")
	ErrConflict        = errors.New("item already exists or conflict")
	ErrUnauthenticated = errors.New("authentication required or invalid credentials")
	ErrForbidden       = errors.New("action forbidden")
	ErrBadRequest      = errors.New("bad request")
	ErrValidation      = errors.New("validation failed")
	ErrTargetNotFound  = errors.New("no user matches the lookup")
	ErrBusy            = errors.New("a submission is already in progress")
	ErrStorageDisabled = errors.New("object storage is not configured")
)
