// Package apperr holds the sentinel errors shared by the service and its transports.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	ErrUnknownPage   = errors.New("unknown page")
	ErrInvalidPath   = errors.New("invalid card path")
)
