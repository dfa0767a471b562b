package apperr

import "errors"

// Sentinel errors shared by the store and the workflows. Callers wrap them
// with context and match them with errors.Is.
var (
	ErrNotConnected = errors.New("store is not connected")
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
	ErrConflict     = errors.New("conflict")
)
