package student

import "errors"

var (
	ErrNotFound     = errors.New("student not found")
	ErrConflict     = errors.New("student already exists")
	ErrInvalidInput = errors.New("invalid input")
	// ErrFutureDate is returned for a birth date or search date after today.
	ErrFutureDate = errors.New("date cannot be in the future")
)
