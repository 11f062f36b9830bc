package core

import "github.com/pkg/errors"

// ErrConcurrentModification is returned when the store aborts a transaction
// because it raced with another one (serialization failure, deadlock).
var ErrConcurrentModification = errors.New("record was modified concurrently, try again")

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}

// dataUnavailable reports that the underlying store could not be read or written.
// Callers may retry with backoff; nothing in core retries on its own.
type dataUnavailable struct {
	err error
}

func NewDataUnavailableError(err error) error {
	return &dataUnavailable{err: err}
}

func (e dataUnavailable) Error() string {
	return "data unavailable: " + e.err.Error()
}

func IsDataUnavailable(err error) bool {
	_, ok := errors.Cause(err).(*dataUnavailable)
	return ok
}
