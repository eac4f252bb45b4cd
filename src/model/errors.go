package model

import "errors"

var (
	ErrAuth                = errors.New("exchange credentials rejected")
	ErrTransient           = errors.New("transient network error")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrDuplicatePosition   = errors.New("open position already exists")
	ErrValidation          = errors.New("validation error")
	ErrMissingCredentials  = errors.New("api keys not found")
	ErrFatal               = errors.New("fatal error")
)

// ErrorClass is the bucket a unit-of-work failure falls into.
type ErrorClass string

const (
	ClassNone                ErrorClass = ""
	ClassAuth                ErrorClass = "auth"
	ClassTransient           ErrorClass = "transient"
	ClassInsufficientBalance ErrorClass = "insufficient_balance"
	ClassDuplicatePosition   ErrorClass = "duplicate_position"
	ClassValidation          ErrorClass = "validation"
	ClassFatal               ErrorClass = "fatal"
)

// Classify maps err onto the error taxonomy. Anything unrecognised is treated as transient
// and retried on the next tick.
func Classify(err error) ErrorClass {
	switch {
	case err == nil:
		return ClassNone
	case errors.Is(err, ErrFatal):
		return ClassFatal
	case errors.Is(err, ErrAuth):
		return ClassAuth
	case errors.Is(err, ErrInsufficientBalance):
		return ClassInsufficientBalance
	case errors.Is(err, ErrDuplicatePosition):
		return ClassDuplicatePosition
	case errors.Is(err, ErrValidation), errors.Is(err, ErrMissingCredentials):
		return ClassValidation
	default:
		return ClassTransient
	}
}
