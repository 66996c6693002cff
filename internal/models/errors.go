package models

import "errors"

// Contract violations abort the current pass and are never retried.
var (
	ErrMalformedNodeName = errors.New("malformed node name")
	ErrInvalidScaleDown  = errors.New("invalid scale down")
	ErrInvalidScaleUp    = errors.New("invalid scale up")
	ErrTemplateShape     = errors.New("unexpected template shape")
)

// ErrNotFound is returned by provider adapters when the addressed resource
// does not exist.
var ErrNotFound = errors.New("resource not found")

// IsContractViolation reports whether err is one of the fatal, non-retryable
// programming-contract errors.
func IsContractViolation(err error) bool {
	return errors.Is(err, ErrMalformedNodeName) ||
		errors.Is(err, ErrInvalidScaleDown) ||
		errors.Is(err, ErrInvalidScaleUp) ||
		errors.Is(err, ErrTemplateShape)
}
