package app

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrNotFound and related errors describe validation and runtime failures.
var (
	ErrNotFound            = errors.New("not found")
	ErrKeyNotFound         = errors.New("store key not found")
	ErrValidation          = errors.New("validation failed")
	ErrDeserialize         = errors.New("stored data could not be decoded")
	ErrPersist             = errors.New("persist failed")
	ErrInvalidSnapshot     = errors.New("invalid snapshot")
	ErrActivityUnavailable = errors.New("activity log is not configured")
	ErrResetUnsupported    = errors.New("store cannot delete documents")
)

// ValidationError reports rejected input fields. It matches ErrValidation with errors.Is.
type ValidationError struct {
	Fields map[string]string
	Err    error
}

// Error renders field failures in stable key order.
func (e *ValidationError) Error() string {
	if e == nil {
		return ErrValidation.Error()
	}
	parts := make([]string, 0, len(e.Fields)+1)
	keys := make([]string, 0, len(e.Fields))
	for key := range e.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s %s", key, e.Fields[key]))
	}
	if e.Err != nil && len(parts) == 0 {
		parts = append(parts, e.Err.Error())
	}
	if len(parts) == 0 {
		return ErrValidation.Error()
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

// Unwrap exposes ErrValidation and the underlying cause.
func (e *ValidationError) Unwrap() []error {
	if e == nil {
		return nil
	}
	if e.Err == nil {
		return []error{ErrValidation}
	}
	return []error{ErrValidation, e.Err}
}

// newValidationError wraps one domain rule failure.
func newValidationError(err error) error {
	if err == nil {
		return nil
	}
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return err
	}
	return &ValidationError{Err: err}
}
