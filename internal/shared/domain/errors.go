package domain

import (
	"errors"
	"fmt"
)

// Kind classifies an error at the core's boundary.
type Kind string

const (
	KindValidation            Kind = "validation"
	KindUnauthorized          Kind = "unauthorized"
	KindNotFound              Kind = "not_found"
	KindInvalidState          Kind = "invalid_state"
	KindPolicyDenied          Kind = "policy_denied"
	KindConflict              Kind = "conflict"
	KindOptionInvalid         Kind = "option_invalid"
	KindFrequentNotRegistered Kind = "frequent_not_registered"
	KindInternal              Kind = "internal"
)

// DomainError is an error tagged with a Kind for boundary mapping.
type DomainError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewError creates a DomainError with the given kind.
func NewError(kind Kind, message string) *DomainError {
	return &DomainError{Kind: kind, Message: message}
}

// WrapError wraps an underlying error with a kind.
func WrapError(kind Kind, message string, err error) *DomainError {
	return &DomainError{Kind: kind, Message: message, Err: err}
}

func NewValidation(message string) *DomainError   { return NewError(KindValidation, message) }
func NewUnauthorized(message string) *DomainError { return NewError(KindUnauthorized, message) }
func NewNotFound(message string) *DomainError     { return NewError(KindNotFound, message) }
func NewInvalidState(message string) *DomainError { return NewError(KindInvalidState, message) }
func NewPolicyDenied(message string) *DomainError { return NewError(KindPolicyDenied, message) }
func NewConflict(message string) *DomainError     { return NewError(KindConflict, message) }
func NewOptionInvalid(message string) *DomainError {
	return NewError(KindOptionInvalid, message)
}
func NewFrequentNotRegistered(message string) *DomainError {
	return NewError(KindFrequentNotRegistered, message)
}
func NewInternal(err error) *DomainError {
	return WrapError(KindInternal, "unexpected error", err)
}

// KindOf extracts the Kind of an error, defaulting to KindInternal.
func KindOf(err error) Kind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
