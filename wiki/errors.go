package wiki

import (
	"errors"
	"fmt"
)

// Error categories shared across the client. Batch operations collect
// these per item; schema operations treat them as fatal.

// NotFoundError reports a missing page or slot.
type NotFoundError struct {
	// FullTitle is the page that was requested.
	FullTitle string

	// Slot is set when a specific slot was missing on an existing page.
	Slot string
}

func (e *NotFoundError) Error() string {
	if e.Slot != "" {
		return fmt.Sprintf("slot %q not found on page %q", e.Slot, e.FullTitle)
	}
	return fmt.Sprintf("page %q not found", e.FullTitle)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// TransportError wraps a network or HTTP-level failure. Idempotent
// reads are retried once with backoff; writes are never retried.
type TransportError struct {
	Op  string
	err error
}

// NewTransportError wraps err as a transport failure of the given operation.
func NewTransportError(op string, err error) error {
	return &TransportError{Op: op, err: err}
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s: %v", e.Op, e.err)
}

func (e *TransportError) Unwrap() error { return e.err }

// IsTransport reports whether err is a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// ValidationError reports an entity payload that fails validation
// against its class schema on store. Fatal for that entity only; the
// rest of the batch continues.
type ValidationError struct {
	// FullTitle is the page the entity would have been stored under.
	FullTitle string

	// Reason describes the first violated constraint.
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("entity %q fails validation: %s", e.FullTitle, e.Reason)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ConflictError reports a mid-air edit collision detected by the
// server. It is returned per page without retry; the caller decides.
type ConflictError struct {
	FullTitle string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("edit conflict on page %q", e.FullTitle)
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// AuthError reports that no credential could be resolved for an IRI.
type AuthError struct {
	IRI string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("no credentials resolvable for %q", e.IRI)
}

// IsAuth reports whether err is an AuthError.
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}
