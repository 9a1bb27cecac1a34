package wincap

import "fmt"

// CaptureErrorKind is the closed taxonomy every fallible core operation
// reports through.
type CaptureErrorKind string

const (
	ErrInvalidArgument    CaptureErrorKind = "invalid_argument"
	ErrNotFound           CaptureErrorKind = "not_found"
	ErrPermissionDenied   CaptureErrorKind = "permission_denied"
	ErrConsentMissing     CaptureErrorKind = "consent_missing"
	ErrConsentRevoked     CaptureErrorKind = "consent_revoked"
	ErrCaptureTimeout     CaptureErrorKind = "capture_timeout"
	ErrBackendUnavailable CaptureErrorKind = "backend_unavailable"
	ErrEncodingFailed     CaptureErrorKind = "encoding_failed"
	ErrInternal           CaptureErrorKind = "internal"
)

// CaptureError is the error type every core operation returns on failure.
type CaptureError struct {
	Kind    CaptureErrorKind
	Reason  string
	Backend string
	Cause   error
}

func (e *CaptureError) Error() string {
	if e.Backend != "" {
		return fmt.Sprintf("%s [%s]: %s", e.Kind, e.Backend, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *CaptureError) Unwrap() error {
	return e.Cause
}

// NewError builds a CaptureError with a formatted reason.
func NewError(kind CaptureErrorKind, backend, format string, args ...interface{}) *CaptureError {
	return &CaptureError{Kind: kind, Backend: backend, Reason: fmt.Sprintf(format, args...)}
}

// WrapError builds a CaptureError that wraps an underlying cause.
func WrapError(kind CaptureErrorKind, backend string, cause error, format string, args ...interface{}) *CaptureError {
	return &CaptureError{Kind: kind, Backend: backend, Reason: fmt.Sprintf(format, args...), Cause: cause}
}

// IsKind reports whether err is a *CaptureError of the given kind.
func IsKind(err error, kind CaptureErrorKind) bool {
	var ce *CaptureError
	if e, ok := err.(*CaptureError); ok {
		ce = e
	} else {
		return false
	}
	return ce.Kind == kind
}
