package gateway

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrKind classifies a remote failure by how the session layer must react.
type ErrKind string

const (
	// KindTransient covers network faults and 5xx responses. Retryable.
	KindTransient ErrKind = "transient"
	// KindValidation covers 4xx rejections of a single operation
	// (bad position, foreign question ID). Never retried silently.
	KindValidation ErrKind = "validation"
	// KindNotFound means the attempt or question does not exist upstream.
	KindNotFound ErrKind = "not_found"
	// KindConflict is the "already submitted" signal. The submission
	// workflow treats it as success-equivalent.
	KindConflict ErrKind = "conflict"
	// KindUnauthorized means the forwarded credential was rejected.
	KindUnauthorized ErrKind = "unauthorized"
)

// Error is a typed failure from the exam backend.
type Error struct {
	Kind   ErrKind
	Status int
	Op     string
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: upstream %s (status %d)", e.Op, e.Kind, e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Detail)
}

// classify maps an HTTP status to an ErrKind.
func classify(status int) ErrKind {
	switch {
	case status == http.StatusConflict:
		return KindConflict
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusUnauthorized:
		return KindUnauthorized
	case status >= 400 && status < 500:
		return KindValidation
	default:
		return KindTransient
	}
}

// KindOf extracts the ErrKind of err, or KindTransient for untyped errors
// (a wrapped net error, a timeout) since those are the retryable ones.
func KindOf(err error) ErrKind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return KindTransient
}

// IsConflict reports whether err is the idempotent "already submitted" signal.
func IsConflict(err error) bool {
	return KindOf(err) == KindConflict
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return KindOf(err) == KindTransient
}

// IsNotFound reports whether the target resource is missing upstream.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// IsUnauthorized reports whether the forwarded credential was rejected.
func IsUnauthorized(err error) bool {
	return KindOf(err) == KindUnauthorized
}
