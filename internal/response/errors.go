package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrCredentialRequired ErrCode = "CREDENTIAL_REQUIRED"
	ErrCredentialRejected ErrCode = "CREDENTIAL_REJECTED"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation      ErrCode = "VALIDATION_ERROR"
	ErrInvalidID       ErrCode = "INVALID_ID"
	ErrInvalidPosition ErrCode = "INVALID_POSITION"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"

	// ─── Attempt-specific ──────────────────────────────────────────────
	ErrAttemptSubmitted    ErrCode = "ATTEMPT_ALREADY_SUBMITTED"
	ErrAttemptNotSubmitted ErrCode = "ATTEMPT_NOT_SUBMITTED"
	ErrNoActiveSession     ErrCode = "NO_ACTIVE_SESSION"
	ErrNotConfirming       ErrCode = "NO_PENDING_CONFIRMATION"
	ErrSubmitInFlight      ErrCode = "SUBMIT_IN_FLIGHT"
	ErrTimedNoExit         ErrCode = "TIMED_ATTEMPT_NO_EXIT"
	ErrReviewUnavailable   ErrCode = "REVIEW_UNAVAILABLE"

	// ─── Upstream ──────────────────────────────────────────────────────
	ErrUpstreamUnavailable ErrCode = "UPSTREAM_UNAVAILABLE"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrCredentialRequired:
		return "An authentication credential is required."
	case ErrCredentialRejected:
		return "The exam backend rejected your credential. Please sign in again."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid attempt identifier."
	case ErrInvalidPosition:
		return "Question position is out of range for this attempt."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."

	// ─── Attempt-specific ──────────────────────────────────────────────
	case ErrAttemptSubmitted:
		return "This attempt has already been submitted."
	case ErrAttemptNotSubmitted:
		return "This attempt has not been submitted yet."
	case ErrNoActiveSession:
		return "No active session for this attempt. Resume it first."
	case ErrNotConfirming:
		return "There is no submission awaiting confirmation."
	case ErrSubmitInFlight:
		return "A submission is already in progress."
	case ErrTimedNoExit:
		return "Timed attempts cannot be saved and exited."
	case ErrReviewUnavailable:
		return "Review becomes available after submission."

	// ─── Upstream ──────────────────────────────────────────────────────
	case ErrUpstreamUnavailable:
		return "The exam backend is temporarily unreachable. Please try again."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
