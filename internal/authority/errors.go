package authority

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrorCode is the authority's typed rejection code.
type ErrorCode string

const (
	CodeNotFound       ErrorCode = "not_found"
	CodeLocked         ErrorCode = "locked"
	CodeBanned         ErrorCode = "banned"
	CodeRateLimited    ErrorCode = "rate_limited"
	CodeQuotaExhausted ErrorCode = "quota_exhausted"
	CodeUnknown        ErrorCode = "unknown"
)

// APIError is a typed rejection returned by the authority. Transport-level
// failures are returned as plain wrapped errors, never as APIError.
type APIError struct {
	Code       ErrorCode
	Message    string
	RetryAfter time.Duration
	Status     int
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("authority rejected request: %s (%s)", e.Message, e.Code)
	}
	return fmt.Sprintf("authority rejected request: %s", e.Code)
}

// ErrorClass resolves how the ledger must react to a failed confirmation.
type ErrorClass int

const (
	// ClassTransient: revert the optimistic delta and schedule a resync.
	ClassTransient ErrorClass = iota
	// ClassConflict: local state may be globally stale; force a full
	// resync instead of rolling back the single delta.
	ClassConflict
	// ClassAuthorization: the visitor is banned; revert and latch the ban.
	ClassAuthorization
	// ClassRateLimited: revert and surface the server's retry-after.
	ClassRateLimited
	// ClassRejected: a plain validation rejection (e.g. server-side quota);
	// revert, nothing else.
	ClassRejected
)

// Classify maps a confirmation error onto the reaction the ledger takes.
// Context cancellation counts as transient: the delta is reverted but no
// retry storm follows a teardown.
func Classify(err error) ErrorClass {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case CodeNotFound, CodeLocked:
			return ClassConflict
		case CodeBanned:
			return ClassAuthorization
		case CodeRateLimited:
			return ClassRateLimited
		case CodeQuotaExhausted:
			return ClassRejected
		default:
			return ClassTransient
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ClassTransient
	}
	return ClassTransient
}

// RetryAfter extracts the server-supplied retry hint, when present.
func RetryAfter(err error) (time.Duration, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
		return apiErr.RetryAfter, true
	}
	return 0, false
}

// Reason extracts the human-readable rejection message, when present.
func Reason(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return ""
}
