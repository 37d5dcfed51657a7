package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"
	"time"
)

// TransientError wraps an error that is safe to retry (429, 5xx, network
// timeout). StatusCode is zero when the failure never reached HTTP.
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps an error as transient with an optional HTTP status code.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// RateLimitError reports that the local limiter refused a request in
// fail-fast mode. RetryAfter is the wait that would have been needed.
type RateLimitError struct {
	Source     string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return "rate limit exhausted for source " + e.Source
}

// IsRateLimit reports whether err is a local rate-limit refusal.
func IsRateLimit(err error) bool {
	var rle *RateLimitError
	return errors.As(err, &rle)
}

// NotSupportedError reports that a source has no endpoint for the
// requested entity kind. It is a typed outcome, not a failure: callers
// mark the unit skipped and move on.
type NotSupportedError struct {
	Source string
	Kind   string
}

func (e *NotSupportedError) Error() string {
	return "source " + e.Source + " does not provide " + e.Kind
}

// IsNotSupported reports whether err marks a missing source capability.
func IsNotSupported(err error) bool {
	var nse *NotSupportedError
	return errors.As(err, &nse)
}

// ValidationError reports a source record that failed a normalization
// rule. The record is quarantined; the rest of its batch proceeds.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return "validation failed on " + e.Field + ": " + e.Reason
}

// IsValidation reports whether err is a record-level validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// AuthError reports a rejected credential (401/403). It aborts the
// source's remaining work for the run; retrying cannot help.
type AuthError struct {
	Source     string
	StatusCode int
}

func (e *AuthError) Error() string {
	return "authentication rejected by source " + e.Source
}

// IsAuth reports whether err is a credential rejection.
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// ConflictError reports a storage-level write conflict (SQLite busy,
// Postgres serialization failure). Callers retry the batch once before
// surfacing it.
type ConflictError struct {
	Err error
}

func (e *ConflictError) Error() string {
	return "storage conflict: " + e.Err.Error()
}

func (e *ConflictError) Unwrap() error {
	return e.Err
}

// IsConflict reports whether err is a retryable storage conflict.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// IsTransient returns true if the error (or any error in its chain) is a
// TransientError, or if it matches common transient error patterns (network
// timeouts, connection resets, DNS failures). Auth rejections, missing
// capabilities, and validation failures are never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if IsAuth(err) || IsNotSupported(err) || IsValidation(err) {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	// String-based heuristics for wrapped errors from HTTP clients.
	msg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
		"transport connection broken",
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsTransientHTTPStatus returns true if the HTTP status code indicates a
// transient server-side issue that is safe to retry.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, // Request Timeout
		429, // Too Many Requests
		500, // Internal Server Error
		502, // Bad Gateway
		503, // Service Unavailable
		504: // Gateway Timeout
		return true
	default:
		return false
	}
}

// Classify buckets an error for report and quarantine rows.
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case IsNotSupported(err):
		return "not_supported"
	case IsValidation(err):
		return "validation"
	case IsAuth(err):
		return "auth"
	case IsRateLimit(err):
		return "rate_limit"
	case IsConflict(err):
		return "conflict"
	case IsTransient(err):
		return "transient"
	default:
		return "permanent"
	}
}
