package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
)

// Class is the retry classification of an error returned by a remote service.
type Class int

const (
	// ClassUnknown covers errors nothing recognises. They are retried.
	ClassUnknown Class = iota
	ClassRateLimited
	ClassTransient
	ClassPermanent
)

func (c Class) String() string {
	switch c {
	case ClassRateLimited:
		return "rate_limited"
	case ClassTransient:
		return "transient"
	case ClassPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// ErrExhaustedRetries matches any *ExhaustedRetriesError via errors.Is.
var ErrExhaustedRetries = eris.New("retries exhausted")

// RateLimitedError marks a 429-style response. RetryAfter is informational.
type RateLimitedError struct {
	Err        error
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return e.Err.Error()
}

func (e *RateLimitedError) Unwrap() error {
	return e.Err
}

// NewRateLimitedError wraps err as a rate limit signal.
func NewRateLimitedError(err error) *RateLimitedError {
	return &RateLimitedError{Err: err}
}

// TransientError wraps an error that is safe to retry (e.g., 5xx, network timeout).
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

// PermanentError wraps an error that must not be retried, such as invalid
// credentials or a malformed request.
type PermanentError struct {
	Err        error
	StatusCode int
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// NewPermanentError wraps an error as permanent with an optional HTTP status code.
func NewPermanentError(err error, statusCode int) *PermanentError {
	return &PermanentError{Err: err, StatusCode: statusCode}
}

// ExhaustedRetriesError is returned once every attempt has failed with a
// retryable error. Err is the last failure.
type ExhaustedRetriesError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedRetriesError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedRetriesError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrExhaustedRetries) match.
func (e *ExhaustedRetriesError) Is(target error) bool {
	return target == ErrExhaustedRetries
}

// Classify returns the retry class of err. Explicit wrapper types win over
// status codes, which win over network heuristics.
func Classify(err error) Class {
	if err == nil {
		return ClassUnknown
	}

	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return ClassRateLimited
	}
	var pe *PermanentError
	if errors.As(err, &pe) {
		return ClassPermanent
	}
	var te *TransientError
	if errors.As(err, &te) {
		if te.StatusCode == 429 {
			return ClassRateLimited
		}
		return ClassTransient
	}

	if errors.Is(err, context.Canceled) {
		return ClassPermanent
	}
	if IsTransient(err) {
		return ClassTransient
	}
	return ClassUnknown
}

// Retryable reports whether err should be retried. Only permanent errors are not.
func Retryable(err error) bool {
	return err != nil && Classify(err) != ClassPermanent
}

// ClassifyHTTPStatus maps an HTTP status code to a Class. Codes below 400
// return ClassUnknown.
func ClassifyHTTPStatus(statusCode int) Class {
	switch {
	case statusCode == 429:
		return ClassRateLimited
	case IsTransientHTTPStatus(statusCode):
		return ClassTransient
	case statusCode >= 400 && statusCode < 500:
		return ClassPermanent
	case statusCode >= 500:
		return ClassTransient
	default:
		return ClassUnknown
	}
}

// WrapHTTPStatus wraps err in the typed error matching statusCode. Errors
// whose status does not classify are returned unchanged.
func WrapHTTPStatus(err error, statusCode int) error {
	if err == nil {
		return nil
	}
	switch ClassifyHTTPStatus(statusCode) {
	case ClassRateLimited:
		return NewRateLimitedError(err)
	case ClassTransient:
		return NewTransientError(err, statusCode)
	case ClassPermanent:
		return NewPermanentError(err, statusCode)
	default:
		return err
	}
}

// IsTransient returns true if the error (or any error in its chain) is a
// TransientError or RateLimitedError, or if it matches common transient error
// patterns (network timeouts, connection resets, DNS failures).
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	var rl *RateLimitedError
	if errors.As(err, &rl) {
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
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
		"transport connection broken",
		"unexpected eof",
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsTransientHTTPStatus returns true if the HTTP status code indicates a
// transient server-side issue that is safe to retry. 429 is handled
// separately as a rate limit.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, // Request Timeout
		500, // Internal Server Error
		502, // Bad Gateway
		503, // Service Unavailable
		504, // Gateway Timeout
		529: // Overloaded
		return true
	default:
		return false
	}
}
