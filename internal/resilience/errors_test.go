package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/rotisserie/eris"
)

func TestIsTransient_ExplicitTransientError(t *testing.T) {
	err := NewTransientError(errors.New("server overloaded"), 503)
	if !IsTransient(err) {
		t.Error("expected TransientError to be transient")
	}
}

func TestIsTransient_WrappedRateLimitedError(t *testing.T) {
	wrapped := fmt.Errorf("api call failed: %w", NewRateLimitedError(errors.New("slow down")))
	if !IsTransient(wrapped) {
		t.Error("expected wrapped RateLimitedError to be transient")
	}
}

func TestIsTransient_NilError(t *testing.T) {
	if IsTransient(nil) {
		t.Error("nil error should not be transient")
	}
}

func TestIsTransient_RegularError(t *testing.T) {
	err := errors.New("invalid input: missing field")
	if IsTransient(err) {
		t.Error("regular error should not be transient")
	}
}

func TestIsTransient_ConnectionReset(t *testing.T) {
	err := fmt.Errorf("write tcp: %w", syscall.ECONNRESET)
	if !IsTransient(err) {
		t.Error("ECONNRESET should be transient")
	}
}

func TestIsTransient_NetworkTimeout(t *testing.T) {
	err := &net.DNSError{IsTimeout: true, Err: "timeout"}
	if !IsTransient(err) {
		t.Error("network timeout should be transient")
	}
}

func TestIsTransient_StringPatterns(t *testing.T) {
	patterns := []string{
		"connection reset by peer",
		"broken pipe",
		"TLS handshake timeout",
		"i/o timeout",
		"server closed idle connection",
	}
	for _, p := range patterns {
		if !IsTransient(errors.New(p)) {
			t.Errorf("expected %q to be transient", p)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Class
	}{
		{"nil", nil, ClassUnknown},
		{"rate limited", NewRateLimitedError(errors.New("429")), ClassRateLimited},
		{"transient 429", NewTransientError(errors.New("429"), 429), ClassRateLimited},
		{"transient 503", NewTransientError(errors.New("503"), 503), ClassTransient},
		{"permanent", NewPermanentError(errors.New("bad key"), 401), ClassPermanent},
		{"eris wrapped permanent", eris.Wrap(NewPermanentError(errors.New("bad"), 400), "llm: complete"), ClassPermanent},
		{"eris wrapped rate limit", eris.Wrap(NewRateLimitedError(errors.New("429")), "llm: complete"), ClassRateLimited},
		{"canceled", fmt.Errorf("call: %w", context.Canceled), ClassPermanent},
		{"network", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), ClassTransient},
		{"unknown", errors.New("weird"), ClassUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRetryable(t *testing.T) {
	if Retryable(nil) {
		t.Error("nil should not be retryable")
	}
	if !Retryable(errors.New("unknown")) {
		t.Error("unknown errors should be retryable")
	}
	if Retryable(NewPermanentError(errors.New("bad"), 400)) {
		t.Error("permanent errors should not be retryable")
	}
}

func TestClassifyHTTPStatus(t *testing.T) {
	cases := map[int]Class{
		200: ClassUnknown,
		400: ClassPermanent,
		401: ClassPermanent,
		404: ClassPermanent,
		408: ClassTransient,
		413: ClassPermanent,
		429: ClassRateLimited,
		500: ClassTransient,
		501: ClassTransient,
		503: ClassTransient,
		529: ClassTransient,
	}
	for code, want := range cases {
		if got := ClassifyHTTPStatus(code); got != want {
			t.Errorf("ClassifyHTTPStatus(%d) = %v, want %v", code, got, want)
		}
	}
}

func TestWrapHTTPStatus(t *testing.T) {
	base := errors.New("boom")

	var rl *RateLimitedError
	if !errors.As(WrapHTTPStatus(base, 429), &rl) {
		t.Error("429 should wrap as RateLimitedError")
	}
	var te *TransientError
	if !errors.As(WrapHTTPStatus(base, 502), &te) || te.StatusCode != 502 {
		t.Error("502 should wrap as TransientError")
	}
	var pe *PermanentError
	if !errors.As(WrapHTTPStatus(base, 403), &pe) || pe.StatusCode != 403 {
		t.Error("403 should wrap as PermanentError")
	}
	if WrapHTTPStatus(base, 0) != base {
		t.Error("unclassified status should return err unchanged")
	}
	if WrapHTTPStatus(nil, 500) != nil {
		t.Error("nil error should stay nil")
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	transient := []int{408, 500, 502, 503, 504, 529}
	for _, code := range transient {
		if !IsTransientHTTPStatus(code) {
			t.Errorf("expected HTTP %d to be transient", code)
		}
	}

	permanent := []int{200, 201, 400, 401, 403, 404, 405, 409, 422, 429}
	for _, code := range permanent {
		if IsTransientHTTPStatus(code) {
			t.Errorf("expected HTTP %d to NOT be transient", code)
		}
	}
}

func TestExhaustedRetriesError(t *testing.T) {
	inner := NewRateLimitedError(errors.New("slow down"))
	err := eris.Wrap(&ExhaustedRetriesError{Attempts: 3, Err: inner}, "llm: complete")

	if !errors.Is(err, ErrExhaustedRetries) {
		t.Error("expected errors.Is to match ErrExhaustedRetries")
	}
	var rl *RateLimitedError
	if !errors.As(err, &rl) {
		t.Error("expected last error to remain reachable")
	}
	ex := &ExhaustedRetriesError{Attempts: 3, Err: inner}
	if ex.Error() != "retries exhausted after 3 attempts: slow down" {
		t.Errorf("unexpected message %q", ex.Error())
	}
}

func TestTransientError_Unwrap(t *testing.T) {
	inner := errors.New("root cause")
	te := NewTransientError(inner, 500)

	if !errors.Is(te, inner) {
		t.Error("TransientError.Unwrap should return the inner error")
	}
	if te.Error() != "root cause" {
		t.Errorf("expected error message %q, got %q", inner.Error(), te.Error())
	}
}
