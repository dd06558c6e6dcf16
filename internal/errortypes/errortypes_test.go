package errortypes

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

func TestAppErrorMessage(t *testing.T) {
	base := errors.New("underlying failure")

	err := RemoteError(base, "remote call failed")
	if got := err.Error(); got != "remote call failed: underlying failure" {
		t.Errorf("Unexpected error string: %q", got)
	}

	bare := &AppError{Err: base, Type: ErrorTypeRemote}
	if got := bare.Error(); got != "underlying failure" {
		t.Errorf("Expected bare error string, got %q", got)
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	base := errors.New("underlying failure")
	err := ConfigError(base, "config load failed")

	if !errors.Is(err, base) {
		t.Error("Expected errors.Is to find the underlying error")
	}

	var appErr *AppError
	if !errors.As(err, &appErr) {
		t.Fatal("Expected errors.As to find the AppError")
	}
	if appErr.Type != ErrorTypeConfig {
		t.Errorf("Expected config type, got %s", appErr.Type)
	}
}

func TestWithField(t *testing.T) {
	err := RateLimitError(errors.New("throttled"), "remote throttling").
		WithField("status_code", 429).
		WithFields(map[string]interface{}{"kb": "工作"})

	if err.Fields["status_code"] != 429 {
		t.Errorf("Expected status_code field, got %v", err.Fields)
	}
	if err.Fields["kb"] != "工作" {
		t.Errorf("Expected kb field, got %v", err.Fields)
	}
}

func TestTypePredicates(t *testing.T) {
	cases := []struct {
		err   error
		check func(error) bool
	}{
		{ValidationError(errors.New("x"), ""), IsValidationError},
		{ConfigError(errors.New("x"), ""), IsConfigError},
		{UnknownKBError(errors.New("x"), ""), IsUnknownKBError},
		{RemoteError(errors.New("x"), ""), IsRemoteError},
		{RateLimitError(errors.New("x"), ""), IsRateLimitError},
		{TimeoutError(errors.New("x"), ""), IsTimeoutError},
		{NetworkError(errors.New("x"), ""), IsNetworkError},
	}

	for i, tc := range cases {
		if !tc.check(tc.err) {
			t.Errorf("case %d: predicate rejected its own error: %v", i, tc.err)
		}
	}

	// Each error must match only its own type.
	if IsTimeoutError(RemoteError(errors.New("x"), "")) {
		t.Error("A remote error must not be a timeout error")
	}
	if IsRemoteError(TimeoutError(errors.New("x"), "")) {
		t.Error("A timeout error must not be a remote error")
	}
	if IsValidationError(errors.New("plain")) {
		t.Error("A plain error must not match any predicate")
	}
}

func TestWrappedPredicates(t *testing.T) {
	inner := RateLimitError(errors.New("throttled"), "remote throttling")
	wrapped := fmt.Errorf("tool call failed: %w", inner)

	if !IsRateLimitError(wrapped) {
		t.Error("Expected predicate to see through wrapping")
	}
}

func TestLogError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	err := TimeoutError(errors.New("deadline exceeded"), "request timed out").
		WithField("kb", "工作")
	LogError(logger, err)

	out := buf.String()
	if !strings.Contains(out, "request timed out") {
		t.Errorf("Expected message in log output, got %q", out)
	}
	if !strings.Contains(out, "timeout") {
		t.Errorf("Expected error type in log output, got %q", out)
	}

	// Generic errors must log without panicking too.
	buf.Reset()
	LogError(logger, errors.New("plain error"))
	if !strings.Contains(buf.String(), "plain error") {
		t.Errorf("Expected plain error in log output, got %q", buf.String())
	}
}
