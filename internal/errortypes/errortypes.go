// Package errortypes provides error types and handling for the biji-mcp service.
package errortypes

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
)

// ErrorType represents the type of error that occurred
type ErrorType string

// Error types
const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeUnknownKB  ErrorType = "unknown_kb"
	ErrorTypeRemote     ErrorType = "remote"
	ErrorTypeRateLimit  ErrorType = "rate_limit"
	ErrorTypeTimeout    ErrorType = "timeout"
	ErrorTypeNetwork    ErrorType = "network"
	ErrorTypeInternal   ErrorType = "internal"
)

// AppError represents an application error with context
type AppError struct {
	Err       error
	Type      ErrorType
	Message   string
	StackInfo string
	Fields    map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Err.Error()
}

// Unwrap unwraps the error to support errors.Is and errors.As
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithField adds a field to the error for additional context
func (e *AppError) WithField(key string, value interface{}) *AppError {
	if e.Fields == nil {
		e.Fields = make(map[string]interface{})
	}
	e.Fields[key] = value
	return e
}

// WithFields adds multiple fields to the error for additional context
func (e *AppError) WithFields(fields map[string]interface{}) *AppError {
	if e.Fields == nil {
		e.Fields = make(map[string]interface{})
	}
	for k, v := range fields {
		e.Fields[k] = v
	}
	return e
}

// captureStack captures the stack trace at the call site
func captureStack() string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	var builder strings.Builder
	for {
		frame, more := frames.Next()
		// Skip testing and standard library frames
		if !strings.Contains(frame.File, "testing/") && !strings.Contains(frame.File, "/go/src/") {
			fmt.Fprintf(&builder, "%s:%d %s\n", frame.File, frame.Line, frame.Function)
		}
		if !more {
			break
		}
	}
	return builder.String()
}

// newAppError creates a new AppError with the given type, underlying error, and message
func newAppError(errType ErrorType, err error, message string) *AppError {
	if err == nil {
		err = errors.New("unknown error")
	}

	return &AppError{
		Err:       err,
		Type:      errType,
		Message:   message,
		StackInfo: captureStack(),
		Fields:    make(map[string]interface{}),
	}
}

// ValidationError creates a new validation error (bad caller-supplied parameter)
func ValidationError(err error, message string) *AppError {
	return newAppError(ErrorTypeValidation, err, message)
}

// ConfigError creates a new configuration error (missing or invalid config,
// unresolved default knowledge base)
func ConfigError(err error, message string) *AppError {
	return newAppError(ErrorTypeConfig, err, message)
}

// UnknownKBError creates a new error for a knowledge base name that is not configured
func UnknownKBError(err error, message string) *AppError {
	return newAppError(ErrorTypeUnknownKB, err, message)
}

// RemoteError creates a new error for a non-success response from the remote API
func RemoteError(err error, message string) *AppError {
	return newAppError(ErrorTypeRemote, err, message)
}

// RateLimitError creates a new error for a remote throttling rejection
func RateLimitError(err error, message string) *AppError {
	return newAppError(ErrorTypeRateLimit, err, message)
}

// TimeoutError creates a new error for a remote call that exceeded its deadline
func TimeoutError(err error, message string) *AppError {
	return newAppError(ErrorTypeTimeout, err, message)
}

// NetworkError creates a new error for a transport-level failure
func NetworkError(err error, message string) *AppError {
	return newAppError(ErrorTypeNetwork, err, message)
}

// InternalError creates a new internal error
func InternalError(err error, message string) *AppError {
	return newAppError(ErrorTypeInternal, err, message)
}

// LogError logs an AppError using the provided slog.Logger or the default slog logger.
// It logs the error message, type, stack trace, and any associated fields.
func LogError(logger *slog.Logger, err error) {
	if logger == nil {
		logger = slog.Default()
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		args := []any{
			"type", string(appErr.Type),
			"original_error", appErr.Err.Error(),
		}
		if appErr.StackInfo != "" {
			args = append(args, "stack", appErr.StackInfo)
		}
		for k, v := range appErr.Fields {
			args = append(args, k, v)
		}
		logger.Error(appErr.Message, args...)
	} else {
		logger.Error(err.Error(), "error", err)
	}
}

// typeOf extracts the ErrorType of an error, or "" when it is not an AppError
func typeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return typeOf(err) == ErrorTypeValidation
}

// IsConfigError checks if an error is a configuration error
func IsConfigError(err error) bool {
	return typeOf(err) == ErrorTypeConfig
}

// IsUnknownKBError checks if an error is an unknown knowledge base error
func IsUnknownKBError(err error) bool {
	return typeOf(err) == ErrorTypeUnknownKB
}

// IsRemoteError checks if an error is a remote API error
func IsRemoteError(err error) bool {
	return typeOf(err) == ErrorTypeRemote
}

// IsRateLimitError checks if an error is a rate limit error
func IsRateLimitError(err error) bool {
	return typeOf(err) == ErrorTypeRateLimit
}

// IsTimeoutError checks if an error is a timeout error
func IsTimeoutError(err error) bool {
	return typeOf(err) == ErrorTypeTimeout
}

// IsNetworkError checks if an error is a network error
func IsNetworkError(err error) bool {
	return typeOf(err) == ErrorTypeNetwork
}
