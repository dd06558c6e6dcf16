package server

import (
	"errors"

	"github.com/localrivet/bijimcp/internal/errortypes"
)

// Error codes surfaced to the MCP host in tool responses
const (
	StatusCodeValidationError = "VALIDATION_ERROR"
	StatusCodeConfigError     = "CONFIG_ERROR"
	StatusCodeUnknownKB       = "UNKNOWN_KNOWLEDGE_BASE"
	StatusCodeRemoteError     = "REMOTE_ERROR"
	StatusCodeRateLimited     = "RATE_LIMITED"
	StatusCodeTimeout         = "TIMEOUT"
	StatusCodeNetworkError    = "NETWORK_ERROR"
	StatusCodeInternalError   = "INTERNAL_ERROR"
	StatusCodeUnknownError    = "UNKNOWN_ERROR"
)

// asAppError unwraps an error into an AppError, or nil when it is not one.
func asAppError(err error) *errortypes.AppError {
	var appErr *errortypes.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// errorCode maps an error onto the code reported in a tool response.
func errorCode(err error) string {
	var appErr *errortypes.AppError
	if !errors.As(err, &appErr) {
		return StatusCodeUnknownError
	}

	switch appErr.Type {
	case errortypes.ErrorTypeValidation:
		return StatusCodeValidationError
	case errortypes.ErrorTypeConfig:
		return StatusCodeConfigError
	case errortypes.ErrorTypeUnknownKB:
		return StatusCodeUnknownKB
	case errortypes.ErrorTypeRemote:
		return StatusCodeRemoteError
	case errortypes.ErrorTypeRateLimit:
		return StatusCodeRateLimited
	case errortypes.ErrorTypeTimeout:
		return StatusCodeTimeout
	case errortypes.ErrorTypeNetwork:
		return StatusCodeNetworkError
	case errortypes.ErrorTypeInternal:
		return StatusCodeInternalError
	default:
		return StatusCodeUnknownError
	}
}
