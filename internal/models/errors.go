package models

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeTransient represents retryable invocation failures (timeout, rate limit)
	ErrorTypeTransient ErrorType = "transient"
	// ErrorTypeUnavailable represents model deployments that are down or out of capacity
	ErrorTypeUnavailable ErrorType = "unavailable"
	// ErrorTypeInvalidRequest represents malformed input or content-policy rejections
	ErrorTypeInvalidRequest ErrorType = "invalid_request"
	// ErrorTypeInvalidOverride represents an override naming an unknown or unavailable model
	ErrorTypeInvalidOverride ErrorType = "invalid_override"
	// ErrorTypeExhausted represents a dispatch where primary and fallback both failed
	ErrorTypeExhausted ErrorType = "all_models_exhausted"
	// ErrorTypeValidation represents request validation errors (4xx)
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeNotFound represents resource not found errors (404)
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeInternal represents internal server errors (500)
	ErrorTypeInternal ErrorType = "internal"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Code       string    `json:"code,omitzero"`
	StatusCode int       `json:"-"`
	Retryable  bool      `json:"retryable"`
	Cause      error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap allows error unwrapping
func (e *AppError) Unwrap() error {
	return e.Cause
}

// IsRetryable returns whether the error is retryable on the same model
func (e *AppError) IsRetryable() bool {
	return e.Retryable
}

// GetStatusCode returns the HTTP status code for the error
func (e *AppError) GetStatusCode() int {
	if e.StatusCode > 0 {
		return e.StatusCode
	}

	switch e.Type {
	case ErrorTypeValidation, ErrorTypeInvalidRequest, ErrorTypeInvalidOverride:
		return http.StatusBadRequest
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeTransient:
		return http.StatusGatewayTimeout
	case ErrorTypeUnavailable, ErrorTypeExhausted:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Classify returns the ErrorType of err, or ErrorTypeInternal for unknown errors.
func Classify(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeInternal
}

// NewTransientError creates a retryable invocation error for a model
func NewTransientError(modelID, message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeTransient,
		Message:    fmt.Sprintf("model %s transient failure: %s", modelID, message),
		Code:       "MODEL_TRANSIENT_FAILURE",
		StatusCode: http.StatusGatewayTimeout,
		Retryable:  true,
		Cause:      cause,
	}
}

// NewUnavailableError creates an error for a model deployment that is down
func NewUnavailableError(modelID string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeUnavailable,
		Message:    fmt.Sprintf("model %s is unavailable", modelID),
		Code:       "MODEL_UNAVAILABLE",
		StatusCode: http.StatusBadGateway,
		Retryable:  false,
		Cause:      cause,
	}
}

// NewInvalidRequestError creates a terminal error for rejected input
func NewInvalidRequestError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInvalidRequest,
		Message:    message,
		Code:       "INVALID_REQUEST",
		StatusCode: http.StatusBadRequest,
		Retryable:  false,
		Cause:      cause,
	}
}

// NewInvalidOverrideError creates an error for an override naming an unknown or unavailable model
func NewInvalidOverrideError(modelID string) *AppError {
	return &AppError{
		Type:       ErrorTypeInvalidOverride,
		Message:    fmt.Sprintf("requested model %q is unknown or unavailable", modelID),
		Code:       "INVALID_MODEL_OVERRIDE",
		StatusCode: http.StatusBadRequest,
		Retryable:  false,
	}
}

// NewExhaustedError creates a terminal error for a dispatch where every model failed
func NewExhaustedError(primary, fallback string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeExhausted,
		Message:    fmt.Sprintf("all models exhausted (primary %s, fallback %s)", primary, fallback),
		Code:       "ALL_MODELS_EXHAUSTED",
		StatusCode: http.StatusBadGateway,
		Retryable:  false,
		Cause:      cause,
	}
}

// NewValidationError creates a validation error
func NewValidationError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Retryable:  false,
		Cause:      cause,
	}
}

// NewNotFoundError creates a resource not found error
func NewNotFoundError(resource, id string) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Message:    fmt.Sprintf("%s %s not found", resource, id),
		StatusCode: http.StatusNotFound,
		Retryable:  false,
	}
}

// NewInternalError creates an internal server error
func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Retryable:  false,
		Cause:      cause,
	}
}

// SanitizeError sanitizes an error for external consumption
func SanitizeError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		// Return a copy without internal details
		return &AppError{
			Type:       appErr.Type,
			Message:    appErr.Message,
			Code:       appErr.Code,
			StatusCode: appErr.GetStatusCode(),
			Retryable:  appErr.Retryable,
		}
	}
	return NewInternalError("an unexpected error occurred", err)
}
