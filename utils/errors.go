package utils

import (
	"errors"
	"fmt"
	"net/http"
)

// ServiceError represents a service-level error with context
type ServiceError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode,omitempty"`
	Details    string `json:"details,omitempty"`
	Cause      error  `json:"-"` // Original error, not exposed in JSON
}

func (e ServiceError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e ServiceError) Unwrap() error {
	return e.Cause
}

// NewServiceError creates a new service error
func NewServiceError(code, message string) error {
	return ServiceError{
		Code:       code,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

// NewServiceErrorWithCause creates a service error that wraps another error
func NewServiceErrorWithCause(code, message string, cause error) error {
	return ServiceError{
		Code:       code,
		Message:    message,
		Cause:      cause,
		StatusCode: http.StatusInternalServerError,
	}
}

// GetServiceError extracts a ServiceError from an error chain
func GetServiceError(err error) (ServiceError, bool) {
	var serviceErr ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr, true
	}
	return ServiceError{}, false
}

// IsServiceError checks if an error is a service error
func IsServiceError(err error) bool {
	_, ok := GetServiceError(err)
	return ok
}

// ErrorCode returns the service error code of err, or ErrCodeInternal.
func ErrorCode(err error) string {
	if serviceErr, ok := GetServiceError(err); ok {
		return serviceErr.Code
	}
	return ErrCodeInternal
}

func NewUnauthorizedError(message string) error {
	return ServiceError{
		Code:       ErrCodeAuthentication,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func NewForbiddenError(message string) error {
	return ServiceError{
		Code:       ErrCodeAuthorization,
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func NewNotFoundError(resource string) error {
	return ServiceError{
		Code:       ErrCodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
	}
}

func NewBadRequestError(message string) error {
	return ServiceError{
		Code:       "BAD_REQUEST",
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func NewValidationError(message, details string) error {
	return ServiceError{
		Code:       ErrCodeValidation,
		Message:    message,
		Details:    details,
		StatusCode: http.StatusBadRequest,
	}
}

// NewConfigurationError marks a rule that cannot be evaluated as stored:
// missing template, malformed schedule or criteria.
func NewConfigurationError(message string, cause error) error {
	return ServiceError{
		Code:       ErrCodeConfiguration,
		Message:    message,
		Cause:      cause,
		StatusCode: http.StatusUnprocessableEntity,
	}
}

// NewDeliveryError marks a transient failure of the delivery sink.
func NewDeliveryError(message string, cause error) error {
	return ServiceError{
		Code:       ErrCodeDelivery,
		Message:    message,
		Cause:      cause,
		StatusCode: http.StatusBadGateway,
	}
}

func NewRecipientSourceError(organizationID string, cause error) error {
	return ServiceError{
		Code:       ErrCodeRecipientSource,
		Message:    fmt.Sprintf("Failed to list recipients for organization %s", organizationID),
		Cause:      cause,
		StatusCode: http.StatusServiceUnavailable,
	}
}

func NewDatabaseError(operation string, cause error) error {
	return ServiceError{
		Code:       ErrCodeDatabase,
		Message:    fmt.Sprintf("Database operation failed: %s", operation),
		Cause:      cause,
		StatusCode: http.StatusInternalServerError,
	}
}

func NewRateLimitError(message string) error {
	return ServiceError{
		Code:       ErrCodeRateLimit,
		Message:    message,
		StatusCode: http.StatusTooManyRequests,
	}
}

func NewRuleNotFoundError() error {
	return NewNotFoundError("Automation rule")
}

func NewTemplateNotFoundError() error {
	return NewNotFoundError("Template")
}

func NewOrganizationNotFoundError() error {
	return NewNotFoundError("Organization")
}

func WrapDatabaseError(err error, operation string) error {
	if err == nil {
		return nil
	}
	return NewDatabaseError(operation, err)
}

// Error code constants
const (
	ErrCodeValidation      = "VALIDATION_ERROR"
	ErrCodeAuthentication  = "AUTHENTICATION_ERROR"
	ErrCodeAuthorization   = "AUTHORIZATION_ERROR"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeRateLimit       = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal        = "INTERNAL_ERROR"
	ErrCodeDatabase        = "DATABASE_ERROR"
	ErrCodeConfiguration   = "CONFIGURATION_ERROR"
	ErrCodeDelivery        = "DELIVERY_ERROR"
	ErrCodeRecipientSource = "RECIPIENT_SOURCE_ERROR"
	ErrCodeRender          = "RENDER_ERROR"
)

var (
	ErrServiceUnavailable = NewServiceError("SERVICE_UNAVAILABLE", "Service is temporarily unavailable")
	ErrAccessDenied       = NewForbiddenError("Access denied")
)
