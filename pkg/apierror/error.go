package apierror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an engine failure.
type Kind string

const (
	KindUnauthorized       Kind = "UNAUTHORIZED"
	KindHalted             Kind = "HALTED"
	KindNotFound           Kind = "NOT_FOUND"
	KindDuplicate          Kind = "DUPLICATE"
	KindMalformed          Kind = "MALFORMED"
	KindPreconditionFailed Kind = "PRECONDITION_FAILED"
	KindIndexOverflow      Kind = "INDEX_OVERFLOW"
	KindExternalFailure    Kind = "EXTERNAL_FAILURE"
	KindStorageCorrupt     Kind = "STORAGE_CORRUPT"
	KindLimitExceeded      Kind = "LIMIT_EXCEEDED"
	KindBadInput           Kind = "BAD_INPUT"
)

var kindStatus = map[Kind]int{
	KindUnauthorized:       http.StatusUnauthorized,
	KindHalted:             http.StatusServiceUnavailable,
	KindNotFound:           http.StatusNotFound,
	KindDuplicate:          http.StatusConflict,
	KindMalformed:          http.StatusBadRequest,
	KindPreconditionFailed: http.StatusUnprocessableEntity,
	KindIndexOverflow:      http.StatusBadRequest,
	KindExternalFailure:    http.StatusBadGateway,
	KindStorageCorrupt:     http.StatusInternalServerError,
	KindLimitExceeded:      http.StatusBadRequest,
	KindBadInput:           http.StatusBadRequest,
}

// Error represents a structured engine or API error response.
type Error struct {
	Kind       Kind         `json:"-"`
	StatusCode int          `json:"-"`
	Code       string       `json:"code"`
	Message    string       `json:"message"`
	Details    []FieldError `json:"details,omitempty"`
}

// FieldError represents a validation error for a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// WithDetails adds field-level error details.
func (e *Error) WithDetails(details ...FieldError) *Error {
	e.Details = details
	return e
}

// ToJSON converts the error to JSON bytes.
func (e *Error) ToJSON() []byte {
	response := map[string]interface{}{
		"success": false,
		"error": map[string]interface{}{
			"code":    e.Code,
			"message": e.Message,
		},
	}

	if len(e.Details) > 0 {
		response["error"].(map[string]interface{})["details"] = e.Details
	}

	data, _ := json.Marshal(response)
	return data
}

// New creates an error of the given kind with its default HTTP status.
func New(kind Kind, message string) *Error {
	status, ok := kindStatus[kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	return &Error{
		Kind:       kind,
		StatusCode: status,
		Code:       string(kind),
		Message:    message,
	}
}

// Newf creates an error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return New(kind, fmt.Sprintf(format, args...))
}

// As extracts an *Error from err.
func As(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	apiErr, ok := As(err)
	return ok && apiErr.Kind == kind
}

// Unauthorized creates an authorization failure.
func Unauthorized(message string) *Error {
	if message == "" {
		message = "Not authorized"
	}
	return New(KindUnauthorized, message)
}

// Halted reports that an engine's kill-switch is engaged.
func Halted(domain string) *Error {
	return Newf(KindHalted, "%s has been halted", domain)
}

// NotFound reports an unknown named or indexed entity.
func NotFound(kind, key string) *Error {
	return Newf(KindNotFound, "%s %s not found", kind, key)
}

// Duplicate reports a name collision.
func Duplicate(kind, key string) *Error {
	return Newf(KindDuplicate, "%s name: %s already exists", kind, key)
}

// Malformed reports a structurally invalid message.
func Malformed(reason string) *Error {
	return New(KindMalformed, reason)
}

// PreconditionFailed reports a state that forbids the operation.
func PreconditionFailed(reason string) *Error {
	return New(KindPreconditionFailed, reason)
}

// IndexOverflow reports exhaustion of an index space.
func IndexOverflow(reason string) *Error {
	return New(KindIndexOverflow, reason)
}

// ExternalFailure reports a failed call to a collaborating service.
func ExternalFailure(source string, err error) *Error {
	if err == nil {
		return Newf(KindExternalFailure, "%s request failed", source)
	}
	return Newf(KindExternalFailure, "%s request failed: %v", source, err)
}

// StorageCorrupt reports a broken storage invariant.
func StorageCorrupt(msg string) *Error {
	return New(KindStorageCorrupt, msg)
}

// LimitExceeded reports an input over a fixed limit.
func LimitExceeded(limit string) *Error {
	return New(KindLimitExceeded, limit)
}

// BadInput reports an invalid argument.
func BadInput(reason string) *Error {
	return New(KindBadInput, reason)
}

// BadRequest creates a 400 Bad Request error.
func BadRequest(message string) *Error {
	return New(KindBadInput, message)
}

// InternalError creates a 500 Internal Server Error.
func InternalError(message string) *Error {
	if message == "" {
		message = "An unexpected error occurred"
	}
	return &Error{
		Kind:       KindStorageCorrupt,
		StatusCode: http.StatusInternalServerError,
		Code:       "INTERNAL_ERROR",
		Message:    message,
	}
}

// ServiceUnavailable creates a 503 Service Unavailable error.
func ServiceUnavailable(message string) *Error {
	if message == "" {
		message = "Service temporarily unavailable"
	}
	return &Error{
		Kind:       KindExternalFailure,
		StatusCode: http.StatusServiceUnavailable,
		Code:       "SERVICE_UNAVAILABLE",
		Message:    message,
	}
}
