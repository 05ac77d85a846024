package api

import "fmt"

// ErrorType is the coarse error category. It determines the HTTP status.
type ErrorType string

const (
	ErrorTypeInvalidRequest     ErrorType = "invalid_request"
	ErrorTypeServiceUnavailable ErrorType = "service_unavailable"
	ErrorTypeServerError        ErrorType = "server_error"
)

// Machine-readable codes for invalid_request errors.
const (
	CodeMissingField = "missing_field"
	CodeInvalidType  = "invalid_type"
	CodeInvalidValue = "invalid_value"
)

// APIError is the error body returned to clients. Param names the offending
// field for invalid_request errors.
type APIError struct {
	Type    ErrorType `json:"type"`
	Code    string    `json:"code,omitempty"`
	Param   string    `json:"param,omitempty"`
	Message string    `json:"message"`
}

func (e *APIError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("%s: %s (param: %s)", e.Type, e.Message, e.Param)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorResponse is the top-level JSON error envelope: {"error": {...}}.
type ErrorResponse struct {
	Error *APIError `json:"error"`
}

// NewInvalidRequestError reports bad input in param.
func NewInvalidRequestError(param, message string) *APIError {
	return &APIError{Type: ErrorTypeInvalidRequest, Param: param, Message: message}
}

// newMissingFieldError reports a required identifying field that is absent
// or blank.
func newMissingFieldError(field string) *APIError {
	return &APIError{
		Type:    ErrorTypeInvalidRequest,
		Code:    CodeMissingField,
		Param:   field,
		Message: field + " is required",
	}
}

// newInvalidTypeError reports a field whose JSON type is wrong.
func newInvalidTypeError(field, message string) *APIError {
	return &APIError{
		Type:    ErrorTypeInvalidRequest,
		Code:    CodeInvalidType,
		Param:   field,
		Message: message,
	}
}

// newInvalidValueError reports a string that contains a NUL character.
func newInvalidValueError(field string) *APIError {
	return &APIError{
		Type:    ErrorTypeInvalidRequest,
		Code:    CodeInvalidValue,
		Param:   field,
		Message: field + " must not contain NUL characters",
	}
}

// NewServerError reports an unexpected internal failure.
func NewServerError(message string) *APIError {
	return &APIError{Type: ErrorTypeServerError, Message: message}
}

// NewUnavailableError reports that the entry store cannot be reached.
func NewUnavailableError(message string) *APIError {
	return &APIError{Type: ErrorTypeServiceUnavailable, Message: message}
}
