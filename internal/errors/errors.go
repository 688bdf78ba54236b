package errors

import "fmt"

// ErrorCode identifies a class of editor error.
type ErrorCode string

const (
	ErrInvalidQuery   ErrorCode = "INVALID_QUERY"   // 400
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST" // 400
	ErrFieldNotFound  ErrorCode = "FIELD_NOT_FOUND" // 400
	ErrNotFound       ErrorCode = "NOT_FOUND"       // 404
	ErrCodeExists     ErrorCode = "CODE_EXISTS"     // 409
	ErrInvalidValue   ErrorCode = "INVALID_VALUE"   // 422
	ErrStorage        ErrorCode = "STORAGE"         // 500
)

// Error is a structured error with code, HTTP status, and details.
type Error struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidQuery creates a 400 error for a malformed search query
// (bad regular expression, out-of-range level, non-digit code prefix).
func NewInvalidQuery(msg string) *Error {
	return &Error{
		Code:    ErrInvalidQuery,
		Status:  400,
		Message: msg,
	}
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *Error {
	return &Error{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewFieldNotFound creates a 400 error for an unknown editable field name.
func NewFieldNotFound(field string) *Error {
	return &Error{
		Code:    ErrFieldNotFound,
		Status:  400,
		Message: fmt.Sprintf("unknown field: %q (editable fields: title, description, examples, exclusions)", field),
		Details: map[string]any{"field": field},
	}
}

// NewInvalidValue creates a 422 error for a value with the wrong shape for its field.
func NewInvalidValue(field, reason string) *Error {
	return &Error{
		Code:    ErrInvalidValue,
		Status:  422,
		Message: fmt.Sprintf("invalid value for field %q: %s", field, reason),
		Details: map[string]any{"field": field},
	}
}

// NewNotFound creates a 404 error for a code with no record.
func NewNotFound(code string) *Error {
	return &Error{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("record not found: %s", code),
		Details: map[string]any{"code": code},
	}
}

// NewFileNotFound creates a 404 error for a missing import/export file.
func NewFileNotFound(path string) *Error {
	return &Error{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewCodeExists creates a 409 error for import collisions.
func NewCodeExists(code string) *Error {
	return &Error{
		Code:    ErrCodeExists,
		Status:  409,
		Message: fmt.Sprintf("record with code %q already exists", code),
		Details: map[string]any{"code": code},
	}
}

// NewStorage creates a 500 error wrapping a storage-layer failure.
// The underlying error is not interpreted, only reported.
func NewStorage(err error) *Error {
	msg := "storage error"
	if err != nil {
		msg = err.Error()
	}
	return &Error{
		Code:    ErrStorage,
		Status:  500,
		Message: msg,
	}
}

// Is checks whether err is an *Error with the given code.
func Is(err error, code ErrorCode) bool {
	if e, ok := err.(*Error); ok {
		return e.Code == code
	}
	return false
}
