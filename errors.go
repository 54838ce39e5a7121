package dawnwire

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrorCode represents a machine-readable error code.
type ErrorCode string

const (
	// CodeFatal means the command stream is corrupt and cannot continue.
	CodeFatal ErrorCode = "fatal"

	// CodeErrorObject means a command targeted or produced an error object.
	CodeErrorObject ErrorCode = "error_object"

	CodeUnknownCommand ErrorCode = "unknown_command"
	CodeInvalidArgument ErrorCode = "invalid_argument"

	// CodeResolverRequired means a record holds object references but no id
	// provider or resolver was given.
	CodeResolverRequired ErrorCode = "resolver_required"

	// CodeStaleHandle means a handle's generation does not match the object
	// currently using its id.
	CodeStaleHandle ErrorCode = "stale_handle"

	CodeCanceled         ErrorCode = "canceled"
	CodeDeadlineExceeded ErrorCode = "deadline_exceeded"
	CodeInternal         ErrorCode = "internal"
)

// Error is the error type of the runtime and of command handlers.
type Error struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError creates a new error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Errorf creates a new error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// WithDetail returns a new Error with the key-value pair added to details.
func (e *Error) WithDetail(key string, value any) *Error {
	details := make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
	}
}

// WithDetails returns a new Error with the provided map merged into details.
func (e *Error) WithDetails(details map[string]any) *Error {
	if len(details) == 0 {
		return e
	}
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: merged,
	}
}

// CodeOf returns the code of err if it wraps an *Error, and "" otherwise.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// ErrorTransformer maps a handler error to an *Error.
// If it returns nil, DefaultErrorTransformer is applied.
type ErrorTransformer func(error) *Error

// DefaultErrorTransformer maps standard Go errors to runtime errors.
func DefaultErrorTransformer(err error) *Error {
	if err == nil {
		return nil
	}

	var wireErr *Error
	if errors.As(err, &wireErr) {
		return wireErr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(CodeDeadlineExceeded, "deadline exceeded")
	}

	if errors.Is(err, context.Canceled) {
		return NewError(CodeCanceled, "context canceled")
	}

	var valErrs validator.ValidationErrors
	if errors.As(err, &valErrs) {
		details := make(map[string]any)
		messages := make([]string, 0, len(valErrs))
		for _, ve := range valErrs {
			msg := FormatValidationError(ve)
			details[ve.Field()] = msg
			messages = append(messages, ve.Field()+": "+msg)
		}
		return &Error{
			Code:    CodeInvalidArgument,
			Message: strings.Join(messages, "; "),
			Details: details,
		}
	}

	// Multi-errors take the code of their first error.
	if u, ok := err.(interface{ Unwrap() []error }); ok {
		errs := u.Unwrap()
		if len(errs) > 0 {
			firstMapped := DefaultErrorTransformer(errs[0])
			msgs := make([]string, len(errs))
			for i, e := range errs {
				msgs[i] = e.Error()
			}
			return &Error{
				Code:    firstMapped.Code,
				Message: strings.Join(msgs, "; "),
				Details: firstMapped.Details,
			}
		}
	}

	return NewError(CodeInternal, err.Error())
}

// HTTPStatus returns the status devtools answers with for c. Only request
// errors get a 4xx status.
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeUnknownCommand:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// validationMessages holds the message for each validator tag used by this
// module's structs. A %s verb receives the tag parameter.
var validationMessages = map[string]string{
	"required":   "required",
	"min":        "must be at least %s",
	"max":        "must be at most %s",
	"oneof":      "must be one of: %s",
	"printascii": "must be printable ASCII",
}

// FormatValidationError describes why one field failed validation.
func FormatValidationError(ve validator.FieldError) string {
	format, ok := validationMessages[ve.Tag()]
	switch {
	case !ok && ve.Param() == "":
		return "invalid " + ve.Tag()
	case !ok:
		return fmt.Sprintf("invalid %s=%s", ve.Tag(), ve.Param())
	case strings.Contains(format, "%s"):
		return fmt.Sprintf(format, ve.Param())
	}
	return format
}
