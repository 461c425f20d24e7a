package apierr

import (
	"errors"
	"fmt"
)

// Error codes reported by the mobile backend in the response body,
// plus a few codes generated locally by the SDK itself.
const (
	// SDK-local codes.
	CodeGeneric           = "E000001"
	CodeInvalidJSON       = "E100001"
	CodeInvalidSignature  = "E100002"
	CodePushNotConfigured = "E100003"

	// Backend codes.
	CodeInvalidFormat     = "E400001"
	CodeWrongType         = "E400002"
	CodeRequired          = "E400003"
	CodeNotExist          = "E400004"
	CodeInvalidValue      = "E400006"
	CodeInvalidAuthHeader = "E401001"
	CodeAuthFailure       = "E401002"
	CodeNoPermission      = "E403001"
	CodeForbiddenByRole   = "E403002"
	CodeForbiddenOp       = "E403003"
	CodeDataNotFound      = "E404001"
	CodeDuplicateValue    = "E409001"
	CodeTooLargeInput     = "E413001"
	CodeRateLimited       = "E429001"
	CodeInternalServer    = "E500001"
	CodeStorageError      = "E502001"
)

// Error is the typed error surfaced by every operation in the SDK.
// Code is stable and machine-readable; Message is for humans.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error with a code and a message.
func New(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates an error carrying an underlying cause.
func Wrap(code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf returns the error code, or empty string if err is not an *Error.
func CodeOf(err error) string {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}

// HasCode reports whether err is an *Error with the given code.
func HasCode(err error, code string) bool {
	return CodeOf(err) == code
}

// AsError unwraps err down to an *Error if there is one in the chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
