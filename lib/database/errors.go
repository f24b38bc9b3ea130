package database

import (
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Error Codes
// --------------------------------------------------------------------------

type ErrorCode uint64

const (
	CodeUnknown              ErrorCode = iota // 0: Unclassified error.
	CodeConfiguration                         // 1: Missing or invalid credential field at configure time.
	CodeNotConfigured                         // 2: Credentials requested for a backend that was never configured.
	CodeInvalidConfiguration                  // 3: Empty host/target or invalid port at connector bootstrap.
	CodeNotFound                              // 4: Key, document or row does not exist.
	CodeBackend                               // 5: Failure surfaced by the underlying driver.
	CodeSchema                                // 6: Invalid table schema or identifier.
	CodeEncoding                              // 7: A value could not be encoded or decoded.
)

func (c ErrorCode) String() string {
	switch c {
	case CodeConfiguration:
		return "ConfigurationError"
	case CodeNotConfigured:
		return "NotConfiguredError"
	case CodeInvalidConfiguration:
		return "InvalidConfigurationError"
	case CodeNotFound:
		return "NotFoundError"
	case CodeBackend:
		return "BackendError"
	case CodeSchema:
		return "SchemaError"
	case CodeEncoding:
		return "EncodingError"
	default:
		return "Unknown"
	}
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error wraps an ErrorCode, a message and (optionally) the driver error that caused it.
type Error struct {
	Code ErrorCode // The error kind
	Msg  string    // The error message
	Err  error     // The underlying error, if any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// Unwrap exposes the driver error for errors.Is / errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code.
// This makes the sentinels below usable with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is, matched by code only.
var (
	ErrConfiguration        = &Error{Code: CodeConfiguration, Msg: "configuration error"}
	ErrNotConfigured        = &Error{Code: CodeNotConfigured, Msg: "not configured"}
	ErrInvalidConfiguration = &Error{Code: CodeInvalidConfiguration, Msg: "invalid configuration"}
	ErrNotFound             = &Error{Code: CodeNotFound, Msg: "not found"}
	ErrBackend              = &Error{Code: CodeBackend, Msg: "backend error"}
	ErrSchema               = &Error{Code: CodeSchema, Msg: "schema error"}
	ErrEncoding             = &Error{Code: CodeEncoding, Msg: "encoding error"}
)

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// Errorf creates a new Error with a formatted message.
func Errorf(code ErrorCode, format string, args ...interface{}) *Error {
	return NewError(code, fmt.Sprintf(format, args...))
}

// NotFound returns a CodeNotFound error for the given key.
func NotFound(what, key string) *Error {
	return Errorf(CodeNotFound, "%s %q not found", what, key)
}

// WrapBackend wraps a driver error as a BackendError.
// nil stays nil and errors that already carry a code are returned unchanged.
func WrapBackend(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{
		Code: CodeBackend,
		Msg:  op,
		Err:  err,
	}
}

// WrapEncoding wraps a codec error as an EncodingError.
func WrapEncoding(err error) error {
	if err == nil {
		return nil
	}
	return &Error{
		Code: CodeEncoding,
		Msg:  "value encoding",
		Err:  err,
	}
}

// CodeOf returns the code of err, or CodeUnknown if err carries none.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}
