package archive

import (
	"fmt"
	"strings"
)

// Error represents a structured archive error with code and optional cause.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is matching by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WrapError creates a new error with the same code but with a cause.
func WrapError(base *Error, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Cause:   cause,
	}
}

// Errorf is WrapError with a formatted cause.
func Errorf(base *Error, format string, args ...any) *Error {
	return WrapError(base, fmt.Errorf(format, args...))
}

// Predefined errors
var (
	// Configuration errors
	ErrConfigMissing      = &Error{Code: "CONFIG_MISSING", Message: "required configuration missing"}
	ErrConfigInvalid      = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrBackendUnavailable = &Error{Code: "BACKEND_UNAVAILABLE", Message: "no adapter registered for backend"}

	// Connection errors
	ErrURIInvalid    = &Error{Code: "URI_INVALID", Message: "failed to parse connection URI"}
	ErrConnectFailed = &Error{Code: "CONNECT_FAILED", Message: "failed to connect to backend"}

	// Operation errors
	ErrInsertFailed = &Error{Code: "INSERT_FAILED", Message: "failed to insert record"}
	ErrQueryFailed  = &Error{Code: "QUERY_FAILED", Message: "failed to query records"}
	ErrStoreClosed  = &Error{Code: "STORE_CLOSED", Message: "archive store is closed"}

	// Serialization errors
	ErrEncodeFailed = &Error{Code: "ENCODE_FAILED", Message: "failed to encode record"}
	ErrDecodeFailed = &Error{Code: "DECODE_FAILED", Message: "failed to decode record"}

	// Logic errors
	ErrUnknownRecordType = &Error{Code: "UNKNOWN_RECORD_TYPE", Message: "invalid archive record type"}
)

// RecordError describes one record that could not be decoded.
type RecordError struct {
	Index int
	Err   error
}

// DecodeErrors collects per-record decode failures from FindAllLenient.
type DecodeErrors struct {
	Records []RecordError
}

func (d *DecodeErrors) Error() string {
	parts := make([]string, 0, len(d.Records))
	for _, r := range d.Records {
		parts = append(parts, fmt.Sprintf("record %d: %v", r.Index, r.Err))
	}
	return fmt.Sprintf("%d record(s) failed to decode: %s", len(d.Records), strings.Join(parts, "; "))
}

// Is reports DecodeErrors as an ErrDecodeFailed.
func (d *DecodeErrors) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == ErrDecodeFailed.Code
}
