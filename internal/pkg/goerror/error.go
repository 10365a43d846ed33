// Package goerror carries the error taxonomy shared by usecases and the HTTP
// layer: every error a handler returns is either a *Error, mapped to a status
// code and a user-facing message, or an opaque internal failure.
package goerror

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound is returned by repositories when a record does not exist or has expired.
var ErrNotFound = errors.New("resource not found")

// As returns the *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr, true
	}
	return nil, false
}

// Type classifies errors into high-level buckets.
type Type int

const (
	TypeServer Type = iota
	TypeBusiness
	TypeValidation
)

func (t Type) String() string {
	switch t {
	case TypeServer:
		return "server"
	case TypeBusiness:
		return "business"
	case TypeValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// Code is a stable identifier mapped to an HTTP status.
type Code int

const (
	CodeInternal Code = iota
	CodeInvalidFormat
	CodeInvalidInput
	CodeNotFound
	CodeUnauthorized
	CodeForbidden
	// CodeUnavailable reports that a dependency, such as the SMS provider, cannot serve the request.
	CodeUnavailable
)

var codeStatus = map[Code]int{
	CodeInternal:      http.StatusInternalServerError,
	CodeInvalidFormat: http.StatusBadRequest,
	CodeInvalidInput:  http.StatusUnprocessableEntity,
	CodeNotFound:      http.StatusNotFound,
	CodeUnauthorized:  http.StatusUnauthorized,
	CodeForbidden:     http.StatusForbidden,
	CodeUnavailable:   http.StatusServiceUnavailable,
}

var codeNames = map[Code]string{
	CodeInternal:      "internal",
	CodeInvalidFormat: "invalid_format",
	CodeInvalidInput:  "invalid_input",
	CodeNotFound:      "not_found",
	CodeUnauthorized:  "unauthorized",
	CodeForbidden:     "forbidden",
	CodeUnavailable:   "unavailable",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return codeNames[CodeInternal]
}

// Error pairs an optional cause with the message a caller may see.
type Error struct {
	err     error
	msg     string
	errType Type
	code    Code
	fields  map[string]string
}

func (e *Error) Error() string {
	switch {
	case e.err != nil:
		return e.err.Error()
	case e.msg != "":
		return e.msg
	default:
		return e.errType.String() + " error"
	}
}

// String is the verbose form used when logging.
func (e *Error) String() string {
	return fmt.Sprintf("type=%s code=%s msg=%q cause=%v", e.errType, e.code, e.msg, e.err)
}

func (e *Error) Msg() string { return e.msg }
func (e *Error) Type() Type { return e.errType }
func (e *Error) Code() Code { return e.code }
func (e *Error) Fields() map[string]string { return e.fields }
func (e *Error) Unwrap() error { return e.err }

// StatusCode maps the error code to an HTTP status code.
func (e *Error) StatusCode() int {
	if status, ok := codeStatus[e.code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func newError(err error, msg string, et Type, code Code) *Error {
	return &Error{err: err, msg: msg, errType: et, code: code}
}

// NewServer hides err behind a generic message.
func NewServer(err error) error {
	return newError(err, "Internal server error", TypeServer, CodeInternal)
}

// NewServerMsg is NewServer with a caller-chosen message.
func NewServerMsg(err error, msg string) error {
	return newError(err, msg, TypeServer, CodeInternal)
}

func NewBusiness(msg string, code Code) error {
	return newError(nil, msg, TypeBusiness, code)
}

// NewBusinessWrap is NewBusiness keeping err in the chain, so callers can
// still match domain sentinels with errors.Is.
func NewBusinessWrap(err error, msg string, code Code) error {
	return newError(err, msg, TypeBusiness, code)
}

// NewInvalidInput wraps a validator error, or builds one from field/message
// pairs when err is nil. An odd number of pairs is reported as a malformed body.
func NewInvalidInput(err error, kv ...string) error {
	if err != nil {
		return newError(err, "Validation error", TypeValidation, CodeInvalidInput)
	}
	if len(kv)%2 != 0 {
		return NewInvalidFormat()
	}

	e := newError(nil, "Validation error", TypeValidation, CodeInvalidInput)
	e.fields = make(map[string]string, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		e.fields[kv[i]] = kv[i+1]
	}
	return e
}

func NewInvalidFormat(msgs ...string) error {
	msg := "Invalid request body"
	if len(msgs) > 0 {
		msg = msgs[0]
	}
	return newError(nil, msg, TypeValidation, CodeInvalidFormat)
}
