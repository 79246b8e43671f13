package apperror

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/gorm"
)

// Error codes returned to API callers. The HTTP layer maps them through StatusCode.
const (
	EUnauthenticated      = "unauthenticated"
	EForbidden            = "forbidden"
	ENotFound             = "not found"
	EInvalid              = "invalid"
	EConflict             = "conflict"
	EPreconditionFailed   = "precondition failed"
	EUnavailable          = "unavailable"
	EInternal             = "internal error"
	defaultInternalDetail = "An internal error has occurred."
)

// Error carries a machine-readable code, a human message, the operation that
// failed and the wrapped cause.
type Error struct {
	Code string
	Msg  string
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Msg != "" && e.Err != nil {
		var b strings.Builder
		b.WriteString(e.Msg)
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
		return b.String()
	} else if e.Msg != "" {
		return e.Msg
	} else if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("<%s>", e.Code)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code, op, msg string) *Error {
	return &Error{Code: code, Op: op, Msg: msg}
}

func Unauthenticated(msg string) *Error { return newError(EUnauthenticated, "", msg) }

func Forbidden(op, msg string) *Error { return newError(EForbidden, op, msg) }

func NotFound(op, msg string) *Error { return newError(ENotFound, op, msg) }

func Invalid(op, msg string) *Error { return newError(EInvalid, op, msg) }

func Conflict(op, msg string) *Error { return newError(EConflict, op, msg) }

func PreconditionFailed(op, msg string) *Error { return newError(EPreconditionFailed, op, msg) }

func Unavailable(op, msg string, err error) *Error {
	e := newError(EUnavailable, op, msg)
	e.Err = err
	return e
}

// Internal wraps an unexpected failure. The cause is kept for logs but never
// shown to the caller.
func Internal(op string, err error) *Error {
	return &Error{Code: EInternal, Op: op, Err: err}
}

// FromStore classifies a persistence error. entity names the record in the
// not-found message; existence in another tenant is reported the same way as
// absence.
func FromStore(op, entity string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return err
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return NotFound(op, entity+" does not exist")
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return &Error{Code: EConflict, Op: op, Msg: entity + " already exists", Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return Unavailable(op, "storage did not answer in time", err)
	case errors.Is(err, context.Canceled):
		return Unavailable(op, "request was cancelled", err)
	}
	return Internal(op, err)
}

// Code returns the code of the outermost *Error in the chain, or EInternal.
func Code(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if !errors.As(err, &e) {
		return EInternal
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Err != nil {
		return Code(e.Err)
	}
	return EInternal
}

// Message returns the caller-facing message. Internal causes are hidden.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if !errors.As(err, &e) || e.Code == EInternal {
		return defaultInternalDetail
	}
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return Message(e.Err)
	}
	return defaultInternalDetail
}

var statusCodes = map[string]int{
	EUnauthenticated:    http.StatusUnauthorized,
	EForbidden:          http.StatusForbidden,
	ENotFound:           http.StatusNotFound,
	EInvalid:            http.StatusBadRequest,
	EConflict:           http.StatusConflict,
	EPreconditionFailed: http.StatusBadRequest,
	EUnavailable:        http.StatusServiceUnavailable,
	EInternal:           http.StatusInternalServerError,
}

// StatusCode maps an error to the HTTP status the API answers with.
func StatusCode(err error) int {
	if sc, ok := statusCodes[Code(err)]; ok {
		return sc
	}
	return http.StatusInternalServerError
}

// Is reports whether err carries the given code.
func Is(err error, code string) bool {
	return Code(err) == code
}
