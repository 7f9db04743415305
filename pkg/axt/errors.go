// Status-word error type shared by every control surface
//
// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package axt

import (
	"errors"
	"fmt"
	"strconv"
)

// Error is the Go form of a nonzero status word. It keeps the numeric code
// intact so callers that dispatch on the documented values keep working; Op
// names the entry point in family-prefixed form ("axm.MoveStartPos").
type Error struct {
	Code Code
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	s := e.Code.String() + " [" + strconv.FormatUint(uint64(e.Code), 10) + "]"
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports code equality, so errors.Is matches any two status errors
// carrying the same numeric code regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// NewError returns a bare status error for op.
func NewError(code Code, op string) *Error {
	return &Error{Code: code, Op: op}
}

// Errorf returns a status error with a formatted detail message.
func Errorf(code Code, op, format string, args ...interface{}) *Error {
	return &Error{Code: code, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a status code to an underlying error (transport failures,
// file I/O) without discarding it.
func Wrap(code Code, op string, err error) *Error {
	return &Error{Code: code, Op: op, Err: err}
}

// CodeOf extracts the numeric status of err: Success for nil, the carried
// code for status errors, UnknownError for anything foreign.
func CodeOf(err error) Code {
	if err == nil {
		return Success
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return UnknownError
}

// IsCode reports whether err carries exactly the given status code.
func IsCode(err error, code Code) bool {
	if err == nil {
		return code == Success
	}
	return CodeOf(err) == code
}

// Common sentinels for errors.Is checks.
var (
	ErrNotOpen          = NewError(NotOpen, "")
	ErrOpenAlready      = NewError(OpenAlready, "")
	ErrBadParameter     = NewError(BadParameter, "")
	ErrInvalidBoardNo   = NewError(InvalidBoardNo, "")
	ErrInvalidAxisNo    = NewError(MotionInvalidAxisNo, "")
	ErrInvalidChannelNo = NewError(CNTInvalidChannelNo, "")
	ErrHomeSearching    = NewError(MotionHomeSearching, "")
	ErrInMotion         = NewError(MotionErrorInMotion, "")
)
