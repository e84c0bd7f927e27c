package spud

import (
	"errors"
	"fmt"
	"syscall"
)

// Error represents a structured SPUD error with context and errno mapping.
type Error struct {
	Op    string // Operation that failed (e.g., "Open", "Parse", "Send")
	Code  Code   // High-level error category
	Errno syscall.Errno
	Msg   string
	Inner error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Op == "" {
		return fmt.Sprintf("spud: %s", msg)
	}
	if e.Errno != 0 {
		return fmt.Sprintf("spud: %s: %s (errno=%d)", e.Op, msg, e.Errno)
	}
	return fmt.Sprintf("spud: %s: %s", e.Op, msg)
}

func (e *Error) Unwrap() error {
	return e.Inner
}

func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if te, ok := target.(*Error); ok {
		return e.Code == te.Code
	}
	return false
}

// Code enumerates the error taxonomy.
type Code string

const (
	CodeInvalidArg    Code = "invalid_arg"
	CodeInvalidState  Code = "invalid_state"
	CodeNoMemory      Code = "no_memory"
	CodeOverflow      Code = "overflow"
	CodeSocketConnect Code = "socket_connect"
	CodeBadFormat     Code = "bad_format"
	CodeProtocol      Code = "protocol"
	CodeTimeout       Code = "timeout"
	CodeNotFound      Code = "not_found"
	CodeNoImpl        Code = "no_impl"
	CodeNoEntropy     Code = "no_entropy"
	CodeIO            Code = "io"
	CodeErrno         Code = "errno"
	CodeGetaddrinfo   Code = "getaddrinfo"
	// CodeCBOR carries a framer-level CBOR enumerant (see wire.CBOREnum) in
	// Msg. The enumerant itself is one of wire's closed set of error strings.
	CodeCBOR Code = "cbor"
)

// NewError creates a new structured error.
func NewError(op string, code Code, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

// NewErrorWithErrno creates a new structured error carrying a kernel errno.
func NewErrorWithErrno(op string, errno syscall.Errno) *Error {
	return &Error{Op: op, Code: CodeErrno, Errno: errno, Msg: errno.Error()}
}

// WrapError wraps an existing error with SPUD operation context.
func WrapError(op string, inner error) *Error {
	if inner == nil {
		return nil
	}
	if se, ok := inner.(*Error); ok {
		return &Error{Op: op, Code: se.Code, Errno: se.Errno, Msg: se.Msg, Inner: se.Inner}
	}
	if errno, ok := inner.(syscall.Errno); ok {
		return &Error{Op: op, Code: CodeErrno, Errno: errno, Msg: errno.Error(), Inner: inner}
	}
	return &Error{Op: op, Code: CodeIO, Msg: inner.Error(), Inner: inner}
}

// IsCode reports whether err is a *Error with the given code.
func IsCode(err error, code Code) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// IsErrno reports whether err is a *Error carrying the given errno.
func IsErrno(err error, errno syscall.Errno) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Errno == errno
	}
	return false
}
