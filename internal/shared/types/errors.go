package types

import (
	"errors"
	"fmt"
)

// ErrorKind is the result code reported to observers. Zero means success.
type ErrorKind int32

const (
	KindOK                ErrorKind = 0
	KindPermissionDenied  ErrorKind = -1
	KindNotFound          ErrorKind = -2
	KindIOError           ErrorKind = -5
	KindInvalidArgument   ErrorKind = -7
	KindMalformedManifest ErrorKind = -22
	KindNoService         ErrorKind = -32
	KindIllegalState      ErrorKind = -38
	KindParseError        ErrorKind = -74
	KindUnsupportedType   ErrorKind = -95
)

// Sentinels for errors.Is matching by kind
var (
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrPermissionDenied  = &Error{Kind: KindPermissionDenied}
	ErrIO                = &Error{Kind: KindIOError}
	ErrInvalidArgument   = &Error{Kind: KindInvalidArgument}
	ErrMalformedManifest = &Error{Kind: KindMalformedManifest}
	ErrNoService         = &Error{Kind: KindNoService}
	ErrIllegalState      = &Error{Kind: KindIllegalState}
	ErrParse             = &Error{Kind: KindParseError}
	ErrUnsupportedType   = &Error{Kind: KindUnsupportedType}
)

// Code returns the wire value of the kind
func (k ErrorKind) Code() int32 {
	return int32(k)
}

// String returns a readable name for the kind
func (k ErrorKind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindPermissionDenied:
		return "permission denied"
	case KindNotFound:
		return "not found"
	case KindIOError:
		return "io error"
	case KindInvalidArgument:
		return "invalid argument"
	case KindMalformedManifest:
		return "malformed manifest"
	case KindNoService:
		return "no service"
	case KindIllegalState:
		return "illegal state"
	case KindParseError:
		return "parse error"
	case KindUnsupportedType:
		return "unsupported type"
	default:
		return fmt.Sprintf("error %d", int32(k))
	}
}

// Error carries an ErrorKind with the failing operation and package
type Error struct {
	Kind    ErrorKind
	Op      string
	Package string
	Err     error
}

// NewError creates a kinded error
func NewError(kind ErrorKind, op, pkg string, err error) *Error {
	return &Error{Kind: kind, Op: op, Package: pkg, Err: err}
}

// Errorf creates a kinded error with a formatted cause
func Errorf(kind ErrorKind, op, pkg, format string, args ...interface{}) *Error {
	return NewError(kind, op, pkg, fmt.Errorf(format, args...))
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Package != "" {
		msg += " (" + e.Package + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind when the target carries no cause
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Err == nil && t.Op == "" && t.Kind == e.Kind
}

// KindOf extracts the kind of err. Untyped errors are reported as IOError.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindIOError
}

// Message returns the human readable text for a result
func Message(err error) string {
	if err == nil {
		return "success"
	}
	return err.Error()
}
