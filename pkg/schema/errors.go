package schema

import (
	"errors"
	"fmt"
)

// Kind is the runtime's language-neutral error taxonomy.
type Kind int

const (
	Ok Kind = iota
	Generic
	Alloc
	ArgError
	VmError
	SearchPathError
)

func (k Kind) String() string {
	switch k {
	case Ok:
		return "Ok"
	case Generic:
		return "Generic"
	case Alloc:
		return "Alloc"
	case ArgError:
		return "ArgError"
	case VmError:
		return "VmError"
	case SearchPathError:
		return "SearchPathError"
	default:
		return "Unknown"
	}
}

// Error is the single error type every public operation in this module
// returns. It carries a Kind so callers can switch on the taxonomy
// without string-matching, plus an optional VM traceback for VmError.
type Error struct {
	Kind      Kind
	Message   string
	Traceback string
	Cause     error
}

func (e *Error) Error() string {
	if e.Traceback != "" {
		return fmt.Sprintf("%s: %s\n%s", e.Kind, e.Message, e.Traceback)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// AsError converts e to a plain error, returning a literal untyped nil
// when e is nil. Go's interface rules make `var e *Error; return
// error(e)` a non-nil error wrapping a nil pointer; every call site that
// hands a possibly-nil *Error to an `error`-typed return must go
// through AsError instead of a bare conversion.
func (e *Error) AsError() error {
	if e == nil {
		return nil
	}
	return e
}

func NewArgError(format string, args ...interface{}) *Error {
	return &Error{Kind: ArgError, Message: fmt.Sprintf(format, args...)}
}

func NewGeneric(format string, args ...interface{}) *Error {
	return &Error{Kind: Generic, Message: fmt.Sprintf(format, args...)}
}

func NewSearchPathError(format string, args ...interface{}) *Error {
	return &Error{Kind: SearchPathError, Message: fmt.Sprintf(format, args...)}
}

func NewVmError(message, traceback string, cause error) *Error {
	return &Error{Kind: VmError, Message: message, Traceback: traceback, Cause: cause}
}

// KindOf unwraps err (if it is, or wraps, an *Error) to its Kind, or
// Generic if err is a plain error the runtime did not construct.
func KindOf(err error) Kind {
	if err == nil {
		return Ok
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Generic
}
