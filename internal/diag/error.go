package diag

import (
	"errors"
	"fmt"
)

// Error is the structured failure returned by builders. It carries the Code
// the orchestrator inspects to decide whether to keep compiling other modules.
type Error struct {
	Code    Code
	Message string
	Notes   []string
	Err     error
}

// Errorf builds an *Error with a formatted message.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code to an underlying error. A nil err yields nil.
func Wrap(code Code, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

func (e *Error) Error() string {
	msg := e.Code.ID() + ": " + e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// WithNote appends a note and returns e.
func (e *Error) WithNote(format string, args ...any) *Error {
	e.Notes = append(e.Notes, fmt.Sprintf(format, args...))
	return e
}

// CodeOf returns the code of the first *Error in err's chain, or UnknownCode.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return UnknownCode
}

// FromError converts any error into a Diagnostic for module.
func FromError(module string, err error) Diagnostic {
	var de *Error
	if errors.As(err, &de) {
		msg := de.Message
		if de.Err != nil {
			msg += ": " + de.Err.Error()
		}
		return Diagnostic{Severity: SevError, Code: de.Code, Module: module, Message: msg, Notes: de.Notes}
	}
	return NewError(UnknownCode, module, err.Error())
}
