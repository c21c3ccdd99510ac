package txerror

import (
	"errors"
	"fmt"
)

type Code int

const (
	Unknown Code = iota
	InvalidState
	IllegalOperation
	ValidationFailed
	IndexConstraintViolated
	ConcurrentModification
)

func (c Code) String() string {
	switch c {
	case InvalidState:
		return "invalid state"
	case IllegalOperation:
		return "illegal operation"
	case ValidationFailed:
		return "validation failed"
	case IndexConstraintViolated:
		return "index constraint violated"
	case ConcurrentModification:
		return "concurrent modification"
	}
	return "unknown"
}

// Error carries a Code so callers can react to the kind of failure without
// parsing messages. UserData holds whatever identifies the offending item
// (a RID, an index key...).
type Error struct {
	Code     Code
	Err      error
	UserData any
}

// Sentinels to be used with errors.Is.
var (
	ErrInvalidState            = &Error{Code: InvalidState}
	ErrIllegalOperation        = &Error{Code: IllegalOperation}
	ErrValidationFailed        = &Error{Code: ValidationFailed}
	ErrIndexConstraintViolated = &Error{Code: IndexConstraintViolated}
	ErrConcurrentModification  = &Error{Code: ConcurrentModification}
)

func New(code Code, err error) *Error {
	return &Error{Code: code, Err: err}
}

func Newf(code Code, format string, a ...any) *Error {
	return &Error{Code: code, Err: fmt.Errorf(format, a...)}
}

func (e *Error) WithUserData(data any) *Error {
	e.UserData = data
	return e
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Code.String()
	}
	if e.UserData != nil {
		return fmt.Sprintf("%s: %v (%v)", e.Code, e.Err, e.UserData)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// CodeOf returns the code of the first *Error in the chain.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return Unknown
}
