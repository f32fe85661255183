package linear

import "fmt"

type ErrorCode int

const (
	SingularMatrix ErrorCode = iota
	NumericalInstability
	InvalidInput
	Unknown
)

func (c ErrorCode) String() string {
	switch c {
	case SingularMatrix:
		return "singular matrix"
	case NumericalInstability:
		return "numerical instability"
	case InvalidInput:
		return "invalid input"
	}
	return "unknown error"
}

// Error is the failure type of every linear solve.
type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return "solver error: " + e.Code.String()
	}
	return fmt.Sprintf("solver error: %s (%s)", e.Code, e.Message)
}

func newError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}
