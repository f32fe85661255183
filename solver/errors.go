package solver

import "heatfem/solver/linear"

// Error is shared with the linear solvers so that their failures propagate
// unchanged.
type Error = linear.Error

type ErrorCode = linear.ErrorCode

const (
	SingularMatrix       = linear.SingularMatrix
	NumericalInstability = linear.NumericalInstability
	InvalidInput         = linear.InvalidInput
	Unknown              = linear.Unknown
)

func invalidInput(msg string) *Error {
	return &Error{Code: InvalidInput, Message: msg}
}
