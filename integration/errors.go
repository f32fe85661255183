package integration

import "fmt"

type ErrorCode int

const (
	IncorrectIntegrationSchema ErrorCode = iota
)

type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string {
	return "integration error: " + e.Message
}

func unsupported(order int) *Error {
	return &Error{
		Code:    IncorrectIntegrationSchema,
		Message: fmt.Sprintf("unsupported integration schema: %d (supported %d..%d)", order, MinOrder, MaxOrder),
	}
}
