package config

import "fmt"

type ErrorCode int

const (
	FileError ErrorCode = iota
	ParserError
	MissingField
	InvalidValue
	Unknown
)

func (c ErrorCode) String() string {
	switch c {
	case FileError:
		return "file error"
	case ParserError:
		return "parser error"
	case MissingField:
		return "missing required field"
	case InvalidValue:
		return "invalid value"
	}
	return "unknown error"
}

type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Code, e.Message)
}

func newError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func missing(field string) *Error {
	return newError(MissingField, "required field %q is missing", field)
}
