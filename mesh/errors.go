package mesh

import "fmt"

type ErrorCode int

const (
	Unknown ErrorCode = iota
	ExtensionNotSupported
	FileError
	ParseError
	GeneratorError
)

func (c ErrorCode) String() string {
	switch c {
	case ExtensionNotSupported:
		return "extension not supported"
	case FileError:
		return "file error"
	case ParseError:
		return "parse error"
	case GeneratorError:
		return "generator error"
	}
	return "unknown error"
}

type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return "mesh provider: " + e.Code.String()
	}
	return fmt.Sprintf("mesh provider: %s (%s)", e.Code, e.Message)
}

func newError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}
