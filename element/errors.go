package element

import "fmt"

type ErrorCode int

const (
	DegenerateElement ErrorCode = iota
	MissingBoundaryValue
	UnknownNode
	UnsupportedBoundary
)

func (c ErrorCode) String() string {
	switch c {
	case DegenerateElement:
		return "degenerate element"
	case MissingBoundaryValue:
		return "missing boundary value"
	case UnknownNode:
		return "unknown node"
	case UnsupportedBoundary:
		return "unsupported boundary"
	}
	return fmt.Sprintf("ErrorCode(%d)", int(c))
}

// Error reports a failure to build the local matrices of one element.
type Error struct {
	Code      ErrorCode
	ElementID int
	Message   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("element %d: %s: %s", e.ElementID, e.Code, e.Message)
}
