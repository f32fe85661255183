package assembler

import "fmt"

type ErrorCode int

const (
	ElementFailed ErrorCode = iota
	BoundaryFailed
	InvalidMesh
	Cancelled
)

func (c ErrorCode) String() string {
	switch c {
	case ElementFailed:
		return "element assembly failed"
	case BoundaryFailed:
		return "boundary assembly failed"
	case InvalidMesh:
		return "invalid mesh"
	case Cancelled:
		return "assembly cancelled"
	}
	return fmt.Sprintf("ErrorCode(%d)", int(c))
}

// Error is returned by Build. No matrices are produced alongside it.
type Error struct {
	Code      ErrorCode
	ElementID int
	Err       error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Code.String()
	}
	if e.Code == ElementFailed || e.Code == BoundaryFailed {
		return fmt.Sprintf("%s at %d: %v", e.Code, e.ElementID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
