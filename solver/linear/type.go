package linear

import "fmt"

type Type int

const (
	Cholesky Type = iota
	LU
	QR
	CG
)

type Info struct {
	Type        Type
	Name        string
	Description string
}

var infos = []Info{
	{Cholesky, "cholesky", "Cholesky decomposition (fastest for SPD)"},
	{LU, "lu", "LU decomposition (general purpose)"},
	{QR, "qr", "QR decomposition (most stable)"},
	{CG, "cg", "Jacobi preconditioned conjugate gradient (sparse, SPD)"},
}

// Infos lists the available solvers.
func Infos() []Info {
	out := make([]Info, len(infos))
	copy(out, infos)
	return out
}

func ParseType(s string) (Type, error) {
	for _, info := range infos {
		if info.Name == s {
			return info.Type, nil
		}
	}
	return 0, fmt.Errorf("unknown linear solver %q", s)
}

func (t Type) String() string {
	for _, info := range infos {
		if info.Type == t {
			return info.Name
		}
	}
	return fmt.Sprintf("Type(%d)", int(t))
}
