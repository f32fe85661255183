package linear

import (
	"math"

	"heatfem/linalg"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// DefaultCGTolerance is the relative residual at which CG stops.
const DefaultCGTolerance = 1e-10

type cg struct {
	tol     float64
	maxIter int
}

func newCG(tol float64, maxIter int) *cg {
	return &cg{tol: tol, maxIter: maxIter}
}

// factor builds the Jacobi preconditioner.
func (c *cg) factor(a *linalg.Matrix) (solveFunc, error) {
	diag := a.Diagonal()
	inv := make([]float64, len(diag))
	for i, d := range diag {
		if !(d > 0) {
			return nil, newError(SingularMatrix, "non-positive diagonal %g at row %d", d, i)
		}
		inv[i] = 1 / d
	}
	maxIter := c.maxIter
	if maxIter <= 0 {
		maxIter = 10 * len(diag)
	}
	return func(dst, b *mat.VecDense) (int, error) {
		return c.solve(a, inv, maxIter, dst, b)
	}, nil
}

func (c *cg) solve(a *linalg.Matrix, inv []float64, maxIter int, dst, bv *mat.VecDense) (int, error) {
	n := len(inv)
	b := mat.Col(nil, 0, bv)
	bNorm := floats.Norm(b, 2)
	if bNorm == 0 {
		dst.Zero()
		return 0, nil
	}

	x := make([]float64, n)
	r := make([]float64, n)
	copy(r, b)
	z := make([]float64, n)
	floats.MulTo(z, inv, r)
	p := make([]float64, n)
	copy(p, z)
	ap := make([]float64, n)
	rz := floats.Dot(r, z)

	for it := 1; it <= maxIter; it++ {
		a.MulVecTo(ap, p)
		pap := floats.Dot(p, ap)
		if !(pap > 0) {
			return it, newError(NumericalInstability, "matrix is not positive definite (p'Ap=%g)", pap)
		}
		alpha := rz / pap
		floats.AddScaled(x, alpha, p)
		floats.AddScaled(r, -alpha, ap)

		if floats.Norm(r, 2) <= c.tol*bNorm {
			// the recurred residual drifts from b - Ax on singular systems
			a.MulVecTo(ap, x)
			floats.SubTo(r, b, ap)
			if floats.Norm(r, 2) <= residualTolerance*bNorm {
				dst.CopyVec(mat.NewVecDense(n, x))
				return it, nil
			}
			floats.MulTo(z, inv, r)
			copy(p, z)
			rz = floats.Dot(r, z)
			continue
		}

		floats.MulTo(z, inv, r)
		rzNext := floats.Dot(r, z)
		beta := rzNext / rz
		rz = rzNext
		for i := range p {
			p[i] = z[i] + beta*p[i]
		}
		if math.IsNaN(rz) {
			break
		}
	}
	return maxIter, newError(NumericalInstability, "conjugate gradient did not converge in %d iterations", maxIter)
}
