package linalg

import (
	"math"

	"github.com/exascience/pargo/parallel"
	"gonum.org/v1/gonum/mat"
)

// ResidualNorm returns ||A*x - b||_2.
func ResidualNorm(a *Matrix, x, b *mat.VecDense) float64 {
	xs, bs := x.RawVector().Data, b.RawVector().Data
	if x.RawVector().Inc != 1 || b.RawVector().Inc != 1 {
		xs = mat.Col(nil, 0, x)
		bs = mat.Col(nil, 0, b)
	}
	sq := parallel.RangeReduceFloat64(0, a.rows, 0,
		func(low, high int) (sum float64) {
			for i := low; i < high; i++ {
				r := -bs[i]
				for k := a.indptr[i]; k < a.indptr[i+1]; k++ {
					r += a.data[k] * xs[a.ind[k]]
				}
				sum += r * r
			}
			return
		},
		func(s, t float64) float64 { return s + t },
	)
	return math.Sqrt(sq)
}

// MulVec returns A*x as a new vector.
func MulVec(a *Matrix, x *mat.VecDense) *mat.VecDense {
	dst := make([]float64, a.rows)
	a.MulVecTo(dst, mat.Col(nil, 0, x))
	return mat.NewVecDense(a.rows, dst)
}

// Uniform returns a vector of length n filled with v.
func Uniform(n int, v float64) *mat.VecDense {
	d := make([]float64, n)
	for i := range d {
		d[i] = v
	}
	return mat.NewVecDense(n, d)
}

// AllFinite reports whether no entry is NaN or Inf.
func AllFinite(v mat.Vector) bool {
	for i := 0; i < v.Len(); i++ {
		f := v.AtVec(i)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
