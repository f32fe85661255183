package linalg

import (
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/exascience/pargo/parallel"
	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/mat"
)

// Matrix is a compressed sparse row matrix with sorted, unique column indices
// per row. The raw arrays are shared with the wrapped *sparse.CSR.
type Matrix struct {
	rows, cols int
	indptr     []int
	ind        []int
	data       []float64

	csr *sparse.CSR
}

var _ mat.Matrix = (*Matrix)(nil)

func newMatrix(rows, cols int, indptr, ind []int, data []float64) *Matrix {
	return &Matrix{
		rows:   rows,
		cols:   cols,
		indptr: indptr,
		ind:    ind,
		data:   data,
		csr:    sparse.NewCSR(rows, cols, indptr, ind, data),
	}
}

// NewEmpty returns an r x c matrix with no stored entries.
func NewEmpty(rows, cols int) *Matrix {
	return newMatrix(rows, cols, make([]int, rows+1), []int{}, []float64{})
}

type entry struct {
	col int
	val float64
}

// FromTriplets compresses a coefficient list into CSR form. Entries sharing a
// coordinate are summed, never overwritten.
func FromTriplets(rows, cols int, ts Triplets) (*Matrix, error) {
	if rows < 0 || cols < 0 {
		return nil, fmt.Errorf("negative matrix dimensions %dx%d", rows, cols)
	}
	counts := make([]int, rows+1)
	for _, t := range ts {
		if t.Row < 0 || t.Row >= rows || t.Col < 0 || t.Col >= cols {
			return nil, fmt.Errorf("triplet (%d, %d) outside %dx%d matrix", t.Row, t.Col, rows, cols)
		}
		counts[t.Row+1]++
	}
	for i := 0; i < rows; i++ {
		counts[i+1] += counts[i]
	}

	scattered := make([]entry, len(ts))
	next := make([]int, rows)
	copy(next, counts[:rows])
	for _, t := range ts {
		scattered[next[t.Row]] = entry{col: t.Col, val: t.Value}
		next[t.Row]++
	}

	indptr := make([]int, rows+1)
	ind := make([]int, 0, len(ts)/2+1)
	data := make([]float64, 0, len(ts)/2+1)
	for i := 0; i < rows; i++ {
		seg := scattered[counts[i]:counts[i+1]]
		slices.SortFunc(seg, func(a, b entry) int { return a.col - b.col })
		for k, e := range seg {
			if k > 0 && e.col == seg[k-1].col {
				data[len(data)-1] += e.val
				continue
			}
			ind = append(ind, e.col)
			data = append(data, e.val)
		}
		indptr[i+1] = len(ind)
	}
	return newMatrix(rows, cols, indptr, ind, data), nil
}

func (m *Matrix) Dims() (int, int) { return m.rows, m.cols }

func (m *Matrix) At(i, j int) float64 {
	if i < 0 || i >= m.rows || j < 0 || j >= m.cols {
		panic(mat.ErrIndexOutOfRange)
	}
	lo, hi := m.indptr[i], m.indptr[i+1]
	k := lo + sort.SearchInts(m.ind[lo:hi], j)
	if k < hi && m.ind[k] == j {
		return m.data[k]
	}
	return 0
}

func (m *Matrix) T() mat.Matrix { return mat.Transpose{Matrix: m} }

func (m *Matrix) NNZ() int { return len(m.data) }

// DoNonZero calls fn for every stored entry in row major order.
func (m *Matrix) DoNonZero(fn func(i, j int, v float64)) {
	for i := 0; i < m.rows; i++ {
		for k := m.indptr[i]; k < m.indptr[i+1]; k++ {
			fn(i, m.ind[k], m.data[k])
		}
	}
}

// MemoryBytes estimates the storage of the compressed arrays.
func (m *Matrix) MemoryBytes() int {
	const word = 8
	return (len(m.indptr)+len(m.ind))*word + len(m.data)*word
}

// MulVecTo computes dst = m*x. Rows are processed in parallel.
func (m *Matrix) MulVecTo(dst, x []float64) {
	if len(x) != m.cols || len(dst) != m.rows {
		panic(mat.ErrShape)
	}
	parallel.Range(0, m.rows, 0, func(low, high int) {
		for i := low; i < high; i++ {
			var s float64
			for k := m.indptr[i]; k < m.indptr[i+1]; k++ {
				s += m.data[k] * x[m.ind[k]]
			}
			dst[i] = s
		}
	})
}

// Scaled returns s*m as a new matrix.
func (m *Matrix) Scaled(s float64) *Matrix {
	data := make([]float64, len(m.data))
	for k, v := range m.data {
		data[k] = s * v
	}
	return newMatrix(m.rows, m.cols, slices.Clone(m.indptr), slices.Clone(m.ind), data)
}

// AddScaled returns a + s*b. Both operands must have the same shape.
func AddScaled(a, b *Matrix, s float64) (*Matrix, error) {
	if a.rows != b.rows || a.cols != b.cols {
		return nil, fmt.Errorf("shape mismatch: %dx%d vs %dx%d", a.rows, a.cols, b.rows, b.cols)
	}
	indptr := make([]int, a.rows+1)
	ind := make([]int, 0, max(len(a.ind), len(b.ind)))
	data := make([]float64, 0, cap(ind))
	for i := 0; i < a.rows; i++ {
		p, pEnd := a.indptr[i], a.indptr[i+1]
		q, qEnd := b.indptr[i], b.indptr[i+1]
		for p < pEnd || q < qEnd {
			switch {
			case q >= qEnd || (p < pEnd && a.ind[p] < b.ind[q]):
				ind = append(ind, a.ind[p])
				data = append(data, a.data[p])
				p++
			case p >= pEnd || b.ind[q] < a.ind[p]:
				ind = append(ind, b.ind[q])
				data = append(data, s*b.data[q])
				q++
			default:
				ind = append(ind, a.ind[p])
				data = append(data, a.data[p]+s*b.data[q])
				p++
				q++
			}
		}
		indptr[i+1] = len(ind)
	}
	return newMatrix(a.rows, a.cols, indptr, ind, data), nil
}

// IsSymmetric reports whether |m(i,j) - m(j,i)| <= tol*max(1, |m(i,j)|) for
// every stored entry.
func (m *Matrix) IsSymmetric(tol float64) bool {
	if m.rows != m.cols {
		return false
	}
	for i := 0; i < m.rows; i++ {
		for k := m.indptr[i]; k < m.indptr[i+1]; k++ {
			j := m.ind[k]
			v := m.data[k]
			if math.Abs(v-m.At(j, i)) > tol*math.Max(1, math.Abs(v)) {
				return false
			}
		}
	}
	return true
}

// Equal compares two matrices entrywise with a relative tolerance.
func (m *Matrix) Equal(o *Matrix, tol float64) bool {
	if m.rows != o.rows || m.cols != o.cols {
		return false
	}
	check := func(a, b *Matrix) bool {
		for i := 0; i < a.rows; i++ {
			for k := a.indptr[i]; k < a.indptr[i+1]; k++ {
				v := a.data[k]
				w := b.At(i, a.ind[k])
				if math.Abs(v-w) > tol*math.Max(1, math.Abs(v)) {
					return false
				}
			}
		}
		return true
	}
	return check(m, o) && check(o, m)
}

// Diagonal returns a copy of the main diagonal.
func (m *Matrix) Diagonal() []float64 {
	n := min(m.rows, m.cols)
	d := make([]float64, n)
	for i := 0; i < n; i++ {
		d[i] = m.At(i, i)
	}
	return d
}

func (m *Matrix) ToDense() *mat.Dense {
	return m.csr.ToDense()
}

// ToSymDense builds a symmetric dense matrix from the lower triangle.
func (m *Matrix) ToSymDense() *mat.SymDense {
	s := mat.NewSymDense(m.rows, nil)
	m.DoNonZero(func(i, j int, v float64) {
		if j <= i {
			s.SetSym(i, j, v)
		}
	})
	return s
}
