package linear

import (
	"math"
	"time"

	"heatfem/linalg"
	"heatfem/metrics"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// Solver solves A*x = b for a sparse square A.
type Solver interface {
	Name() string
	Solve(a *linalg.Matrix, b *mat.VecDense) (*mat.VecDense, Stats, error)
	// Factorize prepares A once so that many right hand sides can be solved.
	Factorize(a *linalg.Matrix) (Factorization, Stats, error)
}

type Factorization interface {
	Solve(b *mat.VecDense) (*mat.VecDense, Stats, error)
}

// solveFunc writes the solution for b into dst.
type solveFunc func(dst, b *mat.VecDense) (iterations int, err error)

// factorFunc does the algorithm specific preparation of A.
type factorFunc func(a *linalg.Matrix) (solveFunc, error)

type solver struct {
	name   string
	factor factorFunc
}

// New returns the solver implementing t.
func New(t Type) (Solver, error) {
	switch t {
	case Cholesky:
		return &solver{name: t.String(), factor: factorCholesky}, nil
	case LU:
		return &solver{name: t.String(), factor: factorLU}, nil
	case QR:
		return &solver{name: t.String(), factor: factorQR}, nil
	case CG:
		return &solver{name: t.String(), factor: newCG(DefaultCGTolerance, 0).factor}, nil
	}
	return nil, newError(InvalidInput, "unknown solver type %d", int(t))
}

func (s *solver) Name() string { return s.name }

func (s *solver) Factorize(a *linalg.Matrix) (Factorization, Stats, error) {
	r, c := a.Dims()
	stats := Stats{MatrixSize: r, MatrixNonZeros: a.NNZ()}
	if r != c {
		return nil, stats, newError(InvalidInput, "matrix must be square, got %dx%d", r, c)
	}

	before := metrics.CurrentUsage()
	start := time.Now()
	solve, err := s.factor(a)
	stats.FactorizationMs = since(start)
	stats.ElapsedMs = stats.FactorizationMs
	stats.MemoryUsedBytes = metrics.Delta(before, metrics.CurrentUsage())
	stats.PeakMemoryBytes = metrics.PeakUsage()
	if err != nil {
		return nil, stats, err
	}

	log.WithFields(log.Fields{
		"solver": s.name,
		"size":   r,
		"nnz":    a.NNZ(),
		"ms":     stats.FactorizationMs,
	}).Debug("matrix factorized")
	return &factorization{a: a, solve: solve}, stats, nil
}

func (s *solver) Solve(a *linalg.Matrix, b *mat.VecDense) (*mat.VecDense, Stats, error) {
	r, _ := a.Dims()
	if r != b.Len() {
		return nil, Stats{MatrixSize: r, MatrixNonZeros: a.NNZ()},
			newError(InvalidInput, "matrix size (%d) doesn't match vector size (%d)", r, b.Len())
	}
	f, fs, err := s.Factorize(a)
	if err != nil {
		return nil, fs, err
	}
	x, ss, err := f.Solve(b)
	ss.FactorizationMs = fs.FactorizationMs
	ss.ElapsedMs += fs.ElapsedMs
	ss.MemoryUsedBytes += fs.MemoryUsedBytes
	ss.PeakMemoryBytes = max(ss.PeakMemoryBytes, fs.PeakMemoryBytes)
	return x, ss, err
}

// residualTolerance bounds ||b - Ax|| relative to max(1, ||b||) for an
// accepted solution.
const residualTolerance = 1e-6

type factorization struct {
	a     *linalg.Matrix
	solve solveFunc
}

func (f *factorization) Solve(b *mat.VecDense) (*mat.VecDense, Stats, error) {
	n, _ := f.a.Dims()
	stats := Stats{MatrixSize: n, MatrixNonZeros: f.a.NNZ()}
	if b.Len() != n {
		return nil, stats, newError(InvalidInput, "matrix size (%d) doesn't match vector size (%d)", n, b.Len())
	}

	before := metrics.CurrentUsage()
	start := time.Now()
	x := mat.NewVecDense(n, nil)
	iterations, err := f.solve(x, b)
	stats.SolveMs = since(start)
	stats.ElapsedMs = stats.SolveMs
	stats.Iterations = iterations
	stats.MemoryUsedBytes = metrics.Delta(before, metrics.CurrentUsage())
	stats.PeakMemoryBytes = metrics.PeakUsage()
	if err != nil {
		return nil, stats, err
	}
	if !linalg.AllFinite(x) {
		return nil, stats, newError(NumericalInstability, "solution contains non-finite values")
	}
	stats.ResidualNorm = linalg.ResidualNorm(f.a, x, b)
	if limit := residualTolerance * math.Max(1, mat.Norm(b, 2)); stats.ResidualNorm > limit {
		return nil, stats, newError(NumericalInstability, "residual %g exceeds %g, system is singular or ill-conditioned", stats.ResidualNorm, limit)
	}
	return x, stats, nil
}

func since(t time.Time) float64 {
	return float64(time.Since(t)) / float64(time.Millisecond)
}
