package solver

import (
	"heatfem/metrics"
	"heatfem/solver/linear"
)

type Stats struct {
	FactorizationMs float64 `json:"factorization_ms"`
	SolveMs         float64 `json:"solve_ms"`
	TotalSolverMs   float64 `json:"total_solver_ms"`
	TotalMs         float64 `json:"total_ms"`
	SetupMs         float64 `json:"setup_ms"`
	OverheadMs      float64 `json:"overhead_ms"`

	MemoryUsedBytes uint64 `json:"memory_used_bytes"`
	PeakMemoryBytes uint64 `json:"peak_memory_bytes"`

	ResidualNorm float64 `json:"residual_norm"`
	MinResidual  float64 `json:"min_residual"`
	MaxResidual  float64 `json:"max_residual"`

	MatrixSize       int `json:"matrix_size"`
	MatrixNonZeros   int `json:"matrix_nnz"`
	LinearSolveCount int `json:"linear_solve_count"`
	Factorizations   int `json:"factorizations"`

	MinTemperature float64 `json:"min_temperature"`
	MaxTemperature float64 `json:"max_temperature"`
}

// FromLinearStats describes a run consisting of a single linear solve.
func FromLinearStats(ls linear.Stats, totalMs float64) Stats {
	return Stats{
		FactorizationMs:  ls.FactorizationMs,
		SolveMs:          ls.SolveMs,
		TotalSolverMs:    ls.ElapsedMs,
		TotalMs:          totalMs,
		OverheadMs:       totalMs - ls.ElapsedMs,
		MemoryUsedBytes:  ls.MemoryUsedBytes,
		PeakMemoryBytes:  ls.PeakMemoryBytes,
		ResidualNorm:     ls.ResidualNorm,
		MinResidual:      ls.ResidualNorm,
		MaxResidual:      ls.ResidualNorm,
		MatrixSize:       ls.MatrixSize,
		MatrixNonZeros:   ls.MatrixNonZeros,
		LinearSolveCount: 1,
		Factorizations:   1,
	}
}

func (s Stats) AvgFactorizationMs() float64 {
	if s.LinearSolveCount == 0 {
		return 0
	}
	return s.FactorizationMs / float64(s.LinearSolveCount)
}

func (s Stats) AvgSolveMs() float64 {
	if s.LinearSolveCount == 0 {
		return 0
	}
	return s.SolveMs / float64(s.LinearSolveCount)
}

func (s Stats) AvgPerStepMs() float64 {
	if s.LinearSolveCount == 0 {
		return 0
	}
	return s.TotalSolverMs / float64(s.LinearSolveCount)
}

func (s Stats) OverheadPercent() float64 {
	if s.TotalMs == 0 {
		return 0
	}
	return 100 * s.OverheadMs / s.TotalMs
}

func (s Stats) PeakMemoryMB() float64 { return metrics.ToMB(s.PeakMemoryBytes) }
func (s Stats) MemoryUsedMB() float64 { return metrics.ToMB(s.MemoryUsedBytes) }
