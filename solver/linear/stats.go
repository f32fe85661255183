package linear

import "heatfem/metrics"

type Stats struct {
	ElapsedMs       float64
	FactorizationMs float64
	SolveMs         float64
	ResidualNorm    float64
	Iterations      int

	MemoryUsedBytes uint64
	PeakMemoryBytes uint64

	MatrixSize     int
	MatrixNonZeros int
}

func (s Stats) MemoryUsedMB() float64 { return metrics.ToMB(s.MemoryUsedBytes) }
func (s Stats) PeakMemoryMB() float64 { return metrics.ToMB(s.PeakMemoryBytes) }
