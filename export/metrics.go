package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"heatfem/assembler"
	"heatfem/solver"

	log "github.com/sirupsen/logrus"
)

// Storage layout reported alongside solver metrics.
const (
	StorageOrder = "csr"
	Reordering   = "natural"
)

// FullMetrics is what one run reports. Assembly is nil when the matrices
// came from the cache.
type FullMetrics struct {
	SolverName string
	Solver     solver.Stats
	Assembly   *assembler.AssemblyStats
}

var solverHeader = []string{
	"solver", "storage_order", "reordering", "matrix_size", "nnz",
	"avg_factorization_ms", "avg_solve_ms", "avg_per_step_ms",
	"total_ms", "overhead_ms", "memory_used_mb", "peak_memory_mb", "residual_norm",
}

var assemblyHeader = []string{
	"assembly_total_ms", "element_assembly_ms", "boundary_assembly_ms", "merge_ms",
	"conversion_ms", "elements_per_second", "triplets_memory_mb", "sparse_memory_mb",
}

// ExportMetrics writes m as CSV or JSON depending on the extension of path.
func ExportMetrics(path string, m FullMetrics) error {
	log.WithField("path", path).Info("exporting metrics")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return writeMetricsCSV(path, m)
	case ".json":
		return writeMetricsJSON(path, m)
	}
	return fmt.Errorf("unsupported metrics format %q", filepath.Ext(path))
}

func f3(v float64) string { return strconv.FormatFloat(v, 'f', 3, 64) }

func writeMetricsCSV(path string, m FullMetrics) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create metrics file: %w", err)
	}
	defer f.Close()

	s := m.Solver
	header := solverHeader
	row := []string{
		m.SolverName, StorageOrder, Reordering,
		strconv.Itoa(s.MatrixSize), strconv.Itoa(s.MatrixNonZeros),
		f3(s.AvgFactorizationMs()), f3(s.AvgSolveMs()), f3(s.AvgPerStepMs()),
		f3(s.TotalMs), f3(s.OverheadMs), f3(s.MemoryUsedMB()), f3(s.PeakMemoryMB()),
		strconv.FormatFloat(s.ResidualNorm, 'e', 2, 64),
	}
	if a := m.Assembly; a != nil {
		header = append(append([]string{}, header...), assemblyHeader...)
		row = append(row,
			f3(a.TotalMs), f3(a.ElementAssemblyMs), f3(a.BoundaryAssemblyMs), f3(a.MergeMs),
			f3(a.ConversionMs), f3(a.ElementsPerSecond()), f3(a.TripletsMemoryMB()), f3(a.SparseMatrixMemoryMB()),
		)
	}

	w := csv.NewWriter(f)
	if err := w.WriteAll([][]string{header, row}); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return f.Close()
}

type solverJSON struct {
	solver.Stats
	AvgFactorizationMs float64 `json:"avg_factorization_ms"`
	AvgSolveMs         float64 `json:"avg_solve_ms"`
	AvgPerStepMs       float64 `json:"avg_per_step_ms"`
	OverheadPercent    float64 `json:"overhead_percent"`
	MemoryUsedMB       float64 `json:"memory_used_mb"`
	PeakMemoryMB       float64 `json:"peak_memory_mb"`
}

type assemblyJSON struct {
	assembler.AssemblyStats
	ElementsPerSecond         float64 `json:"elements_per_second"`
	BoundaryElementsPerSecond float64 `json:"boundary_elements_per_second"`
	OverheadPercent           float64 `json:"overhead_percent"`
	TripletsMemoryMB          float64 `json:"triplets_memory_mb"`
	SparseMatrixMemoryMB      float64 `json:"sparse_memory_mb"`
}

type metricsJSON struct {
	SolverName   string        `json:"solver"`
	StorageOrder string        `json:"storage_order"`
	Reordering   string        `json:"reordering"`
	Solver       solverJSON    `json:"solver_stats"`
	Assembly     *assemblyJSON `json:"assembly_stats,omitempty"`
}

func writeMetricsJSON(path string, m FullMetrics) error {
	s := m.Solver
	out := metricsJSON{
		SolverName:   m.SolverName,
		StorageOrder: StorageOrder,
		Reordering:   Reordering,
		Solver: solverJSON{
			Stats:              s,
			AvgFactorizationMs: s.AvgFactorizationMs(),
			AvgSolveMs:         s.AvgSolveMs(),
			AvgPerStepMs:       s.AvgPerStepMs(),
			OverheadPercent:    s.OverheadPercent(),
			MemoryUsedMB:       s.MemoryUsedMB(),
			PeakMemoryMB:       s.PeakMemoryMB(),
		},
	}
	if a := m.Assembly; a != nil {
		out.Assembly = &assemblyJSON{
			AssemblyStats:             *a,
			ElementsPerSecond:         a.ElementsPerSecond(),
			BoundaryElementsPerSecond: a.BoundaryElementsPerSecond(),
			OverheadPercent:           a.OverheadPercent(),
			TripletsMemoryMB:          a.TripletsMemoryMB(),
			SparseMatrixMemoryMB:      a.SparseMatrixMemoryMB(),
		}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metrics: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
