package assembler

const mib = 1024 * 1024

// AssemblyStats describes one Build call.
type AssemblyStats struct {
	ElementAssemblyMs  float64 `json:"element_assembly_ms"`
	BoundaryAssemblyMs float64 `json:"boundary_assembly_ms"`
	MergeMs            float64 `json:"merge_ms"`
	ConversionMs       float64 `json:"conversion_ms"`
	TotalMs            float64 `json:"total_ms"`

	ElementCount  int `json:"element_count"`
	BoundaryCount int `json:"boundary_count"`
	NodeCount     int `json:"node_count"`
	TripletCountH int `json:"triplet_count_h"`
	TripletCountC int `json:"triplet_count_c"`
	NonZerosH     int `json:"nnz_h"`
	NonZerosC     int `json:"nnz_c"`

	TripletsMemoryBytes int64 `json:"triplets_memory_bytes"`
	SparseMemoryBytes   int64 `json:"sparse_memory_bytes"`

	Workers        int   `json:"workers"`
	WorkerTriplets []int `json:"worker_triplets"`
}

func (s AssemblyStats) ComputationTimeMs() float64 {
	return s.ElementAssemblyMs + s.BoundaryAssemblyMs
}

func (s AssemblyStats) OverheadMs() float64 {
	return s.TotalMs - s.ComputationTimeMs()
}

func (s AssemblyStats) OverheadPercent() float64 {
	if s.TotalMs <= 0 {
		return 0
	}
	return s.OverheadMs() / s.TotalMs * 100
}

func (s AssemblyStats) ElementsPerSecond() float64 {
	if s.ElementAssemblyMs <= 0 {
		return 0
	}
	return float64(s.ElementCount) / (s.ElementAssemblyMs / 1000)
}

func (s AssemblyStats) BoundaryElementsPerSecond() float64 {
	if s.BoundaryAssemblyMs <= 0 {
		return 0
	}
	return float64(s.BoundaryCount) / (s.BoundaryAssemblyMs / 1000)
}

func (s AssemblyStats) TripletsMemoryMB() float64 {
	return float64(s.TripletsMemoryBytes) / mib
}

func (s AssemblyStats) SparseMatrixMemoryMB() float64 {
	return float64(s.SparseMemoryBytes) / mib
}
