package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"heatfem/assembler"
	"heatfem/linalg"
	"heatfem/mesh"
	"heatfem/model"
	"heatfem/solver"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func unitSquare(t *testing.T, nx, ny int) *model.Mesh {
	m, err := mesh.GenerateRectangle(1, 1, nx, ny)
	require.NoError(t, err)
	return m
}

func TestWriteVTKLayout(t *testing.T) {
	m := unitSquare(t, 1, 1)
	var buf bytes.Buffer
	require.NoError(t, WriteVTK(&buf, m, linalg.Uniform(4, 20), nil))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, "# vtk DataFile Version 3.0", lines[0])
	assert.Equal(t, "FEM Heat Transfer Solution", lines[1])
	assert.Equal(t, "ASCII", lines[2])
	assert.Equal(t, "DATASET UNSTRUCTURED_GRID", lines[3])
	assert.Equal(t, "POINTS 4 double", lines[4])
	assert.Contains(t, buf.String(), "CELLS 1 5\n4 0 1 3 2\n")
	assert.Contains(t, buf.String(), "CELL_TYPES 1\n9\n")
	assert.Contains(t, buf.String(), "POINT_DATA 4\nSCALARS Temperature double 1\nLOOKUP_TABLE default\n20\n")
}

func TestWriteVTKTimeTitle(t *testing.T) {
	m := unitSquare(t, 1, 1)
	tm := 0.5
	var buf bytes.Buffer
	require.NoError(t, WriteVTK(&buf, m, linalg.Uniform(4, 0), &tm))
	assert.Contains(t, buf.String(), "FEM Heat Transfer Solution (t=0.5s)\n")
}

func TestWriteVTKLengthMismatch(t *testing.T) {
	m := unitSquare(t, 1, 1)
	assert.Error(t, WriteVTK(&bytes.Buffer{}, m, linalg.Uniform(3, 0), nil))
}

func TestExportTransientVTK(t *testing.T) {
	dir := t.TempDir()
	m := unitSquare(t, 2, 2)
	n := m.NodesCount()
	frames := []*mat.VecDense{linalg.Uniform(n, 1), linalg.Uniform(n, 2), linalg.Uniform(n, 3)}
	times := []float64{0, 0.1, 0.2}

	require.NoError(t, ExportTransientVTK(dir, "run", m, frames, times))
	for _, name := range []string{"run_0000.vtk", "run_0001.vtk", "run_0002.vtk", "run.pvd"} {
		assert.FileExists(t, filepath.Join(dir, name))
	}
	pvd, err := os.ReadFile(filepath.Join(dir, "run.pvd"))
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(string(pvd), "<DataSet "))
	assert.Contains(t, string(pvd), `timestep="0.1" file="run_0001.vtk"`)

	assert.Error(t, ExportTransientVTK(dir, "bad", m, frames, times[:2]))
}

func TestMatrixMarketRoundTrip(t *testing.T) {
	ts := linalg.NewTriplets(4)
	ts.Add(0, 0, 4)
	ts.Add(0, 1, -1.5)
	ts.Add(1, 0, -1.5)
	ts.Add(1, 1, 1e-7)
	h, err := linalg.FromTriplets(2, 2, ts)
	require.NoError(t, err)

	dir := t.TempDir()
	gm := model.GlobalMatrices{H: h, C: h.Scaled(2), P: mat.NewVecDense(2, []float64{1, -3})}
	require.NoError(t, ExportMatrixMarket(dir, gm))

	got, err := ImportMatrixMarket(dir)
	require.NoError(t, err)
	assert.True(t, got.H.Equal(h, 0))
	require.NotNil(t, got.C)
	assert.True(t, got.C.Equal(h.Scaled(2), 0))
	assert.Equal(t, []float64{1, -3}, got.P.RawVector().Data)
}

func TestImportWithoutCapacity(t *testing.T) {
	h, err := linalg.FromTriplets(1, 1, linalg.Triplets{{Row: 0, Col: 0, Value: 2}})
	require.NoError(t, err)
	dir := t.TempDir()
	require.NoError(t, ExportMatrixMarket(dir, model.GlobalMatrices{H: h, P: linalg.Uniform(1, 5)}))
	assert.NoFileExists(t, filepath.Join(dir, FileC))

	got, err := ImportMatrixMarket(dir)
	require.NoError(t, err)
	assert.False(t, got.HasCapacity())
}

func TestReadMatrixMarketErrors(t *testing.T) {
	for name, in := range map[string]string{
		"empty":         "",
		"banner":        "%%MatrixMarket matrix array real general\n1 1\n1\n",
		"count":         mmHeader + "\n2 2 2\n1 1 1.0\n",
		"bad entry":     mmHeader + "\n2 2 1\n1 x 1.0\n",
		"no size":       mmHeader + "\n% only a comment\n",
		"out of box":    mmHeader + "\n2 2 1\n3 1 1.0\n",
		"negative nnz":  mmHeader + "\n2 2 -1\n",
		"negative rows": mmHeader + "\n-3 2 0\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ReadMatrixMarket(strings.NewReader(in))
			assert.Error(t, err)
		})
	}
}

func TestReadVector(t *testing.T) {
	v, err := ReadVector(strings.NewReader("1\n\n2.5e1\n"))
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 25}, v.RawVector().Data)

	_, err = ReadVector(strings.NewReader("a\n"))
	assert.Error(t, err)
	_, err = ReadVector(strings.NewReader(""))
	assert.Error(t, err)
}

func sampleMetrics(withAssembly bool) FullMetrics {
	m := FullMetrics{
		SolverName: "cholesky",
		Solver: solver.Stats{
			FactorizationMs:  4,
			SolveMs:          6,
			TotalSolverMs:    10,
			TotalMs:          12,
			OverheadMs:       2,
			ResidualNorm:     1e-12,
			MatrixSize:       100,
			MatrixNonZeros:   460,
			LinearSolveCount: 3,
			Factorizations:   1,
		},
	}
	if withAssembly {
		m.Assembly = &assembler.AssemblyStats{TotalMs: 5, ElementAssemblyMs: 3, ElementCount: 81}
	}
	return m
}

func TestExportMetricsCSV(t *testing.T) {
	for _, withAssembly := range []bool{false, true} {
		path := filepath.Join(t.TempDir(), "out", "metrics.csv")
		require.NoError(t, ExportMetrics(path, sampleMetrics(withAssembly)))

		f, err := os.Open(path)
		require.NoError(t, err)
		recs, err := csv.NewReader(f).ReadAll()
		f.Close()
		require.NoError(t, err)
		require.Len(t, recs, 2)

		want := len(solverHeader)
		if withAssembly {
			want += len(assemblyHeader)
		}
		assert.Len(t, recs[0], want)
		assert.Len(t, recs[1], want)
		assert.Equal(t, "cholesky", recs[1][0])
		assert.Equal(t, StorageOrder, recs[1][1])
		assert.Equal(t, "100", recs[1][3])
		assert.Equal(t, "1.333", recs[1][5])
		assert.Equal(t, "2.000", recs[1][6])
	}
}

func TestExportMetricsJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.json")
	require.NoError(t, ExportMetrics(path, sampleMetrics(true)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "cholesky", out["solver"])
	assert.Contains(t, out, "solver_stats")
	assert.Contains(t, out, "assembly_stats")
}

func TestExportMetricsUnknownFormat(t *testing.T) {
	assert.Error(t, ExportMetrics(filepath.Join(t.TempDir(), "m.xml"), sampleMetrics(false)))
}

func TestPlots(t *testing.T) {
	dir := t.TempDir()
	m := unitSquare(t, 3, 3)
	n := m.NodesCount()
	field := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		field.SetVec(i, float64(i))
	}

	hist := filepath.Join(dir, "history.png")
	require.NoError(t, PlotHistory(hist, []float64{0, 1}, []*mat.VecDense{linalg.Uniform(n, 100), field}))
	st, err := os.Stat(hist)
	require.NoError(t, err)
	assert.Positive(t, st.Size())

	fieldPNG := filepath.Join(dir, "field.png")
	require.NoError(t, PlotField(fieldPNG, m, field))
	assert.FileExists(t, fieldPNG)

	assert.Error(t, PlotHistory(hist, []float64{0}, nil))
	assert.Error(t, PlotField(fieldPNG, m, linalg.Uniform(2, 0)))
}
