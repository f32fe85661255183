package assembler

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"slices"
	"sync"
	"testing"

	"heatfem/element"
	"heatfem/mesh"
	"heatfem/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var steel = model.Material{Name: "steel", Conductivity: 25, Density: 7800, SpecificHeat: 700}

func newBuilder(t testing.TB, bc model.BoundaryCondition) *element.Builder {
	b, err := element.NewBuilder(steel, bc, element.DefaultOptions())
	require.NoError(t, err)
	return b
}

func build(t testing.TB, m *model.Mesh, bc model.BoundaryCondition, opts Options) *BuildResult {
	res, err := New(m, newBuilder(t, bc), opts).Build(context.Background())
	require.NoError(t, err)
	return res
}

func reversedQuads(m *model.Mesh) *model.Mesh {
	r := model.NewMesh(m.NodesCount(), len(m.Quads()), len(m.Lines()))
	for _, n := range m.Nodes() {
		r.AddNode(n)
	}
	quads := slices.Clone(m.Quads())
	slices.Reverse(quads)
	for _, q := range quads {
		r.AddQuad(q)
	}
	for _, l := range m.Lines() {
		r.AddLine(l)
	}
	for _, g := range m.PhysicalGroups() {
		r.AddPhysicalGroup(g)
	}
	return r
}

func TestBuild_Symmetric(t *testing.T) {
	m, err := mesh.GenerateRectangle(0.4, 0.3, 8, 6)
	require.NoError(t, err)
	res := build(t, m, model.ConvectionBC(mesh.GroupLeft, 1200, 300), Options{WithCapacity: true})

	gm := res.Matrices
	r, c := gm.H.Dims()
	assert.Equal(t, 63, r)
	assert.Equal(t, 63, c)
	assert.True(t, gm.H.IsSymmetric(1e-12))
	assert.True(t, gm.C.IsSymmetric(1e-12))
	assert.Equal(t, 63, gm.P.Len())
}

func TestBuild_CapacityPositiveDefinite(t *testing.T) {
	m, _ := mesh.GenerateRectangle(1, 1, 5, 5)
	res := build(t, m, model.ConvectionBC(mesh.GroupAll, 10, 20), Options{WithCapacity: true})
	gm := res.Matrices

	for _, d := range gm.C.Diagonal() {
		assert.Greater(t, d, 0.0)
	}

	var chol mat.Cholesky
	assert.True(t, chol.Factorize(gm.C.ToSymDense()))

	rng := rand.New(rand.NewPCG(1, 2))
	n := gm.C.Diagonal()
	x := make([]float64, len(n))
	y := make([]float64, len(n))
	for trial := 0; trial < 20; trial++ {
		for i := range x {
			x[i] = rng.Float64()*2 - 1
		}
		gm.C.MulVecTo(y, x)
		assert.Greater(t, floats.Dot(x, y), 0.0)
	}

	// the capacity matrix integrates rho*c over the domain
	var total float64
	gm.C.DoNonZero(func(_, _ int, v float64) { total += v })
	assert.InDelta(t, steel.VolumetricHeatCapacity(), total, 1e-3)
}

func TestBuild_OrderIndependent(t *testing.T) {
	m, _ := mesh.GenerateRectangle(2, 1, 10, 5)
	bc := model.ConvectionBC(mesh.GroupTop, 50, 300)
	a := build(t, m, bc, Options{WithCapacity: true, Workers: 4}).Matrices
	b := build(t, reversedQuads(m), bc, Options{WithCapacity: true, Workers: 3}).Matrices

	assert.True(t, a.H.Equal(b.H, 1e-12))
	assert.True(t, a.C.Equal(b.C, 1e-12))
	assert.True(t, mat.EqualApprox(a.P, b.P, 1e-9))
}

func TestBuild_WorkerCountIndependent(t *testing.T) {
	m, _ := mesh.GenerateRectangle(1, 1, 7, 7)
	bc := model.ConvectionBC(mesh.GroupAll, 25, 100)
	ref := build(t, m, bc, Options{Workers: 1}).Matrices
	for _, w := range []int{2, 5, 16, 100} {
		got := build(t, m, bc, Options{Workers: w}).Matrices
		assert.True(t, ref.H.Equal(got.H, 1e-12), "workers %d", w)
		assert.True(t, mat.EqualApprox(ref.P, got.P, 1e-9), "workers %d", w)
	}
}

func TestBuild_FluxKeepsConductionRowSums(t *testing.T) {
	m, _ := mesh.GenerateRectangle(1, 2, 3, 6)
	q := 100.0
	bc := model.BoundaryCondition{PhysicalGroupName: mesh.GroupBottom, Type: model.Flux, HeatFlux: &q}
	res := build(t, m, bc, Options{})

	n, _ := res.Matrices.H.Dims()
	ones := make([]float64, n)
	for i := range ones {
		ones[i] = 1
	}
	rowSums := make([]float64, n)
	res.Matrices.H.MulVecTo(rowSums, ones)
	for _, s := range rowSums {
		assert.InDelta(t, 0, s, 1e-10)
	}
	// total injected heat is q times the bottom edge length
	assert.InDelta(t, 100.0, mat.Sum(res.Matrices.P), 1e-9)
	assert.Nil(t, res.Matrices.C)
	assert.False(t, res.Matrices.HasCapacity())
}

func TestBuild_MissingGroupUsesAllLines(t *testing.T) {
	m, _ := mesh.GenerateRectangle(1, 1, 2, 2)
	res := build(t, m, model.ConvectionBC("no-such-group", 1, 1), Options{})
	assert.Equal(t, len(m.Lines()), res.Stats.BoundaryCount)
	// alpha*T over the full perimeter
	assert.InDelta(t, 4.0, mat.Sum(res.Matrices.P), 1e-12)
}

func TestBuild_Stats(t *testing.T) {
	m, _ := mesh.GenerateRectangle(1, 1, 4, 4)
	res := build(t, m, model.ConvectionBC(mesh.GroupRight, 10, 300), Options{WithCapacity: true, Workers: 2})
	s := res.Stats

	assert.Equal(t, 16, s.ElementCount)
	assert.Equal(t, 4, s.BoundaryCount)
	assert.Equal(t, 25, s.NodeCount)
	assert.Equal(t, 2, s.Workers)
	assert.Equal(t, 16*16+4*4, s.TripletCountH)
	assert.Equal(t, 16*16, s.TripletCountC)
	assert.Equal(t, 2*16*16, s.WorkerTriplets[0]+s.WorkerTriplets[1])
	assert.Equal(t, res.Matrices.H.NNZ(), s.NonZerosH)
	assert.Equal(t, res.Matrices.C.NNZ(), s.NonZerosC)
	assert.Greater(t, s.TripletsMemoryBytes, int64(0))
	assert.Greater(t, s.SparseMemoryBytes, int64(0))
	assert.GreaterOrEqual(t, s.TotalMs, s.ElementAssemblyMs)
}

func TestAssemblyStats_ZeroDenominators(t *testing.T) {
	var s AssemblyStats
	assert.Zero(t, s.OverheadPercent())
	assert.Zero(t, s.ElementsPerSecond())
	assert.Zero(t, s.BoundaryElementsPerSecond())
	assert.Zero(t, s.TripletsMemoryMB())

	s = AssemblyStats{ElementAssemblyMs: 500, BoundaryAssemblyMs: 100, TotalMs: 1000, ElementCount: 1000, BoundaryCount: 50}
	assert.Equal(t, 600.0, s.ComputationTimeMs())
	assert.Equal(t, 400.0, s.OverheadMs())
	assert.Equal(t, 40.0, s.OverheadPercent())
	assert.Equal(t, 2000.0, s.ElementsPerSecond())
	assert.Equal(t, 500.0, s.BoundaryElementsPerSecond())
	assert.False(t, math.IsNaN(s.SparseMatrixMemoryMB()))
}

func TestBuild_DegenerateElementFails(t *testing.T) {
	m, _ := mesh.GenerateRectangle(1, 1, 3, 3)
	broken := model.NewMesh(m.NodesCount(), len(m.Quads()), len(m.Lines()))
	for _, n := range m.Nodes() {
		broken.AddNode(n)
	}
	for i, q := range m.Quads() {
		if i == 4 {
			q.NodeIDs[1], q.NodeIDs[3] = q.NodeIDs[3], q.NodeIDs[1]
		}
		broken.AddQuad(q)
	}

	_, err := New(broken, newBuilder(t, model.ConvectionBC("", 1, 1)), Options{Workers: 4}).Build(context.Background())
	var ae *Error
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, ElementFailed, ae.Code)
	assert.Equal(t, 5, ae.ElementID)

	var ee *element.Error
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, element.DegenerateElement, ee.Code)
}

func TestBuild_MissingBoundaryValueFails(t *testing.T) {
	m, _ := mesh.GenerateRectangle(1, 1, 2, 2)
	bc := model.BoundaryCondition{PhysicalGroupName: mesh.GroupTop, Type: model.Convection}
	_, err := New(m, newBuilder(t, bc), Options{}).Build(context.Background())
	var ae *Error
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, BoundaryFailed, ae.Code)

	var ee *element.Error
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, element.MissingBoundaryValue, ee.Code)
}

func TestBuild_InvalidMesh(t *testing.T) {
	_, err := New(model.NewMesh(0, 0, 0), newBuilder(t, model.ConvectionBC("", 1, 1)), Options{}).Build(context.Background())
	var ae *Error
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, InvalidMesh, ae.Code)

	m := model.NewMesh(3, 1, 0)
	m.AddNode(model.Node{ID: 1})
	m.AddNode(model.Node{ID: 2, X: 1})
	m.AddNode(model.Node{ID: 3, X: 1, Y: 1})
	m.AddQuad(model.Quad{ID: 1, NodeIDs: [4]int{1, 2, 3, 4}})
	_, err = New(m, newBuilder(t, model.ConvectionBC("", 1, 1)), Options{}).Build(context.Background())
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, InvalidMesh, ae.Code)
}

func TestBuild_Cancelled(t *testing.T) {
	m, _ := mesh.GenerateRectangle(1, 1, 10, 10)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(m, newBuilder(t, model.ConvectionBC("", 1, 1)), Options{}).Build(ctx)
	assert.True(t, IsCancelled(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuild_ReportsEveryDecileOnce(t *testing.T) {
	m, _ := mesh.GenerateRectangle(1, 1, 20, 10)
	a := New(m, newBuilder(t, model.ConvectionBC("", 1, 1)), Options{Workers: 1})
	var got []int
	a.OnProgress(func(d int) { got = append(got, d) })
	_, err := a.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, got)
}

func TestTracker_ConcurrentNoDuplicates(t *testing.T) {
	tr := newTracker("test", 10000)
	var mu sync.Mutex
	seen := map[int]int{}
	tr.onDecile = func(d int) {
		mu.Lock()
		seen[d]++
		mu.Unlock()
	}

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1250; i++ {
				tr.step()
			}
		}()
	}
	wg.Wait()

	for d, n := range seen {
		assert.Equal(t, 1, n, "decile %d", d)
	}
	assert.Len(t, seen, 10)
}

func TestTracker_ReportsEveryDecileForSmallTotals(t *testing.T) {
	for _, total := range []int{1, 3, 7, 13} {
		tr := newTracker("test", total)
		var got []int
		tr.onDecile = func(d int) { got = append(got, d) }
		for i := 0; i < total; i++ {
			tr.step()
		}
		assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, got, "total %d", total)
	}
}

func TestExecutor_SplitCoversRange(t *testing.T) {
	for workers := 1; workers <= 8; workers++ {
		e := newExecutor(workers)
		for total := 0; total <= 50; total++ {
			covered := make([]int, total)
			for _, tk := range e.split(total) {
				require.Less(t, tk.start, tk.end)
				for i := tk.start; i < tk.end; i++ {
					covered[i]++
				}
			}
			for i, c := range covered {
				require.Equal(t, 1, c, "workers %d total %d index %d", workers, total, i)
			}
		}
	}
}

func TestExecutor_DispatchUsesWorkerIndex(t *testing.T) {
	e := newExecutor(4)
	counts := make([]int, 4)
	hits := make([]int, 103)
	e.dispatch(len(hits), func(w int, tk task) {
		for i := tk.start; i < tk.end; i++ {
			counts[w]++
			hits[i]++
		}
	})
	sum := 0
	for _, c := range counts {
		sum += c
	}
	assert.Equal(t, 103, sum)
	for _, h := range hits {
		assert.Equal(t, 1, h)
	}
}

func BenchmarkBuild(b *testing.B) {
	m, _ := mesh.GenerateRectangle(1, 1, 100, 100)
	builder := newBuilder(b, model.ConvectionBC(mesh.GroupAll, 100, 300))
	for i := 0; i < b.N; i++ {
		if _, err := New(m, builder, Options{WithCapacity: true}).Build(context.Background()); err != nil {
			b.Fatal(err)
		}
	}
}
