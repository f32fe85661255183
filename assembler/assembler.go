package assembler

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"heatfem/linalg"
	"heatfem/model"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// entriesPerQuad is the number of local (row, col) pairs of a 4-node quad.
const entriesPerQuad = 16

// ElementBuilder computes local matrices. Implementations must be safe for
// concurrent use.
type ElementBuilder interface {
	BuildQuadMatrices(mesh *model.Mesh, q model.Quad) (model.ElementMatrices, error)
	BuildLineBoundaryMatrices(mesh *model.Mesh, l model.Line) (model.BoundaryMatrices, error)
	BoundaryCondition() model.BoundaryCondition
}

type Options struct {
	// Workers is the size of the element pool, GOMAXPROCS when zero.
	Workers int
	// WithCapacity enables assembly of the capacity matrix C.
	WithCapacity bool
}

type BuildResult struct {
	Matrices model.GlobalMatrices
	Stats    AssemblyStats
}

type Assembler struct {
	mesh    *model.Mesh
	builder ElementBuilder
	opts    Options

	onDecile func(decile int)
}

func New(mesh *model.Mesh, builder ElementBuilder, opts Options) *Assembler {
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	return &Assembler{mesh: mesh, builder: builder, opts: opts}
}

// OnProgress registers fn to be called once per completed 10% of the
// element pass.
func (a *Assembler) OnProgress(fn func(decile int)) {
	a.onDecile = fn
}

// partial is the private accumulator of one worker.
type partial struct {
	h, c linalg.Triplets
	p    []float64
}

type failure struct {
	once sync.Once
	flag atomic.Bool
	id   int
	err  error
}

func (f *failure) set(id int, err error) {
	f.once.Do(func() {
		f.id, f.err = id, err
		f.flag.Store(true)
	})
}

// Build assembles H, P and, when requested, C. It either returns the complete
// system or an *Error.
func (a *Assembler) Build(ctx context.Context) (*BuildResult, error) {
	begin := time.Now()
	mesh := a.mesh
	n := mesh.NodesCount()
	quads := mesh.Quads()

	if n == 0 || len(quads) == 0 {
		return nil, &Error{Code: InvalidMesh, Err: fmt.Errorf("mesh has %d nodes and %d quads", n, len(quads))}
	}
	if err := mesh.Validate(); err != nil {
		return nil, &Error{Code: InvalidMesh, Err: err}
	}
	bc := a.builder.BoundaryCondition()
	lines, err := mesh.BoundaryLines(bc.PhysicalGroupName)
	if err != nil {
		return nil, &Error{Code: InvalidMesh, Err: err}
	}

	workers := min(a.opts.Workers, len(quads))
	log.WithFields(log.Fields{
		"nodes":    n,
		"quads":    len(quads),
		"boundary": len(lines),
		"workers":  workers,
		"capacity": a.opts.WithCapacity,
	}).Info("assembling global matrices")

	capacity := len(quads) * entriesPerQuad
	hTriplets := linalg.NewTriplets(capacity + len(lines)*4)
	var cTriplets linalg.Triplets
	if a.opts.WithCapacity {
		cTriplets = linalg.NewTriplets(capacity)
	}
	p := make([]float64, n)

	stats := AssemblyStats{
		ElementCount:  len(quads),
		BoundaryCount: len(lines),
		NodeCount:     n,
		Workers:       workers,
	}

	// element pass
	parts := make([]partial, workers)
	perWorker := capacity/workers + entriesPerQuad
	for w := range parts {
		parts[w].h = linalg.NewTriplets(perWorker)
		if a.opts.WithCapacity {
			parts[w].c = linalg.NewTriplets(perWorker)
		}
		parts[w].p = make([]float64, n)
	}

	var fail failure
	progress := newTracker("elements", len(quads))
	progress.onDecile = a.onDecile

	elapsed := newExecutor(workers).dispatch(len(quads), func(w int, t task) {
		part := &parts[w]
		var idx [4]int
		for i := t.start; i < t.end; i++ {
			if fail.flag.Load() || ctx.Err() != nil {
				return
			}
			q := quads[i]
			em, err := a.builder.BuildQuadMatrices(mesh, q)
			if err != nil {
				fail.set(q.ID, err)
				return
			}
			if err := localIndices(mesh, q.NodeIDs[:], idx[:]); err != nil {
				fail.set(q.ID, err)
				return
			}
			for r := 0; r < 4; r++ {
				for c := 0; c < 4; c++ {
					part.h.Add(idx[r], idx[c], em.H[r][c])
					if a.opts.WithCapacity {
						part.c.Add(idx[r], idx[c], em.C[r][c])
					}
				}
				part.p[idx[r]] += em.P[r]
			}
			progress.step()
		}
	})
	stats.ElementAssemblyMs = ms(elapsed)

	if fail.flag.Load() {
		log.WithFields(log.Fields{"element": fail.id, "error": fail.err}).Error("element assembly failed")
		return nil, &Error{Code: ElementFailed, ElementID: fail.id, Err: fail.err}
	}
	if err := ctx.Err(); err != nil {
		return nil, &Error{Code: Cancelled, Err: err}
	}

	// merge, one lock per destination
	mergeStart := time.Now()
	stats.WorkerTriplets = make([]int, workers)
	var tripletBytes int64
	for w, part := range parts {
		stats.WorkerTriplets[w] = len(part.h) + len(part.c)
		tripletBytes += int64(part.h.MemoryBytes() + part.c.MemoryBytes())
	}

	var hMu, cMu, pMu sync.Mutex
	var wg sync.WaitGroup
	for w := range parts {
		wg.Add(1)
		go func(part *partial) {
			defer wg.Done()
			hMu.Lock()
			hTriplets = append(hTriplets, part.h...)
			hMu.Unlock()

			if a.opts.WithCapacity {
				cMu.Lock()
				cTriplets = append(cTriplets, part.c...)
				cMu.Unlock()
			}

			pMu.Lock()
			floats.Add(p, part.p)
			pMu.Unlock()
		}(&parts[w])
	}
	wg.Wait()
	parts = nil
	stats.MergeMs = ms(time.Since(mergeStart))

	// boundary pass
	boundaryStart := time.Now()
	var idx [2]int
	for _, l := range lines {
		if err := ctx.Err(); err != nil {
			return nil, &Error{Code: Cancelled, Err: err}
		}
		bm, err := a.builder.BuildLineBoundaryMatrices(mesh, l)
		if err == nil {
			err = localIndices(mesh, l.NodeIDs[:], idx[:])
		}
		if err != nil {
			log.WithFields(log.Fields{"line": l.ID, "error": err}).Error("boundary assembly failed")
			return nil, &Error{Code: BoundaryFailed, ElementID: l.ID, Err: err}
		}
		for r := 0; r < 2; r++ {
			for c := 0; c < 2; c++ {
				hTriplets.Add(idx[r], idx[c], bm.H[r][c])
			}
			p[idx[r]] += bm.P[r]
		}
	}
	stats.BoundaryAssemblyMs = ms(time.Since(boundaryStart))

	stats.TripletCountH = len(hTriplets)
	stats.TripletCountC = len(cTriplets)
	stats.TripletsMemoryBytes = tripletBytes + int64(hTriplets.MemoryBytes()+cTriplets.MemoryBytes())

	// compression
	convStart := time.Now()
	h, err := linalg.FromTriplets(n, n, hTriplets)
	if err != nil {
		return nil, &Error{Code: InvalidMesh, Err: err}
	}
	gm := model.GlobalMatrices{H: h, P: mat.NewVecDense(n, p)}
	stats.NonZerosH = h.NNZ()
	stats.SparseMemoryBytes = int64(h.MemoryBytes())
	if a.opts.WithCapacity {
		c, err := linalg.FromTriplets(n, n, cTriplets)
		if err != nil {
			return nil, &Error{Code: InvalidMesh, Err: err}
		}
		gm.C = c
		stats.NonZerosC = c.NNZ()
		stats.SparseMemoryBytes += int64(c.MemoryBytes())
	}
	stats.ConversionMs = ms(time.Since(convStart))
	stats.TotalMs = ms(time.Since(begin))

	log.WithFields(log.Fields{
		"size":       n,
		"nnz":        h.NNZ(),
		"fill_ratio": float64(h.NNZ()) / (float64(n) * float64(n)),
		"total_ms":   stats.TotalMs,
	}).Info("global matrices assembled")

	return &BuildResult{Matrices: gm, Stats: stats}, nil
}

func localIndices(mesh *model.Mesh, ids []int, dst []int) error {
	for i, id := range ids {
		local, err := mesh.NodeLocalID(id)
		if err != nil {
			return err
		}
		dst[i] = local
	}
	return nil
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// IsCancelled reports whether err is an assembly error caused by context
// cancellation.
func IsCancelled(err error) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Code == Cancelled
}
