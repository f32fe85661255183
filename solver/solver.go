package solver

import (
	"context"
	"fmt"
	"math"
	"time"

	"heatfem/linalg"
	"heatfem/metrics"
	"heatfem/model"
	"heatfem/solver/linear"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// progressEvery is the step interval of transient progress logs.
const progressEvery = 100

// Observer receives the state of a transient run as it advances. The vectors
// passed in must not be retained without copying.
type Observer interface {
	OnStep(step, numSteps int, time float64, t *mat.VecDense)
	OnSnapshot(index int, time float64, t *mat.VecDense)
}

type Config struct {
	ProblemType  model.ProblemType
	LinearSolver linear.Type
	Transient    *model.TransientConfig
	Observer     Observer
}

// Solve runs a steady or transient analysis on the assembled system.
// C may be nil for steady problems.
func Solve(ctx context.Context, h, c *linalg.Matrix, p *mat.VecDense, cfg Config) (*Result, error) {
	switch cfg.ProblemType {
	case model.Steady:
		return solveSteady(h, p, cfg.LinearSolver)
	case model.Transient:
		if cfg.Transient == nil {
			return nil, invalidInput("transient config is required for transient problems")
		}
		return solveTransient(ctx, h, c, p, *cfg.Transient, cfg)
	}
	return nil, invalidInput("unknown problem type")
}

func solveSteady(h *linalg.Matrix, p *mat.VecDense, solverType linear.Type) (*Result, error) {
	log.Info("solving steady-state problem")

	if h == nil || p == nil {
		return nil, invalidInput("matrix H and vector P are required")
	}
	r, cols := h.Dims()
	if r != cols {
		return nil, invalidInput("matrix H must be square")
	}
	if r != p.Len() {
		return nil, invalidInput(fmt.Sprintf("matrix H size (%d) doesn't match vector P size (%d)", r, p.Len()))
	}

	ls, err := linear.New(solverType)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	x, lstats, err := ls.Solve(h, p)
	if err != nil {
		return nil, err
	}
	totalMs := since(start)

	stats := FromLinearStats(lstats, totalMs)
	stats.MinTemperature, stats.MaxTemperature = temperatureRange(x)

	log.WithFields(log.Fields{
		"factorization_ms": round2(stats.FactorizationMs),
		"solve_ms":         round2(stats.SolveMs),
		"solver_ms":        round2(stats.TotalSolverMs),
		"overhead_ms":      round2(stats.OverheadMs),
		"memory_mb":        round2(stats.MemoryUsedMB()),
		"peak_mb":          round2(stats.PeakMemoryMB()),
		"residual":         stats.ResidualNorm,
		"t_min":            round2(stats.MinTemperature),
		"t_max":            round2(stats.MaxTemperature),
	}).Info("steady analysis complete")

	return &Result{steady: &SteadySolution{Solution: x}, Stats: stats}, nil
}

func validateTransient(h, c *linalg.Matrix, p *mat.VecDense, tc model.TransientConfig) error {
	if h == nil || c == nil || p == nil {
		return invalidInput("matrices H, C and vector P are required")
	}
	hr, hc := h.Dims()
	cr, cc := c.Dims()
	if hr != hc || cr != cc {
		return invalidInput("matrices H and C must be square")
	}
	if hr != cr {
		return invalidInput(fmt.Sprintf("matrices H (%d) and C (%d) must have same dimensions", hr, cr))
	}
	if hr != p.Len() {
		return invalidInput(fmt.Sprintf("matrix size (%d) doesn't match vector P size (%d)", hr, p.Len()))
	}
	if !(tc.TimeStep > 0) || !(tc.TotalTime > 0) {
		return invalidInput("time step and total time must be positive")
	}
	if tc.SaveHistory && tc.SaveStride <= 0 {
		return invalidInput("save stride must be positive when history is saved")
	}
	return nil
}

func solveTransient(ctx context.Context, h, c *linalg.Matrix, p *mat.VecDense, tc model.TransientConfig, cfg Config) (*Result, error) {
	log.Info("solving transient problem")
	if err := validateTransient(h, c, p, tc); err != nil {
		return nil, err
	}

	ls, err := linear.New(cfg.LinearSolver)
	if err != nil {
		return nil, err
	}

	n := p.Len()
	dt := tc.TimeStep
	numSteps := tc.NumSteps()

	log.WithFields(log.Fields{
		"total_time":   tc.TotalTime,
		"time_step":    dt,
		"steps":        numSteps,
		"nodes":        n,
		"initial_temp": tc.InitialTemperature,
		"solver":       ls.Name(),
	}).Info("transient configuration")
	if numSteps == 0 {
		log.Warn("total time is shorter than one time step, nothing to integrate")
	}

	memBefore := metrics.CurrentUsage()
	start := time.Now()

	// A = H + C/dt does not change between steps, factorize it once.
	a, err := linalg.AddScaled(h, c, 1/dt)
	if err != nil {
		return nil, invalidInput(err.Error())
	}
	fact, fstats, err := ls.Factorize(a)
	if err != nil {
		return nil, err
	}
	setupMs := since(start)

	stats := Stats{
		FactorizationMs:  fstats.FactorizationMs,
		TotalSolverMs:    fstats.ElapsedMs,
		SetupMs:          setupMs - fstats.FactorizationMs,
		MatrixSize:       n,
		MatrixNonZeros:   a.NNZ(),
		LinearSolveCount: numSteps,
		Factorizations:   1,
		MinResidual:      math.MaxFloat64,
	}

	current := linalg.Uniform(n, tc.InitialTemperature)
	sol := &TransientSolution{SaveStride: tc.SaveStride, NumSteps: numSteps}
	snapshot := func(t float64) {
		sol.History = append(sol.History, mat.VecDenseCopyOf(current))
		sol.Times = append(sol.Times, t)
		if cfg.Observer != nil {
			cfg.Observer.OnSnapshot(len(sol.History)-1, t, current)
		}
	}
	if tc.SaveHistory {
		snapshot(0)
	}

	pData := p.RawVector().Data
	if p.RawVector().Inc != 1 {
		pData = mat.Col(nil, 0, p)
	}
	cT := make([]float64, n)
	b := mat.NewVecDense(n, nil)

	for step := 0; step < numSteps; step++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("transient solve stopped at step %d: %w", step, err)
		}

		// b = P + (C/dt) * T
		c.MulVecTo(cT, current.RawVector().Data)
		floats.AddScaledTo(b.RawVector().Data, pData, 1/dt, cT)

		next, sstats, err := fact.Solve(b)
		if err != nil {
			log.WithFields(log.Fields{"step": step + 1, "error": err}).Error("transient step failed")
			return nil, err
		}

		stats.TotalSolverMs += sstats.ElapsedMs
		stats.SolveMs += sstats.SolveMs
		stats.ResidualNorm = sstats.ResidualNorm
		stats.MinResidual = math.Min(stats.MinResidual, sstats.ResidualNorm)
		stats.MaxResidual = math.Max(stats.MaxResidual, sstats.ResidualNorm)
		current = next

		t := float64(step+1) * dt
		if cfg.Observer != nil {
			cfg.Observer.OnStep(step+1, numSteps, t, current)
		}
		if step%progressEvery == 0 || step == numSteps-1 {
			tMin, tMax := temperatureRange(current)
			log.WithFields(log.Fields{
				"progress": fmt.Sprintf("%.1f%%", 100*float64(step+1)/float64(numSteps)),
				"step":     fmt.Sprintf("%d/%d", step+1, numSteps),
			}).Info("solving")
			log.WithFields(log.Fields{
				"time":     t,
				"solve_ms": sstats.ElapsedMs,
				"residual": sstats.ResidualNorm,
				"t_min":    tMin,
				"t_max":    tMax,
			}).Trace("step done")
		}
		if tc.SaveHistory && (step%tc.SaveStride == 0 || step == numSteps-1) {
			snapshot(t)
		}
	}
	if numSteps == 0 {
		stats.MinResidual = 0
	}

	stats.TotalMs = since(start)
	stats.OverheadMs = stats.TotalMs - stats.TotalSolverMs
	stats.MemoryUsedBytes = metrics.Delta(memBefore, metrics.CurrentUsage())
	stats.PeakMemoryBytes = metrics.PeakUsage()
	stats.MinTemperature, stats.MaxTemperature = temperatureRange(current)
	sol.FinalSolution = current

	log.WithFields(log.Fields{
		"wall_s":            round2(stats.TotalMs / 1000),
		"solver_s":          round2(stats.TotalSolverMs / 1000),
		"avg_factorization": round2(stats.AvgFactorizationMs()),
		"avg_solve_ms":      round2(stats.AvgSolveMs()),
		"avg_step_ms":       round2(stats.AvgPerStepMs()),
		"memory_mb":         round2(stats.MemoryUsedMB()),
		"peak_mb":           round2(stats.PeakMemoryMB()),
		"residual_range":    fmt.Sprintf("[%.2e, %.2e]", stats.MinResidual, stats.MaxResidual),
		"final_t_min":       round2(stats.MinTemperature),
		"final_t_max":       round2(stats.MaxTemperature),
		"history_snapshots": len(sol.History),
	}).Info("transient analysis complete")

	return &Result{transient: sol, Stats: stats}, nil
}

func temperatureRange(v *mat.VecDense) (float64, float64) {
	data := mat.Col(nil, 0, v)
	if len(data) == 0 {
		return 0, 0
	}
	return floats.Min(data), floats.Max(data)
}

func since(t time.Time) float64 {
	return float64(time.Since(t)) / float64(time.Millisecond)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
