package app

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"heatfem/assembler"
	"heatfem/cache"
	"heatfem/config"
	"heatfem/element"
	"heatfem/export"
	"heatfem/mesh"
	"heatfem/model"
	"heatfem/server"
	"heatfem/solver"
	"heatfem/solver/linear"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// Output names inside the output directory.
const (
	steadyVTK    = "solution.vtk"
	finalVTK     = "solution_final.vtk"
	seriesDir    = "transient"
	seriesBase   = "solution"
	historyPlot  = "history.png"
	fieldPlot    = "field.png"
	upgradeBytes = 1024
)

// Initialize configures the global logger.
func Initialize(level string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	log.SetLevel(lvl)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	return nil
}

type Application struct {
	opts     Options
	settings config.Settings
}

func New(opts Options) *Application {
	return &Application{opts: opts}
}

// Settings returns the effective settings after Execute has loaded them.
func (a *Application) Settings() config.Settings { return a.settings }

// Execute runs the whole pipeline and reports how it ended.
func (a *Application) Execute(ctx context.Context) ExitCode {
	settings, err := config.LoadSettings(a.opts.SettingsPath)
	if err != nil {
		log.WithError(err).Error("failed to load settings")
		return ConfigError
	}
	a.opts.apply(&settings)
	if err := settings.Validate(); err != nil {
		log.WithError(err).Error("invalid settings")
		return CliError
	}
	a.settings = settings
	if err := Initialize(settings.LogLevel); err != nil {
		log.WithError(err).Error("invalid log level")
		return CliError
	}

	if a.opts.Serve {
		return a.serve(ctx)
	}
	if a.opts.ConfigPath == "" {
		log.Error("a problem configuration is required, use -config")
		return CliError
	}
	return a.run(ctx)
}

func (a *Application) serve(ctx context.Context) ExitCode {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  upgradeBytes,
		WriteBufferSize: upgradeBytes,
		// snapshot frames are full float fields, let clients negotiate deflate
		EnableCompression: true,
		CheckOrigin:       func(r *http.Request) bool { return true },
	}
	s := server.NewServer(a.settings.ServerAddr, upgrader, a.settings)
	if err := s.Serve(ctx); err != nil {
		log.WithError(err).Error("server failed")
		return CliError
	}
	return Success
}

func (a *Application) run(ctx context.Context) ExitCode {
	s := a.settings
	start := time.Now()

	pc, err := config.LoadProblem(a.opts.ConfigPath)
	if err != nil {
		log.WithError(err).Error("failed to load problem configuration")
		return ConfigError
	}
	lt, err := linear.ParseType(s.LinearSolver)
	if err != nil {
		log.WithError(err).Error("invalid linear solver")
		return ConfigError
	}
	log.WithFields(log.Fields{
		"config":   a.opts.ConfigPath,
		"mesh":     pc.MeshPath,
		"problem":  pc.ProblemType,
		"material": pc.Material.Name,
		"boundary": pc.BoundaryCondition.PhysicalGroupName,
		"solver":   lt,
		"threads":  s.Threads,
	}).Info("starting analysis")

	m, err := mesh.LoadMesh(ctx, pc.MeshPath)
	if err != nil {
		log.WithError(err).Error("failed to load mesh")
		return MeshError
	}

	gm, assembly, code := a.matrices(ctx, m, pc)
	if code != Success {
		return code
	}

	if s.MtxDir != "" {
		if err := export.ExportMatrixMarket(s.MtxDir, gm); err != nil {
			log.WithError(err).Error("failed to export matrices")
			return CacheError
		}
	}
	if a.opts.BuildOnly {
		log.Info("build only, skipping solve")
		return Success
	}

	res, err := solver.Solve(ctx, gm.H, gm.C, gm.P, solver.Config{
		ProblemType:  pc.ProblemType,
		LinearSolver: lt,
		Transient:    pc.Transient,
	})
	if err != nil {
		logFailure(err, "solve failed")
		return SolverError
	}

	if s.MetricsPath != "" {
		fm := export.FullMetrics{SolverName: lt.String(), Solver: res.Stats, Assembly: assembly}
		if err := export.ExportMetrics(s.MetricsPath, fm); err != nil {
			log.WithError(err).Error("failed to export metrics")
			return MetricsExportError
		}
	}
	if s.VTK {
		if err := a.exportVTK(m, res); err != nil {
			log.WithError(err).Error("failed to export VTK")
			return VTKExportError
		}
	}
	if s.Plot {
		if err := a.plot(m, res); err != nil {
			log.WithError(err).Error("failed to plot")
			return PlotExportError
		}
	}

	log.WithField("elapsed", time.Since(start).Round(time.Millisecond)).Info("analysis finished")
	return Success
}

// matrices loads the system from the cache or assembles it. The assembly
// stats are nil on a cache hit.
func (a *Application) matrices(ctx context.Context, m *model.Mesh, pc *config.ProblemConfig) (model.GlobalMatrices, *assembler.AssemblyStats, ExitCode) {
	s := a.settings
	var key string
	if s.CacheEnabled {
		var err error
		key, err = cache.Key(pc.MeshPath, a.opts.ConfigPath,
			"quad="+strconv.Itoa(s.QuadOrder), "line="+strconv.Itoa(s.LineOrder))
		if err != nil {
			log.WithError(err).Error("failed to compute cache key")
			return model.GlobalMatrices{}, nil, CacheError
		}
		gm, ok, err := cache.Load(s.CacheRoot, key)
		if err != nil {
			log.WithError(err).Error("failed to read cache")
			return model.GlobalMatrices{}, nil, CacheError
		}
		if ok {
			return gm, nil, Success
		}
	}

	b, err := element.NewBuilder(pc.Material, pc.BoundaryCondition, element.Options{
		QuadOrder: s.QuadOrder,
		LineOrder: s.LineOrder,
	})
	if err != nil {
		log.WithError(err).Error("failed to create element builder")
		return model.GlobalMatrices{}, nil, DomainError
	}
	built, err := assembler.New(m, b, assembler.Options{
		Workers:      s.Threads,
		WithCapacity: pc.ProblemType == model.Transient,
	}).Build(ctx)
	if err != nil {
		logFailure(err, "assembly failed")
		return model.GlobalMatrices{}, nil, DomainError
	}

	if s.CacheEnabled {
		if err := cache.Save(s.CacheRoot, key, pc.MeshPath, built.Matrices); err != nil {
			log.WithError(err).Error("failed to write cache")
			return model.GlobalMatrices{}, nil, CacheError
		}
	}
	return built.Matrices, &built.Stats, Success
}

func (a *Application) exportVTK(m *model.Mesh, res *solver.Result) error {
	dir := a.settings.OutputDir
	if res.IsSteady() {
		return export.ExportSteadyVTK(filepath.Join(dir, steadyVTK), m, res.Steady().Solution)
	}
	tr := res.Transient()
	if len(tr.History) == 0 {
		return export.ExportSteadyVTK(filepath.Join(dir, finalVTK), m, tr.FinalSolution)
	}
	return export.ExportTransientVTK(filepath.Join(dir, seriesDir), seriesBase, m, tr.History, tr.Times)
}

func (a *Application) plot(m *model.Mesh, res *solver.Result) error {
	dir := a.settings.OutputDir
	if !res.IsSteady() {
		if tr := res.Transient(); len(tr.History) > 0 {
			if err := export.PlotHistory(filepath.Join(dir, historyPlot), tr.Times, tr.History); err != nil {
				return err
			}
		}
	}
	return export.PlotField(filepath.Join(dir, fieldPlot), m, res.FinalSolution())
}

// IsInterrupted reports whether err came from a cancelled context.
func IsInterrupted(err error) bool {
	return errors.Is(err, context.Canceled) || assembler.IsCancelled(err)
}

func logFailure(err error, msg string) {
	if IsInterrupted(err) {
		log.WithError(err).Warn("interrupted")
		return
	}
	log.WithError(err).Error(msg)
}
