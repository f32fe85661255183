package app

import "heatfem/config"

// Options are the command line inputs. Zero values leave the corresponding
// setting untouched.
type Options struct {
	ConfigPath   string
	SettingsPath string

	Solver      string
	Threads     int
	LogLevel    string
	MetricsPath string
	VTK         bool
	Plot        bool
	ExportMtx   string
	BuildOnly   bool
	Cache       bool
	Serve       bool
}

func (o Options) apply(s *config.Settings) {
	if o.Solver != "" {
		s.LinearSolver = o.Solver
	}
	if o.Threads > 0 {
		s.Threads = o.Threads
	}
	if o.LogLevel != "" {
		s.LogLevel = o.LogLevel
	}
	if o.MetricsPath != "" {
		s.MetricsPath = o.MetricsPath
	}
	if o.VTK {
		s.VTK = true
	}
	if o.Plot {
		s.Plot = true
	}
	if o.ExportMtx != "" {
		s.MtxDir = o.ExportMtx
	}
	if o.Cache {
		s.CacheEnabled = true
	}
}
