package app

// ExitCode is the process status of one run.
type ExitCode int

const (
	Success ExitCode = iota
	CliError
	ConfigError
	MeshError
	DomainError
	SolverError
	MetricsExportError
	VTKExportError
	PlotExportError
	CacheError
)

var exitNames = [...]string{
	Success:            "success",
	CliError:           "command line error",
	ConfigError:        "configuration error",
	MeshError:          "mesh error",
	DomainError:        "assembly error",
	SolverError:        "solver error",
	MetricsExportError: "metrics export error",
	VTKExportError:     "VTK export error",
	PlotExportError:    "plot export error",
	CacheError:         "matrix storage error",
}

func (c ExitCode) String() string {
	if c < 0 || int(c) >= len(exitNames) {
		return "unknown"
	}
	return exitNames[c]
}
