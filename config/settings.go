package config

import (
	"errors"
	"io/fs"
	"os"
	"runtime"

	log "github.com/sirupsen/logrus"
	"gopkg.in/ini.v1"
)

// Settings are the application level options read from an INI file.
type Settings struct {
	LogLevel string
	Threads  int

	LinearSolver string

	QuadOrder int
	LineOrder int

	OutputDir   string
	VTK         bool
	MetricsPath string
	Plot        bool
	MtxDir      string

	CacheEnabled bool
	CacheRoot    string

	ServerAddr  string
	FrameBuffer int
}

// DefaultSettings are the values used for keys absent from the file.
func DefaultSettings() Settings {
	return loadSettings(ini.Empty())
}

// LoadSettings reads path. A missing file yields the defaults.
func LoadSettings(path string) (Settings, error) {
	if path == "" {
		return DefaultSettings(), nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		log.WithField("path", path).Warn("settings file not found, using defaults")
		return DefaultSettings(), nil
	}
	file, err := ini.Load(path)
	if err != nil {
		return Settings{}, newError(ParserError, "failed to read settings %s: %v", path, err)
	}
	s := loadSettings(file)
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func loadSettings(file *ini.File) Settings {
	app := file.Section("app")
	solver := file.Section("solver")
	integration := file.Section("integration")
	output := file.Section("output")
	cache := file.Section("cache")
	server := file.Section("server")

	return Settings{
		LogLevel: app.Key("log_level").MustString("info"),
		Threads:  app.Key("threads").MustInt(runtime.GOMAXPROCS(0)),

		LinearSolver: solver.Key("linear_solver").MustString("cholesky"),

		QuadOrder: integration.Key("quad_order").MustInt(3),
		LineOrder: integration.Key("line_order").MustInt(2),

		OutputDir:   output.Key("dir").MustString("output"),
		VTK:         output.Key("vtk").MustBool(true),
		MetricsPath: output.Key("metrics").MustString(""),
		Plot:        output.Key("plot").MustBool(false),
		MtxDir:      output.Key("mtx_dir").MustString(""),

		CacheEnabled: cache.Key("enabled").MustBool(false),
		CacheRoot:    cache.Key("root").MustString(".cache"),

		ServerAddr:  server.Key("addr").MustString("localhost:8000"),
		FrameBuffer: server.Key("frame_buffer").MustInt(64),
	}
}

func (s Settings) Validate() error {
	if _, err := log.ParseLevel(s.LogLevel); err != nil {
		return newError(InvalidValue, "log_level: %v", err)
	}
	if s.Threads < 1 {
		return newError(InvalidValue, "threads must be positive, got %d", s.Threads)
	}
	if s.QuadOrder < 1 || s.QuadOrder > 5 || s.LineOrder < 1 || s.LineOrder > 5 {
		return newError(InvalidValue, "integration orders must be within 1..5, got %d/%d", s.QuadOrder, s.LineOrder)
	}
	if s.FrameBuffer < 1 {
		return newError(InvalidValue, "frame_buffer must be positive, got %d", s.FrameBuffer)
	}
	return nil
}
