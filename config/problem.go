package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"heatfem/material"
	"heatfem/mesh"
	"heatfem/model"

	"gopkg.in/yaml.v3"
)

type Format int

const (
	JSON Format = iota
	YAML
)

// FormatOf picks the decoder from the file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return JSON, nil
	case ".yaml", ".yml":
		return YAML, nil
	}
	return 0, newError(FileError, "unsupported config extension %q", filepath.Ext(path))
}

// ProblemConfig is everything needed to set up one analysis.
type ProblemConfig struct {
	MeshPath          string
	ProblemType       model.ProblemType
	Transient         *model.TransientConfig
	Material          model.Material
	BoundaryCondition model.BoundaryCondition
}

type rawProblem struct {
	MeshPath          *string      `json:"mesh_path" yaml:"mesh_path"`
	Problem           *rawParams   `json:"problem" yaml:"problem"`
	Material          *rawMaterial `json:"material" yaml:"material"`
	BoundaryCondition *rawBoundary `json:"boundary_condition" yaml:"boundary_condition"`
}

type rawParams struct {
	Type              *string  `json:"type" yaml:"type"`
	TotalTime         *float64 `json:"total_time" yaml:"total_time"`
	TimeStep          *float64 `json:"time_step" yaml:"time_step"`
	SaveHistory       *bool    `json:"save_history" yaml:"save_history"`
	SaveStride        *int     `json:"save_stride" yaml:"save_stride"`
	InitialConditions *struct {
		UniformTemperature *float64 `json:"uniform_temperature" yaml:"uniform_temperature"`
	} `json:"initial_conditions" yaml:"initial_conditions"`
}

type rawMaterial struct {
	Preset       *string  `json:"preset" yaml:"preset"`
	Name         *string  `json:"name" yaml:"name"`
	Conductivity *float64 `json:"conductivity" yaml:"conductivity"`
	Density      *float64 `json:"density" yaml:"density"`
	SpecificHeat *float64 `json:"specific_heat" yaml:"specific_heat"`
}

type rawBoundary struct {
	PhysicalGroupName  *string  `json:"physical_group_name" yaml:"physical_group_name"`
	Type               *string  `json:"type" yaml:"type"`
	Temperature        *float64 `json:"temperature" yaml:"temperature"`
	HeatFlux           *float64 `json:"heat_flux" yaml:"heat_flux"`
	Alpha              *float64 `json:"alpha" yaml:"alpha"`
	AmbientTemperature *float64 `json:"ambient_temperature" yaml:"ambient_temperature"`
}

// LoadProblem reads a JSON or YAML problem file. A relative mesh_path is
// resolved against the directory of the file.
func LoadProblem(path string) (*ProblemConfig, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, newError(FileError, "failed to read config file: %v", err)
	}
	cfg, err := ParseProblem(data, format)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(cfg.MeshPath, mesh.RectPrefix) && !filepath.IsAbs(cfg.MeshPath) {
		cfg.MeshPath = filepath.Join(filepath.Dir(path), cfg.MeshPath)
	}
	return cfg, nil
}

func ParseProblem(data []byte, format Format) (*ProblemConfig, error) {
	var raw rawProblem
	switch format {
	case JSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&raw); err != nil {
			return nil, newError(ParserError, "JSON parsing failed: %v", err)
		}
	case YAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&raw); err != nil {
			return nil, newError(ParserError, "YAML parsing failed: %v", err)
		}
	default:
		return nil, newError(Unknown, "unknown format %d", int(format))
	}
	return raw.resolve()
}

func (r *rawProblem) resolve() (*ProblemConfig, error) {
	cfg := &ProblemConfig{}

	if r.MeshPath == nil || *r.MeshPath == "" {
		return nil, missing("mesh_path")
	}
	cfg.MeshPath = *r.MeshPath

	if r.Problem == nil || r.Problem.Type == nil {
		return nil, missing("problem.type")
	}
	pt, err := model.ParseProblemType(*r.Problem.Type)
	if err != nil {
		return nil, newError(InvalidValue, "%v", err)
	}
	cfg.ProblemType = pt

	if pt == model.Transient {
		tc, err := r.Problem.transient()
		if err != nil {
			return nil, err
		}
		cfg.Transient = tc
	}

	if cfg.Material, err = r.Material.resolve(); err != nil {
		return nil, err
	}
	if cfg.BoundaryCondition, err = r.BoundaryCondition.resolve(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (p *rawParams) transient() (*model.TransientConfig, error) {
	switch {
	case p.TotalTime == nil:
		return nil, missing("problem.total_time")
	case p.TimeStep == nil:
		return nil, missing("problem.time_step")
	case p.SaveHistory == nil:
		return nil, missing("problem.save_history")
	case p.InitialConditions == nil || p.InitialConditions.UniformTemperature == nil:
		return nil, missing("problem.initial_conditions.uniform_temperature")
	}
	if *p.TotalTime <= 0 || *p.TimeStep <= 0 {
		return nil, newError(InvalidValue, "time parameters must be positive")
	}

	tc := &model.TransientConfig{
		TotalTime:          *p.TotalTime,
		TimeStep:           *p.TimeStep,
		SaveHistory:        *p.SaveHistory,
		InitialTemperature: *p.InitialConditions.UniformTemperature,
	}
	if tc.SaveHistory {
		if p.SaveStride == nil {
			return nil, missing("problem.save_stride")
		}
		if *p.SaveStride <= 0 {
			return nil, newError(InvalidValue, "stride value must be positive")
		}
		tc.SaveStride = *p.SaveStride
	}
	return tc, nil
}

// resolve starts from the preset, if any, and applies explicit properties
// on top of it.
func (m *rawMaterial) resolve() (model.Material, error) {
	if m == nil {
		return model.Material{}, missing("material")
	}
	var out model.Material
	if m.Preset != nil {
		p, err := material.Lookup(*m.Preset)
		if err != nil {
			return out, newError(InvalidValue, "%v", err)
		}
		out = p
	} else {
		switch {
		case m.Name == nil:
			return out, missing("material.name")
		case m.Conductivity == nil:
			return out, missing("material.conductivity")
		case m.Density == nil:
			return out, missing("material.density")
		case m.SpecificHeat == nil:
			return out, missing("material.specific_heat")
		}
	}
	if m.Name != nil {
		out.Name = *m.Name
	}
	if m.Conductivity != nil {
		out.Conductivity = *m.Conductivity
	}
	if m.Density != nil {
		out.Density = *m.Density
	}
	if m.SpecificHeat != nil {
		out.SpecificHeat = *m.SpecificHeat
	}
	if err := out.Validate(); err != nil {
		return out, newError(InvalidValue, "%v", err)
	}
	return out, nil
}

func (b *rawBoundary) resolve() (model.BoundaryCondition, error) {
	var out model.BoundaryCondition
	if b == nil {
		return out, missing("boundary_condition")
	}
	if b.PhysicalGroupName == nil {
		return out, missing("boundary_condition.physical_group_name")
	}
	if b.Type == nil {
		return out, missing("boundary_condition.type")
	}
	typ, err := model.ParseBoundaryConditionType(*b.Type)
	if err != nil {
		return out, newError(InvalidValue, "%v", err)
	}
	out = model.BoundaryCondition{
		PhysicalGroupName:  *b.PhysicalGroupName,
		Type:               typ,
		Temperature:        b.Temperature,
		HeatFlux:           b.HeatFlux,
		Alpha:              b.Alpha,
		AmbientTemperature: b.AmbientTemperature,
	}
	switch typ {
	case model.Temperature:
		if b.Temperature == nil {
			return out, missing("boundary_condition.temperature")
		}
	case model.Flux:
		if b.HeatFlux == nil {
			return out, missing("boundary_condition.heat_flux")
		}
	case model.Convection:
		if b.Alpha == nil {
			return out, missing("boundary_condition.alpha")
		}
		if b.AmbientTemperature == nil {
			return out, missing("boundary_condition.ambient_temperature")
		}
		if *b.Alpha <= 0 {
			return out, newError(InvalidValue, "alpha must be positive")
		}
	}
	return out, nil
}
