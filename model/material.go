package model

import "fmt"

// Material properties in SI units.
type Material struct {
	Name         string  `json:"name" yaml:"name"`
	Conductivity float64 `json:"conductivity" yaml:"conductivity"`   // W/(m*K)
	Density      float64 `json:"density" yaml:"density"`             // kg/m^3
	SpecificHeat float64 `json:"specific_heat" yaml:"specific_heat"` // J/(kg*K)
}

func (m Material) Validate() error {
	if m.Conductivity <= 0 || m.Density <= 0 || m.SpecificHeat <= 0 {
		return fmt.Errorf("material %q: properties must be positive (k=%g, rho=%g, c=%g)",
			m.Name, m.Conductivity, m.Density, m.SpecificHeat)
	}
	return nil
}

// VolumetricHeatCapacity returns rho*c.
func (m Material) VolumetricHeatCapacity() float64 {
	return m.Density * m.SpecificHeat
}
