package model

import "fmt"

type BoundaryConditionType int

const (
	// Temperature is a prescribed temperature (Dirichlet).
	Temperature BoundaryConditionType = iota
	// Flux is a prescribed heat flux (Neumann).
	Flux
	// Convection is q = alpha*(T_ambient - T) (Robin).
	Convection
)

func (t BoundaryConditionType) String() string {
	switch t {
	case Temperature:
		return "temperature"
	case Flux:
		return "flux"
	case Convection:
		return "convection"
	}
	return fmt.Sprintf("BoundaryConditionType(%d)", int(t))
}

func ParseBoundaryConditionType(s string) (BoundaryConditionType, error) {
	switch s {
	case "temperature":
		return Temperature, nil
	case "flux":
		return Flux, nil
	case "convection":
		return Convection, nil
	}
	return 0, fmt.Errorf("invalid boundary condition type: %q", s)
}

// BoundaryCondition holds the type specific scalars as pointers, nil means
// the value was not given.
type BoundaryCondition struct {
	PhysicalGroupName string
	Type              BoundaryConditionType

	Temperature        *float64
	HeatFlux           *float64
	Alpha              *float64
	AmbientTemperature *float64
}

func (bc BoundaryCondition) Validate() error {
	switch bc.Type {
	case Temperature:
		if bc.Temperature == nil {
			return fmt.Errorf("boundary %q: temperature is required", bc.PhysicalGroupName)
		}
	case Flux:
		if bc.HeatFlux == nil {
			return fmt.Errorf("boundary %q: heat_flux is required", bc.PhysicalGroupName)
		}
	case Convection:
		if bc.Alpha == nil || bc.AmbientTemperature == nil {
			return fmt.Errorf("boundary %q: alpha and ambient_temperature are required", bc.PhysicalGroupName)
		}
	default:
		return fmt.Errorf("boundary %q: unknown type %d", bc.PhysicalGroupName, int(bc.Type))
	}
	return nil
}

// ConvectionBC is a shorthand used by generators and tests.
func ConvectionBC(group string, alpha, ambient float64) BoundaryCondition {
	return BoundaryCondition{
		PhysicalGroupName:  group,
		Type:               Convection,
		Alpha:              &alpha,
		AmbientTemperature: &ambient,
	}
}
