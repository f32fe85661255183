package material

import (
	"fmt"
	"sort"
	"strings"

	"heatfem/model"
)

// Room temperature properties, SI units.
var presets = map[string]model.Material{
	"steel": {
		Name:         "steel",
		Conductivity: 25,
		Density:      7800,
		SpecificHeat: 700,
	},
	"aluminium": {
		Name:         "aluminium",
		Conductivity: 237,
		Density:      2700,
		SpecificHeat: 897,
	},
	"copper": {
		Name:         "copper",
		Conductivity: 401,
		Density:      8960,
		SpecificHeat: 385,
	},
	"concrete": {
		Name:         "concrete",
		Conductivity: 1.4,
		Density:      2300,
		SpecificHeat: 880,
	},
	"glass": {
		Name:         "glass",
		Conductivity: 1.05,
		Density:      2500,
		SpecificHeat: 840,
	},
}

// aliases maps alternative spellings onto preset names.
var aliases = map[string]string{
	"aluminum": "aluminium",
	"al":       "aluminium",
	"cu":       "copper",
}

// Lookup returns the built-in material with the given name, case-insensitive.
func Lookup(name string) (model.Material, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if alias, ok := aliases[key]; ok {
		key = alias
	}
	m, ok := presets[key]
	if !ok {
		return model.Material{}, fmt.Errorf("unknown material preset %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return m, nil
}

// Names lists the presets in alphabetical order.
func Names() []string {
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Diffusivity returns k/(rho*c) in m^2/s.
func Diffusivity(m model.Material) float64 {
	return m.Conductivity / m.VolumetricHeatCapacity()
}
