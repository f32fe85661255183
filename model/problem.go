package model

import (
	"fmt"
	"math"
)

type ProblemType int

const (
	Steady ProblemType = iota
	Transient
)

func (p ProblemType) String() string {
	switch p {
	case Steady:
		return "steady"
	case Transient:
		return "transient"
	}
	return fmt.Sprintf("ProblemType(%d)", int(p))
}

func ParseProblemType(s string) (ProblemType, error) {
	switch s {
	case "steady":
		return Steady, nil
	case "transient":
		return Transient, nil
	}
	return 0, fmt.Errorf("invalid problem type: %q", s)
}

// TransientConfig drives the implicit Euler loop. SaveStride is 0 when absent.
type TransientConfig struct {
	TotalTime          float64
	TimeStep           float64
	SaveHistory        bool
	SaveStride         int
	InitialTemperature float64
}

// stepGuard absorbs representation error in totalTime/timeStep, e.g. 0.3/0.1.
const stepGuard = 1e-9

// NumSteps returns floor(TotalTime / TimeStep).
func (tc TransientConfig) NumSteps() int {
	if tc.TimeStep <= 0 || tc.TotalTime <= 0 {
		return 0
	}
	return int(math.Floor(tc.TotalTime/tc.TimeStep + stepGuard))
}

func (tc TransientConfig) Validate() error {
	if tc.TimeStep <= 0 || tc.TotalTime <= 0 {
		return fmt.Errorf("time step (%g) and total time (%g) must be positive", tc.TimeStep, tc.TotalTime)
	}
	if tc.SaveHistory && tc.SaveStride <= 0 {
		return fmt.Errorf("save stride must be positive when history is saved, got %d", tc.SaveStride)
	}
	return nil
}
