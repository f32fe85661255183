package solver

import "gonum.org/v1/gonum/mat"

type SteadySolution struct {
	Solution *mat.VecDense
}

// TransientSolution keeps the state after the last step and, when history
// is saved, the snapshots with their times. History[0] is the initial field.
type TransientSolution struct {
	FinalSolution *mat.VecDense
	History       []*mat.VecDense
	Times         []float64
	SaveStride    int
	NumSteps      int
}

// Result holds exactly one of the two solution kinds. Check IsSteady before
// calling Steady or Transient, they panic on the wrong kind.
type Result struct {
	steady    *SteadySolution
	transient *TransientSolution

	Stats Stats
}

func (r *Result) IsSteady() bool { return r.steady != nil }

func (r *Result) Steady() *SteadySolution {
	if r.steady == nil {
		panic("solver: result holds a transient solution")
	}
	return r.steady
}

func (r *Result) Transient() *TransientSolution {
	if r.transient == nil {
		panic("solver: result holds a steady solution")
	}
	return r.transient
}

// FinalSolution returns the steady field or the field after the last step.
func (r *Result) FinalSolution() *mat.VecDense {
	if r.steady != nil {
		return r.steady.Solution
	}
	return r.transient.FinalSolution
}
