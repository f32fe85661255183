package model

import (
	"heatfem/linalg"

	"gonum.org/v1/gonum/mat"
)

// ElementMatrices are the local contributions of one quad.
type ElementMatrices struct {
	H [4][4]float64
	C [4][4]float64
	P [4]float64
}

// BoundaryMatrices are the local contributions of one boundary line.
type BoundaryMatrices struct {
	H [2][2]float64
	P [2]float64
}

// GlobalMatrices is the assembled system. C is nil for steady problems.
type GlobalMatrices struct {
	H *linalg.Matrix
	C *linalg.Matrix
	P *mat.VecDense
}

func (g GlobalMatrices) HasCapacity() bool {
	return g.C != nil
}
