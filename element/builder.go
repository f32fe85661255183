package element

import (
	"fmt"
	"math"

	"heatfem/integration"
	"heatfem/model"

	log "github.com/sirupsen/logrus"
)

// DefaultPenalty scales the conductivity to obtain the Dirichlet penalty.
const DefaultPenalty = 1e10

type Options struct {
	QuadOrder int
	LineOrder int
	// PenaltyFactor is the coefficient used to enforce prescribed
	// temperatures. Zero selects DefaultPenalty * conductivity.
	PenaltyFactor float64
}

func DefaultOptions() Options {
	return Options{QuadOrder: 3, LineOrder: 2}
}

// Builder computes local matrices for quads and boundary lines. It only reads
// shared state and is safe for concurrent use.
type Builder struct {
	material model.Material
	bc       model.BoundaryCondition
	penalty  float64

	quad *integration.QuadData
	line *integration.LineData
}

func NewBuilder(material model.Material, bc model.BoundaryCondition, opts Options) (*Builder, error) {
	quad, err := integration.Quad(opts.QuadOrder)
	if err != nil {
		return nil, err
	}
	line, err := integration.Line(opts.LineOrder)
	if err != nil {
		return nil, err
	}
	penalty := opts.PenaltyFactor
	if penalty == 0 {
		penalty = DefaultPenalty * material.Conductivity
	}
	return &Builder{
		material: material,
		bc:       bc,
		penalty:  penalty,
		quad:     quad,
		line:     line,
	}, nil
}

func (b *Builder) Material() model.Material                   { return b.material }
func (b *Builder) BoundaryCondition() model.BoundaryCondition { return b.bc }

func (b *Builder) coordinates(mesh *model.Mesh, elementID int, ids []int) ([]float64, []float64, error) {
	xs := make([]float64, len(ids))
	ys := make([]float64, len(ids))
	for i, id := range ids {
		n, err := mesh.Node(id)
		if err != nil {
			return nil, nil, &Error{Code: UnknownNode, ElementID: elementID, Message: err.Error()}
		}
		xs[i], ys[i] = n.X, n.Y
	}
	return xs, ys, nil
}

// BuildQuadMatrices integrates the conductivity and capacity matrices of q.
func (b *Builder) BuildQuadMatrices(mesh *model.Mesh, q model.Quad) (model.ElementMatrices, error) {
	var out model.ElementMatrices
	xs, ys, err := b.coordinates(mesh, q.ID, q.NodeIDs[:])
	if err != nil {
		return out, err
	}

	k := b.material.Conductivity
	rc := b.material.VolumetricHeatCapacity()
	d := b.quad

	for p := 0; p < d.NPoints; p++ {
		dKsi, dEta := d.DNdKsi[p], d.DNdEta[p]

		var j00, j01, j10, j11 float64
		for a := 0; a < 4; a++ {
			j00 += dKsi[a] * xs[a]
			j01 += dEta[a] * xs[a]
			j10 += dKsi[a] * ys[a]
			j11 += dEta[a] * ys[a]
		}
		det := j00*j11 - j01*j10
		if !(det > 0) || math.IsInf(det, 0) {
			return out, &Error{
				Code:      DegenerateElement,
				ElementID: q.ID,
				Message:   fmt.Sprintf("non-positive jacobian determinant %g at point %d", det, p),
			}
		}

		// physical gradients, invJ^T * (dN/dksi, dN/deta)
		var dx, dy [4]float64
		for a := 0; a < 4; a++ {
			dx[a] = (j11*dKsi[a] - j10*dEta[a]) / det
			dy[a] = (-j01*dKsi[a] + j00*dEta[a]) / det
		}

		dv := det * d.Weights[p]
		for a := 0; a < 4; a++ {
			for c := 0; c < 4; c++ {
				out.H[a][c] += k * (dx[a]*dx[c] + dy[a]*dy[c]) * dv
				out.C[a][c] += rc * d.NNT[p][a][c] * dv
			}
		}
	}

	log.WithFields(log.Fields{"quad": q.ID, "points": d.NPoints}).Trace("quad matrices built")
	return out, nil
}

// BuildLineBoundaryMatrices integrates the boundary term of the configured
// condition along l.
func (b *Builder) BuildLineBoundaryMatrices(mesh *model.Mesh, l model.Line) (model.BoundaryMatrices, error) {
	var out model.BoundaryMatrices
	hCoef, pCoef, err := b.boundaryCoefficients(l.ID)
	if err != nil {
		return out, err
	}

	xs, ys, err := b.coordinates(mesh, l.ID, l.NodeIDs[:])
	if err != nil {
		return out, err
	}
	length := math.Hypot(xs[1]-xs[0], ys[1]-ys[0])
	if !(length > 0) {
		return out, &Error{Code: DegenerateElement, ElementID: l.ID, Message: "zero length boundary line"}
	}
	det := length / 2

	d := b.line
	for p := 0; p < d.NPoints; p++ {
		dv := det * d.Weights[p]
		for a := 0; a < 2; a++ {
			for c := 0; c < 2; c++ {
				out.H[a][c] += hCoef * d.NNT[p][a][c] * dv
			}
			out.P[a] += pCoef * d.N[p][a] * dv
		}
	}

	log.WithFields(log.Fields{"line": l.ID, "length": length}).Trace("boundary matrices built")
	return out, nil
}

// boundaryCoefficients returns the factors multiplying N*N^T in H and N in P.
func (b *Builder) boundaryCoefficients(lineID int) (float64, float64, error) {
	missing := func(field string) error {
		return &Error{
			Code:      MissingBoundaryValue,
			ElementID: lineID,
			Message:   fmt.Sprintf("%s boundary %q requires %s", b.bc.Type, b.bc.PhysicalGroupName, field),
		}
	}

	switch b.bc.Type {
	case model.Convection:
		if b.bc.Alpha == nil {
			return 0, 0, missing("alpha")
		}
		if b.bc.AmbientTemperature == nil {
			return 0, 0, missing("ambient_temperature")
		}
		return *b.bc.Alpha, *b.bc.Alpha * *b.bc.AmbientTemperature, nil
	case model.Flux:
		if b.bc.HeatFlux == nil {
			return 0, 0, missing("heat_flux")
		}
		return 0, *b.bc.HeatFlux, nil
	case model.Temperature:
		if b.bc.Temperature == nil {
			return 0, 0, missing("temperature")
		}
		return b.penalty, b.penalty * *b.bc.Temperature, nil
	}
	return 0, 0, &Error{
		Code:      UnsupportedBoundary,
		ElementID: lineID,
		Message:   fmt.Sprintf("boundary type %s", b.bc.Type),
	}
}
