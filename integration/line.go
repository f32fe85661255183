package integration

import (
	log "github.com/sirupsen/logrus"
)

// LineData is the 1D counterpart of QuadData on [-1, 1].
type LineData struct {
	Order   int
	NPoints int

	Ksi     []float64
	Weights []float64

	N      [][2]float64
	DNdKsi [][2]float64
	NNT    [][2][2]float64
}

func BuildLineIntegrationData(order int) (*LineData, error) {
	if !supported(order) {
		return nil, unsupported(order)
	}
	log.WithField("order", order).Trace("building line integration data")

	points, weights := legendrePoints[order-1], legendreWeights[order-1]
	out := &LineData{
		Order:   order,
		NPoints: order,
		Ksi:     make([]float64, 0, order),
		Weights: make([]float64, 0, order),
		N:       make([][2]float64, 0, order),
		DNdKsi:  make([][2]float64, 0, order),
		NNT:     make([][2][2]float64, 0, order),
	}
	for i := 0; i < order; i++ {
		ksi := points[i]
		shape := [2]float64{0.5 * (1 - ksi), 0.5 * (1 + ksi)}
		out.Ksi = append(out.Ksi, ksi)
		out.Weights = append(out.Weights, weights[i])
		out.N = append(out.N, shape)
		out.DNdKsi = append(out.DNdKsi, [2]float64{-0.5, 0.5})
		out.NNT = append(out.NNT, [2][2]float64{
			{shape[0] * shape[0], shape[0] * shape[1]},
			{shape[1] * shape[0], shape[1] * shape[1]},
		})
	}
	return out, nil
}
