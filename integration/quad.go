package integration

import (
	log "github.com/sirupsen/logrus"
)

// QuadData holds everything the element builder needs per integration point
// of the reference square [-1,1]x[-1,1]. Node order is counter-clockwise
// starting at (-1,-1).
type QuadData struct {
	Order   int
	NPoints int

	Ksi     []float64
	Eta     []float64
	Weights []float64

	N      [][4]float64
	DNdKsi [][4]float64
	DNdEta [][4]float64
	NNT    [][4][4]float64 // N * N^T
}

func BuildQuadIntegrationData(order int) (*QuadData, error) {
	if !supported(order) {
		return nil, unsupported(order)
	}
	log.WithField("order", order).Trace("building quad integration data")

	points, weights := legendrePoints[order-1], legendreWeights[order-1]
	n := order * order
	out := &QuadData{
		Order:   order,
		NPoints: n,
		Ksi:     make([]float64, 0, n),
		Eta:     make([]float64, 0, n),
		Weights: make([]float64, 0, n),
		N:       make([][4]float64, 0, n),
		DNdKsi:  make([][4]float64, 0, n),
		DNdEta:  make([][4]float64, 0, n),
		NNT:     make([][4][4]float64, 0, n),
	}

	for i := 0; i < order; i++ {
		for j := 0; j < order; j++ {
			ksi, eta := points[i], points[j]
			shape := [4]float64{
				0.25 * (1 - ksi) * (1 - eta),
				0.25 * (1 + ksi) * (1 - eta),
				0.25 * (1 + ksi) * (1 + eta),
				0.25 * (1 - ksi) * (1 + eta),
			}
			dKsi := [4]float64{
				-0.25 * (1 - eta),
				0.25 * (1 - eta),
				0.25 * (1 + eta),
				-0.25 * (1 + eta),
			}
			dEta := [4]float64{
				-0.25 * (1 - ksi),
				-0.25 * (1 + ksi),
				0.25 * (1 + ksi),
				0.25 * (1 - ksi),
			}
			var nnt [4][4]float64
			for a := 0; a < 4; a++ {
				for b := 0; b < 4; b++ {
					nnt[a][b] = shape[a] * shape[b]
				}
			}

			out.Ksi = append(out.Ksi, ksi)
			out.Eta = append(out.Eta, eta)
			out.Weights = append(out.Weights, weights[i]*weights[j])
			out.N = append(out.N, shape)
			out.DNdKsi = append(out.DNdKsi, dKsi)
			out.DNdEta = append(out.DNdEta, dEta)
			out.NNT = append(out.NNT, nnt)
		}
	}
	return out, nil
}
