package integration

import "math"

const (
	MinOrder = 1
	MaxOrder = 5
)

// Gauss-Legendre points and weights on [-1, 1]; index n-1 holds the n-point rule.
var (
	legendrePoints = [MaxOrder][]float64{
		{0.0},
		{-math.Sqrt(1.0 / 3.0), math.Sqrt(1.0 / 3.0)},
		{-math.Sqrt(3.0 / 5.0), 0.0, math.Sqrt(3.0 / 5.0)},
		{
			-math.Sqrt(3.0/7.0 + 2.0/7.0*math.Sqrt(6.0/5.0)),
			-math.Sqrt(3.0/7.0 - 2.0/7.0*math.Sqrt(6.0/5.0)),
			math.Sqrt(3.0/7.0 - 2.0/7.0*math.Sqrt(6.0/5.0)),
			math.Sqrt(3.0/7.0 + 2.0/7.0*math.Sqrt(6.0/5.0)),
		},
		{
			-1.0 / 3.0 * math.Sqrt(5.0+2.0*math.Sqrt(10.0/7.0)),
			-1.0 / 3.0 * math.Sqrt(5.0-2.0*math.Sqrt(10.0/7.0)),
			0.0,
			1.0 / 3.0 * math.Sqrt(5.0-2.0*math.Sqrt(10.0/7.0)),
			1.0 / 3.0 * math.Sqrt(5.0+2.0*math.Sqrt(10.0/7.0)),
		},
	}

	legendreWeights = [MaxOrder][]float64{
		{2.0},
		{1.0, 1.0},
		{5.0 / 9.0, 8.0 / 9.0, 5.0 / 9.0},
		{
			(18.0 - math.Sqrt(30.0)) / 36.0,
			(18.0 + math.Sqrt(30.0)) / 36.0,
			(18.0 + math.Sqrt(30.0)) / 36.0,
			(18.0 - math.Sqrt(30.0)) / 36.0,
		},
		{
			(322.0 - 13.0*math.Sqrt(70.0)) / 900.0,
			(322.0 + 13.0*math.Sqrt(70.0)) / 900.0,
			128.0 / 225.0,
			(322.0 + 13.0*math.Sqrt(70.0)) / 900.0,
			(322.0 - 13.0*math.Sqrt(70.0)) / 900.0,
		},
	}
)

func supported(order int) bool {
	return order >= MinOrder && order <= MaxOrder
}
