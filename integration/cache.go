package integration

import "sync"

// Tables are built on first use and never written again, so concurrent
// readers need no locking.
var (
	quadOnce   [MaxOrder + 1]sync.Once
	quadTables [MaxOrder + 1]*QuadData

	lineOnce   [MaxOrder + 1]sync.Once
	lineTables [MaxOrder + 1]*LineData
)

// Quad returns the shared quad table for order.
func Quad(order int) (*QuadData, error) {
	if !supported(order) {
		return nil, unsupported(order)
	}
	quadOnce[order].Do(func() {
		quadTables[order], _ = BuildQuadIntegrationData(order)
	})
	return quadTables[order], nil
}

// Line returns the shared line table for order.
func Line(order int) (*LineData, error) {
	if !supported(order) {
		return nil, unsupported(order)
	}
	lineOnce[order].Do(func() {
		lineTables[order], _ = BuildLineIntegrationData(order)
	})
	return lineTables[order], nil
}
