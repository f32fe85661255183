package mesh

import (
	"heatfem/model"

	log "github.com/sirupsen/logrus"
)

// Boundary group names produced by GenerateRectangle.
const (
	GroupBottom = "bottom"
	GroupRight  = "right"
	GroupTop    = "top"
	GroupLeft   = "left"
	GroupAll    = "all"
)

// GenerateRectangle builds a structured nx x ny grid of quads covering
// [0,width] x [0,height]. Node ids start at 1 and run row by row. Boundary
// lines are oriented counter-clockwise and grouped per side.
func GenerateRectangle(width, height float64, nx, ny int) (*model.Mesh, error) {
	if !(width > 0) || !(height > 0) || nx < 1 || ny < 1 {
		return nil, newError(GeneratorError, "invalid rectangle %gx%g with %dx%d cells", width, height, nx, ny)
	}

	nodeID := func(i, j int) int { return j*(nx+1) + i + 1 }
	m := model.NewMesh((nx+1)*(ny+1), nx*ny, 2*(nx+ny))

	dx, dy := width/float64(nx), height/float64(ny)
	for j := 0; j <= ny; j++ {
		for i := 0; i <= nx; i++ {
			m.AddNode(model.Node{ID: nodeID(i, j), X: float64(i) * dx, Y: float64(j) * dy})
		}
	}

	id := 1
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			m.AddQuad(model.Quad{
				ID:      id,
				NodeIDs: [4]int{nodeID(i, j), nodeID(i+1, j), nodeID(i+1, j+1), nodeID(i, j+1)},
			})
			id++
		}
	}

	lineID := 1
	side := func(tag int, name string, edges [][2]int) model.PhysicalGroup {
		g := model.PhysicalGroup{Tag: tag, Dimension: 1, Name: name, LineIDs: make([]int, 0, len(edges))}
		for _, e := range edges {
			m.AddLine(model.Line{ID: lineID, NodeIDs: e})
			g.LineIDs = append(g.LineIDs, lineID)
			lineID++
		}
		return g
	}

	var bottom, right, top, left [][2]int
	for i := 0; i < nx; i++ {
		bottom = append(bottom, [2]int{nodeID(i, 0), nodeID(i+1, 0)})
		top = append(top, [2]int{nodeID(nx-i, ny), nodeID(nx-i-1, ny)})
	}
	for j := 0; j < ny; j++ {
		right = append(right, [2]int{nodeID(nx, j), nodeID(nx, j+1)})
		left = append(left, [2]int{nodeID(0, ny-j), nodeID(0, ny-j-1)})
	}

	groups := []model.PhysicalGroup{
		side(1, GroupBottom, bottom),
		side(2, GroupRight, right),
		side(3, GroupTop, top),
		side(4, GroupLeft, left),
	}
	all := model.PhysicalGroup{Tag: 5, Dimension: 1, Name: GroupAll}
	for _, g := range groups {
		m.AddPhysicalGroup(g)
		all.LineIDs = append(all.LineIDs, g.LineIDs...)
	}
	m.AddPhysicalGroup(all)

	log.WithFields(log.Fields{
		"nodes": m.NodesCount(),
		"quads": nx * ny,
		"lines": len(m.Lines()),
	}).Debug("rectangle mesh generated")
	return m, nil
}
