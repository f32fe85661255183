package model

import (
	"fmt"
)

type Node struct {
	ID int
	X  float64
	Y  float64
}

// Quad is a 4-node quadrilateral, nodes ordered counter-clockwise.
type Quad struct {
	ID      int
	NodeIDs [4]int
}

type Line struct {
	ID      int
	NodeIDs [2]int
}

type PhysicalGroup struct {
	Tag       int
	Dimension int
	Name      string
	LineIDs   []int
}

// Mesh keeps the external node ids as read from the mesh file. They are
// neither contiguous nor zero based, use NodeLocalID to get the dense index.
type Mesh struct {
	nodes  []Node
	quads  []Quad
	lines  []Line
	groups []PhysicalGroup

	nodeIndex map[int]int
	lineIndex map[int]int
}

func NewMesh(nNodes, nQuads, nLines int) *Mesh {
	return &Mesh{
		nodes:     make([]Node, 0, nNodes),
		quads:     make([]Quad, 0, nQuads),
		lines:     make([]Line, 0, nLines),
		nodeIndex: make(map[int]int, nNodes),
		lineIndex: make(map[int]int, nLines),
	}
}

func (m *Mesh) AddNode(n Node) {
	m.nodeIndex[n.ID] = len(m.nodes)
	m.nodes = append(m.nodes, n)
}

func (m *Mesh) AddQuad(q Quad) {
	m.quads = append(m.quads, q)
}

func (m *Mesh) AddLine(l Line) {
	m.lineIndex[l.ID] = len(m.lines)
	m.lines = append(m.lines, l)
}

func (m *Mesh) AddPhysicalGroup(g PhysicalGroup) {
	m.groups = append(m.groups, g)
}

func (m *Mesh) Nodes() []Node                   { return m.nodes }
func (m *Mesh) Quads() []Quad                   { return m.quads }
func (m *Mesh) Lines() []Line                   { return m.lines }
func (m *Mesh) PhysicalGroups() []PhysicalGroup { return m.groups }
func (m *Mesh) NodesCount() int                 { return len(m.nodes) }

// NodeLocalID translates an external node id into its dense index.
func (m *Mesh) NodeLocalID(id int) (int, error) {
	i, ok := m.nodeIndex[id]
	if !ok {
		return 0, fmt.Errorf("unknown node id %d", id)
	}
	return i, nil
}

func (m *Mesh) Node(id int) (Node, error) {
	i, err := m.NodeLocalID(id)
	if err != nil {
		return Node{}, err
	}
	return m.nodes[i], nil
}

func (m *Mesh) PhysicalGroupByName(name string) (PhysicalGroup, bool) {
	for _, g := range m.groups {
		if g.Name == name {
			return g, true
		}
	}
	return PhysicalGroup{}, false
}

// BoundaryLines returns the lines belonging to the named group. When the mesh
// does not define such a group every line is treated as boundary.
func (m *Mesh) BoundaryLines(group string) ([]Line, error) {
	g, ok := m.PhysicalGroupByName(group)
	if !ok {
		return m.lines, nil
	}
	out := make([]Line, 0, len(g.LineIDs))
	for _, id := range g.LineIDs {
		i, ok := m.lineIndex[id]
		if !ok {
			return nil, fmt.Errorf("physical group %q references unknown line %d", group, id)
		}
		out = append(out, m.lines[i])
	}
	return out, nil
}

// Validate checks that every node referenced by an element exists.
func (m *Mesh) Validate() error {
	for _, q := range m.quads {
		for _, id := range q.NodeIDs {
			if _, ok := m.nodeIndex[id]; !ok {
				return fmt.Errorf("quad %d references unknown node %d", q.ID, id)
			}
		}
	}
	for _, l := range m.lines {
		for _, id := range l.NodeIDs {
			if _, ok := m.nodeIndex[id]; !ok {
				return fmt.Errorf("line %d references unknown node %d", l.ID, id)
			}
		}
	}
	return nil
}
