package mesh

import (
	"bufio"
	"io"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"

	"heatfem/model"

	log "github.com/sirupsen/logrus"
)

// gmsh element types
const (
	gmshLine2 = 1
	gmshQuad4 = 3
)

// ReadMsh loads a Gmsh 4.1 ASCII mesh file.
func ReadMsh(path string) (*model.Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, newError(FileError, "%v", err)
	}
	defer f.Close()

	log.WithField("path", path).Info("loading gmsh mesh")
	return ParseMsh(f)
}

type physicalName struct {
	dim  int
	tag  int
	name string
}

type elementBlock struct {
	dim, entity, kind int
	tags              []int
	nodes             [][]int
}

type mshReader struct {
	names   []physicalName
	curves  map[int][]int // curve entity tag -> physical tags
	nodes   []model.Node
	blocks  []elementBlock
	version string
}

// ParseMsh reads the $MeshFormat, $PhysicalNames, $Entities, $Nodes and
// $Elements sections. Other sections are skipped.
func ParseMsh(r io.Reader) (*model.Mesh, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	rd := &mshReader{curves: make(map[int][]int)}

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, "$") || strings.HasPrefix(line, "$End") {
			continue
		}
		section := line[1:]
		body, err := readSection(sc, section)
		if err != nil {
			return nil, err
		}
		switch section {
		case "MeshFormat":
			err = rd.parseFormat(body)
		case "PhysicalNames":
			err = rd.parsePhysicalNames(body)
		case "Entities":
			err = rd.parseEntities(body)
		case "Nodes":
			err = rd.parseNodes(body)
		case "Elements":
			err = rd.parseElements(body)
		}
		if err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, newError(FileError, "%v", err)
	}
	if rd.version == "" {
		return nil, newError(ParseError, "missing $MeshFormat section")
	}
	return rd.build(), nil
}

func readSection(sc *bufio.Scanner, name string) ([]string, error) {
	end := "$End" + name
	var body []string
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == end {
			return body, nil
		}
		if line != "" {
			body = append(body, line)
		}
	}
	return nil, newError(ParseError, "section %s is not terminated", name)
}

// tokens is a cursor over the whitespace separated numbers of a section.
type tokens struct {
	section string
	fields  []string
	pos     int
}

func newTokens(section string, body []string) *tokens {
	t := &tokens{section: section}
	for _, l := range body {
		t.fields = append(t.fields, strings.Fields(l)...)
	}
	return t
}

func (t *tokens) int() (int, error) {
	if t.pos >= len(t.fields) {
		return 0, newError(ParseError, "%s: unexpected end of section", t.section)
	}
	v, err := strconv.Atoi(t.fields[t.pos])
	if err != nil {
		return 0, newError(ParseError, "%s: %v", t.section, err)
	}
	t.pos++
	return v, nil
}

func (t *tokens) float() (float64, error) {
	if t.pos >= len(t.fields) {
		return 0, newError(ParseError, "%s: unexpected end of section", t.section)
	}
	v, err := strconv.ParseFloat(t.fields[t.pos], 64)
	if err != nil {
		return 0, newError(ParseError, "%s: %v", t.section, err)
	}
	t.pos++
	return v, nil
}

func (t *tokens) skip(n int) error {
	if t.pos+n > len(t.fields) {
		return newError(ParseError, "%s: unexpected end of section", t.section)
	}
	t.pos += n
	return nil
}

func (rd *mshReader) parseFormat(body []string) error {
	if len(body) == 0 {
		return newError(ParseError, "empty $MeshFormat")
	}
	f := strings.Fields(body[0])
	if len(f) < 2 {
		return newError(ParseError, "malformed $MeshFormat: %q", body[0])
	}
	if !strings.HasPrefix(f[0], "4.") {
		return newError(ParseError, "unsupported msh version %s, need 4.1", f[0])
	}
	if f[1] != "0" {
		return newError(ParseError, "binary msh files are not supported")
	}
	rd.version = f[0]
	return nil
}

func (rd *mshReader) parsePhysicalNames(body []string) error {
	for _, l := range body[1:] {
		f := strings.SplitN(l, " ", 3)
		if len(f) != 3 {
			return newError(ParseError, "malformed physical name: %q", l)
		}
		dim, err1 := strconv.Atoi(f[0])
		tag, err2 := strconv.Atoi(f[1])
		if err1 != nil || err2 != nil {
			return newError(ParseError, "malformed physical name: %q", l)
		}
		rd.names = append(rd.names, physicalName{dim: dim, tag: tag, name: strings.Trim(f[2], `"`)})
	}
	return nil
}

func (rd *mshReader) parseEntities(body []string) error {
	t := newTokens("Entities", body)
	var counts [4]int
	for i := range counts {
		n, err := t.int()
		if err != nil {
			return err
		}
		counts[i] = n
	}
	// points: tag x y z nPhys phys...
	for i := 0; i < counts[0]; i++ {
		if err := t.skip(4); err != nil {
			return err
		}
		if err := skipList(t); err != nil {
			return err
		}
	}
	// curves: tag box(6) nPhys phys... nBound bound...
	for i := 0; i < counts[1]; i++ {
		tag, err := t.int()
		if err != nil {
			return err
		}
		if err := t.skip(6); err != nil {
			return err
		}
		phys, err := intList(t)
		if err != nil {
			return err
		}
		rd.curves[tag] = phys
		if err := skipList(t); err != nil {
			return err
		}
	}
	// surfaces and volumes are not needed
	return nil
}

func intList(t *tokens) ([]int, error) {
	n, err := t.int()
	if err != nil {
		return nil, err
	}
	out := make([]int, n)
	for i := range out {
		if out[i], err = t.int(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func skipList(t *tokens) error {
	n, err := t.int()
	if err != nil {
		return err
	}
	return t.skip(n)
}

func (rd *mshReader) parseNodes(body []string) error {
	t := newTokens("Nodes", body)
	blocks, err := t.int()
	if err != nil {
		return err
	}
	total, err := t.int()
	if err != nil {
		return err
	}
	if err := t.skip(2); err != nil {
		return err
	}
	rd.nodes = make([]model.Node, 0, total)

	for b := 0; b < blocks; b++ {
		dim, err := t.int()
		if err != nil {
			return err
		}
		if err := t.skip(1); err != nil {
			return err
		}
		parametric, err := t.int()
		if err != nil {
			return err
		}
		n, err := t.int()
		if err != nil {
			return err
		}
		ids := make([]int, n)
		for i := range ids {
			if ids[i], err = t.int(); err != nil {
				return err
			}
		}
		for i := 0; i < n; i++ {
			x, err := t.float()
			if err != nil {
				return err
			}
			y, err := t.float()
			if err != nil {
				return err
			}
			if err := t.skip(1); err != nil {
				return err
			}
			if parametric == 1 && dim > 0 {
				if err := t.skip(dim); err != nil {
					return err
				}
			}
			rd.nodes = append(rd.nodes, model.Node{ID: ids[i], X: x, Y: y})
		}
	}
	log.WithField("nodes", len(rd.nodes)).Debug("parsed nodes")
	return nil
}

func nodesPerElement(kind int) int {
	switch kind {
	case 15: // point
		return 1
	case gmshLine2:
		return 2
	case 2: // triangle
		return 3
	case gmshQuad4, 4: // quad, tetrahedron
		return 4
	case 5: // hexahedron
		return 8
	case 6: // prism
		return 6
	case 7: // pyramid
		return 5
	case 8: // 3-node line
		return 3
	case 9: // 6-node triangle
		return 6
	case 10: // 9-node quad
		return 9
	case 16: // 8-node quad
		return 8
	}
	return -1
}

func (rd *mshReader) parseElements(body []string) error {
	t := newTokens("Elements", body)
	blocks, err := t.int()
	if err != nil {
		return err
	}
	if err := t.skip(3); err != nil {
		return err
	}
	for b := 0; b < blocks; b++ {
		var blk elementBlock
		if blk.dim, err = t.int(); err != nil {
			return err
		}
		if blk.entity, err = t.int(); err != nil {
			return err
		}
		if blk.kind, err = t.int(); err != nil {
			return err
		}
		n, err := t.int()
		if err != nil {
			return err
		}
		per := nodesPerElement(blk.kind)
		if per < 0 {
			return newError(ParseError, "unsupported element type %d", blk.kind)
		}
		keep := blk.kind == gmshLine2 || blk.kind == gmshQuad4
		for i := 0; i < n; i++ {
			tag, err := t.int()
			if err != nil {
				return err
			}
			nodes := make([]int, per)
			for k := range nodes {
				if nodes[k], err = t.int(); err != nil {
					return err
				}
			}
			if keep {
				blk.tags = append(blk.tags, tag)
				blk.nodes = append(blk.nodes, nodes)
			}
		}
		if keep {
			rd.blocks = append(rd.blocks, blk)
		}
	}
	return nil
}

func (rd *mshReader) build() *model.Mesh {
	var nQuads, nLines int
	for _, b := range rd.blocks {
		if b.kind == gmshQuad4 {
			nQuads += len(b.tags)
		} else {
			nLines += len(b.tags)
		}
	}
	m := model.NewMesh(len(rd.nodes), nQuads, nLines)
	for _, n := range rd.nodes {
		m.AddNode(n)
	}

	// curve entity -> line element ids
	curveLines := make(map[int][]int)
	for _, b := range rd.blocks {
		for i, tag := range b.tags {
			if b.kind == gmshQuad4 {
				m.AddQuad(model.Quad{ID: tag, NodeIDs: [4]int{b.nodes[i][0], b.nodes[i][1], b.nodes[i][2], b.nodes[i][3]}})
				continue
			}
			m.AddLine(model.Line{ID: tag, NodeIDs: [2]int{b.nodes[i][0], b.nodes[i][1]}})
			if b.dim == 1 {
				curveLines[b.entity] = append(curveLines[b.entity], tag)
			}
		}
	}

	for _, pn := range rd.names {
		if pn.dim != 1 {
			continue
		}
		g := model.PhysicalGroup{Tag: pn.tag, Dimension: pn.dim, Name: pn.name}
		for _, curve := range slices.Sorted(maps.Keys(rd.curves)) {
			if slices.Contains(rd.curves[curve], pn.tag) {
				g.LineIDs = append(g.LineIDs, curveLines[curve]...)
			}
		}
		log.WithFields(log.Fields{"group": g.Name, "lines": len(g.LineIDs)}).Info("physical group loaded")
		m.AddPhysicalGroup(g)
	}

	log.WithFields(log.Fields{
		"nodes": m.NodesCount(),
		"quads": len(m.Quads()),
		"lines": len(m.Lines()),
	}).Info("mesh loaded")
	return m
}
