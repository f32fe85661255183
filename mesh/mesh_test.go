package mesh

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleMsh = `$MeshFormat
4.1 0 8
$EndMeshFormat
$PhysicalNames
2
1 1 "bottom edge"
2 2 "plate"
$EndPhysicalNames
$Entities
4 1 1 0
1 0 0 0 0
2 1 0 0 0
3 1 1 0 0
4 0 1 0 0
1 0 0 0 1 0 0 1 1 2 1 -2
1 0 0 0 1 1 0 1 2 1 1
$EndEntities
$Nodes
2 4 1 4
0 1 0 2
1
2
0 0 0
1 0 0
2 1 0 2
3
4
1 1 0
0 1 0
$EndNodes
$Elements
2 2 1 2
1 1 1 1
1 1 2
2 1 3 1
2 1 2 3 4
$EndElements
`

func TestParseMsh(t *testing.T) {
	m, err := ParseMsh(strings.NewReader(sampleMsh))
	require.NoError(t, err)

	assert.Equal(t, 4, m.NodesCount())
	require.Len(t, m.Quads(), 1)
	assert.Equal(t, [4]int{1, 2, 3, 4}, m.Quads()[0].NodeIDs)
	require.Len(t, m.Lines(), 1)
	assert.Equal(t, [2]int{1, 2}, m.Lines()[0].NodeIDs)

	n, err := m.Node(3)
	require.NoError(t, err)
	assert.Equal(t, 1.0, n.X)
	assert.Equal(t, 1.0, n.Y)

	g, ok := m.PhysicalGroupByName("bottom edge")
	require.True(t, ok)
	assert.Equal(t, []int{1}, g.LineIDs)
	_, ok = m.PhysicalGroupByName("plate")
	assert.False(t, ok)

	require.NoError(t, m.Validate())
}

func TestParseMsh_Errors(t *testing.T) {
	cases := map[string]string{
		"old version":  "$MeshFormat\n2.2 0 8\n$EndMeshFormat\n",
		"binary":       "$MeshFormat\n4.1 1 8\n$EndMeshFormat\n",
		"unterminated": "$MeshFormat\n4.1 0 8\n",
		"no format":    "$Nodes\n0 0 0 0\n$EndNodes\n",
		"bad node":     strings.Replace(sampleMsh, "1 1 0\n", "1 x 0\n", 1),
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseMsh(strings.NewReader(src))
			var me *Error
			require.True(t, errors.As(err, &me), "%v", err)
			assert.Equal(t, ParseError, me.Code)
		})
	}
}

func TestLoadMesh_Dispatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plate.msh")
	require.NoError(t, os.WriteFile(path, []byte(sampleMsh), 0o644))

	m, err := LoadMesh(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 4, m.NodesCount())

	_, err = LoadMesh(context.Background(), filepath.Join(dir, "plate.stl"))
	var me *Error
	require.True(t, errors.As(err, &me))
	assert.Equal(t, ExtensionNotSupported, me.Code)

	_, err = LoadMesh(context.Background(), filepath.Join(dir, "missing.msh"))
	require.True(t, errors.As(err, &me))
	assert.Equal(t, FileError, me.Code)

	_, err = LoadMesh(context.Background(), filepath.Join(dir, "missing.geo"))
	require.True(t, errors.As(err, &me))
	assert.Equal(t, FileError, me.Code)
}

func TestLoadMesh_Rectangle(t *testing.T) {
	m, err := LoadMesh(context.Background(), "rect:2:1:4:2")
	require.NoError(t, err)
	assert.Equal(t, 15, m.NodesCount())
	assert.Len(t, m.Quads(), 8)

	for _, bad := range []string{"rect:1:1:2", "rect:a:1:2:2", "rect:1:1:0:2", "rect:-1:1:2:2"} {
		_, err := LoadMesh(context.Background(), bad)
		assert.Error(t, err, bad)
	}
}

func TestGenerateRectangle(t *testing.T) {
	m, err := GenerateRectangle(3, 2, 3, 2)
	require.NoError(t, err)
	require.NoError(t, m.Validate())

	assert.Equal(t, 12, m.NodesCount())
	assert.Len(t, m.Quads(), 6)
	assert.Len(t, m.Lines(), 10)

	// counter-clockwise quads have positive signed area
	for _, q := range m.Quads() {
		var area float64
		for a := 0; a < 4; a++ {
			p, _ := m.Node(q.NodeIDs[a])
			r, _ := m.Node(q.NodeIDs[(a+1)%4])
			area += p.X*r.Y - r.X*p.Y
		}
		assert.InDelta(t, 2.0, area, 1e-12)
	}

	sizes := map[string]int{GroupBottom: 3, GroupRight: 2, GroupTop: 3, GroupLeft: 2, GroupAll: 10}
	for name, n := range sizes {
		lines, err := m.BoundaryLines(name)
		require.NoError(t, err)
		assert.Len(t, lines, n, name)
	}

	bottom, _ := m.BoundaryLines(GroupBottom)
	for _, l := range bottom {
		a, _ := m.Node(l.NodeIDs[0])
		b, _ := m.Node(l.NodeIDs[1])
		assert.Zero(t, a.Y)
		assert.Zero(t, b.Y)
		assert.Less(t, a.X, b.X)
	}
}

func TestGenerateRectangle_Invalid(t *testing.T) {
	_, err := GenerateRectangle(0, 1, 1, 1)
	var me *Error
	require.True(t, errors.As(err, &me))
	assert.Equal(t, GeneratorError, me.Code)

	_, err = GenerateRectangle(1, 1, 1, 0)
	require.Error(t, err)
}
