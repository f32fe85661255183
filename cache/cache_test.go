package cache

import (
	"os"
	"path/filepath"
	"testing"

	"heatfem/export"
	"heatfem/linalg"
	"heatfem/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, dir, name, content string) string {
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestKeyDependsOnInputs(t *testing.T) {
	dir := t.TempDir()
	cfg := writeTemp(t, dir, "p.json", `{"a":1}`)
	msh := writeTemp(t, dir, "m.msh", "mesh")

	k1, err := Key(msh, cfg)
	require.NoError(t, err)
	k2, err := Key(msh, cfg)
	require.NoError(t, err)
	assert.Equal(t, k1, k2)

	k3, err := Key(msh, cfg, "quad=2")
	require.NoError(t, err)
	assert.NotEqual(t, k1, k3)

	writeTemp(t, dir, "p.json", `{"a":2}`)
	k4, err := Key(msh, cfg)
	require.NoError(t, err)
	assert.NotEqual(t, k1, k4)

	r1, err := Key("rect:1:1:2:2", cfg)
	require.NoError(t, err)
	r2, err := Key("rect:1:1:4:4", cfg)
	require.NoError(t, err)
	assert.NotEqual(t, r1, r2)

	_, err = Key(filepath.Join(dir, "missing.msh"), cfg)
	assert.Error(t, err)
}

func system(t *testing.T, withC bool) model.GlobalMatrices {
	h, err := linalg.FromTriplets(2, 2, linalg.Triplets{
		{Row: 0, Col: 0, Value: 2}, {Row: 0, Col: 1, Value: -1},
		{Row: 1, Col: 0, Value: -1}, {Row: 1, Col: 1, Value: 2},
	})
	require.NoError(t, err)
	gm := model.GlobalMatrices{H: h, P: linalg.Uniform(2, 1)}
	if withC {
		gm.C = h.Scaled(0.5)
	}
	return gm
}

func TestSaveLoad(t *testing.T) {
	root := t.TempDir()
	gm := system(t, true)
	require.NoError(t, Save(root, "abc", "rect:1:1:1:1", gm))

	got, ok, err := Load(root, "abc")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.H.Equal(gm.H, 0))
	assert.True(t, got.C.Equal(gm.C, 0))
	assert.Equal(t, gm.P.RawVector().Data, got.P.RawVector().Data)
}

func TestLoadMiss(t *testing.T) {
	_, ok, err := Load(t.TempDir(), "nothing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoadStale(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, Save(root, "k", "m", system(t, true)))
	require.NoError(t, os.Remove(filepath.Join(root, "k", export.FileC)))

	_, ok, err := Load(root, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoadCorruptMetadata(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, Save(root, "k", "m", system(t, false)))
	writeTemp(t, filepath.Join(root, "k"), metadataFile, "{")

	_, ok, err := Load(root, "k")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestKeyFormat(t *testing.T) {
	cfg := writeTemp(t, t.TempDir(), "p.yaml", "a: 1")
	k, err := Key("rect:1:1:1:1", cfg)
	require.NoError(t, err)
	assert.Len(t, k, 16)
}
