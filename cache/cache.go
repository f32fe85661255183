package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"heatfem/export"
	"heatfem/mesh"
	"heatfem/model"

	"github.com/cespare/xxhash/v2"
	log "github.com/sirupsen/logrus"
)

const metadataFile = "metadata.json"

// Metadata describes a cached system and is checked on load.
type Metadata struct {
	Key         string    `json:"key"`
	MeshPath    string    `json:"mesh_path"`
	Size        int       `json:"size"`
	NonZerosH   int       `json:"nnz_h"`
	HasCapacity bool      `json:"has_capacity"`
	CreatedAt   time.Time `json:"created_at"`
}

// Key hashes the mesh and problem files together with any extra inputs
// that change the assembled system, such as integration orders. Generated
// meshes are hashed by their description.
func Key(meshPath, configPath string, extra ...string) (string, error) {
	h := xxhash.New()
	sep := []byte{0}

	if strings.HasPrefix(meshPath, mesh.RectPrefix) {
		h.WriteString(meshPath)
	} else {
		data, err := os.ReadFile(meshPath)
		if err != nil {
			return "", fmt.Errorf("hash mesh: %w", err)
		}
		h.Write(data)
	}
	h.Write(sep)

	data, err := os.ReadFile(configPath)
	if err != nil {
		return "", fmt.Errorf("hash problem config: %w", err)
	}
	h.Write(data)

	for _, e := range extra {
		h.Write(sep)
		h.WriteString(e)
	}
	return fmt.Sprintf("%016x", h.Sum64()), nil
}

func dir(root, key string) string { return filepath.Join(root, key) }

// Save stores gm under root/key.
func Save(root, key, meshPath string, gm model.GlobalMatrices) error {
	d := dir(root, key)
	if err := export.ExportMatrixMarket(d, gm); err != nil {
		return err
	}
	size, _ := gm.H.Dims()
	md := Metadata{
		Key:         key,
		MeshPath:    meshPath,
		Size:        size,
		NonZerosH:   gm.H.NNZ(),
		HasCapacity: gm.HasCapacity(),
		CreatedAt:   time.Now().UTC(),
	}
	data, err := json.MarshalIndent(md, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cache metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(d, metadataFile), data, 0o644); err != nil {
		return fmt.Errorf("write cache metadata: %w", err)
	}
	log.WithFields(log.Fields{"key": key, "dir": d}).Info("system cached")
	return nil
}

// Load returns the system stored under root/key. ok is false on a miss,
// including an entry whose files disagree with its metadata.
func Load(root, key string) (gm model.GlobalMatrices, ok bool, err error) {
	d := dir(root, key)
	data, err := os.ReadFile(filepath.Join(d, metadataFile))
	if errors.Is(err, fs.ErrNotExist) {
		return gm, false, nil
	}
	if err != nil {
		return gm, false, fmt.Errorf("read cache metadata: %w", err)
	}
	var md Metadata
	if err := json.Unmarshal(data, &md); err != nil {
		return gm, false, fmt.Errorf("decode cache metadata: %w", err)
	}

	gm, err = export.ImportMatrixMarket(d)
	if err != nil {
		return model.GlobalMatrices{}, false, err
	}
	size, _ := gm.H.Dims()
	if md.Key != key || md.Size != size || md.NonZerosH != gm.H.NNZ() || md.HasCapacity != gm.HasCapacity() {
		log.WithField("key", key).Warn("stale cache entry ignored")
		return model.GlobalMatrices{}, false, nil
	}
	log.WithFields(log.Fields{"key": key, "size": size}).Info("system loaded from cache")
	return gm, true, nil
}
