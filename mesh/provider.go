package mesh

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"heatfem/model"

	log "github.com/sirupsen/logrus"
)

// RectPrefix marks a generated mesh path of the form rect:W:H:NX:NY.
const RectPrefix = "rect:"

// GmshBinary is the executable used to mesh .geo files.
var GmshBinary = "gmsh"

// LoadMesh returns the mesh behind path, dispatching on its extension.
func LoadMesh(ctx context.Context, path string) (*model.Mesh, error) {
	if strings.HasPrefix(path, RectPrefix) {
		return parseRect(path)
	}
	switch ext := filepath.Ext(path); ext {
	case ".msh":
		return ReadMsh(path)
	case ".geo":
		msh, err := generateMsh(ctx, path)
		if err != nil {
			return nil, err
		}
		return ReadMsh(msh)
	default:
		return nil, newError(ExtensionNotSupported, "provided extension: %q", ext)
	}
}

func parseRect(desc string) (*model.Mesh, error) {
	f := strings.Split(strings.TrimPrefix(desc, RectPrefix), ":")
	if len(f) != 4 {
		return nil, newError(GeneratorError, "expected rect:W:H:NX:NY, got %q", desc)
	}
	w, err1 := strconv.ParseFloat(f[0], 64)
	h, err2 := strconv.ParseFloat(f[1], 64)
	nx, err3 := strconv.Atoi(f[2])
	ny, err4 := strconv.Atoi(f[3])
	for _, err := range []error{err1, err2, err3, err4} {
		if err != nil {
			return nil, newError(GeneratorError, "%q: %v", desc, err)
		}
	}
	return GenerateRectangle(w, h, nx, ny)
}

// generateMsh meshes a .geo file next to it with the external gmsh binary.
func generateMsh(ctx context.Context, geo string) (string, error) {
	if _, err := os.Stat(geo); err != nil {
		return "", newError(FileError, "%v", err)
	}
	bin, err := exec.LookPath(GmshBinary)
	if err != nil {
		return "", newError(FileError, "gmsh executable not found: %v", err)
	}

	out := strings.TrimSuffix(geo, filepath.Ext(geo)) + ".msh"
	cmd := exec.CommandContext(ctx, bin, "-2", geo, "-format", "msh41", "-o", out)
	log.WithFields(log.Fields{"geo": geo, "msh": out}).Info("generating mesh with gmsh")
	if output, err := cmd.CombinedOutput(); err != nil {
		return "", newError(Unknown, "gmsh failed: %v: %s", err, strings.TrimSpace(string(output)))
	}
	if _, err := os.Stat(out); err != nil {
		return "", newError(FileError, "gmsh produced no output: %v", err)
	}
	return out, nil
}
