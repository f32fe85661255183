package export

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"heatfem/model"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// vtkQuad is the VTK cell type of a 4-node quadrilateral.
const vtkQuad = 9

// FieldName is the name of the exported point scalar.
const FieldName = "Temperature"

// ExportSteadyVTK writes a legacy ASCII VTK file with the nodal temperatures.
func ExportSteadyVTK(path string, mesh *model.Mesh, t mat.Vector) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create vtk dir: %w", err)
	}
	log.WithField("path", path).Info("exporting VTK")
	return writeVTKFile(path, mesh, t, nil)
}

// ExportTransientVTK writes one VTK file per frame, base_0000.vtk and so on,
// and a base.pvd collection referencing them with their times.
func ExportTransientVTK(dir, base string, mesh *model.Mesh, frames []*mat.VecDense, times []float64) error {
	if len(frames) != len(times) {
		return fmt.Errorf("got %d frames but %d times", len(frames), len(times))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create vtk dir: %w", err)
	}
	log.WithFields(log.Fields{"dir": dir, "frames": len(frames)}).Info("exporting VTK series")

	for i, frame := range frames {
		tm := times[i]
		if err := writeVTKFile(filepath.Join(dir, seriesFile(base, i)), mesh, frame, &tm); err != nil {
			return err
		}
	}

	f, err := os.Create(filepath.Join(dir, base+".pvd"))
	if err != nil {
		return fmt.Errorf("create pvd: %w", err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	fmt.Fprintln(w, `<?xml version="1.0"?>`)
	fmt.Fprintln(w, `<VTKFile type="Collection" version="0.1">`)
	fmt.Fprintln(w, `  <Collection>`)
	for i, tm := range times {
		fmt.Fprintf(w, "    <DataSet timestep=\"%s\" file=\"%s\"/>\n", strconv.FormatFloat(tm, 'g', -1, 64), seriesFile(base, i))
	}
	fmt.Fprintln(w, `  </Collection>`)
	fmt.Fprintln(w, `</VTKFile>`)
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write pvd: %w", err)
	}
	return f.Close()
}

func seriesFile(base string, i int) string {
	return fmt.Sprintf("%s_%04d.vtk", base, i)
}

func writeVTKFile(path string, mesh *model.Mesh, t mat.Vector, tm *float64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create vtk file: %w", err)
	}
	defer f.Close()
	if err := WriteVTK(f, mesh, t, tm); err != nil {
		return err
	}
	return f.Close()
}

// WriteVTK encodes the mesh and field. tm, when set, is put in the title.
func WriteVTK(out io.Writer, mesh *model.Mesh, t mat.Vector, tm *float64) error {
	nodes := mesh.Nodes()
	quads := mesh.Quads()
	if t.Len() != len(nodes) {
		return fmt.Errorf("field has %d values for %d nodes", t.Len(), len(nodes))
	}
	num := func(v float64) string { return strconv.FormatFloat(v, 'g', 10, 64) }

	w := bufio.NewWriter(out)
	fmt.Fprintln(w, "# vtk DataFile Version 3.0")
	if tm != nil {
		fmt.Fprintf(w, "FEM Heat Transfer Solution (t=%ss)\n", num(*tm))
	} else {
		fmt.Fprintln(w, "FEM Heat Transfer Solution")
	}
	fmt.Fprintln(w, "ASCII")
	fmt.Fprintln(w, "DATASET UNSTRUCTURED_GRID")

	fmt.Fprintf(w, "POINTS %d double\n", len(nodes))
	for _, n := range nodes {
		fmt.Fprintf(w, "%s %s 0.0\n", num(n.X), num(n.Y))
	}

	fmt.Fprintf(w, "CELLS %d %d\n", len(quads), len(quads)*5)
	for _, q := range quads {
		w.WriteString("4")
		for _, id := range q.NodeIDs {
			local, err := mesh.NodeLocalID(id)
			if err != nil {
				return fmt.Errorf("quad %d: %w", q.ID, err)
			}
			w.WriteString(" " + strconv.Itoa(local))
		}
		w.WriteString("\n")
	}

	fmt.Fprintf(w, "CELL_TYPES %d\n", len(quads))
	for range quads {
		fmt.Fprintln(w, vtkQuad)
	}

	fmt.Fprintf(w, "POINT_DATA %d\n", len(nodes))
	fmt.Fprintf(w, "SCALARS %s double 1\n", FieldName)
	fmt.Fprintln(w, "LOOKUP_TABLE default")
	for i := 0; i < t.Len(); i++ {
		fmt.Fprintln(w, num(t.AtVec(i)))
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write vtk: %w", err)
	}
	return nil
}
