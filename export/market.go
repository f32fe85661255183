package export

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"heatfem/linalg"
	"heatfem/model"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// File names used for exported and cached systems.
const (
	FileH = "H.mtx"
	FileC = "C.mtx"
	FileP = "P.txt"
)

const mmHeader = "%%MatrixMarket matrix coordinate real general"

// ExportMatrixMarket writes H, C (when present) and P into dir.
func ExportMatrixMarket(dir string, gm model.GlobalMatrices) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create matrix dir: %w", err)
	}
	log.WithField("dir", dir).Info("exporting matrices")
	if err := writeFile(filepath.Join(dir, FileH), func(w io.Writer) error { return WriteMatrixMarket(w, gm.H) }); err != nil {
		return err
	}
	if gm.C != nil {
		if err := writeFile(filepath.Join(dir, FileC), func(w io.Writer) error { return WriteMatrixMarket(w, gm.C) }); err != nil {
			return err
		}
	}
	return writeFile(filepath.Join(dir, FileP), func(w io.Writer) error { return WriteVector(w, gm.P) })
}

// ImportMatrixMarket reads what ExportMatrixMarket wrote. A missing C.mtx
// yields a nil capacity matrix.
func ImportMatrixMarket(dir string) (model.GlobalMatrices, error) {
	var gm model.GlobalMatrices
	var err error
	if gm.H, err = readMatrixFile(filepath.Join(dir, FileH)); err != nil {
		return gm, err
	}
	if _, statErr := os.Stat(filepath.Join(dir, FileC)); statErr == nil {
		if gm.C, err = readMatrixFile(filepath.Join(dir, FileC)); err != nil {
			return gm, err
		}
	}
	f, err := os.Open(filepath.Join(dir, FileP))
	if err != nil {
		return gm, fmt.Errorf("open load vector: %w", err)
	}
	defer f.Close()
	if gm.P, err = ReadVector(f); err != nil {
		return gm, err
	}
	if r, _ := gm.H.Dims(); r != gm.P.Len() {
		return gm, fmt.Errorf("load vector has %d entries for %d rows", gm.P.Len(), r)
	}
	return gm, nil
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	if err := fn(w); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

func readMatrixFile(path string) (*linalg.Matrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()
	m, err := ReadMatrixMarket(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return m, nil
}

// WriteMatrixMarket writes m in coordinate format with one based indices.
func WriteMatrixMarket(w io.Writer, m *linalg.Matrix) error {
	r, c := m.Dims()
	if _, err := fmt.Fprintf(w, "%s\n%d %d %d\n", mmHeader, r, c, m.NNZ()); err != nil {
		return err
	}
	var err error
	m.DoNonZero(func(i, j int, v float64) {
		if err != nil {
			return
		}
		_, err = fmt.Fprintf(w, "%d %d %s\n", i+1, j+1, strconv.FormatFloat(v, 'e', 17, 64))
	})
	return err
}

const maxPrealloc = 1 << 20

// ReadMatrixMarket parses a real coordinate matrix. Only the general
// symmetry is accepted.
func ReadMatrixMarket(r io.Reader) (*linalg.Matrix, error) {
	sc := bufio.NewScanner(r)
	if !sc.Scan() {
		return nil, fmt.Errorf("empty matrix market stream")
	}
	banner := strings.Fields(strings.ToLower(sc.Text()))
	if len(banner) != 5 || banner[0] != "%%matrixmarket" || banner[2] != "coordinate" || banner[3] != "real" || banner[4] != "general" {
		return nil, fmt.Errorf("unsupported matrix market banner %q", sc.Text())
	}

	var rows, cols, nnz int
	sized := false
	var ts linalg.Triplets
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "%") {
			continue
		}
		f := strings.Fields(line)
		if !sized {
			if _, err := fmt.Sscan(line, &rows, &cols, &nnz); err != nil {
				return nil, fmt.Errorf("bad size line %q: %w", line, err)
			}
			if rows < 0 || cols < 0 || nnz < 0 {
				return nil, fmt.Errorf("negative size line %q", line)
			}
			// the count is untrusted until the entries arrive
			ts = linalg.NewTriplets(min(nnz, maxPrealloc))
			sized = true
			continue
		}
		if len(f) != 3 {
			return nil, fmt.Errorf("bad entry %q", line)
		}
		i, err1 := strconv.Atoi(f[0])
		j, err2 := strconv.Atoi(f[1])
		v, err3 := strconv.ParseFloat(f[2], 64)
		if err1 != nil || err2 != nil || err3 != nil {
			return nil, fmt.Errorf("bad entry %q", line)
		}
		ts.Add(i-1, j-1, v)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if !sized {
		return nil, fmt.Errorf("missing size line")
	}
	if len(ts) != nnz {
		return nil, fmt.Errorf("expected %d entries, got %d", nnz, len(ts))
	}
	return linalg.FromTriplets(rows, cols, ts)
}

// WriteVector writes one value per line.
func WriteVector(w io.Writer, v mat.Vector) error {
	for i := 0; i < v.Len(); i++ {
		if _, err := fmt.Fprintln(w, strconv.FormatFloat(v.AtVec(i), 'e', 17, 64)); err != nil {
			return err
		}
	}
	return nil
}

func ReadVector(r io.Reader) (*mat.VecDense, error) {
	var data []float64
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		v, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return nil, fmt.Errorf("bad vector entry %q", line)
		}
		data = append(data, v)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty vector")
	}
	return mat.NewVecDense(len(data), data), nil
}
