package export

import (
	"bufio"
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"heatfem/model"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

const plotDPI = 150

// PlotHistory draws the minimum, mean and maximum nodal temperature of each
// frame against time.
func PlotHistory(path string, times []float64, frames []*mat.VecDense) error {
	if len(times) == 0 || len(times) != len(frames) {
		return fmt.Errorf("got %d frames and %d times", len(frames), len(times))
	}
	lo := make(plotter.XYs, len(times))
	mean := make(plotter.XYs, len(times))
	hi := make(plotter.XYs, len(times))
	for i, f := range frames {
		raw := f.RawVector().Data
		lo[i].X, mean[i].X, hi[i].X = times[i], times[i], times[i]
		lo[i].Y = floats.Min(raw)
		hi[i].Y = floats.Max(raw)
		mean[i].Y = floats.Sum(raw) / float64(len(raw))
	}

	p := plot.New()
	p.Title.Text = "Temperature history"
	p.X.Label.Text = "time (s)"
	p.Y.Label.Text = "T"
	p.Add(plotter.NewGrid())

	series := []struct {
		name string
		pts  plotter.XYs
		c    color.RGBA
	}{
		{"max", hi, color.RGBA{R: 200, A: 255}},
		{"mean", mean, color.RGBA{G: 140, A: 255}},
		{"min", lo, color.RGBA{B: 200, A: 255}},
	}
	for _, s := range series {
		line, err := plotter.NewLine(s.pts)
		if err != nil {
			return fmt.Errorf("history line %s: %w", s.name, err)
		}
		line.LineStyle.Width = vg.Points(2)
		line.LineStyle.Color = s.c
		p.Add(line)
		p.Legend.Add(s.name, line)
	}
	p.Legend.Top = true

	log.WithField("path", path).Info("plotting temperature history")
	return savePNG(p, 8, 6, path)
}

// PlotField draws every node colored by its temperature.
func PlotField(path string, mesh *model.Mesh, t *mat.VecDense) error {
	nodes := mesh.Nodes()
	if t.Len() != len(nodes) || len(nodes) == 0 {
		return fmt.Errorf("field has %d values for %d nodes", t.Len(), len(nodes))
	}
	pts := make(plotter.XYs, len(nodes))
	for i, n := range nodes {
		pts[i].X, pts[i].Y = n.X, n.Y
	}
	sc, err := plotter.NewScatter(pts)
	if err != nil {
		return fmt.Errorf("field scatter: %w", err)
	}

	raw := t.RawVector().Data
	cm := moreland.SmoothBlueRed()
	tmin, tmax := floats.Min(raw), floats.Max(raw)
	if tmax <= tmin {
		tmax = tmin + 1
	}
	cm.SetMin(tmin)
	cm.SetMax(tmax)
	sc.GlyphStyleFunc = func(i int) draw.GlyphStyle {
		c, err := cm.At(raw[i])
		if err != nil {
			c = color.Black
		}
		return draw.GlyphStyle{Color: c, Radius: vg.Points(2), Shape: draw.CircleGlyph{}}
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Temperature field [%.2f, %.2f]", floats.Min(raw), floats.Max(raw))
	p.X.Label.Text = "x (m)"
	p.Y.Label.Text = "y (m)"
	p.Add(sc)

	log.WithField("path", path).Info("plotting temperature field")
	return savePNG(p, 8, 6.5, path)
}

func savePNG(p *plot.Plot, widthIn, heightIn float64, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create plot dir: %w", err)
	}
	c := vgimg.NewWith(
		vgimg.UseWH(vg.Length(widthIn)*vg.Inch, vg.Length(heightIn)*vg.Inch),
		vgimg.UseDPI(plotDPI),
	)
	p.Draw(draw.New(c))

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create png: %w", err)
	}
	defer f.Close()
	bw := bufio.NewWriter(f)
	if _, err := (vgimg.PngCanvas{Canvas: c}).WriteTo(bw); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return f.Close()
}
