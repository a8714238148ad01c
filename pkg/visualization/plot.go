package visualization

import (
	"fmt"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"polstokes/pkg/pixel"
	"polstokes/pkg/polerr"
)

// imageGrid adapts a pixel image to plotter.GridXYZ using physical pixel
// coordinates.
type imageGrid struct {
	img pixel.Image
}

func (g imageGrid) Dims() (c, r int)   { return g.img.Cols, g.img.Rows }
func (g imageGrid) Z(c, r int) float64 { return g.img.At(r, c) }
func (g imageGrid) X(c int) float64    { return float64(c) * g.img.XDelta }
func (g imageGrid) Y(r int) float64    { return float64(r) * g.img.YDelta }

// SaveHeatMap draws img as a false-colour heat map with axes in physical
// pixel units.
func SaveHeatMap(img pixel.Image, title, filename string) error {
	lo, hi, ok := finiteRange(img.Data)
	if !ok {
		return fmt.Errorf("%w: heat map %q has no finite samples", polerr.ErrMissingData, title)
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"

	hm := plotter.NewHeatMap(imageGrid{img: img}, palette.Heat(64, 1))
	if lo == hi {
		hm.Min, hm.Max = lo-0.5, hi+0.5
	}
	p.Add(hm)

	if err := p.Save(6*vg.Inch, 6*vg.Inch, filename); err != nil {
		return fmt.Errorf("failed to save heat map: %w", err)
	}
	return nil
}

// Curve is one labelled throughput curve.
type Curve struct {
	Label  string
	Wave   []float64
	Values []float64
}

// SaveThroughputCurves draws curves on a shared wavelength axis.
func SaveThroughputCurves(curves []Curve, title, filename string) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Wavelength (Å)"
	p.Y.Label.Text = "Throughput"

	for i, c := range curves {
		if len(c.Wave) != len(c.Values) {
			return fmt.Errorf("%w: curve %q has %d wavelengths and %d values",
				polerr.ErrShapeMismatch, c.Label, len(c.Wave), len(c.Values))
		}
		pts := make(plotter.XYs, 0, len(c.Wave))
		for j, w := range c.Wave {
			if math.IsNaN(c.Values[j]) {
				continue
			}
			pts = append(pts, plotter.XY{X: w, Y: c.Values[j]})
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("curve %q: %w", c.Label, err)
		}
		line.Color = plotutil.Color(i)
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(c.Label, line)
	}

	if err := p.Save(10*vg.Inch, 5*vg.Inch, filename); err != nil {
		return fmt.Errorf("failed to save throughput plot: %w", err)
	}
	return nil
}
