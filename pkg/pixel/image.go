// Package pixel provides the two-dimensional sample array used throughout the
// pipeline, together with the physical size of one pixel along each axis.
//
// An Image is a value type. Every operation that looks like a mutation
// returns a new Image with freshly allocated samples, so an Image handed to
// another goroutine can be read without synchronisation.
package pixel

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"polstokes/pkg/polerr"
)

// Image is a row-major grid of float64 samples plus pixel-scale metadata.
type Image struct {
	// Rows and Cols give the shape of the grid.
	Rows int
	Cols int

	// Data holds Rows*Cols samples in row-major order. It must be treated as
	// read-only once the Image is constructed.
	Data []float64

	// XDelta and YDelta are the physical size of one pixel along each axis.
	XDelta float64
	YDelta float64
}

// New wraps data as a rows×cols image with unit pixel scale. The image takes
// ownership of data.
func New(rows, cols int, data []float64) (Image, error) {
	if rows <= 0 || cols <= 0 {
		return Image{}, fmt.Errorf("%w: image shape %dx%d", polerr.ErrInvalidParameter, rows, cols)
	}
	if len(data) != rows*cols {
		return Image{}, fmt.Errorf("%w: %d samples for a %dx%d image", polerr.ErrShapeMismatch, len(data), rows, cols)
	}
	return Image{Rows: rows, Cols: cols, Data: data, XDelta: 1, YDelta: 1}, nil
}

// Filled returns a rows×cols image with every sample set to v.
func Filled(rows, cols int, v float64) Image {
	data := make([]float64, rows*cols)
	if v != 0 {
		floats.AddConst(v, data)
	}
	return Image{Rows: rows, Cols: cols, Data: data, XDelta: 1, YDelta: 1}
}

// FromRows builds an image from a slice of equal-length rows.
func FromRows(rows [][]float64) (Image, error) {
	if len(rows) == 0 {
		return Image{}, fmt.Errorf("%w: no rows", polerr.ErrMissingData)
	}
	cols := len(rows[0])
	data := make([]float64, 0, len(rows)*cols)
	for i, r := range rows {
		if len(r) != cols {
			return Image{}, fmt.Errorf("%w: row %d has %d columns, want %d", polerr.ErrShapeMismatch, i, len(r), cols)
		}
		data = append(data, r...)
	}
	return New(len(rows), cols, data)
}

// WithScale returns a copy of the image header with the given pixel scale.
// Samples are shared, which is safe because they are never written.
func (im Image) WithScale(xDelta, yDelta float64) Image {
	im.XDelta = xDelta
	im.YDelta = yDelta
	return im
}

// WithData returns an image with the same shape and scale carrying data.
// It is the "replace the samples, keep the rest" constructor.
func (im Image) WithData(data []float64) (Image, error) {
	if len(data) != im.Rows*im.Cols {
		return Image{}, fmt.Errorf("%w: %d samples for a %dx%d image", polerr.ErrShapeMismatch, len(data), im.Rows, im.Cols)
	}
	im.Data = data
	return im, nil
}

// Shape returns (rows, cols).
func (im Image) Shape() (int, int) { return im.Rows, im.Cols }

// Len returns the number of samples.
func (im Image) Len() int { return len(im.Data) }

// At returns the sample at row r, column c.
func (im Image) At(r, c int) float64 { return im.Data[r*im.Cols+c] }

// SameShape reports whether o has the shape of im.
func (im Image) SameShape(o Image) bool { return im.Rows == o.Rows && im.Cols == o.Cols }

// Clone returns a deep copy.
func (im Image) Clone() Image {
	out := im
	out.Data = make([]float64, len(im.Data))
	copy(out.Data, im.Data)
	return out
}

func (im Image) checkShape(o Image, op string) error {
	if !im.SameShape(o) {
		return fmt.Errorf("%w: %s of %dx%d and %dx%d images", polerr.ErrShapeMismatch, op, im.Rows, im.Cols, o.Rows, o.Cols)
	}
	return nil
}

// Add returns im + o elementwise.
func (im Image) Add(o Image) (Image, error) {
	if err := im.checkShape(o, "add"); err != nil {
		return Image{}, err
	}
	im.Data = floats.AddTo(make([]float64, len(im.Data)), im.Data, o.Data)
	return im, nil
}

// Sub returns im - o elementwise.
func (im Image) Sub(o Image) (Image, error) {
	if err := im.checkShape(o, "subtract"); err != nil {
		return Image{}, err
	}
	im.Data = floats.SubTo(make([]float64, len(im.Data)), im.Data, o.Data)
	return im, nil
}

// Mul returns im * o elementwise.
func (im Image) Mul(o Image) (Image, error) {
	if err := im.checkShape(o, "multiply"); err != nil {
		return Image{}, err
	}
	im.Data = floats.MulTo(make([]float64, len(im.Data)), im.Data, o.Data)
	return im, nil
}

// Div returns im / o elementwise. Division by a zero sample follows IEEE 754.
func (im Image) Div(o Image) (Image, error) {
	if err := im.checkShape(o, "divide"); err != nil {
		return Image{}, err
	}
	im.Data = floats.DivTo(make([]float64, len(im.Data)), im.Data, o.Data)
	return im, nil
}

// AddScalar returns im + v.
func (im Image) AddScalar(v float64) Image {
	out := im.Clone()
	floats.AddConst(v, out.Data)
	return out
}

// SubScalar returns im - v.
func (im Image) SubScalar(v float64) Image { return im.AddScalar(-v) }

// MulScalar returns im * v.
func (im Image) MulScalar(v float64) Image {
	out := im.Clone()
	floats.Scale(v, out.Data)
	return out
}

// DivScalar returns im / v.
func (im Image) DivScalar(v float64) Image {
	out := im.Clone()
	for i := range out.Data {
		out.Data[i] /= v
	}
	return out
}

// Map returns an image whose samples are f applied to each sample of im.
func (im Image) Map(f func(float64) float64) Image {
	out := im
	out.Data = make([]float64, len(im.Data))
	for i, v := range im.Data {
		out.Data[i] = f(v)
	}
	return out
}

// Sqrt returns the elementwise square root.
func (im Image) Sqrt() Image { return im.Map(math.Sqrt) }

// Square returns the elementwise square.
func (im Image) Square() Image { return im.Map(func(v float64) float64 { return v * v }) }

// ApplyMask zeroes every sample whose mask entry is false.
func (im Image) ApplyMask(mask []bool) (Image, error) {
	if len(mask) != len(im.Data) {
		return Image{}, fmt.Errorf("%w: mask of %d entries for %d samples", polerr.ErrShapeMismatch, len(mask), len(im.Data))
	}
	out := im
	out.Data = make([]float64, len(im.Data))
	for i, keep := range mask {
		if keep {
			out.Data[i] = im.Data[i]
		}
	}
	return out, nil
}

// Select returns the samples whose mask entry is true, in row-major order.
func (im Image) Select(mask []bool) ([]float64, error) {
	if len(mask) != len(im.Data) {
		return nil, fmt.Errorf("%w: mask of %d entries for %d samples", polerr.ErrShapeMismatch, len(mask), len(im.Data))
	}
	var out []float64
	for i, keep := range mask {
		if keep {
			out = append(out, im.Data[i])
		}
	}
	return out, nil
}

// Crop returns the sub-image covering rows [y0, y1) and columns [x0, x1),
// clipped to the image bounds.
func (im Image) Crop(x0, x1, y0, y1 int) (Image, error) {
	x0, x1 = max(x0, 0), min(x1, im.Cols)
	y0, y1 = max(y0, 0), min(y1, im.Rows)
	if x1 <= x0 || y1 <= y0 {
		return Image{}, fmt.Errorf("%w: empty crop [%d:%d, %d:%d]", polerr.ErrInvalidParameter, y0, y1, x0, x1)
	}
	out := im
	out.Rows, out.Cols = y1-y0, x1-x0
	out.Data = make([]float64, 0, out.Rows*out.Cols)
	for r := y0; r < y1; r++ {
		out.Data = append(out.Data, im.Data[r*im.Cols+x0:r*im.Cols+x1]...)
	}
	return out, nil
}

// MakeArrays returns the physical coordinate of each row and each column,
// measured from pixel (yc, xc).
func (im Image) MakeArrays(xc, yc float64) (ys, xs []float64) {
	ys = make([]float64, im.Rows)
	xs = make([]float64, im.Cols)
	for r := range ys {
		ys[r] = (float64(r) - yc) * im.YDelta
	}
	for c := range xs {
		xs[c] = (float64(c) - xc) * im.XDelta
	}
	return ys, xs
}

// MakeGrid returns row-major coordinate grids (x, y), each with the shape of
// the image.
func (im Image) MakeGrid(xc, yc float64) (xx, yy []float64) {
	ys, xs := im.MakeArrays(xc, yc)
	xx = make([]float64, 0, im.Len())
	yy = make([]float64, 0, im.Len())
	for r := 0; r < im.Rows; r++ {
		xx = append(xx, xs...)
		for range xs {
			yy = append(yy, ys[r])
		}
	}
	return xx, yy
}

// String summarises the image for logging.
func (im Image) String() string {
	if len(im.Data) == 0 {
		return fmt.Sprintf("Image[%dx%d]", im.Rows, im.Cols)
	}
	return fmt.Sprintf("Image[%dx%d, vals{%g,%g}, delta{%g,%g}]",
		im.Rows, im.Cols, floats.Min(im.Data), floats.Max(im.Data), im.XDelta, im.YDelta)
}
