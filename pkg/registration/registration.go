// Package registration estimates and applies the sub-pixel translation that
// brings one image onto another.
//
// The offset is found from the peak of the circular cross-correlation of the
// two mean-subtracted images, computed in the Fourier domain. A three-point
// fit around the integer peak gives the fractional part.
package registration

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"polstokes/pkg/pixel"
	"polstokes/pkg/polerr"
)

// snap is the magnitude below which an estimated offset is reported as zero.
const snap = 1e-9

// Offset is a translation in pixels. Positive DY moves content down,
// positive DX moves content right.
type Offset struct {
	DY float64
	DX float64
}

// IsZero reports whether the offset is exactly zero.
func (o Offset) IsZero() bool { return o.DY == 0 && o.DX == 0 }

func (o Offset) String() string { return fmt.Sprintf("(dy %+.3f, dx %+.3f)", o.DY, o.DX) }

// FindShift returns the offset that must be applied to moving, with Shift,
// so that it lines up with reference.
func FindShift(moving, reference pixel.Image) (Offset, error) {
	if !moving.SameShape(reference) {
		return Offset{}, fmt.Errorf("%w: registering %dx%d against %dx%d",
			polerr.ErrShapeMismatch, moving.Rows, moving.Cols, reference.Rows, reference.Cols)
	}
	rows, cols := moving.Rows, moving.Cols

	fm := fft2D(centred(moving.Data), rows, cols)
	fr := fft2D(centred(reference.Data), rows, cols)
	cross := make([]complex128, len(fm))
	for i := range fm {
		cross[i] = fr[i] * cmplx.Conj(fm[i])
	}
	spec := ifft2D(cross, rows, cols)
	corr := make([]float64, len(spec))
	for i, c := range spec {
		corr[i] = real(c)
	}

	peak := floats.MaxIdx(corr)
	py, px := peak/cols, peak%cols

	at := func(y, x int) float64 {
		return corr[wrap(y, rows)*cols+wrap(x, cols)]
	}
	dy := float64(py) + subpixel(at(py-1, px), at(py, px), at(py+1, px))
	dx := float64(px) + subpixel(at(py, px-1), at(py, px), at(py, px+1))

	return Offset{DY: unwrap(dy, rows), DX: unwrap(dx, cols)}, nil
}

// Shift translates img by off, resampling bilinearly. Samples that fall
// outside the frame take the value of the nearest edge pixel.
func Shift(img pixel.Image, off Offset) pixel.Image {
	if off.IsZero() {
		return img.Clone()
	}
	rows, cols := img.Rows, img.Cols
	out := img
	out.Data = make([]float64, len(img.Data))

	sample := func(y, x int) float64 {
		y = min(max(y, 0), rows-1)
		x = min(max(x, 0), cols-1)
		return img.Data[y*cols+x]
	}

	for y := 0; y < rows; y++ {
		sy := float64(y) - off.DY
		y0 := int(math.Floor(sy))
		fy := sy - float64(y0)
		for x := 0; x < cols; x++ {
			sx := float64(x) - off.DX
			x0 := int(math.Floor(sx))
			fx := sx - float64(x0)

			v := (1-fy)*(1-fx)*sample(y0, x0) + (1-fy)*fx*sample(y0, x0+1)
			if fy != 0 {
				v += fy*(1-fx)*sample(y0+1, x0) + fy*fx*sample(y0+1, x0+1)
			}
			out.Data[y*cols+x] = v
		}
	}
	return out
}

// Align registers moving onto reference and returns the resampled image with
// the offset that was applied.
func Align(moving, reference pixel.Image) (pixel.Image, Offset, error) {
	off, err := FindShift(moving, reference)
	if err != nil {
		return pixel.Image{}, Offset{}, err
	}
	return Shift(moving, off), off, nil
}

func centred(data []float64) []float64 {
	mean := stat.Mean(data, nil)
	out := make([]float64, len(data))
	for i, v := range data {
		out[i] = v - mean
	}
	return out
}

// subpixel returns the fractional peak position relative to the centre sample.
// A Gaussian fit is used when all three samples are positive, otherwise a
// parabola.
func subpixel(left, centre, right float64) float64 {
	var d float64
	if left > 0 && centre > 0 && right > 0 {
		ll, lc, lr := math.Log(left), math.Log(centre), math.Log(right)
		if den := ll - 2*lc + lr; den != 0 {
			d = 0.5 * (ll - lr) / den
		}
	} else if den := left - 2*centre + right; den != 0 {
		d = 0.5 * (left - right) / den
	}
	if math.IsNaN(d) || math.Abs(d) > 0.5 {
		return 0
	}
	return d
}

func wrap(i, n int) int {
	i %= n
	if i < 0 {
		i += n
	}
	return i
}

// unwrap maps a circular peak position onto a signed offset.
func unwrap(p float64, n int) float64 {
	if p > float64(n)/2 {
		p -= float64(n)
	}
	if math.Abs(p) < snap {
		return 0
	}
	return p
}
