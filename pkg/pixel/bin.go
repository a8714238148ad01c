package pixel

import (
	"fmt"

	"polstokes/pkg/polerr"
)

// Bin sums non-overlapping n×n blocks into one pixel each. Rows and columns
// that do not fill a whole block are dropped. The pixel scale grows by n.
//
// Summing (rather than averaging) keeps variances additive, which is what
// the noise model relies on.
func (im Image) Bin(n int) (Image, error) {
	if n < 1 {
		return Image{}, fmt.Errorf("%w: bin size %d", polerr.ErrInvalidParameter, n)
	}
	rows, cols := im.Rows/n, im.Cols/n
	if rows == 0 || cols == 0 {
		return Image{}, fmt.Errorf("%w: bin size %d larger than %dx%d image", polerr.ErrInvalidParameter, n, im.Rows, im.Cols)
	}

	out := Image{
		Rows:   rows,
		Cols:   cols,
		Data:   make([]float64, rows*cols),
		XDelta: im.XDelta * float64(n),
		YDelta: im.YDelta * float64(n),
	}
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			sum := 0.0
			for yoff := 0; yoff < n; yoff++ {
				base := (y*n+yoff)*im.Cols + x*n
				for xoff := 0; xoff < n; xoff++ {
					sum += im.Data[base+xoff]
				}
			}
			out.Data[y*cols+x] = sum
		}
	}
	return out, nil
}
