package registration

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"polstokes/pkg/pixel"
	"polstokes/pkg/polerr"
)

// blob returns a rows×cols image holding a Gaussian spot centred on (cy, cx)
// over a flat pedestal.
func blob(rows, cols int, cy, cx, sigma float64) pixel.Image {
	data := make([]float64, rows*cols)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			dy, dx := float64(y)-cy, float64(x)-cx
			data[y*cols+x] = 10 + 1000*math.Exp(-(dx*dx+dy*dy)/(2*sigma*sigma))
		}
	}
	img, _ := pixel.New(rows, cols, data)
	return img
}

func TestFFT2DImpulse(t *testing.T) {
	// 2D FFT of an impulse is flat in the frequency domain
	result := fft2D([]float64{1, 0, 0, 0, 0, 0}, 2, 3)
	require.Len(t, result, 6)
	for i, val := range result {
		if math.Abs(cmplx.Abs(val)-1.0) > 1e-9 {
			t.Errorf("FFT[%d]: expected magnitude 1.0, got %v", i, cmplx.Abs(val))
		}
	}
}

func TestFFT2DRoundTrip(t *testing.T) {
	data := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}
	back := ifft2D(fft2D(data, 3, 5), 3, 5)
	for i, v := range back {
		if math.Abs(real(v)-data[i]) > 1e-9 || math.Abs(imag(v)) > 1e-9 {
			t.Errorf("sample %d: got %v, want %v", i, v, data[i])
		}
	}
}

func TestFindShiftIdentity(t *testing.T) {
	img := blob(24, 20, 9.3, 11.7, 2)
	off, err := FindShift(img, img)
	require.NoError(t, err)
	assert.Equal(t, Offset{}, off)

	aligned, off, err := Align(img, img)
	require.NoError(t, err)
	assert.True(t, off.IsZero())
	assert.Equal(t, img.Data, aligned.Data)
}

func TestFindShiftConstantImage(t *testing.T) {
	img := pixel.Filled(8, 8, 5)
	off, err := FindShift(img, img)
	require.NoError(t, err)
	assert.True(t, off.IsZero())
}

func TestFindShiftInteger(t *testing.T) {
	ref := blob(32, 32, 10, 12, 2)
	mov := blob(32, 32, 13, 9, 2)

	off, err := FindShift(mov, ref)
	require.NoError(t, err)
	assert.InDelta(t, -3.0, off.DY, 1e-6)
	assert.InDelta(t, 3.0, off.DX, 1e-6)

	aligned := Shift(mov, off)
	// away from the borders the aligned spot matches the reference
	for y := 4; y < 20; y++ {
		for x := 4; x < 20; x++ {
			assert.InDelta(t, ref.At(y, x), aligned.At(y, x), 1e-6)
		}
	}
}

func TestFindShiftSubpixel(t *testing.T) {
	ref := blob(32, 32, 15, 15, 2.5)
	mov := blob(32, 32, 15.4, 14.75, 2.5)

	off, err := FindShift(mov, ref)
	require.NoError(t, err)
	assert.InDelta(t, -0.4, off.DY, 0.05)
	assert.InDelta(t, 0.25, off.DX, 0.05)
}

func TestFindShiftShapeMismatch(t *testing.T) {
	_, err := FindShift(pixel.Filled(4, 4, 1), pixel.Filled(4, 5, 1))
	assert.ErrorIs(t, err, polerr.ErrShapeMismatch)
}

func TestShiftUsesNearestEdge(t *testing.T) {
	img, err := pixel.FromRows([][]float64{
		{1, 2, 3},
		{4, 5, 6},
	})
	require.NoError(t, err)

	right := Shift(img, Offset{DX: 1})
	assert.Equal(t, []float64{1, 1, 2, 4, 4, 5}, right.Data)

	up := Shift(img, Offset{DY: -1})
	assert.Equal(t, []float64{4, 5, 6, 4, 5, 6}, up.Data)

	half := Shift(img, Offset{DX: 0.5})
	assert.InDeltaSlice(t, []float64{1, 1.5, 2.5, 4, 4.5, 5.5}, half.Data, 1e-12)
}

func TestSubpixel(t *testing.T) {
	assert.Equal(t, 0.0, subpixel(1, 2, 1))
	assert.InDelta(t, 0.5*(0.0-1)/(0-2*2+1), subpixel(0, 2, 1), 1e-12)
	assert.Equal(t, 0.0, subpixel(3, 3, 3))
}
