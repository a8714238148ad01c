package registration

import (
	"gonum.org/v1/gonum/dsp/fourier"
)

// fft2D performs a 2D Fast Fourier Transform on a real image.
// The transform is separable: every row is transformed first, then every
// column of the row spectra.
//
// Parameters:
//   - data: Input image data as a 1D array (row-major order)
//   - rows, cols: Shape of the image
//
// Returns:
//   - The unnormalised 2D spectrum as a row-major array of complex numbers
func fft2D(data []float64, rows, cols int) []complex128 {
	result := make([]complex128, rows*cols)
	for i, v := range data {
		result[i] = complex(v, 0)
	}
	transformAxes(result, rows, cols, false)
	return result
}

// ifft2D inverts fft2D, including the 1/(rows*cols) normalisation that the
// gonum transforms leave to the caller.
func ifft2D(coeffs []complex128, rows, cols int) []complex128 {
	result := make([]complex128, len(coeffs))
	copy(result, coeffs)
	transformAxes(result, rows, cols, true)

	scale := complex(1/float64(rows*cols), 0)
	for i := range result {
		result[i] *= scale
	}
	return result
}

// transformAxes runs a complex FFT along every row and then every column of
// buf, in place. CmplxFFT handles any length, not only powers of two.
func transformAxes(buf []complex128, rows, cols int, inverse bool) {
	rowFFT := fourier.NewCmplxFFT(cols)
	row := make([]complex128, cols)
	for i := 0; i < rows; i++ {
		copy(row, buf[i*cols:(i+1)*cols])
		if inverse {
			rowFFT.Sequence(row, row)
		} else {
			rowFFT.Coefficients(row, row)
		}
		copy(buf[i*cols:(i+1)*cols], row)
	}

	colFFT := fourier.NewCmplxFFT(rows)
	col := make([]complex128, rows)
	for j := 0; j < cols; j++ {
		for i := 0; i < rows; i++ {
			col[i] = buf[i*cols+j]
		}
		if inverse {
			colFFT.Sequence(col, col)
		} else {
			colFFT.Coefficients(col, col)
		}
		for i := 0; i < rows; i++ {
			buf[i*cols+j] = col[i]
		}
	}
}
