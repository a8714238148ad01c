// Package stokes turns three polarizer flux images into the Stokes
// parameters I, Q and U and the polarization products derived from them.
package stokes

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"polstokes/pkg/flux"
	"polstokes/pkg/pixel"
	"polstokes/pkg/polerr"
	"polstokes/pkg/visualization"
)

// Stokes component keys.
const (
	KeyI = "I"
	KeyQ = "Q"
	KeyU = "U"
)

// Parameter holds the Stokes images and their noise. The noise is the
// demodulation matrix applied to the polarizer noise images.
type Parameter struct {
	I, Q, U                pixel.Image
	NoiseI, NoiseQ, NoiseU pixel.Image
}

var _ visualization.Source = (*Parameter)(nil)

// Load builds the demodulation matrix for the flux image and applies it.
func Load(fi *flux.Image, wave Wave, src Throughput) (*Parameter, error) {
	factory, err := LoadMatrixFactory(fi.Profile(), wave, src)
	if err != nil {
		return nil, fmt.Errorf("demodulation matrix: %w", err)
	}
	m, err := factory.Matrix()
	if err != nil {
		return nil, err
	}
	return Demodulate(fi, m)
}

// Demodulate applies m to the polarizer images of src, taken in key order,
// and to their noise images.
func Demodulate(src visualization.Source, m mat.Matrix) (*Parameter, error) {
	keys := src.Keys()
	if r, c := m.Dims(); r != 3 || c != len(keys) || len(keys) != 3 {
		return nil, fmt.Errorf("%w: %dx%d matrix for %d polarizers", polerr.ErrShapeMismatch, r, c, len(keys))
	}

	var images, noises [3]pixel.Image
	for i, key := range keys {
		var err error
		if images[i], err = src.Image(visualization.KindImage, key); err != nil {
			return nil, err
		}
		if noises[i], err = src.Image(visualization.KindNoise, key); err != nil {
			return nil, err
		}
	}

	iqu, err := apply(images, m)
	if err != nil {
		return nil, err
	}
	noise, err := apply(noises, m)
	if err != nil {
		return nil, err
	}
	return &Parameter{
		I: iqu[0], Q: iqu[1], U: iqu[2],
		NoiseI: noise[0], NoiseQ: noise[1], NoiseU: noise[2],
	}, nil
}

// apply stacks three images into a 3×N matrix F and returns the rows of
// m·F reshaped to the image shape. Pixel scale is taken from the first image.
func apply(imgs [3]pixel.Image, m mat.Matrix) ([3]pixel.Image, error) {
	var out [3]pixel.Image
	frame := imgs[0]
	for _, img := range imgs[1:] {
		if !img.SameShape(frame) {
			return out, fmt.Errorf("%w: polarizer images %dx%d and %dx%d",
				polerr.ErrShapeMismatch, frame.Rows, frame.Cols, img.Rows, img.Cols)
		}
	}

	n := frame.Len()
	f := mat.NewDense(3, n, nil)
	for i, img := range imgs {
		f.SetRow(i, img.Data)
	}
	var res mat.Dense
	res.Mul(m, f)

	for i := range out {
		row := make([]float64, n)
		copy(row, res.RawRowView(i))
		img, err := frame.WithData(row)
		if err != nil {
			return out, err
		}
		out[i] = img
	}
	return out, nil
}

// Keys implements visualization.Source.
func (p *Parameter) Keys() []string { return []string{KeyI, KeyQ, KeyU} }

// Image implements visualization.Source.
func (p *Parameter) Image(kind visualization.Kind, key string) (pixel.Image, error) {
	switch {
	case kind == visualization.KindImage && key == KeyI:
		return p.I, nil
	case kind == visualization.KindImage && key == KeyQ:
		return p.Q, nil
	case kind == visualization.KindImage && key == KeyU:
		return p.U, nil
	case kind == visualization.KindNoise && key == KeyI:
		return p.NoiseI, nil
	case kind == visualization.KindNoise && key == KeyQ:
		return p.NoiseQ, nil
	case kind == visualization.KindNoise && key == KeyU:
		return p.NoiseU, nil
	}
	return pixel.Image{}, fmt.Errorf("%w: unknown kind or key: %s, %s", polerr.ErrInvalidParameter, kind, key)
}

func (p *Parameter) String() string {
	return fmt.Sprintf("StokesParameter(keys=[I Q U noise_I noise_Q noise_U], shape=%dx%d)", p.I.Rows, p.I.Cols)
}
