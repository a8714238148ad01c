// Package noise tracks the two uncertainty terms of one polarizer image and
// combines them once both are known.
package noise

import (
	"fmt"
	"math"

	"polstokes/pkg/pixel"
	"polstokes/pkg/polerr"
)

// Record holds the noise state of one polarizer.
//
// CountNoise is the Poisson term (square root of the aligned counts) and is
// set by alignment. BackgroundNoise is the scalar spread of the background
// region and is set by background subtraction. BinSize is the spatial bin
// factor applied afterwards.
type Record struct {
	CountNoise      *pixel.Image
	BackgroundNoise *float64
	BinSize         int
}

// Default returns an empty record for the given bin factor.
func Default(binSize int) Record {
	return Record{BinSize: binSize}
}

// WithCountNoise returns a copy of r carrying the count-noise image.
func (r Record) WithCountNoise(img pixel.Image) Record {
	r.CountNoise = &img
	return r
}

// WithBackgroundNoise returns a copy of r carrying the background noise.
func (r Record) WithBackgroundNoise(sigma float64) Record {
	r.BackgroundNoise = &sigma
	return r
}

// WithBinSize returns a copy of r with a new bin factor.
func (r Record) WithBinSize(n int) Record {
	r.BinSize = n
	return r
}

// Ready reports whether Combined can be computed.
func (r Record) Ready() bool {
	return r.CountNoise != nil && r.BackgroundNoise != nil
}

// Combined returns the per-pixel noise on the binned grid:
//
//	sqrt(bin(countNoise²) + binSize² · backgroundNoise²)
//
// Counting variance is binned like the signal. The background term is a
// single scalar, so it grows with the number of original pixels per bin.
func (r Record) Combined() (pixel.Image, error) {
	if r.CountNoise == nil {
		return pixel.Image{}, fmt.Errorf("%w: count noise not computed (run align first)", polerr.ErrPrecondition)
	}
	if r.BackgroundNoise == nil {
		return pixel.Image{}, fmt.Errorf("%w: background noise not computed (run background subtraction first)", polerr.ErrPrecondition)
	}
	n := r.BinSize
	if n < 1 {
		return pixel.Image{}, fmt.Errorf("%w: bin size %d", polerr.ErrInvalidParameter, n)
	}

	variance, err := r.CountNoise.Square().Bin(n)
	if err != nil {
		return pixel.Image{}, err
	}
	bg := float64(n*n) * (*r.BackgroundNoise) * (*r.BackgroundNoise)
	return variance.Map(func(v float64) float64 { return math.Sqrt(v + bg) }), nil
}
