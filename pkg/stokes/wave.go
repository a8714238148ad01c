package stokes

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"polstokes/pkg/polerr"
)

// Wave is an evenly spaced wavelength grid in Ångström, Num samples from
// Start to Stop inclusive.
type Wave struct {
	Start float64
	Stop  float64
	Num   int
}

// Validate checks that the grid has at least two increasing samples.
func (w Wave) Validate() error {
	if w.Num < 2 {
		return fmt.Errorf("%w: wave grid needs at least 2 samples, got %d", polerr.ErrInvalidParameter, w.Num)
	}
	if !(w.Stop > w.Start) {
		return fmt.Errorf("%w: wave grid stop %g must exceed start %g", polerr.ErrInvalidParameter, w.Stop, w.Start)
	}
	return nil
}

// Array returns the grid samples.
func (w Wave) Array() []float64 {
	return floats.Span(make([]float64, w.Num), w.Start, w.Stop)
}

// Differential returns the spacing between samples.
func (w Wave) Differential() float64 {
	return (w.Stop - w.Start) / float64(w.Num-1)
}

func (w Wave) String() string {
	return fmt.Sprintf("Wave[%g:%g, n=%d]", w.Start, w.Stop, w.Num)
}
