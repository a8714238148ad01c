package stokes

import (
	"fmt"
	"math"

	"polstokes/pkg/pixel"
	"polstokes/pkg/polerr"
	"polstokes/pkg/visualization"
)

// Derived product keys.
const (
	KeyP     = "P"
	KeyTheta = "theta"
)

// Degree is the degree of linear polarization with its first-order noise.
type Degree struct {
	P      pixel.Image
	NoiseP pixel.Image
}

var _ visualization.Source = (*Degree)(nil)

// NewDegree computes P = sqrt(Q² + U²) / I and noise_P = √2 · noise_I / I.
func NewDegree(p *Parameter) (*Degree, error) {
	if !p.I.SameShape(p.Q) || !p.I.SameShape(p.U) || !p.I.SameShape(p.NoiseI) {
		return nil, fmt.Errorf("%w: Stokes images differ in shape", polerr.ErrShapeMismatch)
	}
	deg, noise := p.I.Clone(), p.I.Clone()
	for i, intensity := range p.I.Data {
		deg.Data[i] = math.Hypot(p.Q.Data[i], p.U.Data[i]) / intensity
		noise.Data[i] = math.Sqrt2 * p.NoiseI.Data[i] / intensity
	}
	return &Degree{P: deg, NoiseP: noise}, nil
}

// Mask marks pixels where P / noise_P exceeds ratio.
func (d *Degree) Mask(ratio float64) ([]bool, error) {
	return visualization.Mask(d, KeyP, ratio)
}

// Keys implements visualization.Source.
func (d *Degree) Keys() []string { return []string{KeyP} }

// Image implements visualization.Source. Every key maps to P.
func (d *Degree) Image(kind visualization.Kind, _ string) (pixel.Image, error) {
	switch kind {
	case visualization.KindImage:
		return d.P, nil
	case visualization.KindNoise:
		return d.NoiseP, nil
	}
	return pixel.Image{}, fmt.Errorf("%w: unknown image kind %q", polerr.ErrInvalidParameter, kind)
}

func (d *Degree) String() string {
	return fmt.Sprintf("PolarizationDegree(keys=[P noise_P], shape=%dx%d)", d.P.Rows, d.P.Cols)
}

// Angle is the polarization position angle in radians.
type Angle struct {
	Theta pixel.Image
}

var _ visualization.Source = (*Angle)(nil)

// NewAngle computes θ = ½·atan2(U, Q). When mask is non-nil, pixels where it
// is false are set to NaN.
func NewAngle(p *Parameter, mask []bool) (*Angle, error) {
	if !p.Q.SameShape(p.U) {
		return nil, fmt.Errorf("%w: Q and U differ in shape", polerr.ErrShapeMismatch)
	}
	if mask != nil && len(mask) != p.Q.Len() {
		return nil, fmt.Errorf("%w: mask of %d entries for %d pixels", polerr.ErrShapeMismatch, len(mask), p.Q.Len())
	}
	theta := p.Q.Clone()
	for i := range theta.Data {
		if mask != nil && !mask[i] {
			theta.Data[i] = math.NaN()
			continue
		}
		theta.Data[i] = 0.5 * math.Atan2(p.U.Data[i], p.Q.Data[i])
	}
	return &Angle{Theta: theta}, nil
}

// Keys implements visualization.Source.
func (a *Angle) Keys() []string { return []string{KeyTheta} }

// Image implements visualization.Source. The angle carries no noise plane.
func (a *Angle) Image(kind visualization.Kind, _ string) (pixel.Image, error) {
	switch kind {
	case visualization.KindImage:
		return a.Theta, nil
	case visualization.KindNoise:
		return pixel.Image{}, fmt.Errorf("%w: position angle has no noise estimate", polerr.ErrMissingData)
	}
	return pixel.Image{}, fmt.Errorf("%w: unknown image kind %q", polerr.ErrInvalidParameter, kind)
}

func (a *Angle) String() string {
	return fmt.Sprintf("PositionAngle(keys=[theta], shape=%dx%d)", a.Theta.Rows, a.Theta.Cols)
}
