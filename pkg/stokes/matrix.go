package stokes

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"gonum.org/v1/gonum/mat"

	"polstokes/pkg/header"
	"polstokes/pkg/polerr"
)

// Efficiency is the mean throughput of one polarizer along its major and
// minor axes.
type Efficiency struct {
	Par float64
	Per float64
}

// MatrixFactory holds what is needed to build the demodulation matrix: the
// polarizer order, their efficiencies and their orientations in degrees.
type MatrixFactory struct {
	Polarizers   []string
	Efficiencies map[string]Efficiency
	Angles       map[string]float64
}

// PolarizerAngle parses the orientation in degrees from the digits of a
// polarizer label such as POL60.
func PolarizerAngle(label string) (float64, error) {
	digits := strings.TrimLeftFunc(label, func(r rune) bool { return !unicode.IsDigit(r) })
	end := strings.IndexFunc(digits, func(r rune) bool { return !unicode.IsDigit(r) })
	if end >= 0 {
		digits = digits[:end]
	}
	if digits == "" {
		return 0, fmt.Errorf("%w: polarizer label %q has no angle", polerr.ErrInvalidParameter, label)
	}
	deg, err := strconv.Atoi(digits)
	if err != nil {
		return 0, fmt.Errorf("%w: polarizer label %q: %v", polerr.ErrInvalidParameter, label, err)
	}
	return float64(deg), nil
}

// LoadMatrixFactory integrates the throughput of every polarizer of a
// summed profile over the wave grid.
func LoadMatrixFactory(profile header.Profile, wave Wave, src Throughput) (*MatrixFactory, error) {
	if err := wave.Validate(); err != nil {
		return nil, err
	}
	pols := profile.Keys()
	if len(pols) != 3 {
		return nil, fmt.Errorf("%w: demodulation needs 3 polarizers, got %d", polerr.ErrInvalidParameter, len(pols))
	}

	f := &MatrixFactory{
		Polarizers:   pols,
		Efficiencies: make(map[string]Efficiency, len(pols)),
		Angles:       make(map[string]float64, len(pols)),
	}
	for _, pol := range pols {
		raw, err := profile.Record(pol)
		if err != nil {
			return nil, err
		}
		par, err := NewTransmittance(raw, Parallel).TransMean(src, wave)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", pol, err)
		}
		per, err := NewTransmittance(raw, Perpendicular).TransMean(src, wave)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", pol, err)
		}
		angle, err := PolarizerAngle(raw.Polarizer)
		if err != nil {
			return nil, err
		}
		f.Efficiencies[pol] = Efficiency{Par: par, Per: per}
		f.Angles[pol] = angle
	}
	return f, nil
}

// Modulation returns the 3×3 matrix mapping (I, Q, U) to the signal seen
// through each polarizer. Row i is
//
//	½ [Tpar+Tper, (Tpar−Tper)·cos 2φ, (Tpar−Tper)·sin 2φ]
func (f *MatrixFactory) Modulation() *mat.Dense {
	a := mat.NewDense(len(f.Polarizers), 3, nil)
	for i, pol := range f.Polarizers {
		e := f.Efficiencies[pol]
		phi := 2 * f.Angles[pol] * math.Pi / 180
		a.SetRow(i, []float64{
			0.5 * (e.Par + e.Per),
			0.5 * (e.Par - e.Per) * math.Cos(phi),
			0.5 * (e.Par - e.Per) * math.Sin(phi),
		})
	}
	return a
}

// Matrix returns the demodulation matrix, the inverse of Modulation.
func (f *MatrixFactory) Matrix() (*mat.Dense, error) {
	var m mat.Dense
	if err := m.Inverse(f.Modulation()); err != nil {
		return nil, fmt.Errorf("%w: modulation matrix is not invertible: %v", polerr.ErrInvalidParameter, err)
	}
	return &m, nil
}
