package stokes

import (
	"fmt"
	"math"

	"polstokes/pkg/header"
	"polstokes/pkg/polerr"
)

// Throughput looks up the fractional throughput of a named band at each
// wavelength.
type Throughput interface {
	Band(spec string, wave []float64) ([]float64, error)
}

// Orientation selects the polarizer transmission axis.
type Orientation string

const (
	// Parallel is the major transmission axis.
	Parallel Orientation = "par"
	// Perpendicular is the minor transmission axis.
	Perpendicular Orientation = "per"
)

// Transmittance names the bands that describe one polarizer configuration.
type Transmittance struct {
	Instrument  string
	Costar      string
	Optical     string
	Polarizer   string
	Orientation Orientation
	Filter      string
}

// NewTransmittance derives band names from a calibration record.
func NewTransmittance(raw header.Raw, orientation Orientation) Transmittance {
	optical := raw.Optical
	switch optical {
	case header.OpticsF48:
		optical = "f/48"
	case header.OpticsF96:
		optical = "f/96"
	}
	costar := ""
	if raw.Costar {
		costar = ",costar"
	}
	return Transmittance{
		Instrument:  raw.Instrument,
		Costar:      costar,
		Optical:     optical,
		Polarizer:   raw.Polarizer,
		Orientation: orientation,
		Filter:      raw.Filter,
	}
}

// BandSpecBase is the band of the bare optical path.
func (t Transmittance) BandSpecBase() string {
	return fmt.Sprintf("%s%s,%s", t.Instrument, t.Costar, t.Optical)
}

// BandSpecPolarizer is the band of the optical path through the polarizer.
func (t Transmittance) BandSpecPolarizer() string {
	return fmt.Sprintf("%s%s,%s,%s_%s", t.Instrument, t.Costar, t.Optical, t.Polarizer, t.Orientation)
}

// BandSpecFilter is the band of the optical path through the filter.
func (t Transmittance) BandSpecFilter() string {
	return fmt.Sprintf("%s%s,%s,%s", t.Instrument, t.Costar, t.Optical, t.Filter)
}

// ratio returns band(spec) / band(base) at each wavelength.
func (t Transmittance) ratio(src Throughput, spec string, wave []float64) ([]float64, error) {
	base, err := src.Band(t.BandSpecBase(), wave)
	if err != nil {
		return nil, err
	}
	band, err := src.Band(spec, wave)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(wave))
	for i := range wave {
		if base[i] == 0 {
			continue
		}
		out[i] = band[i] / base[i]
	}
	return out, nil
}

// TransCurvePol returns the polarizer throughput relative to the bare path.
// Wavelengths where the bare path is opaque give zero.
func (t Transmittance) TransCurvePol(src Throughput, wave []float64) ([]float64, error) {
	return t.ratio(src, t.BandSpecPolarizer(), wave)
}

// TransCurveFilter returns the filter throughput relative to the bare path.
func (t Transmittance) TransCurveFilter(src Throughput, wave []float64) ([]float64, error) {
	return t.ratio(src, t.BandSpecFilter(), wave)
}

// TransMean returns the polarizer throughput averaged over the grid with
// the filter curve as weight.
func (t Transmittance) TransMean(src Throughput, w Wave) (float64, error) {
	wave := w.Array()
	pol, err := t.TransCurvePol(src, wave)
	if err != nil {
		return 0, err
	}
	filt, err := t.TransCurveFilter(src, wave)
	if err != nil {
		return 0, err
	}
	var num, den float64
	for i := range wave {
		num += pol[i] * filt[i]
		den += filt[i]
	}
	return weighted(num, den, w.Differential(), t.BandSpecFilter())
}

// WaveMean returns the filter-weighted mean wavelength of the grid.
func (t Transmittance) WaveMean(src Throughput, w Wave) (float64, error) {
	wave := w.Array()
	filt, err := t.TransCurveFilter(src, wave)
	if err != nil {
		return 0, err
	}
	var num, den float64
	for i := range wave {
		num += wave[i] * filt[i]
		den += filt[i]
	}
	return weighted(num, den, w.Differential(), t.BandSpecFilter())
}

func weighted(num, den, dw float64, band string) (float64, error) {
	v := num * dw / (den * dw)
	if den == 0 || math.IsNaN(v) {
		return 0, fmt.Errorf("%w: band %q has no throughput on the wave grid", polerr.ErrInvalidParameter, band)
	}
	return v, nil
}
