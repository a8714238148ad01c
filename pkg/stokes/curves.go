package stokes

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"polstokes/pkg/header"
	"polstokes/pkg/visualization"
)

// perpendicularGain magnifies minor-axis curves so they are visible next to
// the major-axis ones.
const perpendicularGain = 10

// ThroughputCurves returns the relative polarizer throughput of every
// polarizer of a summed profile along both axes, for display.
func ThroughputCurves(profile header.Profile, w Wave, src Throughput) ([]visualization.Curve, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	wave := w.Array()
	var curves []visualization.Curve
	for _, pol := range profile.Keys() {
		raw, err := profile.Record(pol)
		if err != nil {
			return nil, err
		}
		for _, o := range []Orientation{Parallel, Perpendicular} {
			values, err := NewTransmittance(raw, o).TransCurvePol(src, wave)
			if err != nil {
				return nil, err
			}
			label := fmt.Sprintf("%s %s", pol, o)
			if o == Perpendicular {
				floats.Scale(perpendicularGain, values)
				label = fmt.Sprintf("%s (x%d)", label, perpendicularGain)
			}
			curves = append(curves, visualization.Curve{Label: label, Wave: wave, Values: values})
		}
	}
	return curves, nil
}
