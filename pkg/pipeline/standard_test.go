package pipeline

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"polstokes/pkg/fits"
	"polstokes/pkg/header"
	"polstokes/pkg/imageset"
	"polstokes/pkg/instrument"
	"polstokes/pkg/polerr"
	"polstokes/pkg/region"
	"polstokes/pkg/stokes"
	"polstokes/pkg/visualization"
)

const (
	size     = 20
	sky      = 10.0
	source   = 100.0
	exptime  = 2.0
	photflam = 1e-3
)

// writeObservation writes one exposure per polarizer. Every exposure shows
// the same square source on a flat sky, so the observation is unpolarized.
func writeObservation(t *testing.T, pols ...string) string {
	t.Helper()
	dir := t.TempDir()
	pixels := make([]float64, size*size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			pixels[y*size+x] = sky
			if y >= 5 && y < 15 && x >= 5 && x < 15 {
				pixels[y*size+x] += source
			}
		}
	}
	for _, pol := range pols {
		err := fits.Write(filepath.Join(dir, "x_"+pol+"_c0f.fits"), size, size, pixels, []fits.Card{
			{Key: header.KeyInstrument, Value: "FOC"},
			{Key: header.KeyOptical, Value: header.OpticsF96},
			{Key: header.KeyPolarizer, Value: pol},
			{Key: header.KeyFilter, Value: "F501N"},
			{Key: header.KeyPhotflam, Value: photflam},
			{Key: header.KeyExptime, Value: exptime},
		})
		require.NoError(t, err)
	}
	return dir
}

func flat(v float64) stokes.CurveSamples {
	return stokes.CurveSamples{Wavelength: []float64{1000, 10000}, Throughput: []float64{v, v}}
}

func throughput(t *testing.T) *stokes.CurveTable {
	t.Helper()
	bands := map[string]stokes.CurveSamples{
		"FOC,f/96":       flat(0.5),
		"FOC,f/96,F501N": flat(0.25),
	}
	for _, pol := range []string{"POL0", "POL60", "POL120"} {
		bands["FOC,f/96,"+pol+"_par"] = flat(0.4)
		bands["FOC,f/96,"+pol+"_per"] = flat(0.01)
	}
	table, err := stokes.NewCurveTable(bands)
	require.NoError(t, err)
	return table
}

func params(t *testing.T, dir string) *Params {
	return &Params{
		Instrument: instrument.Model{Dir: dir, Suffix: "_c0f", Extension: ".fits"},
		Background: region.Rectangle{X0: 0, X1: size, Y0: 0, Y1: 3},
		BinSize:    10,
		Method:     imageset.MethodMedian,
		Wave:       stokes.Wave{Start: 4000, Stop: 6000, Num: 21},
		Throughput: throughput(t),
		MaskRatio:  visualization.DefaultMaskRatio,
	}
}

func TestRunUnpolarizedSource(t *testing.T) {
	dir := writeObservation(t, "POL0", "POL60", "POL120")

	res, err := NewStandard(params(t, dir)).Run()
	require.NoError(t, err)

	assert.Len(t, res.Filelist, 3)
	assert.Equal(t, imageset.Complete, res.Raws.Status(imageset.StageSum))
	assert.Equal(t, imageset.Pending, res.Raws.Status(imageset.StageAlign))
	for _, stage := range imageset.Stages {
		assert.Equal(t, imageset.Complete, res.Images.Status(stage), stage)
	}
	assert.Equal(t, []string{"POL0", "POL120", "POL60"}, res.Images.Keys())

	detail, err := res.Images.Detail("POL60")
	require.NoError(t, err)
	require.NotNil(t, detail.Background)
	assert.InDelta(t, sky, *detail.Background, 1e-12)
	assert.Equal(t, 10, detail.BinSize)

	// Each 10x10 block holds a 5x5 corner of the source.
	counts := 25 * source
	wantI := counts * photflam / exptime / 0.41
	require.Equal(t, 2, res.Stokes.I.Rows)
	require.Equal(t, 2, res.Stokes.I.Cols)
	for i := range res.Stokes.I.Data {
		assert.InDelta(t, wantI, res.Stokes.I.Data[i], 1e-9)
		assert.InDelta(t, 0, res.Stokes.Q.Data[i], 1e-9)
		assert.InDelta(t, 0, res.Stokes.U.Data[i], 1e-9)
		assert.InDelta(t, 0, res.Degree.P.Data[i], 1e-9)
		assert.True(t, math.IsNaN(res.Angle.Theta.Data[i]), "theta[%d] = %g", i, res.Angle.Theta.Data[i])
	}
	assert.Contains(t, res.String(), "filelist: 3 files")
}

func TestRunStopsAtFirstFailure(t *testing.T) {
	t.Run("no exposures", func(t *testing.T) {
		_, err := NewStandard(params(t, t.TempDir())).Run()
		assert.ErrorIs(t, err, polerr.ErrMissingData)
		assert.ErrorContains(t, err, "failed to load exposures")
	})

	t.Run("two polarizers", func(t *testing.T) {
		dir := writeObservation(t, "POL0", "POL60")
		_, err := NewStandard(params(t, dir)).Run()
		assert.ErrorContains(t, err, "failed to demodulate")
	})

	t.Run("background outside frame", func(t *testing.T) {
		dir := writeObservation(t, "POL0", "POL60", "POL120")
		p := params(t, dir)
		p.Background = region.Rectangle{X0: 100, X1: 110, Y0: 100, Y1: 110}
		_, err := NewStandard(p).Run()
		assert.ErrorIs(t, err, polerr.ErrInvalidParameter)
		assert.ErrorContains(t, err, "failed to subtract background")
	})
}

func TestRunValidatesParams(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name   string
		modify func(*Params)
	}{
		{"no region", func(p *Params) { p.Background = nil }},
		{"no throughput", func(p *Params) { p.Throughput = nil }},
		{"bin size", func(p *Params) { p.BinSize = 0 }},
		{"method", func(p *Params) { p.Method = "mode" }},
		{"wave", func(p *Params) { p.Wave.Num = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := params(t, dir)
			tt.modify(p)
			_, err := NewStandard(p).Run()
			assert.ErrorIs(t, err, polerr.ErrInvalidParameter)
		})
	}
}
