package flux

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"polstokes/internal/models"
	"polstokes/pkg/header"
	"polstokes/pkg/imageset"
	"polstokes/pkg/pixel"
	"polstokes/pkg/polerr"
	"polstokes/pkg/region"
	"polstokes/pkg/visualization"
)

func TestConversionsRoundTrip(t *testing.T) {
	img, err := pixel.FromRows([][]float64{{0, 1.5}, {250, -3}})
	require.NoError(t, err)
	const exptime, photflam = 120.0, 3.2e-17

	tests := []struct {
		name string
		from Unit
		to   func(pixel.Image) (pixel.Image, error)
		back func(pixel.Image) (pixel.Image, error)
	}{
		{
			name: "count via flux",
			to:   func(x pixel.Image) (pixel.Image, error) { return ToFlux(x, exptime, photflam, Count) },
			back: func(x pixel.Image) (pixel.Image, error) { return ToCount(x, exptime, photflam, Flux) },
		},
		{
			name: "count via count rate",
			to:   func(x pixel.Image) (pixel.Image, error) { return ToCountRate(x, exptime, photflam, Count) },
			back: func(x pixel.Image) (pixel.Image, error) { return ToCount(x, exptime, photflam, CountRate) },
		},
		{
			name: "count rate via flux",
			to:   func(x pixel.Image) (pixel.Image, error) { return ToFlux(x, exptime, photflam, CountRate) },
			back: func(x pixel.Image) (pixel.Image, error) { return ToCountRate(x, exptime, photflam, Flux) },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mid, err := tt.to(img)
			require.NoError(t, err)
			back, err := tt.back(mid)
			require.NoError(t, err)
			assert.InDeltaSlice(t, img.Data, back.Data, 1e-9)
		})
	}
}

func TestConversionValues(t *testing.T) {
	img := pixel.Filled(1, 2, 10)

	f, err := ToFlux(img, 5, 2, Count)
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 4}, f.Data)

	c, err := ToCount(img, 5, 2, CountRate)
	require.NoError(t, err)
	assert.Equal(t, []float64{50, 50}, c.Data)

	r, err := ToCountRate(img, 5, 2, Flux)
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 5}, r.Data)
}

func TestConversionErrors(t *testing.T) {
	img := pixel.Filled(1, 1, 1)

	_, err := ToFlux(img, 1, 1, Flux)
	assert.ErrorIs(t, err, polerr.ErrRedundantConversion)
	assert.ErrorIs(t, err, polerr.ErrInvalidUnit)
	_, err = ToCountRate(img, 1, 1, CountRate)
	assert.ErrorIs(t, err, polerr.ErrRedundantConversion)
	_, err = ToCount(img, 1, 1, Count)
	assert.ErrorIs(t, err, polerr.ErrRedundantConversion)

	for _, fn := range []convertFunc{ToFlux, ToCountRate, ToCount} {
		_, err := fn(img, 1, 1, "adu")
		assert.ErrorIs(t, err, polerr.ErrInvalidUnit)
		assert.NotErrorIs(t, err, polerr.ErrRedundantConversion)
	}

	_, err = ParseUnit("adu")
	assert.ErrorIs(t, err, polerr.ErrInvalidUnit)
	u, err := ParseUnit("count/s")
	require.NoError(t, err)
	assert.Equal(t, CountRate, u)
}

func binnedSet(t *testing.T) *imageset.Set {
	t.Helper()
	var batch models.Batch
	for i, pol := range []string{"POL0", "POL60", "POL120"} {
		hdr := header.Raw{
			Instrument: "FOC", Optical: header.OpticsF96, Polarizer: pol, Filter: "F501N",
			Photflam: float64(i+1) * 1e-17, Exptime: 50,
		}
		batch = append(batch, models.NewExposure(pol+".fits", pixel.Filled(4, 4, 16), hdr))
	}
	s, err := imageset.Load(batch)
	require.NoError(t, err)
	s, err = s.Sum()
	require.NoError(t, err)

	_, err = Load(s)
	assert.ErrorIs(t, err, polerr.ErrPrecondition)

	s, err = s.Align()
	require.NoError(t, err)
	s, err = s.SubtractBackground(region.Rectangle{X0: 0, X1: 1, Y0: 0, Y1: 1}, imageset.MethodMean)
	require.NoError(t, err)
	s, err = s.Bin(2)
	require.NoError(t, err)
	return s
}

func TestLoadFromBinnedSet(t *testing.T) {
	im, err := Load(binnedSet(t))
	require.NoError(t, err)

	assert.Equal(t, Flux, im.Unit())
	assert.Equal(t, []string{"POL0", "POL120", "POL60"}, im.Keys())
	assert.Equal(t, 50.0, im.Exptime("POL60"))
	assert.Equal(t, 2e-17, im.Photflam("POL60"))

	// background removal leaves zeros; the noise is sqrt(4*16) counts
	data, err := im.Image(visualization.KindImage, "POL60")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0, 0}, data.Data)

	noise, err := im.Image(visualization.KindNoise, "POL60")
	require.NoError(t, err)
	for _, v := range noise.Data {
		assert.InDelta(t, 8*2e-17/50, v, 1e-30)
	}

	_, err = im.Image(visualization.KindImage, "POL90")
	assert.ErrorIs(t, err, polerr.ErrMissingData)
}

func TestImageUnitChain(t *testing.T) {
	im, err := Load(binnedSet(t))
	require.NoError(t, err)

	_, err = im.ToFlux()
	assert.ErrorIs(t, err, polerr.ErrRedundantConversion)

	counts, err := im.ToCount()
	require.NoError(t, err)
	assert.Equal(t, Count, counts.Unit())
	noise, _ := counts.Image(visualization.KindNoise, "POL0")
	assert.InDelta(t, 8.0, noise.At(0, 0), 1e-9)

	rate, err := counts.ToCountRate()
	require.NoError(t, err)
	assert.Equal(t, CountRate, rate.Unit())
	noise, _ = rate.Image(visualization.KindNoise, "POL0")
	assert.InDelta(t, 8.0/50, noise.At(0, 0), 1e-12)

	back, err := rate.ToFlux()
	require.NoError(t, err)
	orig, _ := im.Image(visualization.KindNoise, "POL120")
	got, _ := back.Image(visualization.KindNoise, "POL120")
	assert.InDeltaSlice(t, orig.Data, got.Data, 1e-30)

	assert.Equal(t, Flux, im.Unit(), "conversion does not touch the receiver")
	assert.Contains(t, im.String(), "unit=erg/s/cm-2/Å")
}
