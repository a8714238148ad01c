package flux

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"polstokes/pkg/header"
	"polstokes/pkg/imageset"
	"polstokes/pkg/pixel"
	"polstokes/pkg/polerr"
	"polstokes/pkg/visualization"
)

// Image is a per-polarizer set of calibrated images and their noise, all in
// the same unit.
type Image struct {
	data     map[string]pixel.Image
	noise    map[string]pixel.Image
	unit     Unit
	exptime  map[string]float64
	photflam map[string]float64
	profile  header.Profile
}

var _ visualization.Source = (*Image)(nil)

// Load converts a fully binned image set to flux density. Both the signal
// and the combined noise are converted.
func Load(set *imageset.Set) (*Image, error) {
	if got := set.Status(imageset.StageBinning); got != imageset.Complete {
		return nil, fmt.Errorf("%w: flux load requires %s = %s, got %s",
			polerr.ErrPrecondition, imageset.StageBinning, imageset.Complete, got)
	}

	out := &Image{
		data:     make(map[string]pixel.Image),
		noise:    make(map[string]pixel.Image),
		unit:     Flux,
		exptime:  make(map[string]float64),
		photflam: make(map[string]float64),
		profile:  set.Profile(),
	}
	for _, pol := range set.Keys() {
		exptime, err := set.Exptime(pol)
		if err != nil {
			return nil, err
		}
		photflam, err := set.Photflam(pol)
		if err != nil {
			return nil, err
		}
		data, err := set.Data(pol)
		if err != nil {
			return nil, err
		}
		noise, err := set.Image(visualization.KindNoise, pol)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", pol, err)
		}

		if out.data[pol], err = ToFlux(data, exptime, photflam, Count); err != nil {
			return nil, err
		}
		if out.noise[pol], err = ToFlux(noise, exptime, photflam, Count); err != nil {
			return nil, err
		}
		out.exptime[pol] = exptime
		out.photflam[pol] = photflam
	}
	return out, nil
}

type convertFunc func(img pixel.Image, exptime, photflam float64, unit Unit) (pixel.Image, error)

// convert applies fn to every signal and noise image and relabels the unit.
func (im *Image) convert(fn convertFunc, target Unit) (*Image, error) {
	out := &Image{
		data:     make(map[string]pixel.Image, len(im.data)),
		noise:    make(map[string]pixel.Image, len(im.noise)),
		unit:     target,
		exptime:  im.exptime,
		photflam: im.photflam,
		profile:  im.profile,
	}
	for pol, data := range im.data {
		var err error
		if out.data[pol], err = fn(data, im.exptime[pol], im.photflam[pol], im.unit); err != nil {
			return nil, err
		}
		if out.noise[pol], err = fn(im.noise[pol], im.exptime[pol], im.photflam[pol], im.unit); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ToFlux returns the set in flux density.
func (im *Image) ToFlux() (*Image, error) { return im.convert(ToFlux, Flux) }

// ToCountRate returns the set in counts per second.
func (im *Image) ToCountRate() (*Image, error) { return im.convert(ToCountRate, CountRate) }

// ToCount returns the set in detector counts.
func (im *Image) ToCount() (*Image, error) { return im.convert(ToCount, Count) }

// Unit returns the unit of every image in the set.
func (im *Image) Unit() Unit { return im.unit }

// Profile returns the calibration profile of the source set.
func (im *Image) Profile() header.Profile { return im.profile }

// Keys returns the polarizer labels in lexicographic order.
func (im *Image) Keys() []string { return slices.Sorted(maps.Keys(im.data)) }

// Exptime returns the total exposure time of pol.
func (im *Image) Exptime(pol string) float64 { return im.exptime[pol] }

// Photflam returns the calibration constant of pol.
func (im *Image) Photflam(pol string) float64 { return im.photflam[pol] }

// Image implements visualization.Source.
func (im *Image) Image(kind visualization.Kind, key string) (pixel.Image, error) {
	planes := im.data
	switch kind {
	case visualization.KindImage:
	case visualization.KindNoise:
		planes = im.noise
	default:
		return pixel.Image{}, fmt.Errorf("%w: unknown image kind %q", polerr.ErrInvalidParameter, kind)
	}
	img, ok := planes[key]
	if !ok {
		return pixel.Image{}, fmt.Errorf("%w: no %s image for %q", polerr.ErrMissingData, kind, key)
	}
	return img, nil
}

func (im *Image) String() string {
	var shapes []string
	for _, pol := range im.Keys() {
		rows, cols := im.data[pol].Shape()
		shapes = append(shapes, fmt.Sprintf("%s:%dx%d", pol, rows, cols))
	}
	return fmt.Sprintf("FluxImage(keys=%v, shapes={%s}, unit=%s)", im.Keys(), strings.Join(shapes, " "), im.unit)
}
