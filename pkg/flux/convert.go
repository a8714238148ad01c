// Package flux converts polarizer images between detector counts, count
// rate and calibrated flux density.
package flux

import (
	"fmt"

	"polstokes/pkg/pixel"
	"polstokes/pkg/polerr"
)

// Unit labels the physical unit of an image.
type Unit string

const (
	Count     Unit = "count"
	CountRate Unit = "count/s"
	Flux      Unit = "erg/s/cm-2/Å"
)

// ParseUnit validates a unit label.
func ParseUnit(s string) (Unit, error) {
	switch u := Unit(s); u {
	case Count, CountRate, Flux:
		return u, nil
	}
	return "", fmt.Errorf("%w: %q", polerr.ErrInvalidUnit, s)
}

func redundant(u Unit) error {
	return fmt.Errorf("%w: data is already %s", polerr.ErrRedundantConversion, u)
}

// ToFlux converts img from unit to flux density.
func ToFlux(img pixel.Image, exptime, photflam float64, unit Unit) (pixel.Image, error) {
	switch unit {
	case Count:
		return img.MulScalar(photflam / exptime), nil
	case CountRate:
		return img.MulScalar(photflam), nil
	case Flux:
		return pixel.Image{}, redundant(unit)
	}
	return pixel.Image{}, fmt.Errorf("%w: %q (must be %s or %s)", polerr.ErrInvalidUnit, unit, Count, CountRate)
}

// ToCountRate converts img from unit to counts per second.
func ToCountRate(img pixel.Image, exptime, photflam float64, unit Unit) (pixel.Image, error) {
	switch unit {
	case Count:
		return img.DivScalar(exptime), nil
	case Flux:
		return img.DivScalar(photflam), nil
	case CountRate:
		return pixel.Image{}, redundant(unit)
	}
	return pixel.Image{}, fmt.Errorf("%w: %q (must be %s or %s)", polerr.ErrInvalidUnit, unit, Count, Flux)
}

// ToCount converts img from unit to detector counts.
func ToCount(img pixel.Image, exptime, photflam float64, unit Unit) (pixel.Image, error) {
	switch unit {
	case CountRate:
		return img.MulScalar(exptime), nil
	case Flux:
		return img.MulScalar(exptime / photflam), nil
	case Count:
		return pixel.Image{}, redundant(unit)
	}
	return pixel.Image{}, fmt.Errorf("%w: %q (must be %s or %s)", polerr.ErrInvalidUnit, unit, CountRate, Flux)
}
