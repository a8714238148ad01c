// Package header holds the per-exposure calibration constants read from raw
// file headers, and the aggregate view of them grouped by polarizer.
package header

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"polstokes/pkg/polerr"
)

// Header keywords consumed by Parse.
const (
	KeyInstrument = "INSTRUME"
	KeyCostar     = "KXDEPLOY"
	KeyOptical    = "OPTCRLY"
	KeyPolarizer  = "FILTNAM1"
	KeyFilter     = "FILTNAM4"
	KeyPhotflam   = "PHOTFLAM"
	KeyExptime    = "EXPTIME"
)

// Optics relay identifiers with a known pixel scale.
const (
	OpticsF96 = "F96"
	OpticsF48 = "F48"
)

// Fields are raw header cards keyed by keyword.
type Fields map[string]string

func (f Fields) get(key string) (string, bool) {
	if v, ok := f[key]; ok {
		return v, true
	}
	v, ok := f[strings.ToUpper(key)]
	return v, ok
}

func (f Fields) str(key string) string {
	v, _ := f.get(key)
	return strings.TrimSpace(v)
}

func (f Fields) num(key string) float64 {
	v, ok := f.get(key)
	if !ok {
		return math.NaN()
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return math.NaN()
	}
	return d
}

// Raw is the calibration record of one exposure.
type Raw struct {
	Instrument string
	Costar     bool
	Optical    string
	Polarizer  string
	Filter     string
	Photflam   float64
	Exptime    float64
}

// Parse extracts a Raw record from header fields. Unknown numeric fields
// become NaN and unknown string fields become "".
func Parse(f Fields) Raw {
	return Raw{
		Instrument: f.str(KeyInstrument),
		Costar:     f.str(KeyCostar) == "T",
		Optical:    f.str(KeyOptical),
		Polarizer:  f.str(KeyPolarizer),
		Filter:     f.str(KeyFilter),
		Photflam:   f.num(KeyPhotflam),
		Exptime:    f.num(KeyExptime),
	}
}

// PixelScale returns the angular size of one pixel in arcsec for the
// record's optics relay.
func (r Raw) PixelScale() (float64, error) {
	return PixelScale(r.Optical)
}

// PixelScale maps an optics identifier to its angular pixel size in arcsec
// for the standard (unzoomed) readout format.
func PixelScale(optical string) (float64, error) {
	switch optical {
	case OpticsF96:
		return 14.0 / 512, nil
	case OpticsF48:
		return 28.0 / 512, nil
	default:
		return 0, fmt.Errorf("%w: optics %q (must be %s or %s)", polerr.ErrInvalidParameter, optical, OpticsF96, OpticsF48)
	}
}
