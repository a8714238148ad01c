package header

import (
	"fmt"
	"sort"

	"polstokes/pkg/polerr"
)

// Photflam aggregation modes.
const (
	PhotflamMean   = "mean"
	PhotflamUnique = "unique"
)

// Profile maps an exposure identifier (or, after Sum, a polarizer label) to
// its calibration record. A Profile is never modified after construction.
type Profile struct {
	raw map[string]Raw
}

// NewProfile builds a profile from records keyed by exposure identifier.
func NewProfile(raw map[string]Raw) Profile {
	cp := make(map[string]Raw, len(raw))
	for k, v := range raw {
		cp[k] = v
	}
	return Profile{raw: cp}
}

// Len returns the number of records.
func (p Profile) Len() int { return len(p.raw) }

// Keys returns the record keys in lexicographic order.
func (p Profile) Keys() []string {
	keys := make([]string, 0, len(p.raw))
	for k := range p.raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Record returns the record stored under key.
func (p Profile) Record(key string) (Raw, error) {
	r, ok := p.raw[key]
	if !ok {
		return Raw{}, fmt.Errorf("%w: no header record for %q", polerr.ErrMissingData, key)
	}
	return r, nil
}

// PolarizerOf returns the polarizer label of an exposure.
func (p Profile) PolarizerOf(key string) (string, error) {
	r, err := p.Record(key)
	if err != nil {
		return "", err
	}
	return r.Polarizer, nil
}

// ByPolarizer groups the records by polarizer label. Within a group records
// keep the lexicographic order of their keys.
func (p Profile) ByPolarizer() map[string][]Raw {
	grouped := make(map[string][]Raw)
	for _, k := range p.Keys() {
		r := p.raw[k]
		grouped[r.Polarizer] = append(grouped[r.Polarizer], r)
	}
	return grouped
}

// Polarizers returns the distinct polarizer labels in lexicographic order.
func (p Profile) Polarizers() []string {
	grouped := p.ByPolarizer()
	pols := make([]string, 0, len(grouped))
	for pol := range grouped {
		pols = append(pols, pol)
	}
	sort.Strings(pols)
	return pols
}

func (p Profile) group(pol string) ([]Raw, error) {
	g := p.ByPolarizer()[pol]
	if len(g) == 0 {
		return nil, fmt.Errorf("%w: no exposures for polarizer %q", polerr.ErrMissingData, pol)
	}
	return g, nil
}

// Exptime returns the total exposure time of a polarizer group.
func (p Profile) Exptime(pol string) (float64, error) {
	g, err := p.group(pol)
	if err != nil {
		return 0, err
	}
	total := 0.0
	for _, r := range g {
		total += r.Exptime
	}
	return total, nil
}

// Photflam returns the flux-calibration constant of a polarizer group,
// either averaged over the group or taken from its first record.
func (p Profile) Photflam(pol, mode string) (float64, error) {
	g, err := p.group(pol)
	if err != nil {
		return 0, err
	}
	switch mode {
	case PhotflamMean, "":
		sum := 0.0
		for _, r := range g {
			sum += r.Photflam
		}
		return sum / float64(len(g)), nil
	case PhotflamUnique:
		return g[0].Photflam, nil
	default:
		return 0, fmt.Errorf("%w: photflam mode %q", polerr.ErrInvalidParameter, mode)
	}
}

func unique[T comparable](p Profile, field string, get func(Raw) T) (T, error) {
	var zero T
	seen := make(map[T]struct{})
	var first T
	for i, k := range p.Keys() {
		v := get(p.raw[k])
		if i == 0 {
			first = v
		}
		seen[v] = struct{}{}
	}
	switch len(seen) {
	case 0:
		return zero, fmt.Errorf("%w: empty header profile", polerr.ErrMissingData)
	case 1:
		return first, nil
	default:
		vals := make([]string, 0, len(seen))
		for v := range seen {
			vals = append(vals, fmt.Sprint(v))
		}
		sort.Strings(vals)
		return zero, fmt.Errorf("%w: %s has values %v", polerr.ErrInconsistent, field, vals)
	}
}

// Instrument returns the instrument name shared by every record.
func (p Profile) Instrument() (string, error) {
	return unique(p, "instrument", func(r Raw) string { return r.Instrument })
}

// Optical returns the optics relay shared by every record.
func (p Profile) Optical() (string, error) {
	return unique(p, "optical", func(r Raw) string { return r.Optical })
}

// Filter returns the filter shared by every record.
func (p Profile) Filter() (string, error) {
	return unique(p, "filter", func(r Raw) string { return r.Filter })
}

// Costar returns the corrective-optics deployment flag shared by every record.
func (p Profile) Costar() (bool, error) {
	return unique(p, "costar", func(r Raw) bool { return r.Costar })
}

// Sum reduces the profile to one record per polarizer: exposure times are
// summed and calibration constants averaged over each group.
func (p Profile) Sum() (Profile, error) {
	instrument, err := p.Instrument()
	if err != nil {
		return Profile{}, err
	}
	costar, err := p.Costar()
	if err != nil {
		return Profile{}, err
	}
	optical, err := p.Optical()
	if err != nil {
		return Profile{}, err
	}
	filter, err := p.Filter()
	if err != nil {
		return Profile{}, err
	}

	summed := make(map[string]Raw)
	for _, pol := range p.Polarizers() {
		photflam, err := p.Photflam(pol, PhotflamMean)
		if err != nil {
			return Profile{}, err
		}
		exptime, err := p.Exptime(pol)
		if err != nil {
			return Profile{}, err
		}
		summed[pol] = Raw{
			Instrument: instrument,
			Costar:     costar,
			Optical:    optical,
			Polarizer:  pol,
			Filter:     filter,
			Photflam:   photflam,
			Exptime:    exptime,
		}
	}
	return Profile{raw: summed}, nil
}
