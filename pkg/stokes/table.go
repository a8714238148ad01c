package stokes

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gonum.org/v1/gonum/interp"
	"gopkg.in/yaml.v3"

	"polstokes/pkg/polerr"
)

// CurveSamples is one tabulated throughput curve.
type CurveSamples struct {
	Wavelength []float64 `yaml:"wavelength"`
	Throughput []float64 `yaml:"throughput"`
}

// curveFile is the on-disk layout of a curve table.
type curveFile struct {
	Bands map[string]CurveSamples `yaml:"bands"`
}

type curve struct {
	fit    interp.PiecewiseLinear
	lo, hi float64
}

// CurveTable is a Throughput backed by tabulated curves. Values are
// interpolated linearly and are zero outside the tabulated range. Band
// names are matched case-insensitively.
type CurveTable struct {
	curves map[string]curve
}

var _ Throughput = (*CurveTable)(nil)

// NewCurveTable fits every curve in bands.
func NewCurveTable(bands map[string]CurveSamples) (*CurveTable, error) {
	t := &CurveTable{curves: make(map[string]curve, len(bands))}
	for name, s := range bands {
		if len(s.Wavelength) != len(s.Throughput) {
			return nil, fmt.Errorf("%w: band %q has %d wavelengths and %d values",
				polerr.ErrShapeMismatch, name, len(s.Wavelength), len(s.Throughput))
		}
		if len(s.Wavelength) < 2 {
			return nil, fmt.Errorf("%w: band %q needs at least 2 samples", polerr.ErrInvalidParameter, name)
		}
		for i := 1; i < len(s.Wavelength); i++ {
			if s.Wavelength[i] <= s.Wavelength[i-1] {
				return nil, fmt.Errorf("%w: band %q wavelengths must increase", polerr.ErrInvalidParameter, name)
			}
		}
		var c curve
		if err := c.fit.Fit(s.Wavelength, s.Throughput); err != nil {
			return nil, fmt.Errorf("band %q: %w", name, err)
		}
		c.lo, c.hi = s.Wavelength[0], s.Wavelength[len(s.Wavelength)-1]
		t.curves[strings.ToLower(name)] = c
	}
	return t, nil
}

// ParseCurveTable decodes a YAML curve table.
func ParseCurveTable(data []byte) (*CurveTable, error) {
	var f curveFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse curve table: %w", err)
	}
	return NewCurveTable(f.Bands)
}

// LoadCurveTable reads a YAML curve table from path.
func LoadCurveTable(path string) (*CurveTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read curve table: %w", err)
	}
	return ParseCurveTable(data)
}

// Bands lists the known band names.
func (t *CurveTable) Bands() []string {
	names := make([]string, 0, len(t.curves))
	for name := range t.curves {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Band implements Throughput.
func (t *CurveTable) Band(spec string, wave []float64) ([]float64, error) {
	c, ok := t.curves[strings.ToLower(spec)]
	if !ok {
		return nil, fmt.Errorf("%w: no throughput curve for band %q", polerr.ErrMissingData, spec)
	}
	out := make([]float64, len(wave))
	for i, w := range wave {
		if w < c.lo || w > c.hi {
			continue
		}
		out[i] = c.fit.Predict(w)
	}
	return out, nil
}
