// Package instrument locates the raw exposures of an observation on disk
// and loads them.
package instrument

import (
	"fmt"
	"path/filepath"
	"sort"

	"polstokes/internal/models"
	"polstokes/pkg/fits"
	"polstokes/pkg/header"
	"polstokes/pkg/pixel"
	"polstokes/pkg/polerr"
)

// Model describes where the exposures of one observation live: every file
// in Dir whose name ends in Suffix followed by Extension.
type Model struct {
	Dir       string
	Suffix    string
	Extension string
}

// Pattern returns the glob matched inside Dir.
func (m Model) Pattern() string {
	return "*" + m.Suffix + m.Extension
}

// PathList returns the matching files sorted by name.
func (m Model) PathList() ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(m.Dir, m.Pattern()))
	if err != nil {
		return nil, fmt.Errorf("%w: pattern %q: %v", polerr.ErrInvalidParameter, m.Pattern(), err)
	}
	sort.Strings(paths)
	return paths, nil
}

// ReadExposure reads one FITS file into an exposure named after its base
// name.
func ReadExposure(path string) (models.Exposure, error) {
	d, err := fits.Read(path)
	if err != nil {
		return models.Exposure{}, err
	}
	img, err := pixel.New(d.Rows, d.Cols, d.Pixels)
	if err != nil {
		return models.Exposure{}, fmt.Errorf("%s: %w", path, err)
	}
	return models.NewExposure(path, img, header.Parse(d.Header)), nil
}

// Load reads every exposure of the observation.
func (m Model) Load() (models.Batch, error) {
	paths, err := m.PathList()
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no files match %s", polerr.ErrMissingData, filepath.Join(m.Dir, m.Pattern()))
	}
	batch := make(models.Batch, 0, len(paths))
	for _, path := range paths {
		e, err := ReadExposure(path)
		if err != nil {
			return nil, err
		}
		batch = append(batch, e)
	}
	return batch, nil
}
