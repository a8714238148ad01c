// Package imageset holds the per-polarizer image collection and moves it
// through the processing chain sum → align → background_subtract → binning.
//
// A Set is never modified. Each stage method checks that the preceding
// stage is complete and returns a new Set whose status reflects the stage
// just run.
package imageset

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"polstokes/internal/models"
	"polstokes/pkg/header"
	"polstokes/pkg/noise"
	"polstokes/pkg/pixel"
	"polstokes/pkg/polerr"
	"polstokes/pkg/visualization"
)

// Set is a keyed collection of images with their noise state, calibration
// profile, stage status and per-key stage details. Keys are exposure names
// before summing and polarizer labels afterwards.
type Set struct {
	data    map[string]pixel.Image
	noise   map[string]noise.Record
	profile header.Profile
	status  map[Stage]Status
	details map[string]Detail
}

var _ visualization.Source = (*Set)(nil)

// New builds a set in which every stage is pending. Every key of data must
// have a record in profile. Noise records start unbinned.
func New(data map[string]pixel.Image, profile header.Profile) (*Set, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: no images", polerr.ErrMissingData)
	}
	nz := make(map[string]noise.Record, len(data))
	details := make(map[string]Detail, len(data))
	for key := range data {
		if _, err := profile.Record(key); err != nil {
			return nil, err
		}
		nz[key] = noise.Default(1)
		details[key] = Detail{}
	}
	status := make(map[Stage]Status, len(Stages))
	for _, s := range Stages {
		status[s] = Pending
	}
	return newSet(maps.Clone(data), nz, profile, status, details)
}

// Load builds a pending set from a batch of raw exposures.
func Load(batch models.Batch) (*Set, error) {
	return New(batch.Images(), batch.Profile())
}

// newSet enforces that the data, noise and detail maps share one key set.
func newSet(data map[string]pixel.Image, nz map[string]noise.Record, profile header.Profile,
	status map[Stage]Status, details map[string]Detail) (*Set, error) {
	if len(nz) != len(data) || len(details) != len(data) {
		return nil, fmt.Errorf("%w: %d images, %d noise records, %d details",
			polerr.ErrInconsistent, len(data), len(nz), len(details))
	}
	for key := range data {
		_, okNoise := nz[key]
		_, okDetail := details[key]
		if !okNoise || !okDetail {
			return nil, fmt.Errorf("%w: key %q missing from noise or details", polerr.ErrInconsistent, key)
		}
	}
	return &Set{data: data, noise: nz, profile: profile, status: status, details: details}, nil
}

// next derives a set carrying new per-key state, with stage marked complete.
func (s *Set) next(stage Stage, data map[string]pixel.Image, nz map[string]noise.Record,
	profile header.Profile, details map[string]Detail) (*Set, error) {
	status := maps.Clone(s.status)
	status[stage] = Complete
	return newSet(data, nz, profile, status, details)
}

// require fails unless the stage preceding stage is complete.
func (s *Set) require(stage Stage) error {
	prev, ok := prerequisite(stage)
	if !ok {
		return nil
	}
	if got := s.status[prev]; got != Complete {
		return fmt.Errorf("%w: %s requires %s = %s, got %s",
			polerr.ErrPrecondition, stage, prev, Complete, got)
	}
	return nil
}

// Keys returns the collection keys in lexicographic order.
func (s *Set) Keys() []string {
	return slices.Sorted(maps.Keys(s.data))
}

// Len returns the number of keys.
func (s *Set) Len() int { return len(s.data) }

// Data returns the image stored under key.
func (s *Set) Data(key string) (pixel.Image, error) {
	img, ok := s.data[key]
	if !ok {
		return pixel.Image{}, fmt.Errorf("%w: no image for %q", polerr.ErrMissingData, key)
	}
	return img, nil
}

// Noise returns the noise record stored under key.
func (s *Set) Noise(key string) (noise.Record, error) {
	rec, ok := s.noise[key]
	if !ok {
		return noise.Record{}, fmt.Errorf("%w: no noise record for %q", polerr.ErrMissingData, key)
	}
	return rec, nil
}

// Detail returns the stage details recorded for key.
func (s *Set) Detail(key string) (Detail, error) {
	d, ok := s.details[key]
	if !ok {
		return Detail{}, fmt.Errorf("%w: no details for %q", polerr.ErrMissingData, key)
	}
	return d, nil
}

// Profile returns the calibration profile.
func (s *Set) Profile() header.Profile { return s.profile }

// Status returns the status of stage.
func (s *Set) Status(stage Stage) Status { return s.status[stage] }

// Statuses returns a copy of the status map.
func (s *Set) Statuses() map[Stage]Status { return maps.Clone(s.status) }

// Image implements visualization.Source. The noise plane is the combined
// noise, which only exists once alignment and background subtraction ran.
func (s *Set) Image(kind visualization.Kind, key string) (pixel.Image, error) {
	switch kind {
	case visualization.KindImage:
		return s.Data(key)
	case visualization.KindNoise:
		rec, err := s.Noise(key)
		if err != nil {
			return pixel.Image{}, err
		}
		return rec.Combined()
	}
	return pixel.Image{}, fmt.Errorf("%w: unknown image kind %q", polerr.ErrInvalidParameter, kind)
}

func (s *Set) String() string {
	var b strings.Builder
	b.WriteString("ImageSet(keys=[")
	b.WriteString(strings.Join(s.Keys(), " "))
	b.WriteString("], shapes={")
	for i, key := range s.Keys() {
		if i > 0 {
			b.WriteString(" ")
		}
		rows, cols := s.data[key].Shape()
		fmt.Fprintf(&b, "%s:%dx%d", key, rows, cols)
	}
	b.WriteString("}, status={")
	for i, st := range Stages {
		if i > 0 {
			b.WriteString(" ")
		}
		fmt.Fprintf(&b, "%s:%s", st, s.status[st])
	}
	b.WriteString("})")
	return b.String()
}
