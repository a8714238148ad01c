package imageset

import (
	"fmt"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"polstokes/pkg/header"
	"polstokes/pkg/noise"
	"polstokes/pkg/pixel"
	"polstokes/pkg/polerr"
	"polstokes/pkg/region"
	"polstokes/pkg/registration"
)

// keyResult is the per-key output of one stage.
type keyResult struct {
	data   pixel.Image
	noise  noise.Record
	detail Detail
}

// perKey runs fn for every key concurrently and merges the results.
func perKey(keys []string, fn func(key string) (keyResult, error)) (map[string]pixel.Image, map[string]noise.Record, map[string]Detail, error) {
	results := make([]keyResult, len(keys))
	var g errgroup.Group
	for i, key := range keys {
		g.Go(func() error {
			res, err := fn(key)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, nil, err
	}

	data := make(map[string]pixel.Image, len(keys))
	nz := make(map[string]noise.Record, len(keys))
	details := make(map[string]Detail, len(keys))
	for i, key := range keys {
		data[key] = results[i].data
		nz[key] = results[i].noise
		details[key] = results[i].detail
	}
	return data, nz, details, nil
}

// Sum adds the exposures of each polarizer together. The result is keyed by
// polarizer label; each polarizer inherits the noise record of its first
// exposure and the profile is reduced to one record per polarizer.
func (s *Set) Sum() (*Set, error) {
	if got := s.status[StageSum]; got != Pending {
		return nil, fmt.Errorf("%w: sum requires %s = %s, got %s", polerr.ErrPrecondition, StageSum, Pending, got)
	}

	groups := make(map[string][]string)
	for _, key := range s.Keys() {
		pol, err := s.profile.PolarizerOf(key)
		if err != nil {
			return nil, err
		}
		groups[pol] = append(groups[pol], key)
	}
	pols := make([]string, 0, len(groups))
	for pol := range groups {
		pols = append(pols, pol)
	}
	sort.Strings(pols)

	data, nz, details, err := perKey(pols, func(pol string) (keyResult, error) {
		members := groups[pol]
		acc := s.data[members[0]]
		for _, key := range members[1:] {
			var err error
			if acc, err = acc.Add(s.data[key]); err != nil {
				return keyResult{}, err
			}
		}
		return keyResult{data: acc, noise: s.noise[members[0]]}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("sum: %w", err)
	}

	profile, err := s.profile.Sum()
	if err != nil {
		return nil, fmt.Errorf("sum: %w", err)
	}
	return s.next(StageSum, data, nz, profile, details)
}

// Align registers every polarizer onto the lexicographically first one and
// derives the count noise from the aligned counts.
func (s *Set) Align() (*Set, error) {
	if err := s.require(StageAlign); err != nil {
		return nil, err
	}
	keys := s.Keys()
	reference := s.data[keys[0]]

	data, nz, details, err := perKey(keys, func(key string) (keyResult, error) {
		aligned, off, err := registration.Align(s.data[key], reference)
		if err != nil {
			return keyResult{}, err
		}
		counts := aligned.Map(func(v float64) float64 { return math.Sqrt(math.Max(v, 0)) })

		d := s.details[key]
		d.Shift = &off
		return keyResult{data: aligned, noise: s.noise[key].WithCountNoise(counts), detail: d}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("align: %w", err)
	}
	return s.next(StageAlign, data, nz, s.profile, details)
}

// SubtractBackground estimates the background level of every polarizer over
// reg with the given estimator and removes it. The spread of the region is
// kept as the background noise.
func (s *Set) SubtractBackground(reg region.Region, method Method) (*Set, error) {
	if err := s.require(StageBackground); err != nil {
		return nil, err
	}
	if _, err := ParseMethod(string(method)); err != nil {
		return nil, err
	}
	if reg == nil {
		return nil, fmt.Errorf("%w: no background region", polerr.ErrInvalidParameter)
	}

	data, nz, details, err := perKey(s.Keys(), func(key string) (keyResult, error) {
		img := s.data[key]
		vals, err := img.Select(reg.Mask(img.Rows, img.Cols))
		if err != nil {
			return keyResult{}, err
		}
		if len(vals) == 0 {
			return keyResult{}, fmt.Errorf("%w: background region %v selects no pixels", polerr.ErrInvalidParameter, reg)
		}

		level, err := Background(vals, method)
		if err != nil {
			return keyResult{}, err
		}
		sigma := stat.PopStdDev(vals, nil)

		d := s.details[key]
		d.Background = &level
		d.BackgroundNoise = &sigma
		d.Region = reg
		d.Method = method
		return keyResult{data: img.SubScalar(level), noise: s.noise[key].WithBackgroundNoise(sigma), detail: d}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("background subtraction: %w", err)
	}
	return s.next(StageBackground, data, nz, s.profile, details)
}

// Bin sums non-overlapping size×size blocks of every polarizer image and
// scales the pixel size accordingly. Binning an already binned set composes:
// the recorded bin size is the product of every factor applied.
func (s *Set) Bin(size int) (*Set, error) {
	if err := s.require(StageBinning); err != nil {
		return nil, err
	}
	if size < 1 {
		return nil, fmt.Errorf("%w: bin size %d", polerr.ErrInvalidParameter, size)
	}

	data, nz, details, err := perKey(s.Keys(), func(key string) (keyResult, error) {
		binned, err := s.data[key].Bin(size)
		if err != nil {
			return keyResult{}, err
		}
		rec := s.noise[key]
		total := max(rec.BinSize, 1) * size
		d := s.details[key]
		d.BinSize = total
		return keyResult{data: binned, noise: rec.WithBinSize(total), detail: d}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("binning: %w", err)
	}
	return s.next(StageBinning, data, nz, s.profile, details)
}

// Background returns the level of vals under method.
func Background(vals []float64, method Method) (float64, error) {
	switch method {
	case MethodMedian:
		return median(vals), nil
	case MethodMean:
		return stat.Mean(vals, nil), nil
	}
	return 0, fmt.Errorf("%w: unknown background method %q (must be mean or median)", polerr.ErrInvalidParameter, method)
}

// median calculates the median of a slice of values
func median(values []float64) float64 {
	valuesCopy := make([]float64, len(values))
	copy(valuesCopy, values)
	sort.Float64s(valuesCopy)

	n := len(valuesCopy)
	if n == 0 {
		return 0
	}
	if n%2 == 0 {
		return (valuesCopy[n/2-1] + valuesCopy[n/2]) / 2
	}
	return valuesCopy[n/2]
}

// Exptime returns the total exposure time of key.
func (s *Set) Exptime(key string) (float64, error) { return s.profile.Exptime(key) }

// Photflam returns the calibration constant of key.
func (s *Set) Photflam(key string) (float64, error) {
	return s.profile.Photflam(key, header.PhotflamMean)
}
