// Package pipeline sequences the polarimetry stages into a single run.
//
// The standard procedure loads the raw exposures of one observation, sums
// them per polarizer, registers them onto a common reference, removes the
// sky background, bins the result, converts it to flux density and finally
// demodulates the three polarizer images into Stokes I/Q/U together with the
// degree and angle of linear polarization.
//
// Every stage returns a new immutable value, so the Result bundle keeps each
// intermediate product around for inspection and output.
package pipeline

import (
	"fmt"
	"log"
	"strings"

	"polstokes/pkg/flux"
	"polstokes/pkg/imageset"
	"polstokes/pkg/instrument"
	"polstokes/pkg/polerr"
	"polstokes/pkg/region"
	"polstokes/pkg/stokes"
)

// Params holds all configuration parameters for a standard run
type Params struct {
	// Instrument locates the raw exposures on disk
	Instrument instrument.Model

	// Background is the region sampled for the background level, in
	// unbinned pixel coordinates
	Background region.Region

	// BinSize is the block size of the final spatial binning
	BinSize int

	// Method selects the background estimator
	Method imageset.Method

	// Wave is the wavelength grid the throughputs are integrated over
	Wave stokes.Wave

	// Throughput supplies the band curves used to build the demodulation
	// matrix
	Throughput stokes.Throughput

	// MaskRatio is the P/noise_P threshold below which no angle is reported
	MaskRatio float64

	// Verbose logs one line per stage
	Verbose bool
}

// Result bundles every product of a standard run.
type Result struct {
	// Filelist is the sorted list of exposures that were read
	Filelist []string

	// Raws is the summed collection before alignment
	Raws *imageset.Set

	// Images is the aligned, background subtracted and binned collection
	Images *imageset.Set

	// Flux is Images converted to flux density
	Flux *flux.Image

	// Stokes holds I, Q and U with their noise
	Stokes *stokes.Parameter

	// Degree is the degree of linear polarization
	Degree *stokes.Degree

	// Angle is the polarization angle, NaN where the degree is not significant
	Angle *stokes.Angle
}

// String summarises the bundle for logging.
func (r *Result) String() string {
	var b strings.Builder
	b.WriteString("Result(\n")
	fmt.Fprintf(&b, "  filelist: %d files\n", len(r.Filelist))
	fmt.Fprintf(&b, "  raws:     %v\n", r.Raws)
	fmt.Fprintf(&b, "  images:   %v\n", r.Images)
	fmt.Fprintf(&b, "  flux:     %v\n", r.Flux)
	fmt.Fprintf(&b, "  stokes:   %v\n", r.Stokes)
	fmt.Fprintf(&b, "  degree:   %v\n", r.Degree)
	fmt.Fprintf(&b, "  angle:    %v\n", r.Angle)
	b.WriteString(")")
	return b.String()
}

// Standard runs the standard reduction procedure.
type Standard struct {
	params *Params
}

// NewStandard creates a new pipeline instance with the given parameters.
func NewStandard(params *Params) *Standard {
	return &Standard{params: params}
}

// validate checks the parameters that the stages would otherwise reject
// only after the exposures are loaded.
func (s *Standard) validate() error {
	p := s.params
	if p.Background == nil {
		return fmt.Errorf("%w: no background region", polerr.ErrInvalidParameter)
	}
	if p.Throughput == nil {
		return fmt.Errorf("%w: no throughput source", polerr.ErrInvalidParameter)
	}
	if p.BinSize < 1 {
		return fmt.Errorf("%w: bin size %d", polerr.ErrInvalidParameter, p.BinSize)
	}
	if _, err := imageset.ParseMethod(string(p.Method)); err != nil {
		return err
	}
	return p.Wave.Validate()
}

func (s *Standard) logf(format string, args ...any) {
	if s.params.Verbose {
		log.Printf(format, args...)
	}
}

// Run executes the full procedure and returns the product bundle. The first
// failing step halts the run; nothing is returned for partial progress.
func (s *Standard) Run() (*Result, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}
	p := s.params

	// Step 1: Load raw exposures
	s.logf("Step 1: Loading exposures from %s (%s)...", p.Instrument.Dir, p.Instrument.Pattern())
	batch, err := p.Instrument.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load exposures: %w", err)
	}
	loaded, err := imageset.Load(batch)
	if err != nil {
		return nil, fmt.Errorf("failed to build image set: %w", err)
	}
	s.logf("Loaded %d exposures", len(batch))

	// Step 2: Sum exposures per polarizer
	s.logf("Step 2: Summing exposures per polarizer...")
	raws, err := loaded.Sum()
	if err != nil {
		return nil, fmt.Errorf("failed to sum exposures: %w", err)
	}
	s.logf("Polarizers: %s", strings.Join(raws.Keys(), ", "))

	// Step 3: Register polarizer images
	s.logf("Step 3: Aligning polarizer images...")
	aligned, err := raws.Align()
	if err != nil {
		return nil, fmt.Errorf("failed to align images: %w", err)
	}
	for _, key := range aligned.Keys() {
		if d, err := aligned.Detail(key); err == nil && d.Shift != nil {
			s.logf("  %s shift: %v", key, *d.Shift)
		}
	}

	// Step 4: Subtract background
	s.logf("Step 4: Subtracting %s background over %v...", p.Method, p.Background)
	subtracted, err := aligned.SubtractBackground(p.Background, p.Method)
	if err != nil {
		return nil, fmt.Errorf("failed to subtract background: %w", err)
	}

	// Step 5: Bin
	s.logf("Step 5: Binning by %d...", p.BinSize)
	images, err := subtracted.Bin(p.BinSize)
	if err != nil {
		return nil, fmt.Errorf("failed to bin images: %w", err)
	}

	// Step 6: Convert to flux density
	s.logf("Step 6: Converting to flux density...")
	fi, err := flux.Load(images)
	if err != nil {
		return nil, fmt.Errorf("failed to convert to flux: %w", err)
	}

	// Step 7: Demodulate
	s.logf("Step 7: Demodulating Stokes parameters over %v...", p.Wave)
	params, err := stokes.Load(fi, p.Wave, p.Throughput)
	if err != nil {
		return nil, fmt.Errorf("failed to demodulate: %w", err)
	}

	// Step 8: Derived polarization products
	s.logf("Step 8: Computing polarization degree and angle...")
	degree, err := stokes.NewDegree(params)
	if err != nil {
		return nil, fmt.Errorf("failed to compute polarization degree: %w", err)
	}
	mask, err := degree.Mask(p.MaskRatio)
	if err != nil {
		return nil, fmt.Errorf("failed to compute significance mask: %w", err)
	}
	angle, err := stokes.NewAngle(params, mask)
	if err != nil {
		return nil, fmt.Errorf("failed to compute polarization angle: %w", err)
	}
	s.logf("%d of %d pixels above P/noise_P = %g", region.Count(mask), len(mask), p.MaskRatio)

	return &Result{
		Filelist: batch.Paths(),
		Raws:     raws,
		Images:   images,
		Flux:     fi,
		Stokes:   params,
		Degree:   degree,
		Angle:    angle,
	}, nil
}
