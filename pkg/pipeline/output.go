package pipeline

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"polstokes/pkg/fits"
	"polstokes/pkg/pixel"
	"polstokes/pkg/region"
	"polstokes/pkg/stokes"
	"polstokes/pkg/visualization"
)

// Output selects which products of a Result are written to disk
type Output struct {
	// Dir receives every written file
	Dir string

	// Stretch is the PNG transfer function
	Stretch visualization.Stretch

	// SavePNG writes every product and its noise as grayscale PNG
	SavePNG bool

	// SavePlots writes heat maps of the Stokes products and a throughput
	// curve plot
	SavePlots bool

	// SaveFITS writes the Stokes products as FITS images
	SaveFITS bool

	// Crop, when set, also writes PNG cut-outs of this rectangle, given in
	// binned pixel coordinates. Raw images are cut at the matching unbinned
	// rectangle.
	Crop *region.Rectangle
}

// product is one named image written by the FITS and heat map outputs.
type product struct {
	name string
	img  pixel.Image
}

func products(res *Result) []product {
	return []product{
		{"I", res.Stokes.I},
		{"Q", res.Stokes.Q},
		{"U", res.Stokes.U},
		{"noise_I", res.Stokes.NoiseI},
		{"P", res.Degree.P},
		{"noise_P", res.Degree.NoiseP},
		{"theta", res.Angle.Theta},
	}
}

// Save writes the selected outputs of res and returns the paths written.
// Products that cannot be rendered, such as an angle map with no
// significant pixel, are skipped with a warning. Wave and src are only used
// for the throughput plot.
func (o Output) Save(res *Result, wave stokes.Wave, src stokes.Throughput) ([]string, error) {
	if err := os.MkdirAll(o.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var written []string
	if o.SavePNG {
		paths, err := o.savePNG(res)
		written = append(written, paths...)
		if err != nil {
			return written, err
		}
	}
	if o.SavePlots {
		paths, err := o.savePlots(res, wave, src)
		written = append(written, paths...)
		if err != nil {
			return written, err
		}
	}
	if o.SaveFITS {
		paths, err := o.saveFITS(res)
		written = append(written, paths...)
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

func (o Output) savePNG(res *Result) ([]string, error) {
	viewer, err := visualization.NewViewer(o.Stretch, o.Dir)
	if err != nil {
		return nil, err
	}

	// Raw sums carry no combined noise yet, so only their data is drawn.
	var written []string
	for _, key := range res.Raws.Keys() {
		img, err := res.Raws.Data(key)
		if err != nil {
			return written, err
		}
		filename := filepath.Join(o.Dir, fmt.Sprintf("raw_%s_image.png", strings.ToLower(key)))
		if err := o.renderTo(viewer, img, filename); err != nil {
			log.Printf("Warning: Failed to save raw %s image: %v", key, err)
			continue
		}
		written = append(written, filename)
	}

	sources := []struct {
		prefix string
		src    visualization.Source
	}{
		{"image", res.Images},
		{"flux", res.Flux},
		{"stokes", res.Stokes},
		{"degree", res.Degree},
	}
	for _, s := range sources {
		paths, err := viewer.SaveSource(s.prefix, s.src)
		written = append(written, paths...)
		if err != nil {
			log.Printf("Warning: Failed to save %s images: %v", s.prefix, err)
		}
	}

	// The angle has no noise plane, so it is rendered on its own.
	filename := filepath.Join(o.Dir, "angle_theta_image.png")
	if err := o.renderTo(viewer, res.Angle.Theta, filename); err != nil {
		log.Printf("Warning: Failed to save polarization angle: %v", err)
	} else {
		written = append(written, filename)
	}

	if o.Crop != nil {
		written = append(written, o.saveCrops(viewer, res)...)
	}
	return written, nil
}

// saveCrops renders the crop rectangle of every product and the matching
// unbinned rectangle of every raw image.
func (o Output) saveCrops(viewer *visualization.Viewer, res *Result) []string {
	var written []string
	save := func(img pixel.Image, rect region.Rectangle, filename string) {
		pic, err := viewer.RenderRegion(img, rect)
		if err == nil {
			err = viewer.SavePNG(pic, filename)
		}
		if err != nil {
			log.Printf("Warning: Failed to save %s: %v", filepath.Base(filename), err)
			return
		}
		written = append(written, filename)
	}

	rawRect := o.Crop.Magnify(binFactor(res)).(region.Rectangle)
	for _, key := range res.Raws.Keys() {
		img, err := res.Raws.Data(key)
		if err != nil {
			log.Printf("Warning: Failed to crop raw %s image: %v", key, err)
			continue
		}
		save(img, rawRect, filepath.Join(o.Dir, fmt.Sprintf("crop_raw_%s.png", strings.ToLower(key))))
	}
	for _, p := range products(res) {
		save(p.img, *o.Crop, filepath.Join(o.Dir, fmt.Sprintf("crop_%s.png", strings.ToLower(p.name))))
	}
	return written
}

// binFactor returns the bin size recorded on the binned images, or 1.
func binFactor(res *Result) int {
	for _, key := range res.Images.Keys() {
		if d, err := res.Images.Detail(key); err == nil && d.BinSize > 0 {
			return d.BinSize
		}
	}
	return 1
}

func (o Output) renderTo(viewer *visualization.Viewer, img pixel.Image, filename string) error {
	pic, err := viewer.Render(img)
	if err != nil {
		return err
	}
	return viewer.SavePNG(pic, filename)
}

func (o Output) savePlots(res *Result, wave stokes.Wave, src stokes.Throughput) ([]string, error) {
	var written []string
	for _, p := range products(res) {
		filename := filepath.Join(o.Dir, fmt.Sprintf("heatmap_%s.png", strings.ToLower(p.name)))
		if err := visualization.SaveHeatMap(p.img, p.name, filename); err != nil {
			log.Printf("Warning: Failed to save %s heat map: %v", p.name, err)
			continue
		}
		written = append(written, filename)
	}

	curves, err := stokes.ThroughputCurves(res.Flux.Profile(), wave, src)
	if err != nil {
		return written, fmt.Errorf("failed to build throughput curves: %w", err)
	}
	filename := filepath.Join(o.Dir, "throughput.png")
	if err := visualization.SaveThroughputCurves(curves, "Polarizer throughput", filename); err != nil {
		return written, err
	}
	return append(written, filename), nil
}

func (o Output) saveFITS(res *Result) ([]string, error) {
	binSize := binFactor(res)

	var written []string
	for _, p := range products(res) {
		filename := filepath.Join(o.Dir, fmt.Sprintf("stokes_%s.fits", strings.ToLower(p.name)))
		cards := []fits.Card{
			{Key: "PRODUCT", Value: p.name, Comment: "polarimetric product"},
			{Key: "BINSIZE", Value: binSize, Comment: "spatial binning factor"},
			{Key: "CDELT1", Value: p.img.XDelta},
			{Key: "CDELT2", Value: p.img.YDelta},
		}
		if err := fits.Write(filename, p.img.Rows, p.img.Cols, p.img.Data, cards); err != nil {
			return written, fmt.Errorf("failed to save %s: %w", p.name, err)
		}
		written = append(written, filename)
	}
	return written, nil
}
