package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	"polstokes/pkg/pixel"
	"polstokes/pkg/polerr"
	"polstokes/pkg/region"
)

// Stretch names the intensity transfer function applied before quantising.
type Stretch string

const (
	StretchLinear Stretch = "linear"
	StretchLog    Stretch = "log"
	StretchAsinh  Stretch = "asinh"
)

// ParseStretch validates a stretch name.
func ParseStretch(s string) (Stretch, error) {
	switch st := Stretch(strings.ToLower(s)); st {
	case StretchLinear, StretchLog, StretchAsinh:
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown stretch %q (must be linear, log, or asinh)", polerr.ErrInvalidParameter, s)
}

// apply maps a normalised value in [0, 1] through the stretch.
func (s Stretch) apply(x float64) float64 {
	switch s {
	case StretchLog:
		return math.Log10(1+1000*x) / 3
	case StretchAsinh:
		return math.Asinh(10*x) / math.Asinh(10)
	}
	return x
}

// Viewer turns pixel images into 16-bit grayscale pictures and writes them
// to disk.
type Viewer struct {
	// stretch is the transfer function used by Render
	stretch Stretch

	// outputDir receives every file written by SaveSource
	outputDir string
}

// NewViewer creates a viewer writing into outputDir.
func NewViewer(stretch Stretch, outputDir string) (*Viewer, error) {
	st, err := ParseStretch(string(stretch))
	if err != nil {
		return nil, err
	}
	return &Viewer{stretch: st, outputDir: outputDir}, nil
}

// Render quantises img between its finite minimum and maximum. NaN samples
// render black.
func (v *Viewer) Render(img pixel.Image) (*image.Gray16, error) {
	lo, hi, ok := finiteRange(img.Data)
	if !ok {
		return nil, fmt.Errorf("%w: image has no finite samples", polerr.ErrMissingData)
	}
	return v.RenderRange(img, lo, hi), nil
}

// RenderRange quantises img between lo and hi, clipping outside values.
func (v *Viewer) RenderRange(img pixel.Image, lo, hi float64) *image.Gray16 {
	out := image.NewGray16(image.Rect(0, 0, img.Cols, img.Rows))
	span := hi - lo
	for y := 0; y < img.Rows; y++ {
		for x := 0; x < img.Cols; x++ {
			val := img.At(y, x)
			if math.IsNaN(val) {
				continue
			}
			norm := 0.0
			if span > 0 {
				norm = math.Max(0, math.Min(1, (val-lo)/span))
			}
			level := uint16(math.Round(v.stretch.apply(norm) * 65535))
			out.SetGray16(x, y, color.Gray16{Y: level})
		}
	}
	return out
}

// RenderRegion renders the part of img covered by rect.
func (v *Viewer) RenderRegion(img pixel.Image, rect region.Rectangle) (*image.Gray16, error) {
	sub, err := img.Crop(rect.X0, rect.X1, rect.Y0, rect.Y1)
	if err != nil {
		return nil, err
	}
	return v.Render(sub)
}

// SavePNG writes a rendered picture as PNG.
func (v *Viewer) SavePNG(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return png.Encode(file, img)
}

// SaveSource renders every key and both kinds of src into the output
// directory as <prefix>_<key>_<kind>.png and returns the written paths.
func (v *Viewer) SaveSource(prefix string, src Source) ([]string, error) {
	if err := os.MkdirAll(v.outputDir, 0755); err != nil {
		return nil, err
	}

	var written []string
	for _, key := range src.Keys() {
		for _, kind := range []Kind{KindImage, KindNoise} {
			img, err := src.Image(kind, key)
			if err != nil {
				return written, err
			}
			pic, err := v.Render(img)
			if err != nil {
				return written, fmt.Errorf("%s %s %s: %w", prefix, key, kind, err)
			}
			filename := filepath.Join(v.outputDir, fmt.Sprintf("%s_%s_%s.png", prefix, strings.ToLower(key), kind))
			if err := v.SavePNG(pic, filename); err != nil {
				return written, err
			}
			written = append(written, filename)
		}
	}
	return written, nil
}

func finiteRange(data []float64) (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
		ok = true
	}
	return lo, hi, ok
}
