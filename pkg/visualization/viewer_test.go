package visualization

import (
	"errors"
	"fmt"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"polstokes/pkg/pixel"
	"polstokes/pkg/polerr"
	"polstokes/pkg/region"
)

// fakeSource serves fixed image and noise planes per key.
type fakeSource struct {
	keys  []string
	image map[string]pixel.Image
	noise map[string]pixel.Image
}

func (f fakeSource) Keys() []string { return f.keys }

func (f fakeSource) Image(kind Kind, key string) (pixel.Image, error) {
	planes := f.image
	if kind == KindNoise {
		planes = f.noise
	}
	img, ok := planes[key]
	if !ok {
		return pixel.Image{}, fmt.Errorf("%w: key %q", polerr.ErrMissingData, key)
	}
	return img, nil
}

func newFakeSource(t *testing.T) fakeSource {
	t.Helper()
	img, err := pixel.FromRows([][]float64{{10, 20}, {30, 40}})
	if err != nil {
		t.Fatalf("Failed to build image: %v", err)
	}
	noise, err := pixel.FromRows([][]float64{{5, 5}, {10, 20}})
	if err != nil {
		t.Fatalf("Failed to build noise: %v", err)
	}
	return fakeSource{
		keys:  []string{"I"},
		image: map[string]pixel.Image{"I": img},
		noise: map[string]pixel.Image{"I": noise},
	}
}

// TestSNRAndMask verifies the ratio and the strict threshold
func TestSNRAndMask(t *testing.T) {
	src := newFakeSource(t)

	snr, err := SNR(src, "I")
	if err != nil {
		t.Fatalf("SNR failed: %v", err)
	}
	want := []float64{2, 4, 3, 2}
	for i, v := range snr.Data {
		if math.Abs(v-want[i]) > 1e-12 {
			t.Errorf("SNR[%d]: expected %v, got %v", i, want[i], v)
		}
	}

	mask, err := Mask(src, "I", DefaultMaskRatio)
	if err != nil {
		t.Fatalf("Mask failed: %v", err)
	}
	wantMask := []bool{false, true, false, false}
	for i := range mask {
		if mask[i] != wantMask[i] {
			t.Errorf("Mask[%d]: expected %v, got %v", i, wantMask[i], mask[i])
		}
	}

	if _, err := Mask(src, "Q", 3); !errors.Is(err, polerr.ErrMissingData) {
		t.Errorf("Expected missing data for unknown key, got %v", err)
	}
}

// TestMaskIgnoresNaN verifies that undefined ratios never pass the threshold
func TestMaskIgnoresNaN(t *testing.T) {
	img, _ := pixel.FromRows([][]float64{{0, 10}})
	noise, _ := pixel.FromRows([][]float64{{0, 1}})
	src := fakeSource{
		keys:  []string{"P"},
		image: map[string]pixel.Image{"P": img},
		noise: map[string]pixel.Image{"P": noise},
	}
	mask, err := Mask(src, "P", 3)
	if err != nil {
		t.Fatalf("Mask failed: %v", err)
	}
	if mask[0] || !mask[1] {
		t.Errorf("Expected [false true], got %v", mask)
	}
}

func TestParseStretchAndKind(t *testing.T) {
	for _, name := range []string{"linear", "log", "asinh", "LOG"} {
		if _, err := ParseStretch(name); err != nil {
			t.Errorf("Stretch %q rejected: %v", name, err)
		}
	}
	if _, err := ParseStretch("sqrt"); !errors.Is(err, polerr.ErrInvalidParameter) {
		t.Errorf("Expected invalid parameter for unknown stretch, got %v", err)
	}
	if _, err := NewViewer("gamma", t.TempDir()); err == nil {
		t.Error("Expected error creating viewer with unknown stretch")
	}

	if k, err := ParseKind("noise"); err != nil || k != KindNoise {
		t.Errorf("Expected noise kind, got %v, %v", k, err)
	}
	if _, err := ParseKind("variance"); !errors.Is(err, polerr.ErrInvalidParameter) {
		t.Errorf("Expected invalid parameter for unknown kind, got %v", err)
	}
}

// TestRender verifies quantisation bounds and NaN handling
func TestRender(t *testing.T) {
	viewer, err := NewViewer(StretchLinear, t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create viewer: %v", err)
	}

	img, _ := pixel.FromRows([][]float64{{0, 5, 10}, {math.NaN(), 2.5, 10}})
	pic, err := viewer.Render(img)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	bounds := pic.Bounds()
	if bounds.Dx() != 3 || bounds.Dy() != 2 {
		t.Fatalf("Expected 3x2 picture, got %dx%d", bounds.Dx(), bounds.Dy())
	}
	if got := pic.Gray16At(0, 0).Y; got != 0 {
		t.Errorf("Minimum should map to 0, got %d", got)
	}
	if got := pic.Gray16At(2, 0).Y; got != 65535 {
		t.Errorf("Maximum should map to 65535, got %d", got)
	}
	if got := pic.Gray16At(1, 0).Y; got != 32768 {
		t.Errorf("Midpoint should map to 32768, got %d", got)
	}
	if got := pic.Gray16At(0, 1).Y; got != 0 {
		t.Errorf("NaN should render black, got %d", got)
	}

	if _, err := viewer.Render(pixel.Filled(2, 2, math.NaN())); !errors.Is(err, polerr.ErrMissingData) {
		t.Errorf("Expected missing data for all-NaN image, got %v", err)
	}
}

// TestStretchesAreMonotonic verifies every transfer function keeps order
func TestStretchesAreMonotonic(t *testing.T) {
	for _, s := range []Stretch{StretchLinear, StretchLog, StretchAsinh} {
		if s.apply(0) != 0 || math.Abs(s.apply(1)-1) > 1e-12 {
			t.Errorf("%s: expected endpoints 0 and 1, got %v and %v", s, s.apply(0), s.apply(1))
		}
		prev := -1.0
		for x := 0.0; x <= 1.0; x += 0.05 {
			y := s.apply(x)
			if y < prev {
				t.Errorf("%s: not monotonic at %v", s, x)
			}
			prev = y
		}
	}
}

func TestRenderRegion(t *testing.T) {
	viewer, _ := NewViewer(StretchLinear, t.TempDir())
	img := pixel.Filled(6, 8, 1)

	pic, err := viewer.RenderRegion(img, region.Rectangle{X0: 2, X1: 6, Y0: 1, Y1: 4})
	if err != nil {
		t.Fatalf("RenderRegion failed: %v", err)
	}
	if pic.Bounds().Dx() != 4 || pic.Bounds().Dy() != 3 {
		t.Errorf("Expected 4x3 crop, got %v", pic.Bounds())
	}
}

// TestSaveSource verifies that every key and kind is written as a PNG
func TestSaveSource(t *testing.T) {
	outputDir := filepath.Join(t.TempDir(), "png")
	viewer, err := NewViewer(StretchAsinh, outputDir)
	if err != nil {
		t.Fatalf("Failed to create viewer: %v", err)
	}

	written, err := viewer.SaveSource("stokes", newFakeSource(t))
	if err != nil {
		t.Fatalf("SaveSource failed: %v", err)
	}
	if len(written) != 2 {
		t.Fatalf("Expected 2 files, got %d", len(written))
	}
	for _, name := range []string{"stokes_i_image.png", "stokes_i_noise.png"} {
		path := filepath.Join(outputDir, name)
		file, err := os.Open(path)
		if err != nil {
			t.Errorf("Expected %s to exist: %v", name, err)
			continue
		}
		if _, err := png.Decode(file); err != nil {
			t.Errorf("%s is not a valid PNG: %v", name, err)
		}
		file.Close()
	}
}

func TestSaveHeatMapAndCurves(t *testing.T) {
	dir := t.TempDir()
	img, _ := pixel.FromRows([][]float64{{1, 2, 3}, {4, 5, 6}})

	heat := filepath.Join(dir, "heat.png")
	if err := SaveHeatMap(img.WithScale(0.5, 0.5), "P", heat); err != nil {
		t.Fatalf("SaveHeatMap failed: %v", err)
	}
	if info, err := os.Stat(heat); err != nil || info.Size() == 0 {
		t.Errorf("Heat map not written: %v", err)
	}

	if err := SaveHeatMap(pixel.Filled(3, 3, 7), "flat", filepath.Join(dir, "flat.png")); err != nil {
		t.Errorf("SaveHeatMap of a constant image failed: %v", err)
	}
	if err := SaveHeatMap(pixel.Filled(2, 2, math.NaN()), "empty", filepath.Join(dir, "x.png")); err == nil {
		t.Error("Expected error for all-NaN heat map")
	}

	curves := []Curve{
		{Label: "POL0", Wave: []float64{4000, 5000, 6000}, Values: []float64{0.1, 0.3, 0.2}},
		{Label: "POL60", Wave: []float64{4000, 5000, 6000}, Values: []float64{0.2, math.NaN(), 0.1}},
	}
	plotFile := filepath.Join(dir, "curves.png")
	if err := SaveThroughputCurves(curves, "throughput", plotFile); err != nil {
		t.Fatalf("SaveThroughputCurves failed: %v", err)
	}
	if _, err := os.Stat(plotFile); err != nil {
		t.Errorf("Curve plot not written: %v", err)
	}

	bad := []Curve{{Label: "x", Wave: []float64{1, 2}, Values: []float64{1}}}
	if err := SaveThroughputCurves(bad, "bad", filepath.Join(dir, "bad.png")); !errors.Is(err, polerr.ErrShapeMismatch) {
		t.Errorf("Expected shape mismatch, got %v", err)
	}
}
