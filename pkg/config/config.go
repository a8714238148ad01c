// Package config provides configuration loading and management for polstokes.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"polstokes/pkg/imageset"
	"polstokes/pkg/instrument"
	"polstokes/pkg/polerr"
	"polstokes/pkg/region"
	"polstokes/pkg/stokes"
	"polstokes/pkg/visualization"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Input locates the raw exposures
	Input struct {
		// Directory holds the exposure files
		Directory string `yaml:"directory"`

		// Suffix and Extension select files named *<suffix><extension>
		Suffix    string `yaml:"suffix"`
		Extension string `yaml:"extension"`
	} `yaml:"input"`

	// Processing parameters
	Processing struct {
		// NumCores caps the number of OS threads running Go code
		NumCores int `yaml:"numCores"`

		// BinSize is the block size of the final spatial binning
		BinSize int `yaml:"binSize"`

		// BackgroundMethod is the background estimator, mean or median
		BackgroundMethod string `yaml:"backgroundMethod"`

		// MaskRatio is the P/noise_P threshold below which no angle is reported
		MaskRatio float64 `yaml:"maskRatio"`
	} `yaml:"processing"`

	// Background is the region sampled for the background level, in
	// unbinned pixel coordinates
	Background region.Spec `yaml:"background"`

	// Wave is the wavelength grid, in Ångström, over which throughputs are
	// integrated
	Wave struct {
		Start float64 `yaml:"start"`
		Stop  float64 `yaml:"stop"`
		Num   int     `yaml:"num"`
	} `yaml:"wave"`

	// Transmittance parameters
	Transmittance struct {
		// CurveTable is a YAML file of tabulated band throughputs
		CurveTable string `yaml:"curveTable"`
	} `yaml:"transmittance"`

	// Output parameters
	Output struct {
		// Directory receives every file written by a run
		Directory string `yaml:"directory"`

		// SavePNG writes each product as a grayscale PNG
		SavePNG bool `yaml:"savePNG"`

		// SavePlots writes heat maps and throughput curves
		SavePlots bool `yaml:"savePlots"`

		// SaveFITS writes the Stokes products as FITS images
		SaveFITS bool `yaml:"saveFITS"`

		// Stretch is the PNG transfer function: linear, log or asinh
		Stretch string `yaml:"stretch"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`

		// Crop is an optional rectangle, in binned pixel coordinates, written
		// as PNG cut-outs
		Crop *region.Spec `yaml:"crop,omitempty"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Input.Directory = "FOC_POL_C1F"
	cfg.Input.Suffix = ""
	cfg.Input.Extension = ""

	cfg.Processing.NumCores = runtime.NumCPU()
	cfg.Processing.BinSize = 10
	cfg.Processing.BackgroundMethod = string(imageset.MethodMedian)
	cfg.Processing.MaskRatio = visualization.DefaultMaskRatio

	cfg.Background = region.Spec{Shape: "circle", Radius: 50, CX: 350, CY: 150}

	cfg.Wave.Start = 1000
	cfg.Wave.Stop = 10000
	cfg.Wave.Num = 5000

	cfg.Transmittance.CurveTable = "throughput.yaml"

	cfg.Output.Directory = "polstokes_output"
	cfg.Output.SavePNG = true
	cfg.Output.SavePlots = false
	cfg.Output.SaveFITS = false
	cfg.Output.Stretch = string(visualization.StretchLog)
	cfg.Output.Verbose = true

	return cfg
}

// Validate checks every field that a run depends on
func (c *Config) Validate() error {
	if c.Input.Directory == "" {
		return fmt.Errorf("%w: input directory is empty", polerr.ErrInvalidParameter)
	}
	if c.Processing.BinSize < 1 {
		return fmt.Errorf("%w: bin size %d", polerr.ErrInvalidParameter, c.Processing.BinSize)
	}
	if _, err := imageset.ParseMethod(c.Processing.BackgroundMethod); err != nil {
		return err
	}
	if c.Processing.MaskRatio < 0 {
		return fmt.Errorf("%w: mask ratio %g", polerr.ErrInvalidParameter, c.Processing.MaskRatio)
	}
	if _, err := c.BackgroundRegion(); err != nil {
		return err
	}
	if err := c.WaveGrid().Validate(); err != nil {
		return err
	}
	if _, err := visualization.ParseStretch(c.Output.Stretch); err != nil {
		return err
	}
	if _, err := c.CropRegion(); err != nil {
		return err
	}
	return nil
}

// Instrument returns the exposure locator described by the input section
func (c *Config) Instrument() instrument.Model {
	return instrument.Model{Dir: c.Input.Directory, Suffix: c.Input.Suffix, Extension: c.Input.Extension}
}

// BackgroundRegion builds the background region
func (c *Config) BackgroundRegion() (region.Region, error) {
	return c.Background.Build()
}

// CropRegion builds the output crop rectangle, or nil when none is set
func (c *Config) CropRegion() (*region.Rectangle, error) {
	if c.Output.Crop == nil {
		return nil, nil
	}
	reg, err := c.Output.Crop.Build()
	if err != nil {
		return nil, err
	}
	rect, ok := reg.(region.Rectangle)
	if !ok {
		return nil, fmt.Errorf("%w: output crop must be a rectangle, got %s", polerr.ErrInvalidParameter, c.Output.Crop.Shape)
	}
	return &rect, nil
}

// WaveGrid returns the wavelength grid
func (c *Config) WaveGrid() stokes.Wave {
	return stokes.Wave{Start: c.Wave.Start, Stop: c.Wave.Stop, Num: c.Wave.Num}
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
