package models

import (
	"path/filepath"

	"polstokes/pkg/header"
	"polstokes/pkg/pixel"
)

// Exposure represents a single raw polarimetric exposure with its metadata
type Exposure struct {
	// Name identifies the exposure; it is the base name of the source file
	Name string

	// Path is the file the exposure was read from
	Path string

	// Image holds the raw detector counts
	Image pixel.Image

	// Header is the parsed calibration record
	Header header.Raw
}

// NewExposure builds an exposure named after the base name of path
func NewExposure(path string, img pixel.Image, hdr header.Raw) Exposure {
	return Exposure{
		Name:   filepath.Base(path),
		Path:   path,
		Image:  img,
		Header: hdr,
	}
}

// Batch is the set of exposures loaded for one run
type Batch []Exposure

// Images returns the raw images keyed by exposure name
func (b Batch) Images() map[string]pixel.Image {
	out := make(map[string]pixel.Image, len(b))
	for _, e := range b {
		out[e.Name] = e.Image
	}
	return out
}

// Profile returns the calibration profile keyed by exposure name
func (b Batch) Profile() header.Profile {
	raw := make(map[string]header.Raw, len(b))
	for _, e := range b {
		raw[e.Name] = e.Header
	}
	return header.NewProfile(raw)
}

// Paths returns the source file of every exposure, in batch order
func (b Batch) Paths() []string {
	out := make([]string, len(b))
	for i, e := range b {
		out[i] = e.Path
	}
	return out
}
