// Package region defines the image regions used to pick background pixels
// and to crop displays. A region knows how to rasterise itself into a
// boolean mask over a given image shape.
package region

import (
	"fmt"
	"strings"

	"polstokes/pkg/polerr"
)

// Region is a shape in pixel coordinates.
type Region interface {
	// Mask returns a row-major mask of rows*cols entries, true inside the region.
	Mask(rows, cols int) []bool

	// Magnify scales the region by an integer factor, mapping coordinates
	// from one pixel grid onto a grid n times finer.
	Magnify(n int) Region

	// State describes the region as plain key/value pairs.
	State() map[string]any
}

// Rectangle covers columns [X0, X1) and rows [Y0, Y1).
type Rectangle struct {
	X0, X1 int
	Y0, Y1 int
}

func (r Rectangle) Mask(rows, cols int) []bool {
	mask := make([]bool, rows*cols)
	for y := max(r.Y0, 0); y < min(r.Y1, rows); y++ {
		for x := max(r.X0, 0); x < min(r.X1, cols); x++ {
			mask[y*cols+x] = true
		}
	}
	return mask
}

func (r Rectangle) Magnify(n int) Region {
	return Rectangle{X0: r.X0 * n, X1: r.X1 * n, Y0: r.Y0 * n, Y1: r.Y1 * n}
}

func (r Rectangle) State() map[string]any {
	return map[string]any{"shape": "Rectangle", "x0": r.X0, "x1": r.X1, "y0": r.Y0, "y1": r.Y1}
}

// Shape returns the (rows, cols) extent of the rectangle.
func (r Rectangle) Shape() (int, int) { return r.Y1 - r.Y0, r.X1 - r.X0 }

func (r Rectangle) String() string {
	return fmt.Sprintf("Rectangle[x %d:%d, y %d:%d]", r.X0, r.X1, r.Y0, r.Y1)
}

// Circle covers every pixel whose centre lies within Radius of (CX, CY).
type Circle struct {
	Radius float64
	CX, CY int
}

func (c Circle) Mask(rows, cols int) []bool {
	mask := make([]bool, rows*cols)
	r2 := c.Radius * c.Radius
	for y := 0; y < rows; y++ {
		dy := float64(y - c.CY)
		for x := 0; x < cols; x++ {
			dx := float64(x - c.CX)
			mask[y*cols+x] = dx*dx+dy*dy <= r2
		}
	}
	return mask
}

// Magnify scales the radius and the centre together.
func (c Circle) Magnify(n int) Region {
	return Circle{Radius: c.Radius * float64(n), CX: c.CX * n, CY: c.CY * n}
}

func (c Circle) State() map[string]any {
	return map[string]any{"shape": "Circle", "radius": c.Radius, "cx": c.CX, "cy": c.CY}
}

func (c Circle) String() string {
	return fmt.Sprintf("Circle[r %g, c (%d,%d)]", c.Radius, c.CX, c.CY)
}

// Spec is the serialisable description of a region, as found in config files.
type Spec struct {
	Shape  string  `yaml:"shape"`
	X0     int     `yaml:"x0,omitempty"`
	X1     int     `yaml:"x1,omitempty"`
	Y0     int     `yaml:"y0,omitempty"`
	Y1     int     `yaml:"y1,omitempty"`
	Radius float64 `yaml:"radius,omitempty"`
	CX     int     `yaml:"cx,omitempty"`
	CY     int     `yaml:"cy,omitempty"`
}

// Build turns the spec into a Region.
func (s Spec) Build() (Region, error) {
	switch strings.ToLower(s.Shape) {
	case "rectangle", "rect":
		if s.X1 <= s.X0 || s.Y1 <= s.Y0 {
			return nil, fmt.Errorf("%w: empty rectangle x %d:%d, y %d:%d", polerr.ErrInvalidParameter, s.X0, s.X1, s.Y0, s.Y1)
		}
		return Rectangle{X0: s.X0, X1: s.X1, Y0: s.Y0, Y1: s.Y1}, nil
	case "circle":
		if s.Radius <= 0 {
			return nil, fmt.Errorf("%w: circle radius %g", polerr.ErrInvalidParameter, s.Radius)
		}
		return Circle{Radius: s.Radius, CX: s.CX, CY: s.CY}, nil
	default:
		return nil, fmt.Errorf("%w: region shape %q (must be rectangle or circle)", polerr.ErrInvalidParameter, s.Shape)
	}
}

// Count returns the number of true entries in mask.
func Count(mask []bool) int {
	n := 0
	for _, m := range mask {
		if m {
			n++
		}
	}
	return n
}
