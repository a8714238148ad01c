package visualization

import (
	"fmt"

	"polstokes/pkg/pixel"
	"polstokes/pkg/polerr"
)

// Kind selects which plane of a displayable product is requested.
type Kind string

const (
	// KindImage is the signal plane.
	KindImage Kind = "image"
	// KindNoise is the one-sigma uncertainty plane.
	KindNoise Kind = "noise"
)

// DefaultMaskRatio is the signal-to-noise threshold used when none is given.
const DefaultMaskRatio = 3.0

// Source is implemented by every product that can hand out an image for a
// key (a polarizer label or a Stokes component) and a kind.
type Source interface {
	// Keys lists the keys accepted by Image, in display order.
	Keys() []string
	// Image returns the requested plane for key.
	Image(kind Kind, key string) (pixel.Image, error)
}

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindImage, KindNoise:
		return k, nil
	}
	return "", fmt.Errorf("%w: unknown image kind %q", polerr.ErrInvalidParameter, s)
}

// SNR returns image / noise for key.
func SNR(src Source, key string) (pixel.Image, error) {
	img, err := src.Image(KindImage, key)
	if err != nil {
		return pixel.Image{}, err
	}
	noise, err := src.Image(KindNoise, key)
	if err != nil {
		return pixel.Image{}, err
	}
	return img.Div(noise)
}

// Mask marks the pixels of key whose signal-to-noise ratio exceeds ratio.
// Pixels with an undefined ratio are never selected.
func Mask(src Source, key string, ratio float64) ([]bool, error) {
	snr, err := SNR(src, key)
	if err != nil {
		return nil, err
	}
	mask := make([]bool, snr.Len())
	for i, v := range snr.Data {
		mask[i] = v > ratio
	}
	return mask, nil
}
