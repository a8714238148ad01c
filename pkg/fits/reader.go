// Package fits reads and writes the primary image HDU of FITS files.
package fits

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"polstokes/pkg/header"
	"polstokes/pkg/polerr"
)

const (
	cardSize  = 80
	blockSize = 2880
)

// Data holds the primary image and its header cards.
type Data struct {
	Rows   int
	Cols   int
	Pixels []float64
	Header header.Fields
}

// Read reads the primary HDU of a FITS file.
func Read(path string) (*Data, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening FITS file: %w", err)
	}
	defer f.Close()

	d, err := ReadFrom(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// ReadBytes reads the primary HDU from an in-memory file.
func ReadBytes(data []byte) (*Data, error) {
	return ReadFrom(bytes.NewReader(data))
}

// ReadFrom reads the primary HDU from r. A header without an image (NAXIS
// = 0) is reported as missing data.
func ReadFrom(r io.Reader) (*Data, error) {
	var bitpix, naxis int
	axes := map[int]int{}
	bzero, bscale := 0.0, 1.0
	fields := header.Fields{}

	card := make([]byte, cardSize)
	read := 0
	for {
		if _, err := io.ReadFull(r, card); err != nil {
			return nil, fmt.Errorf("reading FITS header record: %w", err)
		}
		read += cardSize
		record := string(card)
		keyword := strings.TrimSpace(record[:8])

		if keyword == "END" {
			break
		}
		if record[8] != '=' || record[9] != ' ' {
			continue
		}
		rawValue := cardValue(record[10:])
		fields[keyword] = rawValue

		switch {
		case keyword == "BITPIX":
			bitpix, _ = strconv.Atoi(rawValue)
		case keyword == "NAXIS":
			naxis, _ = strconv.Atoi(rawValue)
		case strings.HasPrefix(keyword, "NAXIS"):
			if n, err := strconv.Atoi(keyword[5:]); err == nil {
				axes[n], _ = strconv.Atoi(rawValue)
			}
		case keyword == "BZERO":
			bzero, _ = strconv.ParseFloat(rawValue, 64)
		case keyword == "BSCALE":
			bscale, _ = strconv.ParseFloat(rawValue, 64)
		}
	}
	if rem := read % blockSize; rem != 0 {
		if _, err := io.CopyN(io.Discard, r, int64(blockSize-rem)); err != nil {
			return nil, fmt.Errorf("skipping FITS header padding: %w", err)
		}
	}

	if naxis == 0 {
		return nil, fmt.Errorf("%w: primary HDU has no image data", polerr.ErrMissingData)
	}
	cols, rows := axes[1], axes[2]
	if naxis < 2 || cols <= 0 || rows <= 0 {
		return nil, fmt.Errorf("invalid FITS: NAXIS=%d, NAXIS1=%d, NAXIS2=%d", naxis, cols, rows)
	}
	for n := 3; n <= naxis; n++ {
		if axes[n] != 1 {
			return nil, fmt.Errorf("unsupported FITS: NAXIS%d=%d, only single-plane images are read", n, axes[n])
		}
	}

	pixels, err := readPixels(r, bitpix, rows*cols, bscale, bzero)
	if err != nil {
		return nil, err
	}
	return &Data{Rows: rows, Cols: cols, Pixels: pixels, Header: fields}, nil
}

func readPixels(r io.Reader, bitpix, n int, bscale, bzero float64) ([]float64, error) {
	width := bitpix / 8
	if width < 0 {
		width = -width
	}
	switch bitpix {
	case 8, 16, 32, 64, -32, -64:
	default:
		return nil, fmt.Errorf("unsupported BITPIX: %d", bitpix)
	}

	raw := make([]byte, n*width)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("reading %d-bit pixel data: %w", bitpix, err)
	}

	pixels := make([]float64, n)
	for i := range pixels {
		b := raw[i*width:]
		var v float64
		switch bitpix {
		case 8:
			v = float64(b[0])
		case 16:
			v = float64(int16(binary.BigEndian.Uint16(b)))
		case 32:
			v = float64(int32(binary.BigEndian.Uint32(b)))
		case 64:
			v = float64(int64(binary.BigEndian.Uint64(b)))
		case -32:
			v = float64(math.Float32frombits(binary.BigEndian.Uint32(b)))
		case -64:
			v = math.Float64frombits(binary.BigEndian.Uint64(b))
		}
		pixels[i] = v*bscale + bzero
	}
	return pixels, nil
}

// cardValue extracts the value of a header card, dropping the comment and
// the quotes around strings.
func cardValue(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "'") {
		// '' inside a string is an escaped quote
		var b strings.Builder
		for i := 1; i < len(s); i++ {
			if s[i] == '\'' {
				if i+1 < len(s) && s[i+1] == '\'' {
					b.WriteByte('\'')
					i++
					continue
				}
				break
			}
			b.WriteByte(s[i])
		}
		return strings.TrimRight(b.String(), " ")
	}
	return strings.TrimSpace(strings.SplitN(s, "/", 2)[0])
}
