package fits

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// Card is one header keyword. Value may be a string, bool, int or float64.
type Card struct {
	Key     string
	Value   any
	Comment string
}

func (c Card) format() (string, error) {
	if len(c.Key) > 8 {
		return "", fmt.Errorf("FITS keyword %q longer than 8 characters", c.Key)
	}
	var value string
	switch v := c.Value.(type) {
	case string:
		quoted := "'" + strings.ReplaceAll(v, "'", "''")
		if len(v) < 8 {
			quoted += strings.Repeat(" ", 8-len(v))
		}
		value = fmt.Sprintf("%-20s", quoted+"'")
	case bool:
		value = "F"
		if v {
			value = "T"
		}
		value = fmt.Sprintf("%20s", value)
	case int:
		value = fmt.Sprintf("%20d", v)
	case float64:
		value = fmt.Sprintf("%20s", strconv.FormatFloat(v, 'G', -1, 64))
	default:
		return "", fmt.Errorf("FITS keyword %s: unsupported value type %T", c.Key, c.Value)
	}
	line := fmt.Sprintf("%-8s= %s", c.Key, value)
	if c.Comment != "" {
		line += " / " + c.Comment
	}
	if len(line) > cardSize {
		line = line[:cardSize]
	}
	return fmt.Sprintf("%-80s", line), nil
}

// Write stores a rows×cols image as a 64-bit float primary HDU with the
// given extra header cards.
func Write(path string, rows, cols int, pixels []float64, cards []Card) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating FITS file: %w", err)
	}
	if err := WriteTo(f, rows, cols, pixels, cards); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteTo writes the HDU described by Write to w.
func WriteTo(w io.Writer, rows, cols int, pixels []float64, cards []Card) error {
	if len(pixels) != rows*cols {
		return fmt.Errorf("%d pixels for a %dx%d image", len(pixels), rows, cols)
	}
	bw := bufio.NewWriter(w)

	all := append([]Card{
		{Key: "SIMPLE", Value: true},
		{Key: "BITPIX", Value: -64},
		{Key: "NAXIS", Value: 2},
		{Key: "NAXIS1", Value: cols},
		{Key: "NAXIS2", Value: rows},
	}, cards...)
	written := 0
	for _, c := range all {
		line, err := c.format()
		if err != nil {
			return err
		}
		bw.WriteString(line)
		written += cardSize
	}
	bw.WriteString(fmt.Sprintf("%-80s", "END"))
	written += cardSize
	bw.WriteString(strings.Repeat(" ", pad(written)))

	buf := make([]byte, 8)
	for _, v := range pixels {
		binary.BigEndian.PutUint64(buf, math.Float64bits(v))
		bw.Write(buf)
	}
	bw.Write(make([]byte, pad(len(pixels)*8)))
	return bw.Flush()
}

// pad returns the bytes needed to fill the last 2880-byte block.
func pad(n int) int {
	if rem := n % blockSize; rem != 0 {
		return blockSize - rem
	}
	return 0
}
