package editor

import (
	"fmt"
	"math"
	"strings"
)

// Filter is a named per-pixel colour transform.
type Filter string

const (
	FilterNone       Filter = "none"
	FilterGrayscale  Filter = "grayscale"
	FilterSepia      Filter = "sepia"
	FilterInvert     Filter = "invert"
	FilterBlur       Filter = "blur"
	FilterBrightness Filter = "brightness"
	FilterContrast   Filter = "contrast"
)

// Filters lists every filter in display order.
var Filters = []Filter{
	FilterNone,
	FilterGrayscale,
	FilterSepia,
	FilterInvert,
	FilterBlur,
	FilterBrightness,
	FilterContrast,
}

// Label returns the display name of the filter.
func (f Filter) Label() string {
	if f == "" {
		return ""
	}
	return strings.ToUpper(string(f[:1])) + string(f[1:])
}

// ParseFilter maps a name to a Filter. Matching ignores case and surrounding
// space; an empty name means FilterNone.
func ParseFilter(name string) (Filter, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return FilterNone, nil
	}
	for _, f := range Filters {
		if string(f) == name {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown filter %q", name)
}

const (
	brightnessFactor = 1.3
	// contrastFactor is the standard contrast curve for a contrast of 50.
	contrastFactor = 259.0 * (127 + 50) / (255.0 * (259 - 50))
)

// channel converts a computed channel value to a byte the way a clamped byte
// array does: NaN and negatives become 0, values above 255 become 255 and
// everything else rounds to nearest with ties to even.
func channel(v float64) uint8 {
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return uint8(math.RoundToEven(v))
}

// applyFilter transforms pix in place. pix is a tightly packed,
// non-premultiplied RGBA buffer; alpha bytes are never written.
func applyFilter(pix []uint8, f Filter) {
	if f == FilterNone {
		return
	}
	for i := 0; i+3 < len(pix); i += 4 {
		r, g, b := float64(pix[i]), float64(pix[i+1]), float64(pix[i+2])

		switch f {
		case FilterGrayscale:
			gray := channel(0.299*r + 0.587*g + 0.114*b)
			pix[i], pix[i+1], pix[i+2] = gray, gray, gray
		case FilterSepia:
			pix[i] = channel(math.Min(255, 0.393*r+0.769*g+0.189*b))
			pix[i+1] = channel(math.Min(255, 0.349*r+0.686*g+0.168*b))
			pix[i+2] = channel(math.Min(255, 0.272*r+0.534*g+0.131*b))
		case FilterInvert:
			pix[i], pix[i+1], pix[i+2] = channel(255-r), channel(255-g), channel(255-b)
		case FilterBrightness:
			pix[i] = channel(math.Min(255, r*brightnessFactor))
			pix[i+1] = channel(math.Min(255, g*brightnessFactor))
			pix[i+2] = channel(math.Min(255, b*brightnessFactor))
		case FilterContrast:
			pix[i] = channel(contrastFactor*(r-128) + 128)
			pix[i+1] = channel(contrastFactor*(g-128) + 128)
			pix[i+2] = channel(contrastFactor*(b-128) + 128)
		case FilterBlur:
			// Placeholder effect: only every fourth pixel is touched, and it
			// takes the mean of its own channels rather than its neighbours.
			if i%16 == 0 {
				avg := channel((r + g + b) / 3)
				pix[i], pix[i+1], pix[i+2] = avg, avg, avg
			}
		}
	}
}
