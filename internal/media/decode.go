package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// MaxPixels bounds the decoded size of an uploaded image.
const MaxPixels = 40_000_000

// ErrTooLarge is returned when an image exceeds MaxPixels.
var ErrTooLarge = errors.New("image exceeds the maximum pixel count")

// Decode reads a still image. The header is checked first so oversized
// images are rejected before their pixels are allocated. It returns the
// image and the registered format name ("jpeg", "png", "webp", ...).
func Decode(r io.Reader) (image.Image, string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", fmt.Errorf("read image: %w", err)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("unrecognised image data: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, "", fmt.Errorf("invalid image size %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.Width*cfg.Height > MaxPixels {
		return nil, "", fmt.Errorf("%w: %dx%d", ErrTooLarge, cfg.Width, cfg.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode %s: %w", format, err)
	}

	log.Debug().
		Str("format", format).
		Int("width", cfg.Width).
		Int("height", cfg.Height).
		Int("bytes", len(data)).
		Msg("Image decoded")
	return img, format, nil
}

// Fit scales img down so neither side exceeds maxDimension, preserving the
// aspect ratio. Images that already fit, and maxDimension <= 0, return img
// unchanged.
func Fit(img image.Image, maxDimension int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxDimension <= 0 || (w <= maxDimension && h <= maxDimension) {
		return img
	}

	var nw, nh int
	if w >= h {
		nw = maxDimension
		nh = max(1, h*maxDimension/w)
	} else {
		nh = maxDimension
		nw = max(1, w*maxDimension/h)
	}

	dst := image.NewNRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
