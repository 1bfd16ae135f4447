// Package editor implements the image edit buffer: a source bitmap, a
// rotation in quarter turns and one colour filter, rendered into an output
// surface and exported as JPEG.
//
// The source is never modified. Mutators only mark the output stale;
// Render recomputes it and Export renders first when needed.
package editor

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"math"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
)

// JPEGQuality matches the default quality browsers use for JPEG canvas export.
const JPEGQuality = 92

// Direction is a rotation direction.
type Direction int

const (
	Clockwise Direction = iota
	CounterClockwise
)

// ParseDirection accepts "cw", "clockwise", "ccw" and "counterclockwise".
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "cw", "clockwise", "right":
		return Clockwise, nil
	case "ccw", "counterclockwise", "counter-clockwise", "left":
		return CounterClockwise, nil
	}
	return 0, fmt.Errorf("unknown rotation direction %q", s)
}

// SourceKind tells whether the loaded media can be edited.
type SourceKind int

const (
	SourceNone SourceKind = iota
	SourceImage
	SourceVideo
)

// ErrNoSource is returned by Export when nothing has been loaded.
var ErrNoSource = errors.New("no source loaded")

// EncodingError reports that the output surface could not be encoded. The
// edit state is unchanged and the export may be retried.
type EncodingError struct {
	Err error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encode edited image: %v", e.Err)
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}

// EncodeFunc writes img to w in a lossy still-image format.
type EncodeFunc func(w io.Writer, img image.Image) error

// EncodeJPEG encodes at JPEGQuality.
func EncodeJPEG(w io.Writer, img image.Image) error {
	return jpeg.Encode(w, img, &jpeg.Options{Quality: JPEGQuality})
}

// Result is the outcome of Export. For an image, Data holds the encoded
// bytes. For a video, Data is nil and Reference is the original reference.
type Result struct {
	Data      []byte
	MIMEType  string
	Reference string
}

// DataURL returns the result as a data: URL, or Reference when there is no
// encoded data.
func (r Result) DataURL() string {
	if r.Data == nil {
		return r.Reference
	}
	return "data:" + r.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(r.Data)
}

// Buffer holds one source and its edit state. It is not safe for concurrent
// use.
type Buffer struct {
	encode EncodeFunc

	kind      SourceKind
	reference string
	src       *image.NRGBA
	width     int
	height    int

	rotation int
	filter   Filter

	out   *image.NRGBA
	stale bool
}

// Option configures a Buffer.
type Option func(*Buffer)

// WithEncoder replaces the JPEG encoder used by Export.
func WithEncoder(fn EncodeFunc) Option {
	return func(b *Buffer) { b.encode = fn }
}

// New returns an empty buffer.
func New(opts ...Option) *Buffer {
	b := &Buffer{encode: EncodeJPEG, filter: FilterNone}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// LoadSource replaces the source with img and resets rotation and filter.
// reference identifies where the image came from and is reported back for
// sources that cannot be edited.
func (b *Buffer) LoadSource(img image.Image, reference string) {
	bounds := img.Bounds()
	src := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	if n, ok := img.(*image.NRGBA); ok {
		// Row copy keeps translucent pixels exact; draw.Draw would round
		// them through premultiplied colour.
		rowLen := bounds.Dx() * 4
		for y := 0; y < bounds.Dy(); y++ {
			si := n.PixOffset(bounds.Min.X, bounds.Min.Y+y)
			copy(src.Pix[y*src.Stride:y*src.Stride+rowLen], n.Pix[si:si+rowLen])
		}
	} else {
		draw.Draw(src, src.Bounds(), img, bounds.Min, draw.Src)
	}

	b.kind = SourceImage
	b.reference = reference
	b.src = src
	b.width, b.height = bounds.Dx(), bounds.Dy()
	b.resetEdits()
	log.Debug().Int("width", b.width).Int("height", b.height).Msg("Editor source loaded")
}

// LoadVideo records a video source. Videos are not edited; Export returns
// the reference unchanged.
func (b *Buffer) LoadVideo(reference string) {
	b.kind = SourceVideo
	b.reference = reference
	b.src = nil
	b.width, b.height = 0, 0
	b.resetEdits()
}

// Kind returns the kind of the loaded source.
func (b *Buffer) Kind() SourceKind { return b.kind }

// Size returns the natural width and height of the source.
func (b *Buffer) Size() (int, int) { return b.width, b.height }

// Rotation returns the current angle in degrees, one of 0, 90, 180, 270.
func (b *Buffer) Rotation() int { return b.rotation }

// Filter returns the selected filter.
func (b *Buffer) Filter() Filter { return b.filter }

// Rotate turns by a quarter in direction d and returns the new angle.
func (b *Buffer) Rotate(d Direction) int {
	if d == CounterClockwise {
		b.rotation = (b.rotation - 90 + 360) % 360
	} else {
		b.rotation = (b.rotation + 90) % 360
	}
	b.stale = true
	return b.rotation
}

// SetFilter selects f.
func (b *Buffer) SetFilter(f Filter) {
	b.filter = f
	b.stale = true
}

// Reset returns rotation to 0 and the filter to none.
func (b *Buffer) Reset() {
	b.resetEdits()
}

func (b *Buffer) resetEdits() {
	b.rotation = 0
	b.filter = FilterNone
	b.out = nil
	b.stale = true
}

// Stale reports whether the output no longer reflects the edit state.
func (b *Buffer) Stale() bool { return b.stale }

// Render recomputes the output surface and returns it. The surface has the
// source's natural size whatever the rotation, so quarter turns of a
// non-square image are clipped. Pixels not covered by the rotated source are
// transparent. Render returns nil when no image is loaded.
func (b *Buffer) Render() *image.NRGBA {
	if b.kind != SourceImage {
		b.stale = false
		return nil
	}
	out := rotate(b.src, b.rotation)
	applyFilter(out.Pix, b.filter)
	b.out = out
	b.stale = false
	return out
}

// Output returns the current output surface, rendering first if stale.
func (b *Buffer) Output() *image.NRGBA {
	if b.stale || b.out == nil {
		return b.Render()
	}
	return b.out
}

// Export encodes the current output. For a video source it returns the
// original reference. An encoder failure yields an *EncodingError.
func (b *Buffer) Export() (Result, error) {
	switch b.kind {
	case SourceNone:
		return Result{}, ErrNoSource
	case SourceVideo:
		return Result{Reference: b.reference}, nil
	}

	img := b.Output()
	var buf bytes.Buffer
	if err := b.encode(&buf, img); err != nil {
		log.Error().Err(err).Int("rotation", b.rotation).Str("filter", string(b.filter)).Msg("Failed to encode edited image")
		return Result{}, &EncodingError{Err: err}
	}
	return Result{Data: buf.Bytes(), MIMEType: "image/jpeg", Reference: b.reference}, nil
}

// quarterTurns holds exact cos and sin per supported angle.
var quarterTurns = map[int][2]float64{
	0:   {1, 0},
	90:  {0, 1},
	180: {-1, 0},
	270: {0, -1},
}

// rotate draws src rotated clockwise by deg about the centre into a surface
// of the same size. Each output pixel centre is mapped back into the source
// and sampled nearest-neighbour.
func rotate(src *image.NRGBA, deg int) *image.NRGBA {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	if deg == 0 {
		copy(dst.Pix, src.Pix)
		return dst
	}

	cs := quarterTurns[deg]
	cos, sin := cs[0], cs[1]
	cx, cy := float64(w)/2, float64(h)/2

	for y := 0; y < h; y++ {
		py := float64(y) + 0.5 - cy
		for x := 0; x < w; x++ {
			px := float64(x) + 0.5 - cx
			sx := int(math.Floor(cx + cos*px + sin*py))
			sy := int(math.Floor(cy - sin*px + cos*py))
			if sx < 0 || sy < 0 || sx >= w || sy >= h {
				continue
			}
			si := sy*src.Stride + sx*4
			di := y*dst.Stride + x*4
			copy(dst.Pix[di:di+4], src.Pix[si:si+4])
		}
	}
	return dst
}
