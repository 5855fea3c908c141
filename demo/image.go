package demo

import (
	"encoding/binary"
	"errors"
	"math"

	"xdao.co/provchain/pipeline"
	"xdao.co/provchain/provenance"
)

const ImageMediaType = "image/x-grayscale"

// ErrHeightMismatch is returned by HConcat for inputs of different heights.
var ErrHeightMismatch = errors.New("demo: images differ in height")

// Image is an 8-bit grayscale raster stored row-major. Canonical encoding:
// width (LE32) ∥ height (LE32) ∥ pixels.
type Image struct {
	Width  uint32
	Height uint32
	Pixels []byte
}

// NewImage returns a width×height image filled with fill.
func NewImage(width, height uint32, fill byte) Image {
	px := make([]byte, int(width)*int(height))
	for i := range px {
		px[i] = fill
	}
	return Image{Width: width, Height: height, Pixels: px}
}

// TestPattern returns an image whose pixel i holds i mod 256.
func TestPattern(width, height uint32) Image {
	px := make([]byte, int(width)*int(height))
	for i := range px {
		px[i] = byte(i)
	}
	return Image{Width: width, Height: height, Pixels: px}
}

func (m Image) CanonicalBytes() []byte {
	b := make([]byte, 0, 8+len(m.Pixels))
	b = binary.LittleEndian.AppendUint32(b, m.Width)
	b = binary.LittleEndian.AppendUint32(b, m.Height)
	return append(b, m.Pixels...)
}

func (m Image) ContentHash() provenance.ContentHash { return provenance.Sum(m.CanonicalBytes()) }
func (m Image) MediaType() string                   { return ImageMediaType }

func DecodeImage(b []byte) (Image, error) {
	if len(b) < 8 {
		return Image{}, errDecode("image", "short header (%d bytes)", len(b))
	}
	w := binary.LittleEndian.Uint32(b[0:4])
	h := binary.LittleEndian.Uint32(b[4:8])
	if uint64(len(b)-8) != uint64(w)*uint64(h) {
		return Image{}, errDecode("image", "%dx%d needs %d pixels, got %d", w, h, uint64(w)*uint64(h), len(b)-8)
	}
	return Image{Width: w, Height: h, Pixels: append([]byte(nil), b[8:]...)}, nil
}

// At returns the pixel at (x, y) and whether it lies inside the image.
func (m Image) At(x, y uint32) (byte, bool) {
	if x >= m.Width || y >= m.Height {
		return 0, false
	}
	return m.Pixels[int(y)*int(m.Width)+int(x)], true
}

// Clone returns a copy that shares no pixel memory with m.
func (m Image) Clone() Image {
	m.Pixels = append([]byte(nil), m.Pixels...)
	return m
}

func (m Image) set(x, y uint32, v byte) {
	if x < m.Width && y < m.Height {
		m.Pixels[int(y)*int(m.Width)+int(x)] = v
	}
}

// Region is a rectangle in pixel coordinates. Canonical encoding: X, Y, W, H
// as LE32.
type Region struct {
	X, Y, W, H uint32
}

func (r Region) CanonicalBytes() []byte {
	b := make([]byte, 0, 16)
	for _, v := range [...]uint32{r.X, r.Y, r.W, r.H} {
		b = binary.LittleEndian.AppendUint32(b, v)
	}
	return b
}

// clip returns the part of r inside a w x h image as half-open bounds.
func (r Region) clip(w, h uint32) (x0, y0, x1, y1 uint32) {
	end := func(start, size, limit uint32) uint32 {
		if size > limit-start {
			return limit
		}
		return start + size
	}
	x0, y0 = min(r.X, w), min(r.Y, h)
	return x0, y0, end(x0, r.W, w), end(y0, r.H, h)
}

func redact(in Image, r Region) Image {
	out := in.Clone()
	x0, y0, x1, y1 := r.clip(in.Width, in.Height)
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			out.set(x, y, 0)
		}
	}
	return out
}

// Redact zeroes a region. The region is committed as "region".
var Redact = pipeline.MapWith("redact", redact, []pipeline.Param[Region]{pipeline.Self[Region]("region")})

func hconcat(a, b Image) (Image, error) {
	if a.Height != b.Height {
		return Image{}, ErrHeightMismatch
	}
	w := a.Width + b.Width
	px := make([]byte, 0, int(w)*int(a.Height))
	for y := 0; y < int(a.Height); y++ {
		px = append(px, a.Pixels[y*int(a.Width):(y+1)*int(a.Width)]...)
		px = append(px, b.Pixels[y*int(b.Width):(y+1)*int(b.Width)]...)
	}
	return Image{Width: w, Height: a.Height, Pixels: px}, nil
}

// HConcat places a to the left of b. Both become composedFrom ingredients,
// a first.
var HConcat = pipeline.TryCompose2("hconcat", hconcat)

// Offset is a translation in pixels. Canonical encoding: DX, DY as LE32.
type Offset struct {
	DX, DY int32
}

func (o Offset) CanonicalBytes() []byte {
	b := binary.LittleEndian.AppendUint32(nil, uint32(o.DX))
	return binary.LittleEndian.AppendUint32(b, uint32(o.DY))
}

type ShiftParams struct {
	Offset Offset
	Scale  provenance.Float64
}

// shift moves the image by Offset, filling uncovered pixels with 0, and
// scales brightness by Scale, clamped to [0, 255].
func shift(in Image, p ShiftParams) Image {
	out := NewImage(in.Width, in.Height, 0)
	for y := int64(0); y < int64(in.Height); y++ {
		for x := int64(0); x < int64(in.Width); x++ {
			sx, sy := x-int64(p.Offset.DX), y-int64(p.Offset.DY)
			if sx < 0 || sy < 0 || sx >= int64(in.Width) || sy >= int64(in.Height) {
				continue
			}
			v, _ := in.At(uint32(sx), uint32(sy))
			out.set(uint32(x), uint32(y), scale(v, float64(p.Scale)))
		}
	}
	return out
}

func scale(v byte, s float64) byte {
	f := math.Round(float64(v) * s)
	switch {
	case math.IsNaN(f) || f <= 0:
		return 0
	case f >= 255:
		return 255
	default:
		return byte(f)
	}
}

// Shift commits "offset" and "scale" separately.
var Shift = pipeline.MapWith("shift", shift, []pipeline.Param[ShiftParams]{
	pipeline.CanonicalParam("offset", func(p ShiftParams) provenance.Canonical { return p.Offset }),
	pipeline.CanonicalParam("scale", func(p ShiftParams) provenance.Canonical { return p.Scale }),
})
