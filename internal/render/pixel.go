package render

import (
	"errors"
	"fmt"
	"image"
	"math"
)

// PixelFormat is the byte order of a 4-channel 8-bit pixel buffer.
type PixelFormat string

const (
	FormatRGBA PixelFormat = "rgba8888"
	FormatBGRA PixelFormat = "bgra8888"
)

const bytesPerPixel = 4

// ErrAllocation is returned when an output buffer cannot be allocated
// (non-positive extent or a size that overflows).
var ErrAllocation = errors.New("allocation failed")

// FrameBuffer is a 4-channel 8-bit pixel buffer. Stride is in bytes and may
// exceed Width*4 (row padding). A FrameBuffer is owned by exactly one frame
// request for the duration of its lifetime; buffers are never shared between
// concurrent renders.
type FrameBuffer struct {
	Width  int
	Height int
	Stride int
	Format PixelFormat
	Data   []byte
}

// NewFrameBuffer allocates a packed buffer (stride = width*4) in the given
// format. Returns ErrAllocation for non-positive extents or overflowing sizes.
func NewFrameBuffer(width, height int, format PixelFormat) (*FrameBuffer, error) {
	return NewFrameBufferStride(width, height, width*bytesPerPixel, format)
}

// NewFrameBufferStride allocates a buffer with an explicit row stride.
// The stride must be at least width*4.
func NewFrameBufferStride(width, height, stride int, format PixelFormat) (*FrameBuffer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrAllocation, width, height)
	}
	if stride < width*bytesPerPixel {
		return nil, fmt.Errorf("%w: stride %d < row bytes %d", ErrAllocation, stride, width*bytesPerPixel)
	}
	if height > math.MaxInt/stride {
		return nil, fmt.Errorf("%w: %dx%d overflows", ErrAllocation, width, height)
	}
	return &FrameBuffer{
		Width:  width,
		Height: height,
		Stride: stride,
		Format: format,
		Data:   make([]byte, height*stride),
	}, nil
}

// quantize converts a normalized [0,1] channel value to 8 bits:
// round(v*255) clamped to [0,255].
func quantize(v float64) uint8 {
	n := math.Round(v * 255)
	if n < 0 {
		return 0
	}
	if n > 255 {
		return 255
	}
	return uint8(n)
}

// channelBytes converts a normalized color to premultiplied 8-bit channels in
// the byte order declared by format.
func channelBytes(c Color, format PixelFormat) [4]byte {
	r := quantize(c.R * c.A)
	g := quantize(c.G * c.A)
	b := quantize(c.B * c.A)
	a := quantize(c.A)
	if format == FormatBGRA {
		return [4]byte{b, g, r, a}
	}
	return [4]byte{r, g, b, a}
}

// Fill writes the color into every pixel, honoring row stride padding.
func (f *FrameBuffer) Fill(c Color) {
	px := channelBytes(c, f.Format)
	rowBytes := f.Width * bytesPerPixel
	for y := 0; y < f.Height; y++ {
		row := f.Data[y*f.Stride : y*f.Stride+rowBytes]
		for x := 0; x < rowBytes; x += bytesPerPixel {
			copy(row[x:x+bytesPerPixel], px[:])
		}
	}
}

// At returns the raw 4 channel bytes of the pixel at (x, y) in the buffer's
// declared byte order.
func (f *FrameBuffer) At(x, y int) [4]byte {
	var px [4]byte
	copy(px[:], f.Data[y*f.Stride+x*bytesPerPixel:])
	return px
}

// RGBA returns the buffer contents as a premultiplied *image.RGBA, converting
// byte order if needed. The returned image aliases f.Data only when f is
// already packed RGBA; otherwise it is a copy.
func (f *FrameBuffer) RGBA() *image.RGBA {
	if f.Format == FormatRGBA && f.Stride == f.Width*bytesPerPixel {
		return &image.RGBA{Pix: f.Data, Stride: f.Stride, Rect: image.Rect(0, 0, f.Width, f.Height)}
	}
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		src := f.Data[y*f.Stride:]
		dst := img.Pix[y*img.Stride:]
		for x := 0; x < f.Width; x++ {
			o := x * bytesPerPixel
			if f.Format == FormatBGRA {
				dst[o+0] = src[o+2]
				dst[o+1] = src[o+1]
				dst[o+2] = src[o+0]
			} else {
				copy(dst[o:o+3], src[o:o+3])
			}
			dst[o+3] = src[o+3]
		}
	}
	return img
}

// blitRGBA copies img into f at offset (atX, atY), converting to the buffer's
// declared byte order and honoring stride. Pixels outside f are clipped.
// img must have a zero-origin bounds rectangle.
func (f *FrameBuffer) blitRGBA(img *image.RGBA, atX, atY int) {
	b := img.Bounds()
	for y := 0; y < b.Dy(); y++ {
		dy := atY + y
		if dy < 0 || dy >= f.Height {
			continue
		}
		src := img.Pix[y*img.Stride:]
		dst := f.Data[dy*f.Stride:]
		for x := 0; x < b.Dx(); x++ {
			dx := atX + x
			if dx < 0 || dx >= f.Width {
				continue
			}
			so := x * bytesPerPixel
			do := dx * bytesPerPixel
			if f.Format == FormatBGRA {
				dst[do+0] = src[so+2]
				dst[do+1] = src[so+1]
				dst[do+2] = src[so+0]
			} else {
				dst[do+0] = src[so+0]
				dst[do+1] = src[so+1]
				dst[do+2] = src[so+2]
			}
			dst[do+3] = src[so+3]
		}
	}
}

// blendRGBA composites img onto f at offset (atX, atY) with premultiplied
// source-over blending (dst = src + dst*(1-srcA)), converting to the buffer's
// declared byte order and honoring stride. Transparent overlay pixels show
// the existing destination through. img must have a zero-origin bounds
// rectangle.
func (f *FrameBuffer) blendRGBA(img *image.RGBA, atX, atY int) {
	b := img.Bounds()
	for y := 0; y < b.Dy(); y++ {
		dy := atY + y
		if dy < 0 || dy >= f.Height {
			continue
		}
		src := img.Pix[y*img.Stride:]
		dst := f.Data[dy*f.Stride:]
		for x := 0; x < b.Dx(); x++ {
			dx := atX + x
			if dx < 0 || dx >= f.Width {
				continue
			}
			so := x * bytesPerPixel
			do := dx * bytesPerPixel

			sa := src[so+3]
			if sa == 0 {
				continue
			}

			ri, bi := 0, 2
			if f.Format == FormatBGRA {
				ri, bi = 2, 0
			}
			if sa == 255 {
				dst[do+ri] = src[so+0]
				dst[do+1] = src[so+1]
				dst[do+bi] = src[so+2]
				dst[do+3] = 255
				continue
			}
			inv := 255 - sa
			dst[do+ri] = addClamp(src[so+0], mul255(dst[do+ri], inv))
			dst[do+1] = addClamp(src[so+1], mul255(dst[do+1], inv))
			dst[do+bi] = addClamp(src[so+2], mul255(dst[do+bi], inv))
			dst[do+3] = addClamp(src[so+3], mul255(dst[do+3], inv))
		}
	}
}

// mul255 multiplies two 8-bit values treated as fractions of 255.
func mul255(a, b uint8) uint8 {
	return uint8((int(a)*int(b) + 127) / 255)
}

// addClamp adds two channel values saturating at 255. Premultiplied inputs
// stay in range up to rounding, which this absorbs.
func addClamp(a, b uint8) uint8 {
	sum := int(a) + int(b)
	if sum > 255 {
		return 255
	}
	return uint8(sum)
}

// fitRect computes the aspect-preserving "fit" placement of a w x h image
// inside an outW x outH output: the largest scale keeping both dimensions
// within the output, centered with floor-divided offsets.
func fitRect(outW, outH, w, h int) (scaledW, scaledH, offX, offY int) {
	scale := math.Min(float64(outW)/float64(w), float64(outH)/float64(h))
	scaledW = int(math.Floor(float64(w) * scale))
	scaledH = int(math.Floor(float64(h) * scale))
	offX = (outW - scaledW) / 2
	offY = (outH - scaledH) / 2
	return scaledW, scaledH, offX, offY
}
