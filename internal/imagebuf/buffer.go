// Package imagebuf provides the in-memory pixel container every capture
// backend produces and the facade transforms (crop, scale) before encoding.
package imagebuf

import (
	"fmt"
	"image"

	xdraw "golang.org/x/image/draw"
)

// Region is an axis-aligned rectangle in source pixels, used for
// post-capture cropping.
type Region struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Buffer is an 8-bit RGBA pixel container in row-major order with no
// row padding (stride is always Width*4).
type Buffer struct {
	Width  int
	Height int
	Pix    []byte
}

// New allocates a zeroed buffer of the given dimensions.
func New(width, height int) *Buffer {
	return &Buffer{
		Width:  width,
		Height: height,
		Pix:    make([]byte, width*height*4),
	}
}

// FromImage copies an arbitrary image.Image into a tightly packed RGBA buffer.
func FromImage(img image.Image) *Buffer {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	buf := New(w, h)

	if rgba, ok := img.(*image.RGBA); ok && rgba.Stride == w*4 && bounds.Min == (image.Point{}) {
		copy(buf.Pix, rgba.Pix)
		return buf
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, a := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			i := (y*w + x) * 4
			buf.Pix[i+0] = byte(r >> 8)
			buf.Pix[i+1] = byte(g >> 8)
			buf.Pix[i+2] = byte(b >> 8)
			buf.Pix[i+3] = byte(a >> 8)
		}
	}
	return buf
}

// Dimensions returns the exact pixel dimensions of the buffer.
func (b *Buffer) Dimensions() (int, int) {
	return b.Width, b.Height
}

// Image returns the buffer as a stdlib image.RGBA, sharing the backing
// pixel slice. Callers that mutate the result mutate the buffer.
func (b *Buffer) Image() *image.RGBA {
	return &image.RGBA{
		Pix:    b.Pix,
		Stride: b.Width * 4,
		Rect:   image.Rect(0, 0, b.Width, b.Height),
	}
}

// ToRGBABytes returns the row-major, unpadded pixel data.
func (b *Buffer) ToRGBABytes() []byte {
	return b.Pix
}

// Crop returns a new buffer holding only the pixels inside r. r must lie
// entirely within the buffer's bounds.
func (b *Buffer) Crop(r Region) (*Buffer, error) {
	if r.Width <= 0 || r.Height <= 0 {
		return nil, fmt.Errorf("imagebuf: crop region has non-positive dimensions %dx%d", r.Width, r.Height)
	}
	if r.X < 0 || r.Y < 0 || r.X+r.Width > b.Width || r.Y+r.Height > b.Height {
		return nil, fmt.Errorf("imagebuf: crop region (%d,%d %dx%d) outside buffer bounds %dx%d",
			r.X, r.Y, r.Width, r.Height, b.Width, b.Height)
	}

	out := New(r.Width, r.Height)
	srcStride := b.Width * 4
	dstStride := out.Width * 4
	for row := 0; row < r.Height; row++ {
		srcStart := (r.Y+row)*srcStride + r.X*4
		dstStart := row * dstStride
		copy(out.Pix[dstStart:dstStart+dstStride], b.Pix[srcStart:srcStart+dstStride])
	}
	return out, nil
}

// Scale resizes the buffer by factor using bilinear resampling. Resulting
// dimensions are rounded to the nearest integer, minimum 1 pixel per axis.
func (b *Buffer) Scale(factor float64) (*Buffer, error) {
	if factor <= 0 {
		return nil, fmt.Errorf("imagebuf: scale factor must be positive, got %f", factor)
	}

	newW := scaledDim(b.Width, factor)
	newH := scaledDim(b.Height, factor)

	if newW == b.Width && newH == b.Height {
		out := New(b.Width, b.Height)
		copy(out.Pix, b.Pix)
		return out, nil
	}

	out := New(newW, newH)
	xdraw.BiLinear.Scale(out.Image(), out.Image().Bounds(), b.Image(), b.Image().Bounds(), xdraw.Src, nil)
	return out, nil
}

func scaledDim(dim int, factor float64) int {
	scaled := int(float64(dim)*factor + 0.5)
	if scaled < 1 {
		return 1
	}
	return scaled
}
