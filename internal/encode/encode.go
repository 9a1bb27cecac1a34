// Package encode serialises an imagebuf.Buffer to PNG, JPEG, or WebP bytes.
package encode

import (
	"bytes"
	"image/jpeg"
	"image/png"

	"github.com/chai2010/webp"

	"github.com/bryanchriswhite/wincap/internal/imagebuf"
	"github.com/bryanchriswhite/wincap/internal/wincap"
)

// Encode serialises buf per opts, returning the format's magic-number
// container bytes. Out-of-range options or an unknown format surface as
// an InvalidArgument CaptureError; codec failures as EncodingFailed.
func Encode(buf *imagebuf.Buffer, opts wincap.CaptureOptions) ([]byte, error) {
	var out bytes.Buffer

	if err := opts.Validate(); err != nil {
		return nil, err
	}

	switch opts.Format {
	case wincap.FormatPNG, "":
		enc := png.Encoder{CompressionLevel: pngCompressionBand(opts.Quality)}
		if err := enc.Encode(&out, buf.Image()); err != nil {
			return nil, wincap.WrapError(wincap.ErrEncodingFailed, "", err, "png encode failed")
		}
	case wincap.FormatJPEG:
		// image/jpeg has no alpha channel; the RGBA source is encoded as RGB.
		if err := jpeg.Encode(&out, buf.Image(), &jpeg.Options{Quality: resolveQuality(opts.Quality)}); err != nil {
			return nil, wincap.WrapError(wincap.ErrEncodingFailed, "", err, "jpeg encode failed")
		}
	case wincap.FormatWebP:
		if err := webp.Encode(&out, buf.Image(), &webp.Options{Lossless: false, Quality: float32(resolveQuality(opts.Quality))}); err != nil {
			return nil, wincap.WrapError(wincap.ErrEncodingFailed, "", err, "webp encode failed")
		}
	default:
		return nil, wincap.NewError(wincap.ErrInvalidArgument, "", "unsupported image format %q", opts.Format)
	}

	return out.Bytes(), nil
}

// pngCompressionBand maps the 0-100 quality scale onto PNG's compression
// levels: <=80 favours speed, 81-99 is the library default, 100 is best.
func pngCompressionBand(quality int) png.CompressionLevel {
	switch {
	case quality <= 80:
		return png.BestSpeed
	case quality < 100:
		return png.DefaultCompression
	default:
		return png.BestCompression
	}
}

// resolveQuality fills in the documented default (80) for the zero value;
// opts.Validate has already rejected anything else outside [0,100] before
// Encode is reached.
func resolveQuality(q int) int {
	if q == 0 {
		return 80
	}
	return q
}
