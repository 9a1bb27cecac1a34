package encode

import (
	"bytes"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/bryanchriswhite/wincap/internal/imagebuf"
	"github.com/bryanchriswhite/wincap/internal/wincap"
)

func TestEncodePNGRoundTrips(t *testing.T) {
	buf := imagebuf.TestPattern(16, 12)
	out, err := Encode(buf, wincap.CaptureOptions{Format: wincap.FormatPNG, Quality: 80})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("DecodeConfig: %v", err)
	}
	if cfg.Width != 16 || cfg.Height != 12 {
		t.Fatalf("decoded %dx%d, want 16x12", cfg.Width, cfg.Height)
	}
}

func TestEncodeJPEGMagicBytes(t *testing.T) {
	buf := imagebuf.TestPattern(8, 8)
	out, err := Encode(buf, wincap.CaptureOptions{Format: wincap.FormatJPEG, Quality: 80})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(out) < 3 || out[0] != 0xFF || out[1] != 0xD8 || out[2] != 0xFF {
		t.Fatalf("missing JPEG magic bytes, got % X", out[:min(3, len(out))])
	}
	if _, err := jpeg.Decode(bytes.NewReader(out)); err != nil {
		t.Fatalf("decode round trip: %v", err)
	}
}

func TestEncodeRejectsOutOfRangeQuality(t *testing.T) {
	buf := imagebuf.TestPattern(4, 4)
	_, err := Encode(buf, wincap.CaptureOptions{Format: wincap.FormatJPEG, Quality: 101})
	if !wincap.IsKind(err, wincap.ErrInvalidArgument) {
		t.Fatalf("Encode with quality 101: got %v, want InvalidArgument", err)
	}
}

func TestEncodeRejectsOutOfRangeScale(t *testing.T) {
	buf := imagebuf.TestPattern(4, 4)
	_, err := Encode(buf, wincap.CaptureOptions{Format: wincap.FormatPNG, Quality: 80, Scale: 0.01})
	if !wincap.IsKind(err, wincap.ErrInvalidArgument) {
		t.Fatalf("Encode with scale 0.01: got %v, want InvalidArgument", err)
	}
}

func TestEncodeRejectsUnknownFormat(t *testing.T) {
	buf := imagebuf.TestPattern(4, 4)
	_, err := Encode(buf, wincap.CaptureOptions{Format: "tiff"})
	if !wincap.IsKind(err, wincap.ErrInvalidArgument) {
		t.Fatalf("Encode with unknown format: got %v, want InvalidArgument", err)
	}
}
