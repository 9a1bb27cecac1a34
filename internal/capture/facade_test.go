package capture

import (
	"bytes"
	"context"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/bryanchriswhite/wincap/internal/imagebuf"
	"github.com/bryanchriswhite/wincap/internal/wincap"
	"github.com/bryanchriswhite/wincap/internal/wincap/wincaptest"
)

func TestListWindowsReturnsFixtureInOrder(t *testing.T) {
	f := NewFacade(wincaptest.New())
	records, err := f.ListWindows(context.Background())
	if err != nil {
		t.Fatalf("ListWindows: %v", err)
	}
	want := []string{"h1", "h2", "h3"}
	if len(records) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(records))
	}
	for i, id := range want {
		if records[i].ID != id {
			t.Fatalf("record %d: expected id %s, got %s", i, id, records[i].ID)
		}
	}
}

func TestResolveTargetDoesNotCapture(t *testing.T) {
	f := NewFacade(wincaptest.New())
	rec, err := f.ResolveTarget(context.Background(), wincap.WindowSelector{Title: "VS Code"})
	if err != nil {
		t.Fatalf("ResolveTarget: %v", err)
	}
	if rec.ID != "h2" {
		t.Fatalf("expected id h2, got %s", rec.ID)
	}
}

func TestCaptureDisplayScaled(t *testing.T) {
	f := NewFacade(wincaptest.New())
	result, err := f.CaptureDisplay(context.Background(), nil, wincap.CaptureOptions{
		Format: wincap.FormatPNG, Quality: 80, Scale: 0.5,
	})
	if err != nil {
		t.Fatalf("CaptureDisplay: %v", err)
	}

	cfg, err := png.DecodeConfig(bytes.NewReader(result.Bytes))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if cfg.Width != 50 || cfg.Height != 50 {
		t.Fatalf("expected 50x50, got %dx%d", cfg.Width, cfg.Height)
	}
}

func TestCaptureWindowRegionJPEG(t *testing.T) {
	f := NewFacade(wincaptest.New())
	region := imagebuf.Region{X: 0, Y: 0, Width: 10, Height: 10}
	result, err := f.CaptureWindow(context.Background(), wincap.WindowSelector{Title: "VS Code"}, wincap.CaptureOptions{
		Format: wincap.FormatJPEG, Quality: 80, Scale: 1.0, Region: &region,
	})
	if err != nil {
		t.Fatalf("CaptureWindow: %v", err)
	}

	if !bytes.HasPrefix(result.Bytes, []byte{0xFF, 0xD8, 0xFF}) {
		t.Fatalf("expected JPEG magic bytes, got % x", result.Bytes[:3])
	}

	img, err := jpeg.Decode(bytes.NewReader(result.Bytes))
	if err != nil {
		t.Fatalf("decode jpeg: %v", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() != 10 || bounds.Dy() != 10 {
		t.Fatalf("expected 10x10, got %dx%d", bounds.Dx(), bounds.Dy())
	}
}

func TestCaptureDisplayRejectsOutOfRangeQuality(t *testing.T) {
	f := NewFacade(wincaptest.New())
	_, err := f.CaptureDisplay(context.Background(), nil, wincap.CaptureOptions{
		Format: wincap.FormatJPEG, Quality: 150, Scale: 1.0,
	})
	if !wincap.IsKind(err, wincap.ErrInvalidArgument) {
		t.Fatalf("expected InvalidArgument for quality 150, got %v", err)
	}
}

func TestCaptureWindowRejectsOutOfRangeScale(t *testing.T) {
	f := NewFacade(wincaptest.New())
	_, err := f.CaptureWindow(context.Background(), wincap.WindowSelector{Title: "VS Code"}, wincap.CaptureOptions{
		Format: wincap.FormatPNG, Quality: 80, Scale: 5.0,
	})
	if !wincap.IsKind(err, wincap.ErrInvalidArgument) {
		t.Fatalf("expected InvalidArgument for scale 5.0, got %v", err)
	}
}

func TestCaptureWaylandConsentMissing(t *testing.T) {
	backend := wincaptest.New().WithNoToken("srcA")

	_, err := backend.CaptureRaw(context.Background(), wincap.WindowSource("srcA"))
	if !wincap.IsKind(err, wincap.ErrConsentMissing) {
		t.Fatalf("expected ErrConsentMissing, got %v", err)
	}
	var ce *wincap.CaptureError
	if e, ok := err.(*wincap.CaptureError); ok {
		ce = e
	}
	if ce == nil || !bytes.Contains([]byte(ce.Reason), []byte("srcA")) || !bytes.Contains([]byte(ce.Reason), []byte("prime")) {
		t.Fatalf("expected message referencing srcA and prime, got %q", ce.Reason)
	}
}

func TestCaptureWaylandConsentRevokedFallback(t *testing.T) {
	backend := wincaptest.New().WithRejectedToken("srcA")

	for i := 0; i < 2; i++ {
		raw, err := backend.CaptureRaw(context.Background(), wincap.WindowSource("srcA"))
		if err != nil {
			t.Fatalf("iteration %d: unexpected error %v", i, err)
		}
		if raw.Warning == nil || raw.Warning.Kind != wincap.ErrConsentRevoked {
			t.Fatalf("iteration %d: expected ConsentRevoked warning, got %+v", i, raw.Warning)
		}
		w, h := raw.Buffer.Dimensions()
		if w != 100 || h != 100 {
			t.Fatalf("iteration %d: expected 100x100 fallback image, got %dx%d", i, w, h)
		}
	}
}
