package imagebuf

import "testing"

func TestTestPatternIsDeterministic(t *testing.T) {
	a := TestPattern(20, 15)
	b := TestPattern(20, 15)
	if len(a.Pix) != len(b.Pix) {
		t.Fatalf("length mismatch: %d vs %d", len(a.Pix), len(b.Pix))
	}
	for i := range a.Pix {
		if a.Pix[i] != b.Pix[i] {
			t.Fatalf("byte %d differs: %d vs %d", i, a.Pix[i], b.Pix[i])
		}
	}
}

func TestCropWithinBounds(t *testing.T) {
	buf := TestPattern(10, 10)
	cropped, err := buf.Crop(Region{X: 2, Y: 2, Width: 4, Height: 4})
	if err != nil {
		t.Fatalf("Crop: %v", err)
	}
	w, h := cropped.Dimensions()
	if w != 4 || h != 4 {
		t.Fatalf("cropped dims = %dx%d, want 4x4", w, h)
	}
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			srcI := ((y+2)*10 + (x + 2)) * 4
			dstI := (y*4 + x) * 4
			if buf.Pix[srcI] != cropped.Pix[dstI] {
				t.Fatalf("pixel (%d,%d) mismatch", x, y)
			}
		}
	}
}

func TestCropOutOfBoundsErrors(t *testing.T) {
	buf := TestPattern(10, 10)
	if _, err := buf.Crop(Region{X: 5, Y: 5, Width: 10, Height: 10}); err == nil {
		t.Fatalf("expected error for out-of-bounds crop")
	}
	if _, err := buf.Crop(Region{X: 0, Y: 0, Width: 0, Height: 5}); err == nil {
		t.Fatalf("expected error for non-positive crop dimension")
	}
}

func TestScaleHalves(t *testing.T) {
	buf := New(100, 100)
	scaled, err := buf.Scale(0.5)
	if err != nil {
		t.Fatalf("Scale: %v", err)
	}
	w, h := scaled.Dimensions()
	if w != 50 || h != 50 {
		t.Fatalf("scaled dims = %dx%d, want 50x50", w, h)
	}
}

func TestScaleMinimumOnePixel(t *testing.T) {
	buf := New(2, 2)
	scaled, err := buf.Scale(0.01)
	if err != nil {
		t.Fatalf("Scale: %v", err)
	}
	w, h := scaled.Dimensions()
	if w < 1 || h < 1 {
		t.Fatalf("scaled dims = %dx%d, want at least 1x1", w, h)
	}
}

func TestScaleRejectsNonPositiveFactor(t *testing.T) {
	buf := New(10, 10)
	if _, err := buf.Scale(0); err == nil {
		t.Fatalf("expected error for zero scale factor")
	}
	if _, err := buf.Scale(-1); err == nil {
		t.Fatalf("expected error for negative scale factor")
	}
}

func TestImageSharesBackingSlice(t *testing.T) {
	buf := New(4, 4)
	img := buf.Image()
	img.Pix[0] = 42
	if buf.Pix[0] != 42 {
		t.Fatalf("Image() did not share the backing slice")
	}
}
