package wayland

import (
	"testing"

	"github.com/bryanchriswhite/wincap/internal/wincap"
)

func TestSourceIDAndTypeDisplay(t *testing.T) {
	id, typ, err := sourceIDAndType(wincap.DisplaySource(nil))
	if err != nil {
		t.Fatalf("sourceIDAndType: %v", err)
	}
	if id != "display:primary" || typ != wincap.SourceTypeMonitor {
		t.Fatalf("got (%q, %v), want (display:primary, SourceTypeMonitor)", id, typ)
	}

	idx := 2
	id, typ, err = sourceIDAndType(wincap.DisplaySource(&idx))
	if err != nil {
		t.Fatalf("sourceIDAndType: %v", err)
	}
	if id != "display:2" || typ != wincap.SourceTypeMonitor {
		t.Fatalf("got (%q, %v), want (display:2, SourceTypeMonitor)", id, typ)
	}
}

func TestSourceIDAndTypeWindow(t *testing.T) {
	id, typ, err := sourceIDAndType(wincap.WindowSource("my-picked-window"))
	if err != nil {
		t.Fatalf("sourceIDAndType: %v", err)
	}
	if id != "my-picked-window" || typ != wincap.SourceTypeWindow {
		t.Fatalf("got (%q, %v), want (my-picked-window, SourceTypeWindow)", id, typ)
	}
}

func TestSourceIDAndTypeRejectsUnknownKind(t *testing.T) {
	_, _, err := sourceIDAndType(wincap.CaptureSource{Kind: wincap.CaptureSourceKind(99)})
	if !wincap.IsKind(err, wincap.ErrInvalidArgument) {
		t.Fatalf("expected InvalidArgument for unknown kind, got %v", err)
	}
}

func TestDenialKindDistinguishesRestoreToken(t *testing.T) {
	if got := denialKind(""); got != wincap.ErrPermissionDenied {
		t.Fatalf("denialKind(\"\") = %v, want ErrPermissionDenied", got)
	}
	if got := denialKind("some-stored-token"); got != wincap.ErrConsentRevoked {
		t.Fatalf("denialKind(token) = %v, want ErrConsentRevoked", got)
	}
}
