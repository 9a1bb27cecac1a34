package resolver

import (
	"testing"

	"github.com/bryanchriswhite/wincap/internal/wincap"
)

var fixture = []wincap.WindowRecord{
	{ID: "h1", Title: "Firefox", Class: "MozillaWindowClass", Exe: "firefox", Rect: wincap.Rect{Width: 1280, Height: 800}},
	{ID: "h2", Title: "VS Code", Class: "Chrome_WidgetWin", Exe: "code.exe", Rect: wincap.Rect{Width: 1600, Height: 900}},
	{ID: "h3", Title: "Terminal", Class: "XTerm", Exe: "xterm", Rect: wincap.Rect{Width: 640, Height: 480}},
}

func TestResolveSubstringTitle(t *testing.T) {
	rec, err := Resolve(wincap.WindowSelector{Title: "fire"}, fixture)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if rec.ID != "h1" {
		t.Fatalf("expected h1, got %s", rec.ID)
	}
}

func TestResolveRegexTieBreakByArea(t *testing.T) {
	rec, err := Resolve(wincap.WindowSelector{Title: "/code|firefox/"}, fixture)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if rec.ID != "h2" {
		t.Fatalf("expected h2 (larger area), got %s", rec.ID)
	}
}

func TestResolveClassAndExeAND(t *testing.T) {
	if _, err := Resolve(wincap.WindowSelector{Title: "Terminal", Class: "XTerm", Exe: "bash"}, fixture); err == nil {
		t.Fatal("expected no match when exe does not match")
	}

	rec, err := Resolve(wincap.WindowSelector{Title: "Terminal", Class: "xterm", Exe: "xterm"}, fixture)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if rec.ID != "h3" {
		t.Fatalf("expected h3, got %s", rec.ID)
	}
}

func TestResolveEmptySelector(t *testing.T) {
	if _, err := Resolve(wincap.WindowSelector{}, fixture); err == nil {
		t.Fatal("expected error for empty selector")
	}
}

func TestResolveNoMatch(t *testing.T) {
	if _, err := Resolve(wincap.WindowSelector{Title: "nonexistent"}, fixture); !wincap.IsKind(err, wincap.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFocusedTieBreak(t *testing.T) {
	records := []wincap.WindowRecord{
		{ID: "a", Title: "Editor", Rect: wincap.Rect{Width: 200, Height: 200}},
		{ID: "b", Title: "Editor", Rect: wincap.Rect{Width: 100, Height: 100}, Focused: true},
	}
	rec, err := Resolve(wincap.WindowSelector{Title: "Editor"}, records)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if rec.ID != "b" {
		t.Fatalf("expected focused window b despite smaller area ranking, got %s", rec.ID)
	}
}
