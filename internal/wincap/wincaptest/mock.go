// Package wincaptest provides a deterministic Backend implementation for
// exercising the capture facade and window resolver without a real
// display. It never performs actual window-system calls: window records
// are a fixed fixture and captured pixels are a generated test pattern.
package wincaptest

import (
	"context"
	"time"

	"github.com/bryanchriswhite/wincap/internal/imagebuf"
	"github.com/bryanchriswhite/wincap/internal/wincap"
)

// fixtureWindows is the backend's standing window list: three ordinary
// desktop applications, in the fixed insertion order callers assert on.
var fixtureWindows = []wincap.WindowRecord{
	{ID: "h1", Title: "Firefox", Class: "MozillaWindowClass", Exe: "firefox", PID: 1001, Rect: wincap.Rect{X: 0, Y: 0, Width: 1280, Height: 800}},
	{ID: "h2", Title: "VS Code", Class: "Chrome_WidgetWin", Exe: "code.exe", PID: 1002, Rect: wincap.Rect{X: 0, Y: 0, Width: 1600, Height: 900}},
	{ID: "h3", Title: "Terminal", Class: "XTerm", Exe: "xterm", PID: 1003, Rect: wincap.Rect{X: 0, Y: 0, Width: 640, Height: 480}},
}

const displayWidth, displayHeight = 100, 100

// Backend is a deterministic, in-memory wincap.Backend.
type Backend struct {
	// Delay, if non-zero, is slept at the start of every operation to
	// simulate a slow backend.
	Delay time.Duration

	// ListWindowsErr, CaptureErr, and ConsentErr, if set, are returned
	// immediately instead of performing the operation.
	ListWindowsErr error
	CaptureErr     error
	ConsentErr     error

	// Windows overrides fixtureWindows when non-nil, for tests that
	// need a different enumeration.
	Windows []wincap.WindowRecord

	// tokenless tracks source ids that have never been primed, and
	// rejected tracks ones whose stored token the mock treats as
	// portal-rejected — together these drive the Wayland consent
	// scenarios without a real portal.
	tokenless map[string]bool
	rejected  map[string]bool
}

// New returns a mock backend seeded with the standard Firefox/VS
// Code/Terminal fixture.
func New() *Backend {
	return &Backend{
		tokenless: make(map[string]bool),
		rejected:  make(map[string]bool),
	}
}

// WithRejectedToken marks sourceID as having a stored-but-portal-rejected
// restore token, so CaptureRaw falls back to a warning-annotated display
// capture instead of erroring.
func (b *Backend) WithRejectedToken(sourceID string) *Backend {
	b.rejected[sourceID] = true
	return b
}

// WithNoToken marks sourceID as never having been primed, so CaptureRaw
// returns ConsentMissing.
func (b *Backend) WithNoToken(sourceID string) *Backend {
	b.tokenless[sourceID] = true
	return b
}

func (b *Backend) Name() string { return "mock" }

func (b *Backend) Capabilities() wincap.Capabilities {
	return wincap.Capabilities{
		Backend:          "mock",
		SupportsWindow:   true,
		SupportsDisplay:  true,
		NeedsConsent:     false,
		SupportedFormats: []wincap.ImageFormat{wincap.FormatPNG, wincap.FormatJPEG, wincap.FormatWebP},
	}
}

func (b *Backend) sleep() {
	if b.Delay > 0 {
		time.Sleep(b.Delay)
	}
}

func (b *Backend) ListWindows(ctx context.Context) ([]wincap.WindowRecord, error) {
	b.sleep()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if b.ListWindowsErr != nil {
		return nil, b.ListWindowsErr
	}
	if b.Windows != nil {
		return b.Windows, nil
	}
	out := make([]wincap.WindowRecord, len(fixtureWindows))
	copy(out, fixtureWindows)
	return out, nil
}

// CaptureRaw returns a deterministic generated test pattern. Window
// sources are sized to the fixture window's rect; display sources are
// fixed at 100x100 per the documented scenario fixture. A source id
// marked tokenless or rejected via WithNoToken/WithRejectedToken
// reproduces the Wayland consent-missing and consent-revoked-fallback
// scenarios so the facade's handling of both can be tested without a
// real portal.
func (b *Backend) CaptureRaw(ctx context.Context, source wincap.CaptureSource) (*wincap.RawCapture, error) {
	b.sleep()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if b.CaptureErr != nil {
		return nil, b.CaptureErr
	}

	if source.Kind == wincap.SourceWindow {
		if b.tokenless[source.WindowID] {
			return nil, wincap.NewError(wincap.ErrConsentMissing, "mock", "no consent primed for source %q; call prime-consent first", source.WindowID)
		}
		if b.rejected[source.WindowID] {
			return &wincap.RawCapture{
				Buffer: imagebuf.TestPattern(displayWidth, displayHeight),
				Warning: &wincap.Warning{
					Kind:    wincap.ErrConsentRevoked,
					Message: "stored restore token was rejected by the portal; fell back to display capture",
				},
			}, nil
		}

		width, height := displayWidth, displayHeight
		for _, w := range fixtureWindows {
			if w.ID == source.WindowID {
				width, height = w.Rect.Width, w.Rect.Height
				break
			}
		}
		return &wincap.RawCapture{Buffer: imagebuf.TestPattern(width, height)}, nil
	}

	return &wincap.RawCapture{Buffer: imagebuf.TestPattern(displayWidth, displayHeight)}, nil
}

// PrimeConsent marks sourceID as consented, clearing any tokenless state
// and mirroring the real Wayland backend's ConsentPrimer contract.
func (b *Backend) PrimeConsent(ctx context.Context, sourceType wincap.SourceType, sourceID string, includeCursor bool) (wincap.ConsentResult, error) {
	b.sleep()
	if err := ctx.Err(); err != nil {
		return wincap.ConsentResult{}, err
	}
	if b.ConsentErr != nil {
		return wincap.ConsentResult{}, b.ConsentErr
	}
	delete(b.tokenless, sourceID)
	return wincap.ConsentResult{PrimarySourceID: sourceID, NumStreams: 1}, nil
}

var _ wincap.Backend = (*Backend)(nil)
var _ wincap.ConsentPrimer = (*Backend)(nil)
