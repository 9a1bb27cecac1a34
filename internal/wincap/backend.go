package wincap

import "context"

// Backend is the polymorphic contract every platform implements once:
// Windows (GDI), X11, or Wayland/PipeWire. No inheritance —
// each backend is a distinct value satisfying the same operation set.
//
// Implementations must not panic on expected failures; they return a
// *CaptureError. Cancelling ctx must release any OS resource the call
// acquired (sessions, streams, shared-memory segments).
type Backend interface {
	// Name identifies the backend for logging and CaptureMetadata.SourceBackend.
	Name() string

	// ListWindows enumerates visible, ordinary top-level windows. Hidden
	// and zero-area windows are filtered; X11 also drops override-redirect
	// windows, while the Windows backend does not filter tool windows.
	// Never blocks on user interaction.
	ListWindows(ctx context.Context) ([]WindowRecord, error)

	// CaptureRaw produces the platform's raw pixel buffer for source.
	// Region crop, scale, and encoding are applied by the Facade, not here.
	CaptureRaw(ctx context.Context, source CaptureSource) (*RawCapture, error)

	// Capabilities reports which sources and options this backend supports.
	Capabilities() Capabilities
}

// ConsentPrimer is implemented by backends that require persistent,
// out-of-band user consent before headless capture is possible (Wayland).
type ConsentPrimer interface {
	PrimeConsent(ctx context.Context, sourceType SourceType, sourceID string, includeCursor bool) (ConsentResult, error)
}
