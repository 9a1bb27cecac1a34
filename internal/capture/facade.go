// Package capture wires a platform Backend into the full capture
// pipeline: window resolution, region crop, scaling, and encoding. It is
// the only package that imports both internal/wincap and the concrete
// internal/backend/* implementations, keeping those implementations free
// of any dependency on each other or on the facade itself.
package capture

import (
	"context"

	"github.com/bryanchriswhite/wincap/internal/encode"
	"github.com/bryanchriswhite/wincap/internal/logger"
	"github.com/bryanchriswhite/wincap/internal/resolver"
	"github.com/bryanchriswhite/wincap/internal/wincap"
)

// Facade is the single entry point application code uses: resolve a
// window, capture it or a display, and get back encoded bytes.
type Facade struct {
	backend wincap.Backend
}

// NewFacade wraps backend in the crop/scale/encode pipeline.
func NewFacade(backend wincap.Backend) *Facade {
	return &Facade{backend: backend}
}

// BackendName reports which backend is in use, for CaptureMetadata and logs.
func (f *Facade) BackendName() string { return f.backend.Name() }

// Capabilities passes through the active backend's capabilities.
func (f *Facade) Capabilities() wincap.Capabilities { return f.backend.Capabilities() }

// ListWindows enumerates capturable windows.
func (f *Facade) ListWindows(ctx context.Context) ([]wincap.WindowRecord, error) {
	return f.backend.ListWindows(ctx)
}

// PrimeConsent runs the backend's consent flow, if it implements one.
// Backends that don't require consent (X11, Windows) return success
// immediately: the Wayland backend and the wincaptest mock are the only
// ConsentPrimers in this module.
func (f *Facade) PrimeConsent(ctx context.Context, sourceType wincap.SourceType, sourceID string, includeCursor bool) (wincap.ConsentResult, error) {
	primer, ok := f.backend.(wincap.ConsentPrimer)
	if !ok {
		return wincap.ConsentResult{PrimarySourceID: sourceID, NumStreams: 1}, nil
	}
	return primer.PrimeConsent(ctx, sourceType, sourceID, includeCursor)
}

// ResolveTarget resolves sel against the backend's current window list
// without capturing anything, for callers that only need to know which
// window a selector would match.
func (f *Facade) ResolveTarget(ctx context.Context, sel wincap.WindowSelector) (wincap.WindowRecord, error) {
	records, err := f.backend.ListWindows(ctx)
	if err != nil {
		return wincap.WindowRecord{}, err
	}
	return resolver.Resolve(sel, records)
}

// CaptureWindow resolves sel against the backend's current window list
// and captures the winning match.
func (f *Facade) CaptureWindow(ctx context.Context, sel wincap.WindowSelector, opts wincap.CaptureOptions) (*wincap.CaptureResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	rec, err := f.ResolveTarget(ctx, sel)
	if err != nil {
		return nil, err
	}

	raw, err := f.backend.CaptureRaw(ctx, wincap.WindowSource(rec.ID))
	if err != nil {
		return nil, err
	}
	return f.finish(raw, opts)
}

// CaptureDisplay captures the display identified by index (nil for primary).
func (f *Facade) CaptureDisplay(ctx context.Context, index *int, opts wincap.CaptureOptions) (*wincap.CaptureResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	raw, err := f.backend.CaptureRaw(ctx, wincap.DisplaySource(index))
	if err != nil {
		return nil, err
	}
	return f.finish(raw, opts)
}

// finish applies region crop, scale, and encoding, in that fixed order,
// to a backend's raw capture.
func (f *Facade) finish(raw *wincap.RawCapture, opts wincap.CaptureOptions) (*wincap.CaptureResult, error) {
	buf := raw.Buffer

	if opts.Region != nil {
		cropped, err := buf.Crop(*opts.Region)
		if err != nil {
			return nil, wincap.WrapError(wincap.ErrInvalidArgument, f.backend.Name(), err, "apply region crop")
		}
		buf = cropped
	}

	if opts.Scale > 0 && opts.Scale != 1.0 {
		scaled, err := buf.Scale(opts.Scale)
		if err != nil {
			return nil, wincap.WrapError(wincap.ErrInvalidArgument, f.backend.Name(), err, "apply scale")
		}
		buf = scaled
	}

	bytes, err := encode.Encode(buf, opts)
	if err != nil {
		return nil, err
	}

	w, h := buf.Dimensions()
	format := opts.Format
	if format == "" {
		format = wincap.FormatPNG
	}

	if raw.Warning != nil {
		logger.WithComponent("capture").Warn().
			Str("kind", string(raw.Warning.Kind)).
			Str("backend", f.backend.Name()).
			Msg(raw.Warning.Message)
	}

	return &wincap.CaptureResult{
		Bytes: bytes,
		Metadata: wincap.CaptureMetadata{
			Width:         w,
			Height:        h,
			Format:        format,
			SourceBackend: f.backend.Name(),
			Warning:       raw.Warning,
		},
	}, nil
}
