// Package wincap defines the data model and the capture facade contract
// shared by every backend (Windows GDI, X11, Wayland/PipeWire).
package wincap

import (
	"time"

	"github.com/bryanchriswhite/wincap/internal/imagebuf"
)

// ImageFormat is an output container format.
type ImageFormat string

const (
	FormatPNG  ImageFormat = "png"
	FormatJPEG ImageFormat = "jpeg"
	FormatWebP ImageFormat = "webp"
)

// WindowSelector matches one or more fields against enumerated windows.
// At least one field must be set. A title wrapped in "/.../" is treated as
// a case-insensitive regular expression; otherwise it is a case-insensitive
// substring match. All set fields must match (logical AND).
type WindowSelector struct {
	Title string
	Class string
	Exe   string
}

// IsEmpty reports whether no field was supplied, in which case resolution
// must fail with InvalidArgument.
func (s WindowSelector) IsEmpty() bool {
	return s.Title == "" && s.Class == "" && s.Exe == ""
}

// Rect is a bounding rectangle in physical pixels.
type Rect struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Area returns width*height, used by the resolver's area tie-break.
func (r Rect) Area() int {
	return r.Width * r.Height
}

// WindowRecord is a snapshot of one enumerated window. The Id is an opaque,
// platform-native identifier rendered as a stable string; it may go stale
// if the window is destroyed between enumeration and capture.
type WindowRecord struct {
	ID      string
	Title   string
	Class   string
	Exe     string
	PID     int
	Rect    Rect
	Focused bool
}

// CaptureSourceKind distinguishes a window capture from a display capture.
type CaptureSourceKind int

const (
	SourceWindow CaptureSourceKind = iota
	SourceDisplay
)

// CaptureSource identifies what to capture: a resolved window id, or a
// display by index (nil index means the primary display, index 0).
type CaptureSource struct {
	Kind         CaptureSourceKind
	WindowID     string
	DisplayIndex *int
}

// WindowSource builds a CaptureSource targeting a resolved window.
func WindowSource(id string) CaptureSource {
	return CaptureSource{Kind: SourceWindow, WindowID: id}
}

// DisplaySource builds a CaptureSource targeting a display. A nil index
// means the primary display.
func DisplaySource(index *int) CaptureSource {
	return CaptureSource{Kind: SourceDisplay, DisplayIndex: index}
}

// CaptureOptions controls post-capture transformation and encoding.
type CaptureOptions struct {
	Format  ImageFormat
	Quality int
	Scale   float64
	Region  *imagebuf.Region
}

// DefaultCaptureOptions returns the documented defaults: PNG, quality 80,
// scale 1.0, no region crop.
func DefaultCaptureOptions() CaptureOptions {
	return CaptureOptions{
		Format:  FormatPNG,
		Quality: 80,
		Scale:   1.0,
	}
}

// Validate rejects out-of-range quality or scale before any backend or OS
// call is made. Quality must fall in [0,100] (0 selects the encoder's own
// default). Scale must be 0 (no scaling applied) or fall in [0.1,2.0].
func (o CaptureOptions) Validate() error {
	if o.Quality < 0 || o.Quality > 100 {
		return NewError(ErrInvalidArgument, "", "quality %d out of range [0,100]", o.Quality)
	}
	if o.Scale != 0 && (o.Scale < 0.1 || o.Scale > 2.0) {
		return NewError(ErrInvalidArgument, "", "scale %v out of range [0.1,2.0]", o.Scale)
	}
	return nil
}

// SourceType is the Wayland portal source kind requested when priming
// consent.
type SourceType int

const (
	SourceTypeMonitor SourceType = iota
	SourceTypeWindow
	SourceTypeVirtual
)

// ConsentRecord pairs a caller-chosen source id with the portal-issued
// restore token and its opaque stream descriptor.
type ConsentRecord struct {
	SourceID     string
	RestoreToken string
	Streams      []byte
	IssuedAt     time.Time
}

// ConsentResult is returned by PrimeConsent on success.
type ConsentResult struct {
	PrimarySourceID string
	NumStreams      int
}

// Capabilities reports which sources and options a backend supports.
type Capabilities struct {
	Backend          string
	SupportsWindow   bool
	SupportsDisplay  bool
	NeedsConsent     bool
	SupportedFormats []ImageFormat
}

// Warning is attached to a CaptureResult when a recoverable degradation
// occurred (e.g. a revoked Wayland token forced a display-capture fallback).
type Warning struct {
	Kind    CaptureErrorKind
	Message string
}

// CaptureMetadata describes the bytes returned alongside an encoded image.
type CaptureMetadata struct {
	Width         int
	Height        int
	Format        ImageFormat
	SourceBackend string
	Warning       *Warning
}

// CaptureResult is the facade's final output: encoded bytes plus metadata.
type CaptureResult struct {
	Bytes    []byte
	Metadata CaptureMetadata
}

// RawCapture is what a backend hands back before region crop, scale, and
// encoding are applied by the facade.
type RawCapture struct {
	Buffer  *imagebuf.Buffer
	Warning *Warning
}
