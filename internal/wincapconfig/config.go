// Package wincapconfig loads the timeout ceilings every OS interaction is
// bounded by, following viper's environment-variable binding the same way
// the teacher's CLI root command wires configuration.
package wincapconfig

import (
	"time"

	"github.com/spf13/viper"
)

// Timeouts holds every overridable timeout ceiling in this module.
type Timeouts struct {
	ListWindows    time.Duration
	X11Capture     time.Duration
	WindowsCapture time.Duration
	WaylandPortal  time.Duration
	PipewireFrame  time.Duration
}

const (
	keyListWindowsMS    = "list_windows_timeout_ms"
	keyX11CaptureMS     = "x11_capture_timeout_ms"
	keyWindowsCaptureMS = "windows_capture_timeout_ms"
	keyWaylandPortalS   = "wayland_portal_timeout_secs"
	keyPipewireFrameS   = "pipewire_frame_timeout_secs"
)

// Load reads timeout overrides from the environment. Each key is bound to
// its documented env var (LIST_WINDOWS_TIMEOUT_MS, X11_CAPTURE_TIMEOUT_MS,
// WINDOWS_CAPTURE_TIMEOUT_MS, WAYLAND_PORTAL_TIMEOUT_SECS,
// PIPEWIRE_FRAME_TIMEOUT_SECS); viper upper-cases the key automatically.
func Load() Timeouts {
	v := viper.New()
	v.SetDefault(keyListWindowsMS, 1500)
	v.SetDefault(keyX11CaptureMS, 2000)
	v.SetDefault(keyWindowsCaptureMS, 5000)
	v.SetDefault(keyWaylandPortalS, 30)
	v.SetDefault(keyPipewireFrameS, 5)

	v.AutomaticEnv()
	for _, key := range []string{keyListWindowsMS, keyX11CaptureMS, keyWindowsCaptureMS, keyWaylandPortalS, keyPipewireFrameS} {
		_ = v.BindEnv(key)
	}

	return Timeouts{
		ListWindows:    time.Duration(v.GetInt(keyListWindowsMS)) * time.Millisecond,
		X11Capture:     time.Duration(v.GetInt(keyX11CaptureMS)) * time.Millisecond,
		WindowsCapture: time.Duration(v.GetInt(keyWindowsCaptureMS)) * time.Millisecond,
		WaylandPortal:  time.Duration(v.GetInt(keyWaylandPortalS)) * time.Second,
		PipewireFrame:  time.Duration(v.GetInt(keyPipewireFrameS)) * time.Second,
	}
}

// PipewireLoopInterval is the fixed PipeWire poll cadence; the spec lists
// it alongside the overridable timeouts but does not give it an env var,
// so it stays a constant matching internal/backend/wayland's poller.
const PipewireLoopInterval = 10 * time.Millisecond
