package capture

import (
	"fmt"
	"os"
	"runtime"

	"github.com/bryanchriswhite/wincap/internal/backend/wayland"
	"github.com/bryanchriswhite/wincap/internal/backend/x11"
	"github.com/bryanchriswhite/wincap/internal/consent"
	"github.com/bryanchriswhite/wincap/internal/logger"
	"github.com/bryanchriswhite/wincap/internal/wincap"
)

// ForceBackendEnv overrides auto-detection with an explicit backend name
// ("x11", "wayland", or "windows"). Primarily for tests and diagnosing a
// misdetected session type.
const ForceBackendEnv = "WINCAP_FORCE_BACKEND"

// Closer is implemented by backends that hold OS resources (connections,
// pipelines) needing explicit teardown.
type Closer interface {
	Close() error
}

// NewDefaultFacade auto-selects a backend for the current platform and
// session, following the same try-then-fallback shape as the teacher's
// capture router: prefer the most specific backend available, and only
// error out once every option has been exhausted.
func NewDefaultFacade() (*Facade, func() error, error) {
	log := logger.WithComponent("capture-factory")

	if forced := os.Getenv(ForceBackendEnv); forced != "" {
		return newForced(forced)
	}

	switch runtime.GOOS {
	case "windows":
		return newWindowsFacade()
	default:
		// Linux/BSD: a Wayland compositor is present whenever
		// WAYLAND_DISPLAY is set; XWayland's DISPLAY is usually also
		// set in that case; but a desktop-portal ScreenCast session
		// is the only thing that can capture native Wayland windows,
		// so it takes priority whenever a session bus is reachable.
		if os.Getenv("WAYLAND_DISPLAY") != "" {
			facade, closer, err := newWaylandFacade()
			if err == nil {
				return facade, closer, nil
			}
			log.Warn().Err(err).Msg("wayland backend unavailable, falling back to X11")
		}
		return newX11Facade()
	}
}

func newForced(name string) (*Facade, func() error, error) {
	switch name {
	case "x11":
		return newX11Facade()
	case "wayland":
		return newWaylandFacade()
	case "windows":
		return newWindowsFacade()
	default:
		return nil, nil, fmt.Errorf("%s: unknown backend %q", ForceBackendEnv, name)
	}
}

func newX11Facade() (*Facade, func() error, error) {
	b, err := x11.New()
	if err != nil {
		return nil, nil, wincap.WrapError(wincap.ErrBackendUnavailable, "x11", err, "initialize X11 backend")
	}
	return NewFacade(b), b.Close, nil
}

func newWaylandFacade() (*Facade, func() error, error) {
	path, err := consent.DefaultPath()
	if err != nil {
		return nil, nil, wincap.WrapError(wincap.ErrInternal, "wayland", err, "resolve consent token store path")
	}
	store, err := consent.NewFileStore(path)
	if err != nil {
		return nil, nil, err
	}
	b, err := wayland.New(store)
	if err != nil {
		return nil, nil, wincap.WrapError(wincap.ErrBackendUnavailable, "wayland", err, "initialize wayland backend")
	}
	return NewFacade(b), b.Close, nil
}
