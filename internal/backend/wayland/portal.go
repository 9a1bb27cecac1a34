// Package wayland implements wincap.Backend against the xdg-desktop-portal
// ScreenCast interface over D-Bus, with PipeWire frame delivery via
// go-gst. Unlike X11, this backend requires a prior, persisted consent
// grant before any headless capture can succeed.
package wayland

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/bryanchriswhite/wincap/internal/consent"
	"github.com/bryanchriswhite/wincap/internal/wincap"
	"github.com/bryanchriswhite/wincap/internal/wincapconfig"
)

const (
	portalService   = "org.freedesktop.portal.Desktop"
	portalPath      = "/org/freedesktop/portal/desktop"
	screenCastIface = "org.freedesktop.portal.ScreenCast"
	requestIface    = "org.freedesktop.portal.Request"
)

const (
	sourceTypeMonitor uint32 = 1 << 0
	sourceTypeWindow  uint32 = 1 << 1
	sourceTypeVirtual uint32 = 1 << 2
)

const (
	cursorModeHidden   uint32 = 1 << 0
	cursorModeEmbedded uint32 = 1 << 1
)

const (
	persistModeNone    uint32 = 0
	persistModeSession uint32 = 2
)

// session is the state of one primed or active portal grant.
type session struct {
	handle   dbus.ObjectPath
	nodeID   uint32
	sourceID string
}

// Backend captures displays and windows via the xdg-desktop-portal
// ScreenCast interface. Either source kind requires a prior consent grant
// (PrimeConsent); the portal has no headless window enumeration, so a
// Window source must be identified by an id the caller already knows
// (typically chosen when priming consent), not discovered via ListWindows.
type Backend struct {
	conn   *dbus.Conn
	tokens *consent.Store

	portalTimeout time.Duration
	frameTimeout  time.Duration

	mu       sync.Mutex
	sessions map[string]*session
	pipes    map[string]*pipewirePull
}

// New connects to the session bus and uses tokens, an already opened
// store, for restore tokens. Portal and PipeWire frame timeout ceilings
// come from wincapconfig.
func New(tokens *consent.Store) (*Backend, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, wincap.WrapError(wincap.ErrBackendUnavailable, "wayland", err, "connect to session bus")
	}
	timeouts := wincapconfig.Load()
	return &Backend{
		conn:          conn,
		tokens:        tokens,
		portalTimeout: timeouts.WaylandPortal,
		frameTimeout:  timeouts.PipewireFrame,
		sessions:      make(map[string]*session),
		pipes:         make(map[string]*pipewirePull),
	}, nil
}

// Close releases the D-Bus connection and any running PipeWire pipelines.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.pipes {
		p.stop()
	}
	return b.conn.Close()
}

func (b *Backend) Name() string { return "wayland" }

func (b *Backend) Capabilities() wincap.Capabilities {
	return wincap.Capabilities{
		Backend:          "wayland",
		SupportsWindow:   true,
		SupportsDisplay:  true,
		NeedsConsent:     true,
		SupportedFormats: []wincap.ImageFormat{wincap.FormatPNG, wincap.FormatJPEG, wincap.FormatWebP},
	}
}

// ListWindows always returns empty: the portal only surfaces application
// windows inside its own interactive picker dialog shown during
// PrimeConsent, never to a headless enumerator. Window-source capture is
// still supported (see CaptureRaw) once a source id has been primed.
func (b *Backend) ListWindows(ctx context.Context) ([]wincap.WindowRecord, error) {
	return nil, nil
}

// PrimeConsent runs the interactive CreateSession/SelectSources/Start
// flow once, persisting the resulting restore token so future captures
// of sourceID can proceed without showing a picker dialog again.
func (b *Backend) PrimeConsent(ctx context.Context, sourceType wincap.SourceType, sourceID string, includeCursor bool) (wincap.ConsentResult, error) {
	kind := sourceTypeMonitor
	switch sourceType {
	case wincap.SourceTypeWindow:
		kind = sourceTypeWindow
	case wincap.SourceTypeVirtual:
		kind = sourceTypeVirtual
	}

	restoreToken, _ := b.tokens.Read(sourceID)

	handle, err := b.createSession(ctx)
	if err != nil {
		return wincap.ConsentResult{}, err
	}

	if err := b.selectSources(ctx, handle, kind, includeCursor, restoreToken); err != nil {
		return wincap.ConsentResult{}, err
	}

	nodeID, newToken, err := b.start(ctx, handle, restoreToken != "")
	if err != nil {
		return wincap.ConsentResult{}, err
	}

	if newToken != "" {
		if err := b.tokens.Store(sourceID, newToken); err != nil {
			return wincap.ConsentResult{}, wincap.WrapError(wincap.ErrInternal, "wayland", err, "persist restore token")
		}
	}

	b.mu.Lock()
	b.sessions[sourceID] = &session{handle: handle, nodeID: nodeID, sourceID: sourceID}
	b.mu.Unlock()

	return wincap.ConsentResult{PrimarySourceID: sourceID, NumStreams: 1}, nil
}

func (b *Backend) createSession(ctx context.Context) (dbus.ObjectPath, error) {
	obj := b.conn.Object(portalService, portalPath)

	pid := os.Getpid()
	options := map[string]dbus.Variant{
		"handle_token":         dbus.MakeVariant(fmt.Sprintf("wincap%d", pid)),
		"session_handle_token": dbus.MakeVariant(fmt.Sprintf("wincapsession%d", pid)),
	}

	requestPath, respCh, cleanup, err := b.call(obj, screenCastIface+".CreateSession", options)
	if err != nil {
		return "", err
	}
	defer cleanup()

	// CreateSession carries no restore token: any denial here is the user
	// (or compositor policy) refusing the session outright, not a stored
	// token being rejected.
	resp, err := b.awaitResponse(ctx, requestPath, respCh, b.portalTimeout, wincap.ErrPermissionDenied)
	if err != nil {
		return "", err
	}

	raw, ok := resp["session_handle"]
	if !ok {
		return "", wincap.NewError(wincap.ErrInternal, "wayland", "CreateSession response missing session_handle")
	}
	switch v := raw.Value().(type) {
	case dbus.ObjectPath:
		return v, nil
	case string:
		return dbus.ObjectPath(v), nil
	default:
		return "", wincap.NewError(wincap.ErrInternal, "wayland", "unexpected session_handle type %T", v)
	}
}

func (b *Backend) selectSources(ctx context.Context, handle dbus.ObjectPath, kind uint32, includeCursor bool, restoreToken string) error {
	obj := b.conn.Object(portalService, portalPath)

	cursorMode := cursorModeHidden
	if includeCursor {
		cursorMode = cursorModeEmbedded
	}

	options := map[string]dbus.Variant{
		"handle_token": dbus.MakeVariant(fmt.Sprintf("wincapselect%d", os.Getpid())),
		"types":        dbus.MakeVariant(kind),
		"multiple":     dbus.MakeVariant(false),
		"cursor_mode":  dbus.MakeVariant(cursorMode),
		"persist_mode": dbus.MakeVariant(persistModeSession),
	}
	if restoreToken != "" {
		options["restore_token"] = dbus.MakeVariant(restoreToken)
	}

	requestPath, respCh, cleanup, err := b.call(obj, screenCastIface+".SelectSources", handle, options)
	if err != nil {
		return err
	}
	defer cleanup()

	// A restore token being presented turns a denial from "user declined
	// the picker" into "the compositor rejected our stored grant" — the
	// two need different CaptureErrorKinds (see awaitResponse).
	_, err = b.awaitResponse(ctx, requestPath, respCh, 2*b.portalTimeout, denialKind(restoreToken))
	return err
}

// denialKind picks the CaptureErrorKind a portal denial maps to: a stored
// restore token being presented means the denial is the compositor
// rejecting a previously-valid grant (ConsentRevoked); no token means this
// is a fresh interactive prime the user declined (PermissionDenied).
func denialKind(restoreToken string) wincap.CaptureErrorKind {
	if restoreToken != "" {
		return wincap.ErrConsentRevoked
	}
	return wincap.ErrPermissionDenied
}

// start starts the primed session, returning the PipeWire node id and any
// newly issued restore token (empty if the compositor reused an existing
// one). hasRestoreToken mirrors the token presented to selectSources, for
// mapping a denial at this step the same way.
func (b *Backend) start(ctx context.Context, handle dbus.ObjectPath, hasRestoreToken bool) (nodeID uint32, restoreToken string, err error) {
	obj := b.conn.Object(portalService, portalPath)

	options := map[string]dbus.Variant{
		"handle_token": dbus.MakeVariant(fmt.Sprintf("wincapstart%d", os.Getpid())),
	}

	requestPath, respCh, cleanup, err := b.call(obj, screenCastIface+".Start", handle, "", options)
	if err != nil {
		return 0, "", err
	}
	defer cleanup()

	deny := wincap.ErrPermissionDenied
	if hasRestoreToken {
		deny = wincap.ErrConsentRevoked
	}
	resp, err := b.awaitResponse(ctx, requestPath, respCh, b.portalTimeout, deny)
	if err != nil {
		return 0, "", err
	}

	if v, ok := resp["restore_token"]; ok {
		if s, ok := v.Value().(string); ok {
			restoreToken = s
		}
	}

	streams, ok := resp["streams"]
	if !ok {
		return 0, "", wincap.NewError(wincap.ErrInternal, "wayland", "Start response missing streams")
	}
	nodeID, err = firstStreamNodeID(streams.Value())
	if err != nil {
		return 0, "", wincap.WrapError(wincap.ErrInternal, "wayland", err, "parse streams from Start response")
	}
	return nodeID, restoreToken, nil
}

func firstStreamNodeID(v interface{}) (uint32, error) {
	switch streams := v.(type) {
	case [][]interface{}:
		if len(streams) > 0 && len(streams[0]) > 0 {
			if id, ok := streams[0][0].(uint32); ok {
				return id, nil
			}
		}
	case []interface{}:
		if len(streams) > 0 {
			if stream, ok := streams[0].([]interface{}); ok && len(stream) > 0 {
				if id, ok := stream[0].(uint32); ok {
					return id, nil
				}
			}
		}
	}
	return 0, fmt.Errorf("no stream node id in response (type %T)", v)
}

// call invokes a portal method and returns the Request object path to
// watch, along with a signal channel already subscribed before the call
// returns so no Response can be missed.
func (b *Backend) call(obj dbus.BusObject, method string, args ...interface{}) (dbus.ObjectPath, chan *dbus.Signal, func(), error) {
	matchRule := fmt.Sprintf("type='signal',interface='%s',member='Response'", requestIface)
	b.conn.BusObject().Call("org.freedesktop.DBus.AddMatch", 0, matchRule)

	respCh := make(chan *dbus.Signal, 10)
	b.conn.Signal(respCh)
	cleanup := func() { b.conn.RemoveSignal(respCh) }

	var requestPath dbus.ObjectPath
	if err := obj.Call(method, 0, args...).Store(&requestPath); err != nil {
		cleanup()
		return "", nil, nil, wincap.WrapError(wincap.ErrInternal, "wayland", err, "%s call failed", method)
	}
	return requestPath, respCh, cleanup, nil
}

// awaitResponse blocks for the Response signal matching requestPath,
// translating a non-zero portal response code into deniedKind (see
// denialKind) and a context deadline into CaptureTimeout.
func (b *Backend) awaitResponse(ctx context.Context, requestPath dbus.ObjectPath, respCh chan *dbus.Signal, timeout time.Duration, deniedKind wincap.CaptureErrorKind) (map[string]dbus.Variant, error) {
	deadline := time.After(timeout)
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline:
			return nil, wincap.NewError(wincap.ErrCaptureTimeout, "wayland", "timed out waiting for portal response to %s", requestPath)
		case sig := <-respCh:
			if sig.Path != requestPath || sig.Name != requestIface+".Response" {
				continue
			}
			if len(sig.Body) < 1 {
				return nil, wincap.NewError(wincap.ErrInternal, "wayland", "malformed portal response")
			}
			code, ok := sig.Body[0].(uint32)
			if !ok {
				return nil, wincap.NewError(wincap.ErrInternal, "wayland", "malformed portal response code")
			}
			if code != 0 {
				return nil, wincap.NewError(deniedKind, "wayland", "portal request denied or cancelled (code %d)", code)
			}
			if len(sig.Body) < 2 {
				return map[string]dbus.Variant{}, nil
			}
			results, ok := sig.Body[1].(map[string]dbus.Variant)
			if !ok {
				return map[string]dbus.Variant{}, nil
			}
			return results, nil
		}
	}
}
