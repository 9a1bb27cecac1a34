// Package x11 implements wincap.Backend on top of the X11 protocol via
// BurntSushi/xgb, using the Composite extension to capture obscured or
// off-screen windows when it is available.
package x11

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/composite"
	"github.com/BurntSushi/xgb/xproto"

	"github.com/bryanchriswhite/wincap/internal/imagebuf"
	"github.com/bryanchriswhite/wincap/internal/wincap"
	"github.com/bryanchriswhite/wincap/internal/wincapconfig"
)

// Backend captures windows and the root display through an X11 connection.
type Backend struct {
	conn             *xgb.Conn
	root             xproto.Window
	screen           *xproto.ScreenInfo
	compositeEnabled bool

	listWindowsTimeout time.Duration
	captureTimeout     time.Duration

	mu sync.Mutex
}

// New opens an X11 connection and initialises the Composite extension if
// the server advertises it. Composite is not mandatory: its absence only
// degrades capture of obscured windows to direct GetImage. Timeout
// ceilings for ListWindows and CaptureRaw come from wincapconfig.
func New() (*Backend, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, wincap.WrapError(wincap.ErrBackendUnavailable, "x11", err, "connect to X server")
	}

	setup := xproto.Setup(conn)
	screen := setup.DefaultScreen(conn)

	timeouts := wincapconfig.Load()
	b := &Backend{
		conn:               conn,
		root:               screen.Root,
		screen:             screen,
		listWindowsTimeout: timeouts.ListWindows,
		captureTimeout:     timeouts.X11Capture,
	}
	if err := composite.Init(conn); err != nil {
		b.compositeEnabled = false
	} else {
		b.compositeEnabled = true
	}
	return b, nil
}

// Close releases the underlying X11 connection.
func (b *Backend) Close() error {
	b.conn.Close()
	return nil
}

func (b *Backend) Name() string { return "x11" }

func (b *Backend) Capabilities() wincap.Capabilities {
	return wincap.Capabilities{
		Backend:          "x11",
		SupportsWindow:   true,
		SupportsDisplay:  true,
		NeedsConsent:     false,
		SupportedFormats: []wincap.ImageFormat{wincap.FormatPNG, wincap.FormatJPEG, wincap.FormatWebP},
	}
}

// ListWindows enumerates the root window's viewable, non-override-redirect
// children, skipping windows with no title (rarely user-facing) or zero
// area.
func (b *Backend) ListWindows(ctx context.Context) ([]wincap.WindowRecord, error) {
	return withTimeout(ctx, b.listWindowsTimeout, func() ([]wincap.WindowRecord, error) {
		b.mu.Lock()
		defer b.mu.Unlock()

		focused, _ := xproto.GetInputFocus(b.conn).Reply()

		tree, err := xproto.QueryTree(b.conn, b.root).Reply()
		if err != nil {
			return nil, wincap.WrapError(wincap.ErrInternal, "x11", err, "query window tree")
		}

		records := make([]wincap.WindowRecord, 0, len(tree.Children))
		for _, child := range tree.Children {
			attrs, err := xproto.GetWindowAttributes(b.conn, child).Reply()
			if err != nil || attrs.MapState != xproto.MapStateViewable || attrs.OverrideRedirect {
				continue
			}
			rec, ok := b.windowRecord(child)
			if !ok || rec.Title == "" {
				continue
			}
			if rec.Rect.Width <= 0 || rec.Rect.Height <= 0 {
				continue
			}
			if focused != nil {
				rec.Focused = child == focused.Focus
			}
			records = append(records, rec)
		}
		return records, nil
	})
}

// withTimeout runs fn on its own goroutine and bounds it by both ctx and
// timeout, since the underlying xgb round trips are synchronous and carry
// no cancellation of their own. fn keeps running after a timeout fires
// (the connection is shared, so it cannot be abandoned mid-request); the
// caller only stops waiting for it.
func withTimeout[T any](ctx context.Context, timeout time.Duration, fn func() (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)
	go func() {
		val, err := fn()
		done <- result{val, err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-done:
		return r.val, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-timer.C:
		return zero, wincap.NewError(wincap.ErrCaptureTimeout, "x11", "operation exceeded %s", timeout)
	}
}

func (b *Backend) windowRecord(win xproto.Window) (wincap.WindowRecord, bool) {
	geom, err := xproto.GetGeometry(b.conn, xproto.Drawable(win)).Reply()
	if err != nil {
		return wincap.WindowRecord{}, false
	}

	rec := wincap.WindowRecord{
		ID: strconv.FormatUint(uint64(win), 10),
		Rect: wincap.Rect{
			X: int(geom.X), Y: int(geom.Y),
			Width: int(geom.Width), Height: int(geom.Height),
		},
	}

	if title, err := b.textProperty(win, "_NET_WM_NAME"); err == nil && title != "" {
		rec.Title = title
	} else if title, err := b.textProperty(win, "WM_NAME"); err == nil {
		rec.Title = title
	}

	if raw, err := b.textProperty(win, "WM_CLASS"); err == nil {
		parts := strings.Split(raw, "\x00")
		switch {
		case len(parts) >= 2 && parts[1] != "":
			rec.Class = parts[1]
		case len(parts) >= 1 && parts[0] != "":
			rec.Class = parts[0]
		}
	}

	if pid, err := b.cardinalProperty(win, "_NET_WM_PID"); err == nil {
		rec.PID = int(pid)
		if exe, err := os.Readlink(fmt.Sprintf("/proc/%d/exe", pid)); err == nil {
			rec.Exe = exe
		}
	}

	return rec, true
}

func (b *Backend) atom(name string) (xproto.Atom, error) {
	reply, err := xproto.InternAtom(b.conn, false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, err
	}
	return reply.Atom, nil
}

func (b *Backend) textProperty(win xproto.Window, atomName string) (string, error) {
	atom, err := b.atom(atomName)
	if err != nil {
		return "", err
	}
	reply, err := xproto.GetProperty(b.conn, false, win, atom, xproto.GetPropertyTypeAny, 0, (1<<32)-1).Reply()
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(reply.Value), "\x00"), nil
}

func (b *Backend) cardinalProperty(win xproto.Window, atomName string) (uint32, error) {
	atom, err := b.atom(atomName)
	if err != nil {
		return 0, err
	}
	reply, err := xproto.GetProperty(b.conn, false, win, atom, xproto.AtomCardinal, 0, 1).Reply()
	if err != nil {
		return 0, err
	}
	if len(reply.Value) < 4 {
		return 0, fmt.Errorf("property %s too short", atomName)
	}
	return uint32(reply.Value[0]) | uint32(reply.Value[1])<<8 | uint32(reply.Value[2])<<16 | uint32(reply.Value[3])<<24, nil
}

// CaptureRaw captures either a specific window (by its enumerated id) or,
// for a display source, the whole root window. DisplayIndex is not
// consulted: every display source yields the full root window.
func (b *Backend) CaptureRaw(ctx context.Context, source wincap.CaptureSource) (*wincap.RawCapture, error) {
	return withTimeout(ctx, b.captureTimeout, func() (*wincap.RawCapture, error) {
		b.mu.Lock()
		defer b.mu.Unlock()

		switch source.Kind {
		case wincap.SourceWindow:
			id, err := strconv.ParseUint(source.WindowID, 10, 32)
			if err != nil {
				return nil, wincap.NewError(wincap.ErrInvalidArgument, "x11", "malformed window id %q", source.WindowID)
			}
			return b.captureWindow(xproto.Window(id))
		case wincap.SourceDisplay:
			return b.captureDisplay()
		default:
			return nil, wincap.NewError(wincap.ErrInvalidArgument, "x11", "unsupported capture source kind")
		}
	})
}

func (b *Backend) captureDisplay() (*wincap.RawCapture, error) {
	width, height := int(b.screen.WidthInPixels), int(b.screen.HeightInPixels)
	reply, err := xproto.GetImage(
		b.conn, xproto.ImageFormatZPixmap, xproto.Drawable(b.root),
		0, 0, uint16(width), uint16(height), 0xffffffff,
	).Reply()
	if err != nil {
		return nil, wincap.WrapError(wincap.ErrInternal, "x11", err, "capture root window")
	}
	return &wincap.RawCapture{Buffer: b.convertBGRA(reply.Data, width, height)}, nil
}

func (b *Backend) captureWindow(win xproto.Window) (*wincap.RawCapture, error) {
	attrs, err := xproto.GetWindowAttributes(b.conn, win).Reply()
	if err != nil {
		return nil, wincap.WrapError(wincap.ErrNotFound, "x11", err, "window %d no longer exists", win)
	}

	target := win
	if attrs.Class != xproto.WindowClassInputOutput || attrs.MapState != xproto.MapStateViewable {
		child, err := b.findCapturableChild(win)
		if err != nil {
			return nil, wincap.WrapError(wincap.ErrNotFound, "x11", err, "window %d has no capturable surface", win)
		}
		target = child
	}

	geom, err := xproto.GetGeometry(b.conn, xproto.Drawable(target)).Reply()
	if err != nil {
		return nil, wincap.WrapError(wincap.ErrInternal, "x11", err, "get geometry for window %d", target)
	}

	drawable, cleanup := b.compositeDrawable(target)
	defer cleanup()

	reply, err := xproto.GetImage(
		b.conn, xproto.ImageFormatZPixmap, drawable,
		0, 0, geom.Width, geom.Height, 0xffffffff,
	).Reply()
	if err != nil {
		return nil, wincap.WrapError(wincap.ErrInternal, "x11", err, "get image for window %d", target)
	}

	return &wincap.RawCapture{Buffer: b.convertBGRA(reply.Data, int(geom.Width), int(geom.Height))}, nil
}

// compositeDrawable redirects win through the Composite extension so its
// pixel content is readable even when obscured or iconified. On any
// failure it falls back to capturing the window drawable directly.
func (b *Backend) compositeDrawable(win xproto.Window) (xproto.Drawable, func()) {
	noop := func() {}
	if !b.compositeEnabled {
		return xproto.Drawable(win), noop
	}

	if err := composite.RedirectWindowChecked(b.conn, win, composite.RedirectAutomatic).Check(); err != nil {
		return xproto.Drawable(win), noop
	}

	pixmap, err := xproto.NewPixmapId(b.conn)
	if err != nil {
		composite.UnredirectWindow(b.conn, win, composite.RedirectAutomatic)
		return xproto.Drawable(win), noop
	}

	if err := composite.NameWindowPixmapChecked(b.conn, win, pixmap).Check(); err != nil {
		composite.UnredirectWindow(b.conn, win, composite.RedirectAutomatic)
		return xproto.Drawable(win), noop
	}

	return xproto.Drawable(pixmap), func() {
		xproto.FreePixmap(b.conn, pixmap)
		composite.UnredirectWindow(b.conn, win, composite.RedirectAutomatic)
	}
}

// findCapturableChild walks win's subtree for the first mapped
// InputOutput window with non-trivial area.
func (b *Backend) findCapturableChild(parent xproto.Window) (xproto.Window, error) {
	tree, err := xproto.QueryTree(b.conn, parent).Reply()
	if err != nil {
		return 0, err
	}

	for _, child := range tree.Children {
		attrs, err := xproto.GetWindowAttributes(b.conn, child).Reply()
		if err != nil {
			continue
		}
		geom, err := xproto.GetGeometry(b.conn, xproto.Drawable(child)).Reply()
		if err != nil {
			continue
		}
		if attrs.Class == xproto.WindowClassInputOutput && attrs.MapState == xproto.MapStateViewable &&
			geom.Width > 10 && geom.Height > 10 {
			return child, nil
		}
		if grandchild, err := b.findCapturableChild(child); err == nil {
			return grandchild, nil
		}
	}
	return 0, fmt.Errorf("no capturable child under window %d", parent)
}

// convertBGRA converts a ZPixmap BGRX/BGRA reply into an RGBA imagebuf.Buffer.
func (b *Backend) convertBGRA(data []byte, width, height int) *imagebuf.Buffer {
	buf := imagebuf.New(width, height)
	depth := int(b.screen.RootDepth)
	if depth != 24 && depth != 32 {
		return buf
	}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := (y*width + x) * 4
			if i+3 >= len(data) {
				continue
			}
			buf.Pix[i], buf.Pix[i+1], buf.Pix[i+2], buf.Pix[i+3] =
				data[i+2], data[i+1], data[i], 255
		}
	}
	return buf
}
