//go:build linux

package oskbd

import (
	"fmt"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
	"github.com/jezek/xgb/xtest"

	"github.com/miken90dev/layerkeyd/internal/custom"
	"github.com/miken90dev/layerkeyd/internal/keys"
)

// XTestOutputDriver is the alternate Linux OutputDriver: it injects
// synthetic input through the X11 XTEST extension instead of a uinput
// virtual device, for environments where /dev/uinput is unavailable but an
// X server is. It pairs naturally with HookInputSource, mirroring the
// teacher's own X11 (core/keyboard_x11.go) and hook (core/keyboard_hook.go)
// backends being two independently selectable capture/inject strategies.
type XTestOutputDriver struct {
	conn *xgb.Conn
	root xproto.Window
}

// NewXTestOutputDriver opens an X connection and initializes the XTEST
// extension used for key/button injection.
func NewXTestOutputDriver() (*XTestOutputDriver, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("xgb.NewConn: %w", err)
	}
	if err := xtest.Init(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("xtest.Init: %w", err)
	}
	setup := xproto.Setup(conn)
	root := setup.DefaultScreen(conn).Root
	return &XTestOutputDriver{conn: conn, root: root}, nil
}

// osCodeToX11Keycode maps an OsCode (taken to already be in X11 keycode
// space for this backend, per the teacher's own x11ToInternal convention
// of treating the OS's native numbering as the shared vocabulary) straight
// through — XTEST takes X11 keycodes directly, unlike uinput which wants
// Linux evdev codes. Both backends therefore key off the same OsCode
// space but interpret its bytes according to the platform underneath.
func osCodeToX11Keycode(code keys.OsCode) byte {
	return byte(code)
}

func (d *XTestOutputDriver) fakeKeyInput(code keys.OsCode, press bool) error {
	eventType := byte(xproto.KeyPress)
	if !press {
		eventType = byte(xproto.KeyRelease)
	}
	xtest.FakeInput(d.conn, eventType, osCodeToX11Keycode(code), 0, d.root, 0, 0, 0)
	return d.conn.Sync()
}

// PressKey implements OutputDriver.
func (d *XTestOutputDriver) PressKey(code keys.OsCode) error {
	return d.fakeKeyInput(code, true)
}

// ReleaseKey implements OutputDriver.
func (d *XTestOutputDriver) ReleaseKey(code keys.OsCode) error {
	return d.fakeKeyInput(code, false)
}

// WriteKey implements OutputDriver. XTEST has no native repeat event, so a
// Repeat edge is synthesized as a press (the window manager's own repeat
// timing governs what the receiving application sees next).
func (d *XTestOutputDriver) WriteKey(code keys.OsCode, value keys.KeyValue) error {
	switch value {
	case keys.Release:
		return d.fakeKeyInput(code, false)
	default:
		return d.fakeKeyInput(code, true)
	}
}

func x11ButtonCode(b custom.MouseButton) byte {
	switch b {
	case custom.MouseRight:
		return 3
	case custom.MouseMiddle:
		return 2
	default:
		return 1
	}
}

// ClickButton implements OutputDriver.
func (d *XTestOutputDriver) ClickButton(b custom.MouseButton) error {
	xtest.FakeInput(d.conn, byte(xproto.ButtonPress), x11ButtonCode(b), 0, d.root, 0, 0, 0)
	return d.conn.Sync()
}

// ReleaseButton implements OutputDriver.
func (d *XTestOutputDriver) ReleaseButton(b custom.MouseButton) error {
	xtest.FakeInput(d.conn, byte(xproto.ButtonRelease), x11ButtonCode(b), 0, d.root, 0, 0, 0)
	return d.conn.Sync()
}

// SendUnicode is unimplemented for this backend: XTEST injects keycodes
// against the active keyboard mapping, which has no general route to an
// arbitrary Unicode code point without also programming a keysym mapping
// first (the teacher's own sendUnicodeChar left exactly this as a TODO).
func (d *XTestOutputDriver) SendUnicode(r rune) error {
	return fmt.Errorf("xtest output driver: unicode injection for %q requires a keysym remap, not implemented", r)
}

// Write implements OutputDriver; XTEST has no raw-event passthrough
// channel, so non-key RawEvents are dropped.
func (d *XTestOutputDriver) Write(ev RawEvent) error {
	return nil
}

// Close implements OutputDriver.
func (d *XTestOutputDriver) Close() error {
	d.conn.Close()
	return nil
}

var _ OutputDriver = (*XTestOutputDriver)(nil)
