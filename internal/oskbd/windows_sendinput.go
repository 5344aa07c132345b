//go:build windows

package oskbd

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/miken90dev/layerkeyd/internal/custom"
	"github.com/miken90dev/layerkeyd/internal/keys"
)

const (
	inputKeyboard  = 1
	inputMouse     = 0
	keyeventfKeyup = 0x0002
	keyeventfUncode = 0x0004

	mouseeventfLeftDown   = 0x0002
	mouseeventfLeftUp     = 0x0004
	mouseeventfRightDown  = 0x0008
	mouseeventfRightUp    = 0x0010
	mouseeventfMiddleDown = 0x0020
	mouseeventfMiddleUp   = 0x0040
)

type keybdInput struct {
	WVk         uint16
	WScan       uint16
	DwFlags     uint32
	Time        uint32
	DwExtraInfo uintptr
}

type mouseInput struct {
	Dx          int32
	Dy          int32
	MouseData   uint32
	DwFlags     uint32
	Time        uint32
	DwExtraInfo uintptr
}

// input mirrors Windows' tagged INPUT union. Only the keyboard and mouse
// branches are populated here; the padding matches the union's larger
// member (MOUSEINPUT) so SendInput reads a consistent size regardless of
// Type.
type input struct {
	Type uint32
	_    uint32 // union is 8-byte aligned on amd64; this pads Type to match
	data [32]byte // big enough for either branch; MOUSEINPUT (32 bytes on amd64) is the larger one
}

var procSendInput = user32.NewProc("SendInput")

// SendInputOutputDriver is the Windows OutputDriver, synthesizing input
// via the SendInput Win32 API. The teacher never needed an OutputDriver
// (its Windows build only ever read keys via the hook and replaced text
// via simulated backspaces + a Unicode WM_CHAR-style path inside
// text_sender.go); this extends the teacher's own syscall-DLL idiom
// (syscall.NewLazyDLL/NewProc, seen throughout keyboard_hook.go) into
// injection territory the teacher's product never required.
type SendInputOutputDriver struct {
	mu sync.Mutex
}

// NewSendInputOutputDriver constructs a SendInputOutputDriver.
func NewSendInputOutputDriver() *SendInputOutputDriver {
	return &SendInputOutputDriver{}
}

func packKeybd(k keybdInput) input {
	var in input
	in.Type = inputKeyboard
	*(*keybdInput)(unsafe.Pointer(&in.data[0])) = k
	return in
}

func packMouse(m mouseInput) input {
	var in input
	in.Type = inputMouse
	*(*mouseInput)(unsafe.Pointer(&in.data[0])) = m
	return in
}

func (d *SendInputOutputDriver) send(inputs ...input) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(inputs) == 0 {
		return nil
	}
	ret, _, err := procSendInput.Call(
		uintptr(len(inputs)),
		uintptr(unsafe.Pointer(&inputs[0])),
		unsafe.Sizeof(inputs[0]),
	)
	if ret != uintptr(len(inputs)) {
		return fmt.Errorf("SendInput: %w", err)
	}
	return nil
}

func keyFlags(value keys.KeyValue) uint32 {
	if value == keys.Release {
		return keyeventfKeyup
	}
	return 0
}

// PressKey implements OutputDriver.
func (d *SendInputOutputDriver) PressKey(code keys.OsCode) error {
	return d.WriteKey(code, keys.Press)
}

// ReleaseKey implements OutputDriver.
func (d *SendInputOutputDriver) ReleaseKey(code keys.OsCode) error {
	return d.WriteKey(code, keys.Release)
}

// WriteKey implements OutputDriver. A Repeat edge is sent as a bare
// key-down, matching how Windows itself represents auto-repeat at the
// SendInput level (there is no repeat flag to set; the receiving
// application infers repeat from rapid identical WM_KEYDOWN messages).
func (d *SendInputOutputDriver) WriteKey(code keys.OsCode, value keys.KeyValue) error {
	return d.send(packKeybd(keybdInput{WVk: uint16(code), DwFlags: keyFlags(value), DwExtraInfo: injectedKeyMarker}))
}

func mouseDownFlag(b custom.MouseButton) uint32 {
	switch b {
	case custom.MouseRight:
		return mouseeventfRightDown
	case custom.MouseMiddle:
		return mouseeventfMiddleDown
	default:
		return mouseeventfLeftDown
	}
}

func mouseUpFlag(b custom.MouseButton) uint32 {
	switch b {
	case custom.MouseRight:
		return mouseeventfRightUp
	case custom.MouseMiddle:
		return mouseeventfMiddleUp
	default:
		return mouseeventfLeftUp
	}
}

// ClickButton implements OutputDriver.
func (d *SendInputOutputDriver) ClickButton(b custom.MouseButton) error {
	return d.send(packMouse(mouseInput{DwFlags: mouseDownFlag(b), DwExtraInfo: injectedKeyMarker}))
}

// ReleaseButton implements OutputDriver.
func (d *SendInputOutputDriver) ReleaseButton(b custom.MouseButton) error {
	return d.send(packMouse(mouseInput{DwFlags: mouseUpFlag(b), DwExtraInfo: injectedKeyMarker}))
}

// SendUnicode implements OutputDriver using SendInput's KEYEVENTF_UNICODE
// path, which takes an arbitrary UTF-16 code unit directly rather than
// needing a virtual-key mapping — simpler than the Linux uinput backend's
// Ctrl+Shift+U hex sequence, since Windows supports direct Unicode
// injection natively.
func (d *SendInputOutputDriver) SendUnicode(r rune) error {
	units := utf16Encode(r)
	ins := make([]input, 0, len(units)*2)
	for _, u := range units {
		ins = append(ins,
			packKeybd(keybdInput{WScan: u, DwFlags: keyeventfUncode, DwExtraInfo: injectedKeyMarker}),
			packKeybd(keybdInput{WScan: u, DwFlags: keyeventfUncode | keyeventfKeyup, DwExtraInfo: injectedKeyMarker}),
		)
	}
	return d.send(ins...)
}

func utf16Encode(r rune) []uint16 {
	if r <= 0xFFFF {
		return []uint16{uint16(r)}
	}
	r -= 0x10000
	return []uint16{uint16(0xD800 + (r >> 10)), uint16(0xDC00 + (r & 0x3FF))}
}

// Write implements OutputDriver; SendInput has no non-key/button
// passthrough channel, so raw events are dropped.
func (d *SendInputOutputDriver) Write(ev RawEvent) error {
	return nil
}

// Close implements OutputDriver; SendInput holds no handle to release.
func (d *SendInputOutputDriver) Close() error {
	return nil
}

var _ OutputDriver = (*SendInputOutputDriver)(nil)
