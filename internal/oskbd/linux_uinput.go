//go:build linux

package oskbd

import (
	"fmt"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/miken90dev/layerkeyd/internal/custom"
	"github.com/miken90dev/layerkeyd/internal/keys"
)

// uinput event/value constants, matching the kernel's input-event-codes.h.
const (
	evSyn = 0x00
	evKey = 0x01
	evRel = 0x02

	synReport = 0

	relX = 0x00
	relY = 0x01

	btnLeft   = 0x110
	btnRight  = 0x111
	btnMiddle = 0x112

	keyRelease = 0
	keyPress   = 1
	keyRepeat  = 2
)

// uinput ioctl requests (linux/uinput.h).
const (
	uiSetEvbit  = 0x40045564
	uiSetKeybit = 0x40045565
	uiSetRelbit = 0x40045566
	uiDevCreate = 0x5501
	uiDevDestroy = 0x5502
	uiDevSetup  = 0x405c5503
	uinputMaxNameSize = 80
	busUSB      = 0x03
)

type uinputSetup struct {
	ID struct {
		Bustype uint16
		Vendor  uint16
		Product uint16
		Version uint16
	}
	Name      [uinputMaxNameSize]byte
	FFEffects uint32
}

type inputEvent struct {
	Time  unix.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

// UinputOutputDriver is the primary Linux OutputDriver, writing synthetic
// key/button events to a virtual device created via /dev/uinput.
type UinputOutputDriver struct {
	mu    sync.Mutex
	fd    int
	ready bool
}

// NewUinputOutputDriver opens /dev/uinput, enables the full key and
// left/right/middle button event code ranges, and registers a virtual
// device node.
func NewUinputOutputDriver(deviceName string) (*UinputOutputDriver, error) {
	fd, err := unix.Open("/dev/uinput", unix.O_WRONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("open /dev/uinput: %w (ensure user is in the 'input' group)", err)
	}

	d := &UinputOutputDriver{fd: fd}

	if err := d.ioctl(uiSetEvbit, evKey); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("UI_SET_EVBIT EV_KEY: %w", err)
	}
	if err := d.ioctl(uiSetEvbit, evRel); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("UI_SET_EVBIT EV_REL: %w", err)
	}
	for code := 0; code < keys.MaxOsCode; code++ {
		if err := d.ioctl(uiSetKeybit, uintptr(code)); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("UI_SET_KEYBIT %d: %w", code, err)
		}
	}
	for _, btn := range []int{btnLeft, btnRight, btnMiddle} {
		if err := d.ioctl(uiSetKeybit, uintptr(btn)); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("UI_SET_KEYBIT button %d: %w", btn, err)
		}
	}
	if err := d.ioctl(uiSetRelbit, relX); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("UI_SET_RELBIT REL_X: %w", err)
	}
	if err := d.ioctl(uiSetRelbit, relY); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("UI_SET_RELBIT REL_Y: %w", err)
	}

	var setup uinputSetup
	setup.ID.Bustype = busUSB
	setup.ID.Vendor = 0x1234
	setup.ID.Product = 0x5678
	setup.ID.Version = 1
	copy(setup.Name[:], deviceName)

	if err := d.ioctlPtr(uiDevSetup, unsafe.Pointer(&setup)); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("UI_DEV_SETUP: %w", err)
	}
	if err := d.ioctl(uiDevCreate, 0); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("UI_DEV_CREATE: %w", err)
	}

	// Give udev time to create the device node before the first write.
	time.Sleep(100 * time.Millisecond)

	d.ready = true
	return d, nil
}

func (d *UinputOutputDriver) ioctl(req, val uintptr) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(d.fd), req, val)
	if errno != 0 {
		return errno
	}
	return nil
}

func (d *UinputOutputDriver) ioctlPtr(req uintptr, ptr unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(d.fd), req, uintptr(ptr))
	if errno != 0 {
		return errno
	}
	return nil
}

func (d *UinputOutputDriver) writeEvent(evType, code uint16, value int32) error {
	var tv unix.Timeval
	unix.Gettimeofday(&tv)
	ev := inputEvent{Time: tv, Type: evType, Code: code, Value: value}
	buf := (*[unsafe.Sizeof(ev)]byte)(unsafe.Pointer(&ev))[:]
	_, err := unix.Write(d.fd, buf)
	return err
}

func (d *UinputOutputDriver) sync() error {
	return d.writeEvent(evSyn, synReport, 0)
}

func valueFor(v keys.KeyValue) int32 {
	switch v {
	case keys.Press:
		return keyPress
	case keys.Release:
		return keyRelease
	default:
		return keyRepeat
	}
}

// PressKey implements OutputDriver.
func (d *UinputOutputDriver) PressKey(code keys.OsCode) error {
	return d.WriteKey(code, keys.Press)
}

// ReleaseKey implements OutputDriver.
func (d *UinputOutputDriver) ReleaseKey(code keys.OsCode) error {
	return d.WriteKey(code, keys.Release)
}

// WriteKey implements OutputDriver.
func (d *UinputOutputDriver) WriteKey(code keys.OsCode, value keys.KeyValue) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.ready {
		return fmt.Errorf("uinput device not ready")
	}
	if err := d.writeEvent(evKey, uint16(code), valueFor(value)); err != nil {
		return err
	}
	return d.sync()
}

func buttonCode(b custom.MouseButton) uint16 {
	switch b {
	case custom.MouseRight:
		return btnRight
	case custom.MouseMiddle:
		return btnMiddle
	default:
		return btnLeft
	}
}

// ClickButton implements OutputDriver.
func (d *UinputOutputDriver) ClickButton(b custom.MouseButton) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.ready {
		return fmt.Errorf("uinput device not ready")
	}
	if err := d.writeEvent(evKey, buttonCode(b), keyPress); err != nil {
		return err
	}
	return d.sync()
}

// ReleaseButton implements OutputDriver.
func (d *UinputOutputDriver) ReleaseButton(b custom.MouseButton) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.ready {
		return fmt.Errorf("uinput device not ready")
	}
	if err := d.writeEvent(evKey, buttonCode(b), keyRelease); err != nil {
		return err
	}
	return d.sync()
}

// SendUnicode emits r via the GTK/IBus Ctrl+Shift+U hex-input sequence,
// the same mechanism the teacher used for Vietnamese diacritics.
func (d *UinputOutputDriver) SendUnicode(r rune) error {
	ctrl, shift, u := keys.OsCode(29), keys.OsCode(42), keys.OsCode(22)
	seq := []struct {
		code  keys.OsCode
		value keys.KeyValue
	}{
		{ctrl, keys.Press}, {shift, keys.Press}, {u, keys.Press}, {u, keys.Release},
		{shift, keys.Release}, {ctrl, keys.Release},
	}
	for _, s := range seq {
		if err := d.WriteKey(s.code, s.value); err != nil {
			return err
		}
	}
	for _, h := range fmt.Sprintf("%x", r) {
		code, ok := hexDigitCode(h)
		if !ok {
			continue
		}
		if err := d.WriteKey(code, keys.Press); err != nil {
			return err
		}
		if err := d.WriteKey(code, keys.Release); err != nil {
			return err
		}
	}
	space := keys.OsCode(57)
	if err := d.WriteKey(space, keys.Press); err != nil {
		return err
	}
	return d.WriteKey(space, keys.Release)
}

func hexDigitCode(h rune) (keys.OsCode, bool) {
	digits := map[rune]keys.OsCode{
		'0': 11, '1': 2, '2': 3, '3': 4, '4': 5, '5': 6, '6': 7, '7': 8, '8': 9, '9': 10,
		'a': 30, 'b': 48, 'c': 46, 'd': 32, 'e': 18, 'f': 33,
	}
	code, ok := digits[h]
	return code, ok
}

// Write implements OutputDriver, forwarding either a raw relative-motion
// event or (spec.md §4.6 device-style passthrough) the verbatim bytes of a
// non-key input_event read off the source evdev node — both share the same
// wire layout this device writes, so the bytes go straight to the fd.
func (d *UinputOutputDriver) Write(ev RawEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.ready {
		return fmt.Errorf("uinput device not ready")
	}
	if raw, ok := ev.Payload.([]byte); ok {
		_, err := unix.Write(d.fd, raw)
		return err
	}
	type axisMove struct {
		Axis  uint16
		Delta int32
	}
	m, ok := ev.Payload.(axisMove)
	if !ok {
		return nil
	}
	if err := d.writeEvent(evRel, m.Axis, m.Delta); err != nil {
		return err
	}
	return d.sync()
}

// Close implements OutputDriver.
func (d *UinputOutputDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.ready {
		return nil
	}
	d.ioctl(uiDevDestroy, 0)
	unix.Close(d.fd)
	d.ready = false
	return nil
}

var _ OutputDriver = (*UinputOutputDriver)(nil)
