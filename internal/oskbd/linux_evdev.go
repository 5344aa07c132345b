//go:build linux

package oskbd

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/miken90dev/layerkeyd/internal/keys"
	"github.com/miken90dev/layerkeyd/internal/mappedkeys"
)

// eviocgrab is EVIOCGRAB, _IOW('E', 0x90, int) — grabbing the device gives
// layerkeyd exclusive access so the physical keys it remaps never also
// reach whatever the unmapped device node would otherwise deliver them to.
const eviocgrab = 0x40044590

// EvdevInputSource is the device-style Linux InputSource: it reads raw
// input_event structs from a /dev/input/eventN node. Because EVIOCGRAB
// gives it exclusive access, an unmapped key's event never reaches
// anything else in the OS unless this source re-emits it itself — so,
// per spec.md §4.6's device-style description, it consults filter and
// calls out.WriteKey directly for any code the filter reports unmapped,
// instead of forwarding it on the channel.
type EvdevInputSource struct {
	fd     int
	filter *mappedkeys.Filter
	out    OutputDriver
}

// OpenEvdevInputSource opens path (typically /dev/input/eventN) and grabs
// exclusive access to it. filter and out implement the unmapped-key
// passthrough described above.
func OpenEvdevInputSource(path string, filter *mappedkeys.Filter, out OutputDriver) (*EvdevInputSource, error) {
	fd, err := unix.Open(path, unix.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), eviocgrab, 1); errno != 0 {
		unix.Close(fd)
		return nil, fmt.Errorf("EVIOCGRAB %s: %w", path, errno)
	}
	return &EvdevInputSource{fd: fd, filter: filter, out: out}, nil
}

const inputEventSize = 24 // sizeof(struct input_event) on 64-bit kernels (8+8+2+2+4, padded)

// Run implements InputSource.Run. It blocks reading whole input_event
// records, forwarding mapped EV_KEY edges as keys.KeyEvent and writing
// everything else (EV_SYN, EV_MSC, etc., and unmapped keys) straight to the
// OutputDriver.
func (s *EvdevInputSource) Run(ch chan<- keys.KeyEvent) error {
	buf := make([]byte, inputEventSize)
	for {
		n, err := unix.Read(s.fd, buf)
		if err != nil {
			return fmt.Errorf("evdev read: %w", err)
		}
		if n < inputEventSize {
			continue
		}
		evType := binary.LittleEndian.Uint16(buf[16:18])
		if evType != evKey {
			// Non-key events (EV_SYN, EV_MSC, EV_LED, ...) carry no key
			// semantics for the interpreter but must still reach the OS,
			// so they are forwarded verbatim to the OD (spec.md §4.6).
			raw := make([]byte, inputEventSize)
			copy(raw, buf)
			if err := s.out.Write(RawEvent{Payload: raw}); err != nil {
				return fmt.Errorf("evdev passthrough write: %w", err)
			}
			continue
		}
		code := binary.LittleEndian.Uint16(buf[18:20])
		value := int32(binary.LittleEndian.Uint32(buf[20:24]))

		var kv keys.KeyValue
		switch value {
		case keyPress:
			kv = keys.Press
		case keyRelease:
			kv = keys.Release
		case keyRepeat:
			kv = keys.Repeat
		default:
			continue
		}

		osCode := keys.OsCode(code)
		if !osCode.Valid() {
			continue
		}

		if !s.filter.Mapped(osCode) {
			if err := s.out.WriteKey(osCode, kv); err != nil {
				return fmt.Errorf("evdev passthrough write: %w", err)
			}
			continue
		}

		// A full channel here is the exact unrecoverable condition
		// spec.md §4.6 calls out: silently blocking (or dropping) would
		// desynchronize physical and logical key state, so a failed
		// non-blocking send is treated as fatal rather than retried.
		select {
		case ch <- keys.KeyEvent{Code: osCode, Value: kv}:
		default:
			return fmt.Errorf("evdev: event channel full, cannot forward %v without desynchronizing state", osCode)
		}
	}
}

// Close releases the device handle.
func (s *EvdevInputSource) Close() error {
	return unix.Close(s.fd)
}

var _ InputSource = (*EvdevInputSource)(nil)
