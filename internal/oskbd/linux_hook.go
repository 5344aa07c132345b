//go:build linux

package oskbd

import (
	"fmt"

	hook "github.com/robotn/gohook"
	"github.com/vcaesar/keycode"

	"github.com/miken90dev/layerkeyd/internal/keys"
	"github.com/miken90dev/layerkeyd/internal/mappedkeys"
)

// HookInputSource is the alternate Linux hook-style InputSource, built on
// gohook's global keyboard hook rather than a grabbed evdev device node.
// Unlike EvdevInputSource it never gets exclusive access to the device:
// gohook does not suppress the original keystroke, so every key it
// observes has already reached its original destination. Pairing this
// backend with an OutputDriver that can at least partially compensate
// (see XTestOutputDriver) is the caller's responsibility, same as the
// teacher's own keyboard_hook.go never attempted true interception either.
type HookInputSource struct {
	filter *mappedkeys.Filter
	out    OutputDriver

	events  chan hook.Event
	pressed map[keys.OsCode]bool
}

// NewHookInputSource constructs a HookInputSource. filter and out implement
// spec.md §4.6's mapped-keys passthrough: any code the filter reports
// unmapped is written directly to out rather than sent to the channel. The
// underlying hook is not started until Run is called.
func NewHookInputSource(filter *mappedkeys.Filter, out OutputDriver) *HookInputSource {
	return &HookInputSource{filter: filter, out: out, pressed: make(map[keys.OsCode]bool)}
}

// Run implements InputSource.Run. gohook's KeyDown fires on every OS
// auto-repeat as well as the initial press, with no way to tell them apart
// from the event alone, so Run synthesizes Repeat itself from a
// process-local pressed-keys set (spec.md §4.6: hook-style platforms
// deliver no dedicated repeat edge).
func (s *HookInputSource) Run(ch chan<- keys.KeyEvent) error {
	s.events = hook.Start()
	defer hook.End()

	for ev := range s.events {
		var value keys.KeyValue
		switch ev.Kind {
		case hook.KeyDown:
			value = keys.Press
		case hook.KeyUp:
			value = keys.Release
		default:
			continue
		}

		osCode, ok := rawcodeToOsCode(ev.Rawcode)
		if !ok {
			continue
		}

		switch value {
		case keys.Press:
			if s.pressed[osCode] {
				value = keys.Repeat
			} else {
				s.pressed[osCode] = true
			}
		case keys.Release:
			delete(s.pressed, osCode)
		}

		if !s.filter.Mapped(osCode) {
			if err := s.out.WriteKey(osCode, value); err != nil {
				return fmt.Errorf("hook passthrough write: %w", err)
			}
			continue
		}

		select {
		case ch <- keys.KeyEvent{Code: osCode, Value: value}:
		default:
			return fmt.Errorf("gohook: event channel full, cannot forward %v without desynchronizing state", osCode)
		}
	}
	return nil
}

// rawcodeToOsCode translates a gohook rawcode (on Linux, the ASCII value
// of the key, per the teacher's own rawcodeToInternal table) to an OsCode
// via vcaesar/keycode's cross-platform rawcode table, which is exactly the
// library the teacher's Windows build depends on for the equivalent
// translation but never wired in on Linux.
func rawcodeToOsCode(rawcode uint16) (keys.OsCode, bool) {
	code, ok := keycode.RawcodetoKeycode[int(rawcode)]
	if !ok {
		return 0, false
	}
	return keys.OsCode(code), true
}

var _ InputSource = (*HookInputSource)(nil)
