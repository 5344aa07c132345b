// Package keys defines the opaque physical (OsCode) and logical (KeyCode)
// key identifiers shared by every layer of layerkeyd, and the static,
// injective table that converts between them.
package keys

import "fmt"

// MaxOsCode bounds the physical key code space. Indices are used directly
// into fixed-size arrays such as MappedKeys, so the bound must stay a
// compile-time constant.
const MaxOsCode = 256

// OsCode is a physical key as numbered by the operating system: a Linux
// evdev keycode, a Windows virtual-key code, or an X11 keycode depending on
// backend. Valid range is [0, MaxOsCode).
type OsCode uint16

// Valid reports whether o falls inside the addressable code space.
func (o OsCode) Valid() bool {
	return o < MaxOsCode
}

func (o OsCode) String() string {
	return fmt.Sprintf("OsCode(%d)", uint16(o))
}

// KeyCode is a logical key as known to the interpreter's layout engine.
// It is intentionally a distinct type from OsCode even though both are
// small integers: mixing them up is a real bug class in remapper code,
// and the compiler should catch it.
type KeyCode uint8

func (k KeyCode) String() string {
	return fmt.Sprintf("KeyCode(%d)", uint8(k))
}

// KeyValue is the edge type of a physical or synthetic key transition.
type KeyValue uint8

const (
	Press KeyValue = iota
	Release
	Repeat
)

func (v KeyValue) String() string {
	switch v {
	case Press:
		return "Press"
	case Release:
		return "Release"
	case Repeat:
		return "Repeat"
	default:
		return "KeyValue(?)"
	}
}

// KeyEvent is a physical key edge read from an InputSource.
type KeyEvent struct {
	Code  OsCode
	Value KeyValue
}

// ToKeyCode converts a physical code to its logical counterpart. ok is
// false for OsCodes with no logical meaning (conversion is partial, per
// spec.md §3 — "Conversion may fail for unknown codes").
func ToKeyCode(o OsCode) (KeyCode, bool) {
	if !o.Valid() {
		return 0, false
	}
	kc := osToKeyCode[o]
	if !kc.known {
		return 0, false
	}
	return kc.code, true
}

// ToOsCode is the inverse of ToKeyCode.
func ToOsCode(k KeyCode) (OsCode, bool) {
	o, ok := keyToOsCode[k]
	return o, ok
}

type mappedKeyCode struct {
	code  KeyCode
	known bool
}

var (
	osToKeyCode [MaxOsCode]mappedKeyCode
	keyToOsCode map[KeyCode]OsCode
)

func init() {
	keyToOsCode = make(map[KeyCode]OsCode, MaxOsCode)
	// The mapping is the identity function truncated to a byte: every
	// OsCode below 256 gets a KeyCode of the same numeric value. This
	// mirrors kanata.rs's `evc as u8` cast in handle_key_event and keeps
	// the bijection trivially total and injective over the whole codespace,
	// which is what spec.md §3 requires ("total order unspecified;
	// equality and hashing are required" — identity satisfies that and
	// every stronger property besides).
	for o := OsCode(0); o < MaxOsCode; o++ {
		kc := KeyCode(o)
		osToKeyCode[o] = mappedKeyCode{code: kc, known: true}
		keyToOsCode[kc] = o
	}
}
