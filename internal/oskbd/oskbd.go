// Package oskbd defines the Input Source (IS) and Output Driver (OD)
// contracts from spec.md §4.6/§4.7: the narrow interfaces through which
// the platform-free Event Processor talks to raw OS input capture and
// synthetic OS output, plus the RawEvent passthrough envelope shared by
// both. Concrete adapters live in platform-tagged files in this package;
// the EP only ever sees these interfaces.
package oskbd

import (
	"github.com/miken90dev/layerkeyd/internal/custom"
	"github.com/miken90dev/layerkeyd/internal/keys"
)

// RawEvent is an opaque OS input event that carries no key semantics (an
// axis move, an LED toggle, a sync marker) and must be forwarded to the OD
// verbatim rather than interpreted. Payload is backend-specific; EP never
// looks inside it.
type RawEvent struct {
	Payload any
}

// OutputDriver is the sink for synthesized output, per spec.md §4.7. Every
// method may fail with an I/O error; per spec.md §7 all such failures are
// fatal to the Event Processor.
type OutputDriver interface {
	// PressKey synthesizes a press of the logical key corresponding to
	// code.
	PressKey(code keys.OsCode) error
	// ReleaseKey synthesizes a release.
	ReleaseKey(code keys.OsCode) error
	// WriteKey synthesizes a single edge of the given value, including
	// Repeat — used by repeat resolution (spec.md §4.5) and by IS
	// passthrough for unmapped keys (spec.md §4.6).
	WriteKey(code keys.OsCode, value keys.KeyValue) error
	// ClickButton presses a mouse button.
	ClickButton(b custom.MouseButton) error
	// ReleaseButton releases a mouse button.
	ReleaseButton(b custom.MouseButton) error
	// SendUnicode emits one Unicode character via whatever platform
	// mechanism the backend supports (dead-key sequence, IME hex input,
	// or direct Unicode injection).
	SendUnicode(r rune) error
	// Write forwards a RawEvent verbatim (device-style passthrough for
	// non-key events).
	Write(ev RawEvent) error
	// Close releases the underlying OS handle. Never called on the
	// normal run path (spec.md §4 has no graceful shutdown), but present
	// for tests and for platforms that need deterministic teardown.
	Close() error
}

// InputSource is the producer of physical key events, per spec.md §4.6.
// Run blocks for the process lifetime (or until a fatal I/O error),
// forwarding intercepted key events on ch. Implementations are themselves
// responsible for consulting the mapped-keys filter and writing
// unmapped-key/passthrough events directly to an OutputDriver — the shape
// of that decision differs between device-style and hook-style backends
// (spec.md §4.6), so it is not part of this interface.
type InputSource interface {
	// Run reads/hooks physical input until a fatal error occurs or the
	// source is exhausted, sending every mapped key edge on ch. A full
	// channel on a hook-style backend is a fatal, unrecoverable condition
	// per spec.md §4.6 ("the process must terminate: dropping a Press
	// would desynchronize ...") — implementations enforce that
	// themselves rather than silently blocking.
	Run(ch chan<- keys.KeyEvent) error
}
