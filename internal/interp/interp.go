// Package interp implements the keymap interpreter contract from
// spec.md §4.1: a pure, time-driven state machine consuming press/release
// events and millisecond tick pulses, exposing the set of currently-held
// logical keys plus at most one pending custom action per tick.
//
// The Event Processor only ever talks to the Interpreter interface below;
// Layout is the one concrete implementation, but EP's own tests exercise a
// much simpler fake (see internal/ep) so that EP's loop/ordering/reload
// logic can be tested independently of layer/tap-hold semantics.
package interp

import (
	"github.com/miken90dev/layerkeyd/internal/custom"
	"github.com/miken90dev/layerkeyd/internal/keys"
)

// Interpreter is the contract described in spec.md §4.1.
type Interpreter interface {
	// Event registers a physical press or release of an OsCode. Repeat
	// values are never passed here — the Event Processor resolves Repeat
	// itself (spec.md §4.5) without touching the Interpreter.
	Event(value keys.KeyValue, code keys.OsCode)
	// Tick advances the interpreter's internal clock by exactly one
	// millisecond and returns at most one custom event produced during
	// that millisecond.
	Tick() custom.Event
	// KeyCodes returns the current set of logical keys the interpreter
	// considers held, in a deterministic, caller-owned order. It is a
	// slice, never a set — spec.md §4.4 forbids set-based iteration here
	// because its nondeterministic order would randomize simultaneous
	// release/press emission.
	KeyCodes() []keys.KeyCode
}

var _ Interpreter = (*Layout)(nil)
