// Package custom defines the custom-action vocabulary the keymap
// interpreter can emit alongside its normal key-press/release state, and
// the CustomEvent envelope the Event Processor inspects once per tick.
package custom

import "github.com/miken90dev/layerkeyd/internal/keys"

// MouseButton identifies a synthesizable mouse button.
type MouseButton uint8

const (
	MouseLeft MouseButton = iota
	MouseRight
	MouseMiddle
)

// MacroStep is one step of a Macro action: it presses or releases a logical
// key, then waits Delay milliseconds before the next step runs.
type MacroStep struct {
	Code  keys.KeyCode
	Press bool
	Delay int // milliseconds to wait before the next step; 0 for a plain key step
}

// Action is the sum of custom action kinds a binding may produce. Exactly
// one of the typed fields is meaningful, selected by Kind.
type Action struct {
	Kind ActionKind

	Rune     rune        // Kind == Unicode
	Button   MouseButton // Kind == Mouse
	Macro    []MacroStep // Kind == Macro
	Layer    string      // Kind == LayerSwitch
}

// ActionKind discriminates the Action sum type.
type ActionKind uint8

const (
	Unicode ActionKind = iota
	Mouse
	LiveReload
	// Macro and LayerSwitch supplement the spec's minimal
	// {Unicode, Mouse, LiveReload} set with two more variants present in
	// kanata's broader custom-action vocabulary (macros, explicit layer
	// actions). interp.Layout never emits either kind as an Event: macros
	// and layer changes run entirely inside its own state machine. The
	// Event Processor's tick driver treats both as a no-op per spec.md §4.4
	// step 2's "all other custom variants: no-op here (extension point)".
	Macro
	LayerSwitch
)

// Edge marks whether an Action fired on press or release of its binding.
type Edge uint8

const (
	None Edge = iota
	OnPress
	OnRelease
)

// Event is what Layout.Tick returns: at most one Action, tagged with the
// edge it fired on. Per spec.md §9's open question, an interpreter tick
// produces at most one Event; any further ones in the same millisecond are
// dropped, not queued.
type Event struct {
	Edge   Edge
	Action Action
}

// NoEvent is the zero Event, meaning "nothing happened this tick".
var NoEvent = Event{Edge: None}
