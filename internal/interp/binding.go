package interp

import (
	"github.com/miken90dev/layerkeyd/internal/custom"
	"github.com/miken90dev/layerkeyd/internal/keys"
)

// BindingKind discriminates the Binding sum type.
type BindingKind uint8

const (
	// KindNone is an explicitly unbound column: pressing it does nothing.
	KindNone BindingKind = iota
	// KindTransparent falls through to the same column on the layer
	// below in the active stack.
	KindTransparent
	// KindSimple emits a single logical KeyCode for the duration of the
	// physical press.
	KindSimple
	// KindTapHold resolves to TapKey if released before TimeoutMs have
	// elapsed, or to HoldKey once TimeoutMs have elapsed while still
	// held — the classic tap/hold binding (spec.md GLOSSARY).
	KindTapHold
	// KindLayerMomentary pushes Layer onto the active stack for the
	// duration of the physical press.
	KindLayerMomentary
	// KindLayerToggle flips Layer's membership in the active stack on
	// each press; it ignores the matching release entirely.
	KindLayerToggle
	// KindMacro plays a fixed sequence of press/release/delay steps,
	// started on press and advanced one step per elapsed tick once any
	// step's delay has passed.
	KindMacro
	// KindUnicode emits a Unicode custom action on press.
	KindUnicode
	// KindMouse emits Mouse custom actions on both press and release.
	KindMouse
	// KindLiveReload emits a LiveReload custom action on press only
	// (kanata.rs only ever matches Press(LiveReload); there is no
	// meaningful release action for it).
	KindLiveReload
)

// Binding is one column's behavior within a single layer. Only the fields
// relevant to Kind are meaningful; the rest are zero.
type Binding struct {
	Kind BindingKind

	Key keys.KeyCode // KindSimple

	TapKey    keys.KeyCode // KindTapHold
	HoldKey   keys.KeyCode // KindTapHold
	TimeoutMs int          // KindTapHold

	Layer string // KindLayerMomentary, KindLayerToggle

	Macro []custom.MacroStep // KindMacro

	Rune rune // KindUnicode

	Button custom.MouseButton // KindMouse
}

// Simple is a convenience constructor for the common case.
func Simple(k keys.KeyCode) Binding { return Binding{Kind: KindSimple, Key: k} }

// TapHold is a convenience constructor.
func TapHold(tap, hold keys.KeyCode, timeoutMs int) Binding {
	return Binding{Kind: KindTapHold, TapKey: tap, HoldKey: hold, TimeoutMs: timeoutMs}
}

// LayerMomentary is a convenience constructor.
func LayerMomentary(layer string) Binding {
	return Binding{Kind: KindLayerMomentary, Layer: layer}
}

// LayerToggle is a convenience constructor.
func LayerToggle(layer string) Binding {
	return Binding{Kind: KindLayerToggle, Layer: layer}
}

// UnicodeBinding is a convenience constructor (named to avoid colliding
// with the custom.Unicode ActionKind constant).
func UnicodeBinding(r rune) Binding { return Binding{Kind: KindUnicode, Rune: r} }

// MouseBinding is a convenience constructor.
func MouseBinding(b custom.MouseButton) Binding { return Binding{Kind: KindMouse, Button: b} }

// MacroBinding is a convenience constructor.
func MacroBinding(steps []custom.MacroStep) Binding { return Binding{Kind: KindMacro, Macro: steps} }

// LiveReloadBinding is a convenience constructor.
func LiveReloadBinding() Binding { return Binding{Kind: KindLiveReload} }

// Layer is one named layer: a full column table plus its name for
// LayerMomentary/LayerToggle reference.
type Layer struct {
	Name     string
	Bindings [keys.MaxOsCode]Binding
}

// NewLayer returns an all-Transparent layer ready for bindings to be set
// by column. The base layer should instead use NewBaseLayer, since
// Transparent has nothing to fall through to there.
func NewLayer(name string) *Layer {
	l := &Layer{Name: name}
	for i := range l.Bindings {
		l.Bindings[i] = Binding{Kind: KindTransparent}
	}
	return l
}

// NewBaseLayer returns a layer with every column initially KindNone
// (explicitly unbound), since the base layer has nothing below it for
// Transparent to reach.
func NewBaseLayer(name string) *Layer {
	l := &Layer{Name: name}
	for i := range l.Bindings {
		l.Bindings[i] = Binding{Kind: KindNone}
	}
	return l
}

// Set assigns the binding for one physical column.
func (l *Layer) Set(code keys.OsCode, b Binding) {
	if !code.Valid() {
		return
	}
	l.Bindings[code] = b
}
