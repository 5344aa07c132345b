package interp

import (
	"github.com/miken90dev/layerkeyd/internal/custom"
	"github.com/miken90dev/layerkeyd/internal/keys"
)

// Layout is the concrete Interpreter: a stack of named layers, a
// tap-hold/layer/macro resolution engine, and the ordered set of currently
// held logical keys.
//
// Every mutable collection that feeds an externally observable ordering
// (held, pending, queue, tapReleases, macros) is a plain slice, resolved
// with linear scans. This is the same discipline spec.md §4.4 mandates for
// the diff itself ("ordering dominates over asymptotic efficiency") —
// carried inward here too, since a map-iteration-order leak anywhere in
// the chain would reintroduce the nondeterminism the diff works to avoid.
type Layout struct {
	layers map[string]*Layer
	base   string
	stack  []string

	held    []keys.KeyCode
	heldSrc map[keys.OsCode]heldEntry

	pending []*pendingTapHold
	queue   []queuedEvent

	tapReleases []scheduledRelease
	queueFreeze int
	macros      []*macroRunner

	toggled map[string]bool

	pendingEvent custom.Event
}

type heldEntry struct {
	kind   BindingKind
	codes  []keys.KeyCode
	layer  string
	button custom.MouseButton
}

type pendingTapHold struct {
	col         keys.OsCode
	binding     *Binding
	remainingMs int
}

type queuedEvent struct {
	value keys.KeyValue
	code  keys.OsCode
}

type scheduledRelease struct {
	code      keys.KeyCode
	ticksLeft int
}

type macroRunner struct {
	steps []custom.MacroStep
	idx   int
	wait  int
}

// NewLayout builds a Layout from a named layer set and the name of the
// layer that starts active. layers must contain base.
func NewLayout(layers map[string]*Layer, base string) *Layout {
	return &Layout{
		layers:  layers,
		base:    base,
		stack:   []string{base},
		heldSrc: make(map[keys.OsCode]heldEntry),
		toggled: make(map[string]bool),
	}
}

// Event implements Interpreter.Event.
func (l *Layout) Event(value keys.KeyValue, code keys.OsCode) {
	if !code.Valid() {
		return
	}
	// A Release of the very column a tap-hold is still undecided on is
	// what decides it (spec.md scenario 2's early-release tap case) and
	// must be handled immediately rather than queued behind itself —
	// queuing it would leave the tap-hold waiting on an event that can
	// now never arrive, deadlocked until the timeout finally fires on its
	// own.
	if value == keys.Release {
		if idx := l.findPendingIndex(code); idx >= 0 {
			pend := l.pending[idx]
			l.pending = append(l.pending[:idx], l.pending[idx+1:]...)
			l.resolveTapHold(pend, true)
			// Queued edges replay one per Tick (see drainOneQueued), not
			// synchronously here — each replay needs its own post-Tick
			// KeyCodes() sampling to be observable at all.
			return
		}
	}
	if len(l.pending) > 0 || len(l.queue) > 0 {
		// A tap-hold decision is outstanding: queue this edge instead of
		// acting on it now. Queued edges replay in arrival order once the
		// outstanding decision (and any decision it uncovers) resolves —
		// one per Tick — see drainOneQueued.
		l.queue = append(l.queue, queuedEvent{value: value, code: code})
		return
	}
	l.applyEvent(value, code)
}

func (l *Layout) applyEvent(value keys.KeyValue, code keys.OsCode) {
	switch value {
	case keys.Press:
		l.handlePress(code, l.resolve(code))
	case keys.Release:
		l.handleRelease(code)
	}
}

// resolve walks the active layer stack top-down, returning the first
// non-Transparent binding for code, or KindNone if every layer (including
// the base) left it Transparent — which NewBaseLayer never does, but a
// hand-built layer set could.
func (l *Layout) resolve(code keys.OsCode) *Binding {
	for i := len(l.stack) - 1; i >= 0; i-- {
		layer := l.layers[l.stack[i]]
		if layer == nil {
			continue
		}
		b := &layer.Bindings[code]
		if b.Kind != KindTransparent {
			return b
		}
	}
	return &Binding{Kind: KindNone}
}

func (l *Layout) handlePress(code keys.OsCode, b *Binding) {
	switch b.Kind {
	case KindNone, KindTransparent:
		return
	case KindSimple:
		l.pushHeld(b.Key)
		l.heldSrc[code] = heldEntry{kind: KindSimple, codes: []keys.KeyCode{b.Key}}
	case KindTapHold:
		l.pending = append(l.pending, &pendingTapHold{col: code, binding: b, remainingMs: b.TimeoutMs})
	case KindLayerMomentary:
		l.stack = append(l.stack, b.Layer)
		l.heldSrc[code] = heldEntry{kind: KindLayerMomentary, layer: b.Layer}
	case KindLayerToggle:
		l.toggleLayer(b.Layer)
	case KindMacro:
		l.startMacro(b.Macro)
	case KindUnicode:
		l.pendingEvent = custom.Event{Edge: custom.OnPress, Action: custom.Action{Kind: custom.Unicode, Rune: b.Rune}}
	case KindMouse:
		l.pendingEvent = custom.Event{Edge: custom.OnPress, Action: custom.Action{Kind: custom.Mouse, Button: b.Button}}
		l.heldSrc[code] = heldEntry{kind: KindMouse, button: b.Button}
	case KindLiveReload:
		l.pendingEvent = custom.Event{Edge: custom.OnPress, Action: custom.Action{Kind: custom.LiveReload}}
	}
}

func (l *Layout) handleRelease(code keys.OsCode) {
	if idx := l.findPendingIndex(code); idx >= 0 {
		pend := l.pending[idx]
		l.pending = append(l.pending[:idx], l.pending[idx+1:]...)
		l.resolveTapHold(pend, true)
		return
	}
	entry, ok := l.heldSrc[code]
	if !ok {
		return
	}
	delete(l.heldSrc, code)
	switch entry.kind {
	case KindSimple:
		for _, c := range entry.codes {
			l.removeHeld(c)
		}
	case KindLayerMomentary:
		l.popLayerMomentary(entry.layer)
	case KindMouse:
		l.pendingEvent = custom.Event{Edge: custom.OnRelease, Action: custom.Action{Kind: custom.Mouse, Button: entry.button}}
	}
}

func (l *Layout) findPendingIndex(code keys.OsCode) int {
	for i, p := range l.pending {
		if p.col == code {
			return i
		}
	}
	return -1
}

// resolveTapHold commits a pending tap-hold to one side. tapped is true
// when the physical key released before its timeout (spec.md scenario 2);
// false when the timeout elapsed first (Tick's caller).
func (l *Layout) resolveTapHold(pend *pendingTapHold, tapped bool) {
	if tapped {
		l.pushHeld(pend.binding.TapKey)
		// The physical key has already released by the time a tap
		// resolves, so there is nothing left to hang a matching Release
		// event off of. The Event Processor only ever samples held state
		// via KeyCodes() after a Tick() call, so the tap key must survive
		// one full Tick (to be observed held) before being released on the
		// next (to be observed released) — scheduling the release any
		// sooner collapses press_key/release_key into nothing, any later
		// delays the release an extra tick.
		l.tapReleases = append(l.tapReleases, scheduledRelease{code: pend.binding.TapKey, ticksLeft: 2})
	} else {
		l.pushHeld(pend.binding.HoldKey)
		l.heldSrc[pend.col] = heldEntry{kind: KindSimple, codes: []keys.KeyCode{pend.binding.HoldKey}}
	}
	// Any edges that queued up behind this decision must not start
	// replaying until the tick after this one: replaying immediately would
	// let a queued Press and Release both land on the same tick the tap
	// key itself first becomes observable, scrambling press(z); release(z);
	// press(x); release(x) into press(z); press(x); release(z); release(x).
	if len(l.queue) > 0 {
		l.queueFreeze = 1
	}
}

// drainOneQueued replays at most one queued physical edge, in arrival
// order, per Tick call — never more than one. Replaying the whole queue
// synchronously (within a single Event call) would let a queued Press and
// its matching Release both land before the Event Processor's next
// KeyCodes() sampling, collapsing a press_key/release_key pair into
// nothing observable; draining one edge per Tick gives each its own
// post-Tick sampling instead. Stops immediately if the replayed edge opens
// a new pending tap-hold decision.
func (l *Layout) drainOneQueued() {
	if len(l.pending) > 0 || len(l.queue) == 0 {
		return
	}
	ev := l.queue[0]
	l.queue = l.queue[1:]
	l.applyEvent(ev.value, ev.code)
}

func (l *Layout) toggleLayer(name string) {
	if l.toggled[name] {
		l.toggled[name] = false
		l.popLayerMomentary(name)
		return
	}
	l.toggled[name] = true
	l.stack = append(l.stack, name)
}

func (l *Layout) popLayerMomentary(name string) {
	for i := len(l.stack) - 1; i >= 1; i-- { // never pop the base layer at index 0
		if l.stack[i] == name {
			l.stack = append(l.stack[:i], l.stack[i+1:]...)
			return
		}
	}
}

func (l *Layout) startMacro(steps []custom.MacroStep) {
	if len(steps) == 0 {
		return
	}
	m := &macroRunner{steps: steps}
	l.macros = append(l.macros, m)
	l.advanceMacro(m)
}

func (l *Layout) advanceMacro(m *macroRunner) {
	step := m.steps[m.idx]
	if step.Press {
		l.pushHeld(step.Code)
	} else {
		l.removeHeld(step.Code)
	}
	m.idx++
	m.wait = step.Delay
}

func (l *Layout) tickMacros() {
	if len(l.macros) == 0 {
		return
	}
	kept := l.macros[:0]
	for _, m := range l.macros {
		if m.wait > 0 {
			m.wait--
			kept = append(kept, m)
			continue
		}
		if m.idx < len(m.steps) {
			l.advanceMacro(m)
		}
		if m.idx < len(m.steps) {
			kept = append(kept, m)
		}
	}
	l.macros = kept
}

// Tick implements Interpreter.Tick.
func (l *Layout) Tick() custom.Event {
	var timedOut []*pendingTapHold
	kept := l.pending[:0]
	for _, p := range l.pending {
		p.remainingMs--
		if p.remainingMs <= 0 {
			timedOut = append(timedOut, p)
		} else {
			kept = append(kept, p)
		}
	}
	l.pending = kept
	for _, p := range timedOut {
		l.resolveTapHold(p, false)
	}
	if l.queueFreeze > 0 {
		l.queueFreeze--
	} else {
		l.drainOneQueued()
	}

	if len(l.tapReleases) > 0 {
		keptReleases := l.tapReleases[:0]
		for _, sr := range l.tapReleases {
			sr.ticksLeft--
			if sr.ticksLeft <= 0 {
				l.removeHeld(sr.code)
			} else {
				keptReleases = append(keptReleases, sr)
			}
		}
		l.tapReleases = keptReleases
	}

	l.tickMacros()

	// spec.md §9's open question: an interpreter tick produces at most
	// one custom event. If more than one source above set pendingEvent
	// in the same millisecond, only the last write wins and the rest are
	// silently dropped — this preserves kanata.rs's stated behavior
	// rather than inventing a queue.
	evt := l.pendingEvent
	l.pendingEvent = custom.NoEvent
	return evt
}

// KeyCodes implements Interpreter.KeyCodes.
func (l *Layout) KeyCodes() []keys.KeyCode {
	out := make([]keys.KeyCode, len(l.held))
	copy(out, l.held)
	return out
}

func (l *Layout) pushHeld(k keys.KeyCode) {
	l.held = append(l.held, k)
}

func (l *Layout) removeHeld(k keys.KeyCode) {
	for i, h := range l.held {
		if h == k {
			l.held = append(l.held[:i], l.held[i+1:]...)
			return
		}
	}
}
