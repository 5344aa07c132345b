package interp

import (
	"reflect"
	"testing"

	"github.com/miken90dev/layerkeyd/internal/custom"
	"github.com/miken90dev/layerkeyd/internal/keys"
)

const (
	colA    keys.OsCode = 30
	colX    keys.OsCode = 31
	colFn   keys.OsCode = 44
	colUni  keys.OsCode = 50
	colMse  keys.OsCode = 51
	colLyr  keys.OsCode = 52
	colMac  keys.OsCode = 53
	colTog  keys.OsCode = 54
	logicalZ keys.KeyCode = 44
	logicalX keys.KeyCode = 31
)

func newTestLayout() *Layout {
	base := NewBaseLayer("base")
	base.Set(colA, Simple(5))
	base.Set(colX, Simple(logicalX))
	base.Set(colFn, TapHold(logicalZ, 29 /* left ctrl */, 50))
	base.Set(colUni, UnicodeBinding('é'))
	base.Set(colMse, MouseBinding(custom.MouseLeft))
	base.Set(colMac, MacroBinding([]custom.MacroStep{
		{Code: 10, Press: true},
		{Code: 10, Press: false, Delay: 2},
		{Code: 11, Press: true},
		{Code: 11, Press: false},
	}))
	base.Set(colTog, LayerToggle("nav"))

	nav := NewLayer("nav")
	nav.Set(colX, Simple(99))

	layers := map[string]*Layer{"base": base, "nav": nav}
	return NewLayout(layers, "base")
}

func heldEquals(t *testing.T, l *Layout, want []keys.KeyCode) {
	t.Helper()
	got := l.KeyCodes()
	if got == nil {
		got = []keys.KeyCode{}
	}
	if want == nil {
		want = []keys.KeyCode{}
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("KeyCodes() = %v, want %v", got, want)
	}
}

func TestSimpleRemap(t *testing.T) {
	l := newTestLayout()
	l.Event(keys.Press, colA)
	heldEquals(t, l, []keys.KeyCode{5})
	l.Event(keys.Release, colA)
	heldEquals(t, l, nil)
}

func TestTapHoldResolvesTapOnEarlyRelease(t *testing.T) {
	l := newTestLayout()

	// spec.md scenario 2: Press(44), Press(31), Release(31), Release(44)
	// all inside the 50ms timeout must yield press(z); release(z); press(x);
	// release(x) as four distinct tick-boundary samplings, since the Event
	// Processor only ever observes held state via KeyCodes() right after a
	// Tick() call.
	l.Event(keys.Press, colFn)
	l.Event(keys.Press, colX)
	l.Event(keys.Release, colX)
	// Releasing colFn decides the tap-hold immediately: z becomes held, but
	// the queued colX press/release behind it is frozen for one tick so it
	// doesn't land on the same sampling as z's own arrival.
	l.Event(keys.Release, colFn)
	heldEquals(t, l, []keys.KeyCode{logicalZ})

	l.Tick() // z survives this tick untouched: press(z) is observable here
	heldEquals(t, l, []keys.KeyCode{logicalZ})

	l.Tick() // z's scheduled release and x's queued press land together
	heldEquals(t, l, []keys.KeyCode{logicalX})

	l.Tick() // x's queued release lands
	heldEquals(t, l, nil)
}

func TestTapHoldResolvesHoldOnTimeout(t *testing.T) {
	l := newTestLayout()
	l.Event(keys.Press, colFn)

	for i := 0; i < 49; i++ {
		l.Tick()
		heldEquals(t, l, nil)
	}
	l.Tick() // 50th tick: timeout elapses
	heldEquals(t, l, []keys.KeyCode{29})

	l.Event(keys.Release, colFn)
	heldEquals(t, l, nil)
}

func TestLayerToggleAndFallthrough(t *testing.T) {
	l := newTestLayout()

	l.Event(keys.Press, colX)
	heldEquals(t, l, []keys.KeyCode{logicalX})
	l.Event(keys.Release, colX)
	heldEquals(t, l, nil)

	l.Event(keys.Press, colTog)
	l.Event(keys.Release, colTog)
	heldEquals(t, l, nil)

	l.Event(keys.Press, colX)
	heldEquals(t, l, []keys.KeyCode{99})
	l.Event(keys.Release, colX)
	heldEquals(t, l, nil)

	// colA is Transparent on nav, falls through to base's Simple(5).
	l.Event(keys.Press, colA)
	heldEquals(t, l, []keys.KeyCode{5})
	l.Event(keys.Release, colA)

	l.Event(keys.Press, colTog)
	l.Event(keys.Release, colTog)
	l.Event(keys.Press, colX)
	heldEquals(t, l, []keys.KeyCode{logicalX})
}

func TestUnicodeAndMouseEvents(t *testing.T) {
	l := newTestLayout()

	l.Event(keys.Press, colUni)
	evt := l.Tick()
	if evt.Edge != custom.OnPress || evt.Action.Kind != custom.Unicode || evt.Action.Rune != 'é' {
		t.Fatalf("unexpected unicode event: %+v", evt)
	}
	l.Event(keys.Release, colUni)
	if evt := l.Tick(); !reflect.DeepEqual(evt, custom.NoEvent) {
		t.Fatalf("unicode release should be a no-op, got %+v", evt)
	}

	l.Event(keys.Press, colMse)
	evt = l.Tick()
	if evt.Edge != custom.OnPress || evt.Action.Kind != custom.Mouse || evt.Action.Button != custom.MouseLeft {
		t.Fatalf("unexpected mouse press event: %+v", evt)
	}
	l.Event(keys.Release, colMse)
	evt = l.Tick()
	if evt.Edge != custom.OnRelease || evt.Action.Kind != custom.Mouse || evt.Action.Button != custom.MouseLeft {
		t.Fatalf("unexpected mouse release event: %+v", evt)
	}
}

func TestMacroPlayback(t *testing.T) {
	l := newTestLayout()

	l.Event(keys.Press, colMac)
	l.Event(keys.Release, colMac)

	// Step 0 fires synchronously on press: key 10 down.
	heldEquals(t, l, []keys.KeyCode{10})

	l.Tick() // step 0's Delay (0) already elapsed: step 1 runs, key 10 up
	heldEquals(t, l, nil)
	l.Tick() // step 1's Delay: 2, waiting
	heldEquals(t, l, nil)
	l.Tick() // still waiting
	heldEquals(t, l, nil)
	l.Tick() // delay elapsed: step 2 runs, key 11 down
	heldEquals(t, l, []keys.KeyCode{11})
	l.Tick() // step 3 runs immediately (Delay 0): key 11 up
	heldEquals(t, l, nil)
}

func TestQueuedEventsDuringTapHoldReplayInOrder(t *testing.T) {
	l := newTestLayout()

	l.Event(keys.Press, colFn)
	l.Event(keys.Press, colA)
	l.Event(keys.Press, colX)
	l.Event(keys.Release, colA)
	l.Event(keys.Release, colX)
	// Releasing colFn resolves the tap immediately; the queued colA/colX
	// press/release pairs behind it do not replay yet — only z is held.
	l.Event(keys.Release, colFn)
	heldEquals(t, l, []keys.KeyCode{logicalZ})

	l.Tick() // queue stays frozen for one tick while z is first observable
	heldEquals(t, l, []keys.KeyCode{logicalZ})

	l.Tick() // z's scheduled release lands alongside colA's queued press
	heldEquals(t, l, []keys.KeyCode{5})

	l.Tick() // colX's queued press replays next, in arrival order
	heldEquals(t, l, []keys.KeyCode{5, logicalX})

	l.Tick() // colA's queued release replays
	heldEquals(t, l, []keys.KeyCode{logicalX})

	l.Tick() // colX's queued release replays; the queue is now empty
	heldEquals(t, l, nil)
}
