package ep

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/miken90dev/layerkeyd/internal/custom"
	"github.com/miken90dev/layerkeyd/internal/keys"
	"github.com/miken90dev/layerkeyd/internal/mappedkeys"
	"github.com/miken90dev/layerkeyd/internal/oskbd"
)

func newTestProcessor(fi *fakeInterpreter) (*Processor, *oskbd.FakeOutputDriver) {
	out := oskbd.NewFakeOutputDriver()
	p := &Processor{
		log:              testLogger(),
		interp:           fi,
		out:              out,
		filter:           mappedkeys.New(),
		cfgPath:          "",
		clock:            newFakeClock(),
		WarmupIterations: DefaultWarmupIterations,
	}
	return p, out
}

// Scenario 1 (spec.md §8): a simple remap's Press/Release round-trip emits
// exactly one press_key then one release_key, in that order.
func TestSimpleRemapDiffOrdering(t *testing.T) {
	fi := &fakeInterpreter{}
	p, out := newTestProcessor(fi)

	if err := p.dispatch(keys.KeyEvent{Value: keys.Press, Code: 30}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	fi.held = []keys.KeyCode{keys.KeyCode(30)}
	if err := p.tickOnce(); err != nil {
		t.Fatalf("tickOnce: %v", err)
	}

	if err := p.dispatch(keys.KeyEvent{Value: keys.Release, Code: 30}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	fi.held = nil
	if err := p.tickOnce(); err != nil {
		t.Fatalf("tickOnce: %v", err)
	}

	calls := out.Snapshot()
	if len(calls) != 2 || calls[0].Op != "press" || calls[1].Op != "release" {
		t.Fatalf("expected [press, release], got %+v", calls)
	}
	if calls[0].Code != 30 || calls[1].Code != 30 {
		t.Fatalf("expected both calls on code 30, got %+v", calls)
	}
	if len(fi.events) != 2 || fi.events[0].Value != keys.Press || fi.events[1].Value != keys.Release {
		t.Fatalf("expected the interpreter to observe Press then Release, got %+v", fi.events)
	}
}

// Scenario 2 (spec.md §8): within one tick, a release leaving the held set
// and a press entering it must emit release before press, regardless of
// the chord's internal resolution.
func TestDiffReleaseBeforePressWithinOneTick(t *testing.T) {
	fi := &fakeInterpreter{held: []keys.KeyCode{keys.KeyCode(44)}}
	p, out := newTestProcessor(fi)
	if err := p.tickOnce(); err != nil {
		t.Fatalf("priming tickOnce: %v", err)
	}
	out.Calls = nil // discard the priming press

	fi.held = []keys.KeyCode{keys.KeyCode(31)}
	if err := p.tickOnce(); err != nil {
		t.Fatalf("tickOnce: %v", err)
	}

	calls := out.Snapshot()
	if len(calls) != 2 || calls[0].Op != "release" || calls[1].Op != "press" {
		t.Fatalf("expected [release, press], got %+v", calls)
	}
	if calls[0].Code != 44 || calls[1].Code != 31 {
		t.Fatalf("expected release(44) then press(31), got %+v", calls)
	}
}

// Scenario 3 (spec.md §8): a Repeat resolves to the first candidate output
// OsCode currently held, and drops silently if none is held.
func TestRepeatResolutionFidelity(t *testing.T) {
	fi := &fakeInterpreter{held: []keys.KeyCode{keys.KeyCode(97)}}
	p, out := newTestProcessor(fi)
	p.keyOutputs[30] = []keys.OsCode{99, 97}

	if err := p.dispatch(keys.KeyEvent{Value: keys.Repeat, Code: 30}); err != nil {
		t.Fatalf("dispatch repeat: %v", err)
	}

	calls := out.Snapshot()
	if len(calls) != 1 || calls[0].Op != "write" || calls[0].Code != 97 || calls[0].Value != keys.Repeat {
		t.Fatalf("expected a single write(97, Repeat), got %+v", calls)
	}
}

func TestRepeatResolutionDropsWhenNothingHeld(t *testing.T) {
	fi := &fakeInterpreter{}
	p, out := newTestProcessor(fi)
	p.keyOutputs[30] = []keys.OsCode{99}

	if err := p.dispatch(keys.KeyEvent{Value: keys.Repeat, Code: 30}); err != nil {
		t.Fatalf("dispatch repeat: %v", err)
	}
	if calls := out.Snapshot(); len(calls) != 0 {
		t.Fatalf("expected no emission, got %+v", calls)
	}
}

func TestRepeatResolutionDropsWhenNoCandidates(t *testing.T) {
	fi := &fakeInterpreter{held: []keys.KeyCode{keys.KeyCode(5)}}
	p, out := newTestProcessor(fi)

	if err := p.dispatch(keys.KeyEvent{Value: keys.Repeat, Code: 200}); err != nil {
		t.Fatalf("dispatch repeat: %v", err)
	}
	if calls := out.Snapshot(); len(calls) != 0 {
		t.Fatalf("expected no emission for an unmapped physical code, got %+v", calls)
	}
}

// Unicode and Mouse custom events fire on the edge spec.md §4.4 step 2
// names, and nothing else (LiveReload is covered by the reload tests below).
func TestCustomEventDispatch(t *testing.T) {
	fi := &fakeInterpreter{tickEvents: []custom.Event{
		{Edge: custom.OnPress, Action: custom.Action{Kind: custom.Unicode, Rune: 'x'}},
	}}
	p, out := newTestProcessor(fi)
	if err := p.tickOnce(); err != nil {
		t.Fatalf("tickOnce: %v", err)
	}
	calls := out.Snapshot()
	if len(calls) != 1 || calls[0].Op != "unicode" || calls[0].Rune != 'x' {
		t.Fatalf("expected a single unicode('x') emission, got %+v", calls)
	}

	fi.tickEvents = []custom.Event{
		{Edge: custom.OnPress, Action: custom.Action{Kind: custom.Mouse, Button: custom.MouseRight}},
	}
	if err := p.tickOnce(); err != nil {
		t.Fatalf("tickOnce: %v", err)
	}
	fi.tickEvents = []custom.Event{
		{Edge: custom.OnRelease, Action: custom.Action{Kind: custom.Mouse, Button: custom.MouseRight}},
	}
	if err := p.tickOnce(); err != nil {
		t.Fatalf("tickOnce: %v", err)
	}
	calls = out.Snapshot()
	if len(calls) != 3 || calls[1].Op != "click" || calls[2].Op != "release_btn" {
		t.Fatalf("expected click then release_btn for the mouse button, got %+v", calls)
	}
}

// Scenario 4 (spec.md §8): reload is deferred while any key is held (on
// either side of the transition) and only applied the instant both
// prev_keys and cur_keys are empty.
func TestQuiescentLiveReload(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.toml")
	const doc = `
[device]
path = "/dev/input/event0"
backend = "evdev"

[[layer]]
name = "base"
keys = { a = "z" }
`
	if err := os.WriteFile(cfgPath, []byte(doc), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	fi := &fakeInterpreter{held: []keys.KeyCode{keys.KeyCode(30)}}
	p, _ := newTestProcessor(fi)
	p.cfgPath = cfgPath

	// A LiveReload Press fires while a key is still held: must not reload yet.
	fi.tickEvents = []custom.Event{{Edge: custom.OnPress, Action: custom.Action{Kind: custom.LiveReload}}}
	if err := p.tickOnce(); err != nil {
		t.Fatalf("tickOnce: %v", err)
	}
	if _, stillFake := p.interp.(*fakeInterpreter); !stillFake {
		t.Fatal("reload must not apply while a key is held")
	}
	if !p.reloadRequested {
		t.Fatal("expected reloadRequested to remain set while quiescence has not been reached")
	}

	// The held key releases: prev_keys (still [30] going into this tick) is
	// not yet empty, so reload still must not apply on this tick either.
	fi.held = nil
	if err := p.tickOnce(); err != nil {
		t.Fatalf("tickOnce: %v", err)
	}
	if _, stillFake := p.interp.(*fakeInterpreter); !stillFake {
		t.Fatal("reload must not apply on the very tick the last held key releases")
	}

	// Only now, with both the prior and current key sets empty, does reload
	// apply.
	if err := p.tickOnce(); err != nil {
		t.Fatalf("tickOnce: %v", err)
	}
	if _, stillFake := p.interp.(*fakeInterpreter); stillFake {
		t.Fatal("expected the interpreter to be replaced once both key sets were empty")
	}
	if p.reloadRequested {
		t.Fatal("expected reloadRequested to clear once applied")
	}
}

func TestQuiescentLiveReloadFailureKeepsCurrentSnapshot(t *testing.T) {
	fi := &fakeInterpreter{}
	p, _ := newTestProcessor(fi)
	p.cfgPath = filepath.Join(t.TempDir(), "does-not-exist.toml")

	fi.tickEvents = []custom.Event{{Edge: custom.OnPress, Action: custom.Action{Kind: custom.LiveReload}}}
	if err := p.tickOnce(); err != nil {
		t.Fatalf("tickOnce: %v", err)
	}
	if _, stillFake := p.interp.(*fakeInterpreter); !stillFake {
		t.Fatal("a failed reload must leave the current interpreter installed")
	}
	if p.reloadRequested {
		t.Fatal("a failed reload must still clear the flag, to avoid a retry storm")
	}
}

// Scenario 6 (spec.md §8): during warm-up, Press is discarded and Release
// is forwarded to OD unchanged.
func TestWarmUpReleaseOnlyPassthrough(t *testing.T) {
	fi := &fakeInterpreter{}
	p, out := newTestProcessor(fi)
	p.WarmupIterations = 4

	ch := make(chan keys.KeyEvent, 2)
	ch <- keys.KeyEvent{Value: keys.Press, Code: 28}
	ch <- keys.KeyEvent{Value: keys.Release, Code: 28}

	if err := p.warmUp(ch); err != nil {
		t.Fatalf("warmUp: %v", err)
	}

	calls := out.Snapshot()
	if len(calls) != 1 || calls[0].Op != "release" || calls[0].Code != 28 {
		t.Fatalf("expected exactly release(28) and no press, got %+v", calls)
	}
	if len(fi.events) != 0 {
		t.Fatalf("expected warm-up to bypass the interpreter entirely, got %+v", fi.events)
	}
}

func TestWarmUpDisconnectedChannelIsFatal(t *testing.T) {
	fi := &fakeInterpreter{}
	p, _ := newTestProcessor(fi)
	p.WarmupIterations = 10

	ch := make(chan keys.KeyEvent)
	close(ch)

	if err := p.warmUp(ch); err == nil {
		t.Fatal("expected an error for a channel closed during warm-up")
	}
}

func TestRunDisconnectedChannelIsFatal(t *testing.T) {
	fi := &fakeInterpreter{}
	p, _ := newTestProcessor(fi)
	p.WarmupIterations = 1

	ch := make(chan keys.KeyEvent)
	close(ch)

	if err := p.Run(ch); err == nil {
		t.Fatal("expected Run to return an error for a disconnected channel")
	}
}

func TestFatalOutputDriverErrorPropagates(t *testing.T) {
	fi := &fakeInterpreter{held: []keys.KeyCode{keys.KeyCode(30)}}
	p, out := newTestProcessor(fi)
	out.FailOn = "press"
	out.Err = errBoom

	if err := p.tickOnce(); err == nil {
		t.Fatal("expected a press emission failure to propagate as fatal")
	}
}
