// Package ep implements the Event Processor: the platform-free core loop
// described in spec.md §4.2-§4.5. It owns an Interpreter and an
// OutputDriver, drains a single input channel fed by an InputSource, and
// is the only component that ever produces a synthetic key event.
package ep

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/miken90dev/layerkeyd/internal/cfg"
	"github.com/miken90dev/layerkeyd/internal/custom"
	"github.com/miken90dev/layerkeyd/internal/interp"
	"github.com/miken90dev/layerkeyd/internal/keys"
	"github.com/miken90dev/layerkeyd/internal/mappedkeys"
	"github.com/miken90dev/layerkeyd/internal/oskbd"
)

// DefaultWarmupIterations is the fixed 500-iteration warm-up window spec.md
// §4.2 specifies. spec.md §9 flags this figure as an open question ("it is
// unclear whether this bounds all real launch scenarios"); Processor
// resolves that by keeping it a settable field rather than a constant baked
// into the loop, defaulting to the spec's own number.
const DefaultWarmupIterations = 500

// Processor is the Event Processor. The zero value is not usable;
// construct with NewProcessor.
type Processor struct {
	log *slog.Logger

	interp interp.Interpreter
	out    oskbd.OutputDriver
	filter *mappedkeys.Filter

	keyOutputs [keys.MaxOsCode][]keys.OsCode
	cfgPath    string

	prevKeys        []keys.KeyCode
	reloadRequested bool

	clock            Clock
	lastTick         time.Time
	WarmupIterations int
}

// NewProcessor builds a Processor from a compiled configuration snapshot.
// filter is the shared MappedKeys vector the Input Source consults; a live
// reload replaces its contents in place so the IS never has to be told
// about the swap.
func NewProcessor(snap *cfg.Snapshot, filter *mappedkeys.Filter, out oskbd.OutputDriver, cfgPath string, log *slog.Logger) *Processor {
	if log == nil {
		log = slog.Default()
	}
	filter.Replace(snap.MappedKeys)
	return &Processor{
		log:              log,
		interp:           snap.Keymap,
		out:              out,
		filter:           filter,
		keyOutputs:       snap.KeyOutputs,
		cfgPath:          cfgPath,
		clock:            realClock{},
		WarmupIterations: DefaultWarmupIterations,
	}
}

// Run drives the main loop until a fatal error occurs or ch is closed. It
// never returns nil; the only clean way out described anywhere in spec.md
// is process termination on a fatal condition (§4.2 step 4, §7).
func (p *Processor) Run(ch <-chan keys.KeyEvent) error {
	if err := p.warmUp(ch); err != nil {
		return err
	}
	p.lastTick = p.clock.Now()
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return fmt.Errorf("ep: input channel disconnected")
			}
			if err := p.dispatch(ev); err != nil {
				return err
			}
			if err := p.driveTicks(); err != nil {
				return err
			}
		default:
			if err := p.driveTicks(); err != nil {
				return err
			}
			p.clock.Sleep(time.Millisecond)
		}
	}
}

// warmUp implements spec.md §4.2's warm-up phase: up to WarmupIterations
// passes at 1 ms pacing during which only Release events are observed, and
// those are forwarded straight to the OutputDriver, bypassing the
// Interpreter entirely, so a key still physically held from launching the
// process gets its release delivered to the OS even though the Interpreter
// never saw a matching Press.
func (p *Processor) warmUp(ch <-chan keys.KeyEvent) error {
	n := p.WarmupIterations
	if n <= 0 {
		n = DefaultWarmupIterations
	}
	for i := 0; i < n; i++ {
		select {
		case ev, ok := <-ch:
			if !ok {
				return fmt.Errorf("ep: input channel disconnected during warm-up")
			}
			if ev.Value == keys.Release {
				if err := p.out.ReleaseKey(ev.Code); err != nil {
					return fmt.Errorf("ep: warm-up release emission: %w", err)
				}
			}
			// Press and Repeat are discarded during warm-up (spec.md §4.2).
		default:
		}
		p.clock.Sleep(time.Millisecond)
	}
	return nil
}

// dispatch implements spec.md §4.3. The Input Source has already filtered
// out unmapped codes (spec.md §4.6) — only mapped events ever reach this
// channel — so dispatch never consults the MappedKeys filter itself.
func (p *Processor) dispatch(ev keys.KeyEvent) error {
	switch ev.Value {
	case keys.Press:
		p.interp.Event(keys.Press, ev.Code)
	case keys.Release:
		p.interp.Event(keys.Release, ev.Code)
	case keys.Repeat:
		return p.resolveRepeat(ev.Code)
	}
	return nil
}

// resolveRepeat implements spec.md §4.5.
func (p *Processor) resolveRepeat(code keys.OsCode) error {
	if !code.Valid() {
		return nil
	}
	candidates := p.keyOutputs[code]
	if len(candidates) == 0 {
		return nil
	}
	held := p.interp.KeyCodes()
	for _, oc := range candidates {
		kc, ok := keys.ToKeyCode(oc)
		if !ok {
			continue
		}
		if containsKeyCode(held, kc) {
			return p.out.WriteKey(oc, keys.Repeat)
		}
	}
	return nil
}

// driveTicks implements spec.md §4.4's "elapsed_ms = floor((now -
// last_tick)/1ms)" catch-up rule: a long stall (GC pause, scheduler
// contention, a resumed-from-suspend process) replays as many 1 ms ticks as
// wall-clock time actually elapsed, rather than silently collapsing them
// into one.
func (p *Processor) driveTicks() error {
	now := p.clock.Now()
	elapsed := int(now.Sub(p.lastTick) / time.Millisecond)
	if elapsed <= 0 {
		return nil
	}
	p.lastTick = p.lastTick.Add(time.Duration(elapsed) * time.Millisecond)
	for i := 0; i < elapsed; i++ {
		if err := p.tickOnce(); err != nil {
			return err
		}
	}
	return nil
}

// tickOnce performs the seven numbered steps of spec.md §4.4 for a single
// logical millisecond.
func (p *Processor) tickOnce() error {
	evt := p.interp.Tick()
	if err := p.applyCustomEvent(evt); err != nil {
		return err
	}

	// Ordering discipline (spec.md §4.4 step 3): captured as a plain slice,
	// diffed by linear scan below. No set is ever built from it.
	curKeys := p.interp.KeyCodes()

	for _, k := range p.prevKeys {
		if containsKeyCode(curKeys, k) {
			continue
		}
		oc, ok := keys.ToOsCode(k)
		if !ok {
			continue
		}
		if err := p.out.ReleaseKey(oc); err != nil {
			return fmt.Errorf("ep: release emission: %w", err)
		}
	}
	for _, k := range curKeys {
		if containsKeyCode(p.prevKeys, k) {
			continue
		}
		oc, ok := keys.ToOsCode(k)
		if !ok {
			continue
		}
		if err := p.out.PressKey(oc); err != nil {
			return fmt.Errorf("ep: press emission: %w", err)
		}
	}

	if p.reloadRequested && len(p.prevKeys) == 0 && len(curKeys) == 0 {
		p.reload()
	}

	p.prevKeys = curKeys
	return nil
}

// applyCustomEvent is spec.md §4.4 step 2.
func (p *Processor) applyCustomEvent(evt custom.Event) error {
	if evt.Edge == custom.None {
		return nil
	}
	switch evt.Action.Kind {
	case custom.Unicode:
		if evt.Edge == custom.OnPress {
			return p.out.SendUnicode(evt.Action.Rune)
		}
	case custom.Mouse:
		switch evt.Edge {
		case custom.OnPress:
			return p.out.ClickButton(evt.Action.Button)
		case custom.OnRelease:
			return p.out.ReleaseButton(evt.Action.Button)
		}
	case custom.LiveReload:
		if evt.Edge == custom.OnPress {
			p.reloadRequested = true
		}
	case custom.Macro, custom.LayerSwitch:
		// No-op here: the interpreter's own state machine already produced
		// whatever held-key effect these variants have (spec.md §4.4 step 2,
		// "all other custom variants: no-op here (extension point)").
	}
	return nil
}

// reload implements spec.md §4.4 step 6's failure policy: a bad config at
// reload time is logged and discarded, never retried automatically,
// leaving the previous (known-good) snapshot installed.
func (p *Processor) reload() {
	snap, err := cfg.Load(p.cfgPath)
	p.reloadRequested = false
	if err != nil {
		p.log.Error("live reload failed, keeping current configuration", "path", p.cfgPath, "error", err)
		return
	}
	p.interp = snap.Keymap
	p.keyOutputs = snap.KeyOutputs
	p.filter.Replace(snap.MappedKeys)
	p.log.Info("configuration reloaded", "path", p.cfgPath)
}

func containsKeyCode(s []keys.KeyCode, k keys.KeyCode) bool {
	for _, c := range s {
		if c == k {
			return true
		}
	}
	return false
}
