package ep

import (
	"time"

	"github.com/miken90dev/layerkeyd/internal/custom"
	"github.com/miken90dev/layerkeyd/internal/keys"
)

// fakeInterpreter is a fully scriptable Interpreter double, per spec.md
// §9's design note that EP's own tests should exercise a simple fake
// rather than the real Layout — these tests are about the loop's dispatch,
// diff-ordering, repeat-resolution and reload mechanics, not tap-hold or
// layer semantics.
type fakeInterpreter struct {
	events []keys.KeyEvent

	// held is returned by the next call to KeyCodes(); tests mutate it
	// directly between tickOnce() calls to script what the interpreter
	// would have decided during that millisecond.
	held []keys.KeyCode

	// tickEvents is drained one per Tick() call; once empty, Tick returns
	// custom.NoEvent.
	tickEvents []custom.Event
	tickCount  int
}

func (f *fakeInterpreter) Event(value keys.KeyValue, code keys.OsCode) {
	f.events = append(f.events, keys.KeyEvent{Code: code, Value: value})
}

func (f *fakeInterpreter) Tick() custom.Event {
	f.tickCount++
	if len(f.tickEvents) == 0 {
		return custom.NoEvent
	}
	evt := f.tickEvents[0]
	f.tickEvents = f.tickEvents[1:]
	return evt
}

func (f *fakeInterpreter) KeyCodes() []keys.KeyCode {
	out := make([]keys.KeyCode, len(f.held))
	copy(out, f.held)
	return out
}

// fakeClock never actually sleeps, so warm-up's 500-iteration pacing and
// any tick catch-up loop runs at test speed. Now() advances by 1ms each
// call so driveTicks' elapsed-time math still exercises its real branch
// instead of always reporting zero elapsed time.
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(0, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func (c *fakeClock) Sleep(d time.Duration) {}
