package oskbd

import (
	"sync"

	"github.com/miken90dev/layerkeyd/internal/custom"
	"github.com/miken90dev/layerkeyd/internal/keys"
)

// Call records a single OutputDriver invocation, in emission order, for
// assertions in Event Processor tests (spec.md §8's determinism/ordering
// properties are meaningless without an exact, ordered record of what was
// emitted).
type Call struct {
	Op     string // "press", "release", "write", "click", "release_btn", "unicode", "raw"
	Code   keys.OsCode
	Value  keys.KeyValue
	Button custom.MouseButton
	Rune   rune
}

// FakeOutputDriver is a recording OutputDriver double, styled on the
// teacher's and pack's preference for plain recording structs over a
// mocking library (there is no testify/gomock anywhere in the retrieval
// pack's Go code).
type FakeOutputDriver struct {
	mu    sync.Mutex
	Calls []Call

	// FailOn, if set, causes the named Op to return Err on its next call
	// and then clears itself — used to exercise spec.md §7's "emission
	// failure is fatal" path.
	FailOn string
	Err    error
}

func NewFakeOutputDriver() *FakeOutputDriver {
	return &FakeOutputDriver{}
}

func (f *FakeOutputDriver) record(c Call) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailOn == c.Op {
		f.FailOn = ""
		return f.Err
	}
	f.Calls = append(f.Calls, c)
	return nil
}

func (f *FakeOutputDriver) PressKey(code keys.OsCode) error {
	return f.record(Call{Op: "press", Code: code})
}

func (f *FakeOutputDriver) ReleaseKey(code keys.OsCode) error {
	return f.record(Call{Op: "release", Code: code})
}

func (f *FakeOutputDriver) WriteKey(code keys.OsCode, value keys.KeyValue) error {
	return f.record(Call{Op: "write", Code: code, Value: value})
}

func (f *FakeOutputDriver) ClickButton(b custom.MouseButton) error {
	return f.record(Call{Op: "click", Button: b})
}

func (f *FakeOutputDriver) ReleaseButton(b custom.MouseButton) error {
	return f.record(Call{Op: "release_btn", Button: b})
}

func (f *FakeOutputDriver) SendUnicode(r rune) error {
	return f.record(Call{Op: "unicode", Rune: r})
}

func (f *FakeOutputDriver) Write(ev RawEvent) error {
	return f.record(Call{Op: "raw"})
}

func (f *FakeOutputDriver) Close() error { return nil }

// Snapshot returns a copy of the calls recorded so far.
func (f *FakeOutputDriver) Snapshot() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.Calls))
	copy(out, f.Calls)
	return out
}
