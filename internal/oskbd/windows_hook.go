//go:build windows

package oskbd

import (
	"fmt"
	"sync"
	"syscall"
	"unsafe"

	"github.com/miken90dev/layerkeyd/internal/keys"
	"github.com/miken90dev/layerkeyd/internal/mappedkeys"
)

const (
	whKeyboardLL  = 13
	wmKeyDown     = 0x0100
	wmKeyUp       = 0x0101
	wmSysKeyDown  = 0x0104
	wmSysKeyUp    = 0x0105
	llkhfInjected = 0x10
	llkhfUp       = 0x80
)

// injectedKeyMarker tags extra-info on events HookInputSource itself
// synthesizes downstream (via SendInputOutputDriver), so the hook can skip
// re-processing its own output — the same self-recognition the teacher's
// KeyboardHook.hookCallback performs with its own InjectedKeyMarker.
const injectedKeyMarker = uintptr(0x4c4b4559) // "LKEY"

type kbdllhookstruct struct {
	VkCode      uint32
	ScanCode    uint32
	Flags       uint32
	Time        uint32
	DwExtraInfo uintptr
}

var (
	user32                  = syscall.NewLazyDLL("user32.dll")
	kernel32                = syscall.NewLazyDLL("kernel32.dll")
	procSetWindowsHookEx    = user32.NewProc("SetWindowsHookExW")
	procUnhookWindowsHookEx = user32.NewProc("UnhookWindowsHookEx")
	procCallNextHookEx      = user32.NewProc("CallNextHookEx")
	procGetModuleHandle     = kernel32.NewProc("GetModuleHandleW")
	procGetMessage          = user32.NewProc("GetMessageW")
)

// HookInputSource is the Windows hook-style InputSource, built on a
// WH_KEYBOARD_LL global hook, grounded directly on the teacher's
// windows-wails KeyboardHook. Unlike the teacher's single-purpose hook
// (tangled with IME format-hotkey/toggle logic), this one only does one
// thing: translate hook callbacks into keys.KeyEvent, including
// synthesizing a Repeat edge for a WM_KEYDOWN on an already-down key,
// since WH_KEYBOARD_LL carries no repeat bit of its own (unlike the
// legacy WH_KEYBOARD hook's lParam bit 30).
type HookInputSource struct {
	filter *mappedkeys.Filter
	out    OutputDriver

	mu       sync.Mutex
	pressed  map[uint32]bool
	hookID   uintptr
	hookProc uintptr
	ch       chan<- keys.KeyEvent
	fatalErr error
}

// NewHookInputSource constructs a HookInputSource. filter and out implement
// spec.md §4.6's mapped-keys passthrough: any code the filter reports
// unmapped is written directly to out rather than sent to the channel.
func NewHookInputSource(filter *mappedkeys.Filter, out OutputDriver) *HookInputSource {
	return &HookInputSource{filter: filter, out: out, pressed: make(map[uint32]bool)}
}

// Run implements InputSource.Run. It installs the hook and pumps the
// message loop the hook requires, blocking until a fatal error occurs.
func (s *HookInputSource) Run(ch chan<- keys.KeyEvent) error {
	s.ch = ch
	s.hookProc = syscall.NewCallback(s.hookCallback)

	hMod, _, _ := procGetModuleHandle.Call(0)
	hookID, _, err := procSetWindowsHookEx.Call(whKeyboardLL, s.hookProc, hMod, 0)
	if hookID == 0 {
		return fmt.Errorf("SetWindowsHookExW: %w", err)
	}
	s.hookID = hookID
	defer procUnhookWindowsHookEx.Call(s.hookID)

	var msg [48]byte // MSG struct, opaque to us beyond GetMessage's pumping side effect
	for {
		ret, _, _ := procGetMessage.Call(uintptr(unsafe.Pointer(&msg[0])), 0, 0, 0)
		if int32(ret) <= 0 {
			return fmt.Errorf("GetMessageW returned %d, message loop ended", int32(ret))
		}
		s.mu.Lock()
		fatal := s.fatalErr
		s.mu.Unlock()
		if fatal != nil {
			return fatal
		}
	}
}

func (s *HookInputSource) hookCallback(nCode int, wParam uintptr, lParam uintptr) uintptr {
	if nCode >= 0 {
		hookStruct := (*kbdllhookstruct)(unsafe.Pointer(lParam))
		if hookStruct.DwExtraInfo != injectedKeyMarker && hookStruct.Flags&llkhfInjected == 0 {
			s.dispatch(wParam, hookStruct)
		}
	}
	ret, _, _ := procCallNextHookEx.Call(s.hookID, uintptr(nCode), wParam, lParam)
	return ret
}

func (s *HookInputSource) dispatch(wParam uintptr, hookStruct *kbdllhookstruct) {
	code := keys.OsCode(hookStruct.VkCode)
	if !code.Valid() {
		return
	}

	var value keys.KeyValue
	switch wParam {
	case wmKeyDown, wmSysKeyDown:
		s.mu.Lock()
		alreadyDown := s.pressed[hookStruct.VkCode]
		s.pressed[hookStruct.VkCode] = true
		s.mu.Unlock()
		if alreadyDown {
			value = keys.Repeat
		} else {
			value = keys.Press
		}
	case wmKeyUp, wmSysKeyUp:
		s.mu.Lock()
		delete(s.pressed, hookStruct.VkCode)
		s.mu.Unlock()
		value = keys.Release
	default:
		return
	}

	if !s.filter.Mapped(code) {
		if err := s.out.WriteKey(code, value); err != nil {
			s.mu.Lock()
			s.fatalErr = fmt.Errorf("windows hook passthrough write: %w", err)
			s.mu.Unlock()
		}
		return
	}

	select {
	case s.ch <- keys.KeyEvent{Code: code, Value: value}:
	default:
		// As with the Linux backends, a full channel is unrecoverable: the
		// hook callback must return promptly regardless, so the fatal
		// condition is recorded and surfaced back to Run's message pump
		// rather than blocking inside the OS callback.
		s.mu.Lock()
		s.fatalErr = fmt.Errorf("windows hook: event channel full, cannot forward %v without desynchronizing state", code)
		s.mu.Unlock()
	}
}

var _ InputSource = (*HookInputSource)(nil)
