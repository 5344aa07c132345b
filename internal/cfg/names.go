package cfg

import "github.com/miken90dev/layerkeyd/internal/keys"

// keyNames maps the TOML-facing key name vocabulary to OsCode, using the
// Linux evdev numbering the teacher's uinput.go/keyboard_hook.go constant
// blocks (LINUX_KEY_*, KEY_*) already established as this codebase's
// canonical code space. The table is fixed: the XTest alternate OD passes
// these OsCodes through unchanged as X11 keycodes (see
// internal/oskbd/linux_xtest.go's osCodeToX11Keycode), with no evdev-to-X11
// translation.
var keyNames = map[string]keys.OsCode{
	"esc": 1, "1": 2, "2": 3, "3": 4, "4": 5, "5": 6, "6": 7, "7": 8, "8": 9, "9": 10, "0": 11,
	"minus": 12, "equal": 13, "backspace": 14, "tab": 15,
	"q": 16, "w": 17, "e": 18, "r": 19, "t": 20, "y": 21, "u": 22, "i": 23, "o": 24, "p": 25,
	"lbracket": 26, "rbracket": 27, "enter": 28,
	"lctrl": 29,
	"a": 30, "s": 31, "d": 32, "f": 33, "g": 34, "h": 35, "j": 36, "k": 37, "l": 38,
	"semicolon": 39, "quote": 40, "grave": 41,
	"lshift": 42, "backslash": 43,
	"z": 44, "x": 45, "c": 46, "v": 47, "b": 48, "n": 49, "m": 50,
	"comma": 51, "dot": 52, "slash": 53,
	"rshift": 54, "lalt": 56, "space": 57, "capslock": 58, "caps": 58,
	"rctrl": 97, "ralt": 100,
}

// KeyNameToOsCode resolves a config key name.
func KeyNameToOsCode(name string) (keys.OsCode, bool) {
	code, ok := keyNames[name]
	return code, ok
}
