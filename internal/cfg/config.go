// Package cfg implements the Configuration Loader described in spec.md §3
// and §6: it compiles a TOML document into an immutable ConfigSnapshot
// triple {MappedKeys, KeyOutputs, Keymap} consumed by the Event Processor.
package cfg

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/miken90dev/layerkeyd/internal/interp"
	"github.com/miken90dev/layerkeyd/internal/keys"
	"github.com/miken90dev/layerkeyd/internal/mappedkeys"
)

// rawConfig is the on-disk TOML shape.
type rawConfig struct {
	Device rawDevice   `toml:"device"`
	Alias  []rawAlias  `toml:"alias"`
	Layer  []rawLayer  `toml:"layer"`
}

type rawDevice struct {
	Path    string `toml:"path"`    // e.g. /dev/input/event4; required on Linux device-style
	Backend string `toml:"backend"` // "evdev" (default), "hook", or "xtest"
}

type rawAlias struct {
	Name      string   `toml:"name"`
	Kind      string   `toml:"kind"` // simple, taphold, macro, unicode, mouse, livereload
	Key       string   `toml:"key"`
	Tap       string   `toml:"tap"`
	Hold      string   `toml:"hold"`
	TimeoutMs int      `toml:"timeout_ms"`
	Macro     []rawMacroStep `toml:"macro"`
	Rune      string   `toml:"rune"`
	Button    string   `toml:"button"` // left, right, middle
}

type rawMacroStep struct {
	Key   string `toml:"key"`
	Press bool   `toml:"press"`
	Delay int    `toml:"delay"`
}

// rawLayer's Keys maps a physical key name (see names.go) to a binding
// expression string, rather than a fixed 256-element positional array —
// far more ergonomic to hand-author, and every column not mentioned is
// implicitly Transparent (non-base layers) or None (the base layer).
type rawLayer struct {
	Name string            `toml:"name"`
	Keys map[string]string `toml:"keys"`
}

// Default returns a minimal built-in configuration: a single base layer
// with every column unbound and the evdev backend, mirroring the teacher's
// own Default() shape in config/config.go. It sets no device path, so
// Compile rejects it as is; nothing in layerkeyd falls back to it when a
// config file is missing.
func Default() *rawConfig {
	return &rawConfig{
		Device: rawDevice{Backend: "evdev"},
		Layer:  []rawLayer{{Name: "base"}},
	}
}

// ConfigPath returns the XDG-compliant default config path, identical in
// shape to the teacher's ConfigPath().
func ConfigPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "layerkeyd", "config.toml")
}

// Snapshot is the compiled, immutable triple the Event Processor consumes
// (spec.md §3's ConfigSnapshot), plus the device selection spec.md §6
// describes as a required, platform-facing configuration key that the core
// itself never interprets.
type Snapshot struct {
	MappedKeys [keys.MaxOsCode]bool
	KeyOutputs [keys.MaxOsCode][]keys.OsCode
	Keymap     *interp.Layout

	DevicePath string // required on the evdev backend
	Backend    string // "evdev", "hook", or "xtest"
}

// Load reads path, decodes it, and compiles it into a Snapshot. An absent
// device path is a fatal configuration error per spec.md §6 ("A required
// configuration key names the physical input device on device-style
// platforms; absence is a fatal configuration error").
func Load(path string) (*Snapshot, error) {
	var raw rawConfig
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	return Compile(&raw)
}

// Save writes cfg to path using the same toml.Encoder shape the teacher's
// Save() used, creating the parent directory if needed.
func Save(path string, raw *rawConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create config %s: %w", path, err)
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(raw)
}
