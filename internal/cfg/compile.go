package cfg

import (
	"fmt"
	"strings"

	"github.com/miken90dev/layerkeyd/internal/custom"
	"github.com/miken90dev/layerkeyd/internal/interp"
	"github.com/miken90dev/layerkeyd/internal/keys"
)

// Compile turns a decoded rawConfig into an immutable Snapshot: aliases
// resolve to interp.Binding values first, then every layer's key map
// resolves against the alias table and the plain-key-name vocabulary, and
// finally MappedKeys/KeyOutputs are derived from the compiled layers —
// mirroring spec.md §3's invariant that mapped_keys[i] is true iff some
// layer has a binding originating from OsCode i.
func Compile(raw *rawConfig) (*Snapshot, error) {
	if len(raw.Layer) == 0 {
		return nil, fmt.Errorf("config: at least one layer is required")
	}
	backend := raw.Device.Backend
	if backend == "" {
		backend = "evdev"
	}
	if backend == "evdev" && raw.Device.Path == "" {
		// spec.md §6: "A required configuration key names the physical
		// input device on device-style platforms; absence is a fatal
		// configuration error."
		return nil, fmt.Errorf("config: device.path is required for the evdev backend")
	}

	aliases, err := compileAliases(raw.Alias)
	if err != nil {
		return nil, err
	}

	layers := make(map[string]*interp.Layer, len(raw.Layer))
	base := raw.Layer[0].Name
	for i, rl := range raw.Layer {
		if rl.Name == "" {
			return nil, fmt.Errorf("config: layer %d has no name", i)
		}
		var layer *interp.Layer
		if i == 0 {
			layer = interp.NewBaseLayer(rl.Name)
		} else {
			layer = interp.NewLayer(rl.Name)
		}
		layers[rl.Name] = layer
	}
	// A second pass lets a binding expression reference a layer defined
	// later in the file (e.g. the base layer's momentary-layer key
	// referring forward to a nav layer declared afterward).
	for _, rl := range raw.Layer {
		layer := layers[rl.Name]
		for keyName, expr := range rl.Keys {
			col, ok := KeyNameToOsCode(keyName)
			if !ok {
				return nil, fmt.Errorf("config: layer %q: unknown key name %q", rl.Name, keyName)
			}
			b, err := resolveExpr(expr, aliases, layers)
			if err != nil {
				return nil, fmt.Errorf("config: layer %q, key %q: %w", rl.Name, keyName, err)
			}
			layer.Set(col, b)
		}
	}

	snap := &Snapshot{
		Keymap:     interp.NewLayout(layers, base),
		DevicePath: raw.Device.Path,
		Backend:    backend,
	}
	for _, layer := range layers {
		for col := keys.OsCode(0); int(col) < keys.MaxOsCode; col++ {
			b := layer.Bindings[col]
			if b.Kind == interp.KindTransparent || b.Kind == interp.KindNone {
				continue
			}
			snap.MappedKeys[col] = true
			snap.KeyOutputs[col] = appendOutputs(snap.KeyOutputs[col], b)
		}
	}
	return snap, nil
}

// appendOutputs records every logical OsCode a binding may produce, used
// exclusively for repeat resolution (spec.md §4.4/§4.5): key_outputs[i]
// lists every OsCode physical key i may emit across all layers.
func appendOutputs(existing []keys.OsCode, b interp.Binding) []keys.OsCode {
	add := func(kc keys.KeyCode) []keys.OsCode {
		oc, ok := keys.ToOsCode(kc)
		if !ok {
			return existing
		}
		for _, e := range existing {
			if e == oc {
				return existing
			}
		}
		return append(existing, oc)
	}
	switch b.Kind {
	case interp.KindSimple:
		return add(b.Key)
	case interp.KindTapHold:
		existing = add(b.TapKey)
		if oc, ok := keys.ToOsCode(b.HoldKey); ok {
			dup := false
			for _, e := range existing {
				if e == oc {
					dup = true
				}
			}
			if !dup {
				existing = append(existing, oc)
			}
		}
		return existing
	default:
		return existing
	}
}

func compileAliases(raw []rawAlias) (map[string]interp.Binding, error) {
	out := make(map[string]interp.Binding, len(raw))
	for _, a := range raw {
		if a.Name == "" {
			return nil, fmt.Errorf("config: alias with empty name")
		}
		b, err := compileAlias(a)
		if err != nil {
			return nil, fmt.Errorf("config: alias %q: %w", a.Name, err)
		}
		out[a.Name] = b
	}
	return out, nil
}

func compileAlias(a rawAlias) (interp.Binding, error) {
	switch a.Kind {
	case "", "simple":
		kc, err := keyCodeOf(a.Key)
		if err != nil {
			return interp.Binding{}, err
		}
		return interp.Simple(kc), nil
	case "taphold":
		tap, err := keyCodeOf(a.Tap)
		if err != nil {
			return interp.Binding{}, err
		}
		hold, err := keyCodeOf(a.Hold)
		if err != nil {
			return interp.Binding{}, err
		}
		if a.TimeoutMs <= 0 {
			return interp.Binding{}, fmt.Errorf("taphold requires a positive timeout_ms")
		}
		return interp.TapHold(tap, hold, a.TimeoutMs), nil
	case "macro":
		steps := make([]custom.MacroStep, 0, len(a.Macro))
		for _, s := range a.Macro {
			kc, err := keyCodeOf(s.Key)
			if err != nil {
				return interp.Binding{}, err
			}
			steps = append(steps, custom.MacroStep{Code: kc, Press: s.Press, Delay: s.Delay})
		}
		return interp.MacroBinding(steps), nil
	case "unicode":
		r := []rune(a.Rune)
		if len(r) != 1 {
			return interp.Binding{}, fmt.Errorf("unicode alias requires exactly one rune, got %q", a.Rune)
		}
		return interp.UnicodeBinding(r[0]), nil
	case "mouse":
		btn, err := mouseButtonOf(a.Button)
		if err != nil {
			return interp.Binding{}, err
		}
		return interp.MouseBinding(btn), nil
	case "livereload":
		return interp.LiveReloadBinding(), nil
	default:
		return interp.Binding{}, fmt.Errorf("unknown alias kind %q", a.Kind)
	}
}

func keyCodeOf(name string) (keys.KeyCode, error) {
	oc, ok := KeyNameToOsCode(name)
	if !ok {
		return 0, fmt.Errorf("unknown key name %q", name)
	}
	kc, ok := keys.ToKeyCode(oc)
	if !ok {
		return 0, fmt.Errorf("key name %q has no logical KeyCode", name)
	}
	return kc, nil
}

func mouseButtonOf(name string) (custom.MouseButton, error) {
	switch name {
	case "left", "":
		return custom.MouseLeft, nil
	case "right":
		return custom.MouseRight, nil
	case "middle":
		return custom.MouseMiddle, nil
	default:
		return 0, fmt.Errorf("unknown mouse button %q", name)
	}
}

// resolveExpr interprets one layer-column binding expression.
func resolveExpr(expr string, aliases map[string]interp.Binding, layers map[string]*interp.Layer) (interp.Binding, error) {
	switch {
	case expr == "_":
		return interp.Binding{Kind: interp.KindTransparent}, nil
	case expr == "" || expr == "XX":
		return interp.Binding{Kind: interp.KindNone}, nil
	case strings.HasPrefix(expr, "##"):
		name := expr[2:]
		if _, ok := layers[name]; !ok {
			return interp.Binding{}, fmt.Errorf("references unknown layer %q", name)
		}
		return interp.LayerToggle(name), nil
	case strings.HasPrefix(expr, "#"):
		name := expr[1:]
		if _, ok := layers[name]; !ok {
			return interp.Binding{}, fmt.Errorf("references unknown layer %q", name)
		}
		return interp.LayerMomentary(name), nil
	case strings.HasPrefix(expr, "@"):
		name := expr[1:]
		b, ok := aliases[name]
		if !ok {
			return interp.Binding{}, fmt.Errorf("references unknown alias %q", name)
		}
		return b, nil
	default:
		kc, err := keyCodeOf(expr)
		if err != nil {
			return interp.Binding{}, err
		}
		return interp.Simple(kc), nil
	}
}
