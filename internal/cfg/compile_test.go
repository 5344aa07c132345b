package cfg

import (
	"testing"

	"github.com/miken90dev/layerkeyd/internal/interp"
)

func TestCompileMinimal(t *testing.T) {
	raw := &rawConfig{
		Device: rawDevice{Path: "/dev/input/event4", Backend: "evdev"},
		Alias: []rawAlias{
			{Name: "esc_ctrl", Kind: "taphold", Tap: "esc", Hold: "lctrl", TimeoutMs: 200},
		},
		Layer: []rawLayer{
			{Name: "base", Keys: map[string]string{
				"a":    "z",
				"caps": "#nav",
				"esc":  "@esc_ctrl",
			}},
			{Name: "nav", Keys: map[string]string{
				"h": "lbracket",
			}},
		},
	}

	snap, err := Compile(raw)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	aCol, _ := KeyNameToOsCode("a")
	if !snap.MappedKeys[aCol] {
		t.Fatalf("expected column %d (a) to be mapped", aCol)
	}

	escCol, _ := KeyNameToOsCode("esc")
	if len(snap.KeyOutputs[escCol]) != 2 {
		t.Fatalf("expected esc's tap-hold to list 2 key outputs, got %v", snap.KeyOutputs[escCol])
	}

	unmappedCol, _ := KeyNameToOsCode("q")
	if snap.MappedKeys[unmappedCol] {
		t.Fatalf("column %d (q) should be unmapped", unmappedCol)
	}

	if snap.Keymap == nil {
		t.Fatal("expected a compiled Keymap")
	}
}

func TestCompileRejectsUnknownLayerReference(t *testing.T) {
	raw := &rawConfig{
		Device: rawDevice{Path: "/dev/input/event4"},
		Layer: []rawLayer{
			{Name: "base", Keys: map[string]string{"caps": "#ghost"}},
		},
	}
	if _, err := Compile(raw); err == nil {
		t.Fatal("expected an error for a reference to an undeclared layer")
	}
}

func TestCompileRequiresDevicePathForEvdev(t *testing.T) {
	raw := &rawConfig{
		Layer: []rawLayer{{Name: "base"}},
	}
	if _, err := Compile(raw); err == nil {
		t.Fatal("expected an error when device.path is missing for the evdev backend")
	}
}

func TestResolveExprTransparentAndNone(t *testing.T) {
	b, err := resolveExpr("_", nil, nil)
	if err != nil || b.Kind != interp.KindTransparent {
		t.Fatalf("expected Transparent, got %+v, err=%v", b, err)
	}
	b, err = resolveExpr("", nil, nil)
	if err != nil || b.Kind != interp.KindNone {
		t.Fatalf("expected None, got %+v, err=%v", b, err)
	}
}
