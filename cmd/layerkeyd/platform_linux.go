//go:build linux

package main

import (
	"fmt"
	"log/slog"

	"github.com/miken90dev/layerkeyd/internal/cfg"
	"github.com/miken90dev/layerkeyd/internal/mappedkeys"
	"github.com/miken90dev/layerkeyd/internal/oskbd"
)

// newPlatform wires the Input Source and Output Driver named by the
// config's [device] section. "evdev" is the device-style default (grab
// /dev/input/eventN, write through /dev/uinput); "hook" and "xtest" both
// select the alternate backend pair (gohook capture, XTest injection)
// grounded on the teacher's X11 code path for platforms or sandboxes where
// uinput access isn't available.
func newPlatform(snap *cfg.Snapshot, filter *mappedkeys.Filter, log *slog.Logger) (oskbd.InputSource, oskbd.OutputDriver, error) {
	switch snap.Backend {
	case "", "evdev":
		if snap.DevicePath == "" {
			return nil, nil, fmt.Errorf("evdev backend requires device.path")
		}
		out, err := oskbd.NewUinputOutputDriver("layerkeyd virtual keyboard")
		if err != nil {
			return nil, nil, fmt.Errorf("open uinput device: %w", err)
		}
		in, err := oskbd.OpenEvdevInputSource(snap.DevicePath, filter, out)
		if err != nil {
			out.Close()
			return nil, nil, fmt.Errorf("open input device %s: %w", snap.DevicePath, err)
		}
		return in, out, nil
	case "hook", "xtest":
		out, err := oskbd.NewXTestOutputDriver()
		if err != nil {
			return nil, nil, fmt.Errorf("open XTest connection: %w", err)
		}
		return oskbd.NewHookInputSource(filter, out), out, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", snap.Backend)
	}
}
