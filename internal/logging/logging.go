// Package logging sets up layerkeyd's console logger. The teacher used
// the standard library's log package directly; this replaces that with a
// structured log/slog logger rendered through lmittmann/tint, which is in
// the dependency pack (pulled in transitively by the Wails-based Windows
// build) and gives colorized, leveled console output — the closer
// ecosystem match for a CLI/daemon like this one than a bare log.Logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// New builds the process-wide logger. Output always goes to w (stderr in
// production); color is enabled only when w is a real terminal, matching
// tint's own recommended isatty check.
func New(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	noColor := true
	if f, ok := w.(*os.File); ok {
		noColor = !isatty.IsTerminal(f.Fd())
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		NoColor:    noColor,
	}))
}
