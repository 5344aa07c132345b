// Command layerkeyd is the thin, platform-free CLI surface spec.md §6
// describes: one required argument naming a TOML configuration file, no
// sub-commands. All platform selection lives behind newPlatform, split
// across the build-tagged platform_*.go files in this package.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/miken90dev/layerkeyd/internal/cfg"
	"github.com/miken90dev/layerkeyd/internal/ep"
	"github.com/miken90dev/layerkeyd/internal/keys"
	"github.com/miken90dev/layerkeyd/internal/logging"
	"github.com/miken90dev/layerkeyd/internal/mappedkeys"
)

var version = "0.1.0-dev"

func main() {
	debug := flag.Bool("debug", false, "enable debug-level logging")
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: layerkeyd <config.toml>")
		os.Exit(1)
	}
	cfgPath := flag.Arg(0)

	log := logging.New(os.Stderr, *debug)
	log.Info("layerkeyd starting", "version", version, "config", cfgPath)

	snap, err := cfg.Load(cfgPath)
	if err != nil {
		log.Error("failed to load configuration", "path", cfgPath, "error", err)
		os.Exit(1)
	}

	filter := mappedkeys.New()

	in, out, err := newPlatform(snap, filter, log)
	if err != nil {
		log.Error("failed to initialize platform input/output", "error", err)
		os.Exit(1)
	}
	defer out.Close()

	proc := ep.NewProcessor(snap, filter, out, cfgPath, log)

	// Buffered so a short processor stall does not force the input
	// thread to block; a full buffer is still a fatal condition for
	// hook-style sources per spec.md §4.6, enforced inside in.Run.
	ch := make(chan keys.KeyEvent, 64)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("received shutdown signal, exiting")
		os.Exit(0)
	}()

	go func() {
		if err := in.Run(ch); err != nil {
			log.Error("input source terminated", "error", err)
			os.Exit(1)
		}
	}()

	if err := proc.Run(ch); err != nil {
		log.Error("event processor terminated", "error", err)
		os.Exit(1)
	}
}
