// Command nebulite runs the headless scene/rule engine: parse
// flags/command line once, run to completion, return the exit code
// from main without calling os.Exit inside the work itself so
// deferred cleanup always runs.
package main

import (
	"fmt"
	"os"

	"github.com/lbastigk/nebulite/config"
	"github.com/lbastigk/nebulite/internal/nbllog"
	"github.com/lbastigk/nebulite/shell"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.Load(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "nebulite: %v\n", err)
		return 1
	}

	level, ok := nbllog.ParseLevel(cfg.LogLevel)
	if !ok {
		level = nbllog.Info
	}
	logger := nbllog.New(os.Stderr, level)

	if cfg.ErrorLogEnabled {
		if err := logger.OpenFileSink(cfg.LogPath); err != nil {
			fmt.Fprintf(os.Stderr, "nebulite: %v\n", err)
			return 1
		}
	}

	sh, err := shell.New(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "nebulite: %v\n", err)
		return 1
	}
	defer func() { _ = sh.Close() }()

	return sh.Run()
}
