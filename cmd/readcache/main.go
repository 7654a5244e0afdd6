// Package main is the entry point for the readcache CLI: the
// out-of-process operator surface for inspecting, refreshing, and
// garbage-collecting the read-cache's object store and session logs.
// The decision engine itself is a library (internal/decision) meant to
// be embedded directly in a host's read tool; this binary exists for
// operators and for driving the engine outside of that host.
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/Gurpartap/pi-readcache/internal/rclog"
)

// Build-time variables (set via ldflags).
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func init() {
	// Load .env into the process environment before flags and config
	// are parsed. Config itself is read from TOML only; it does not
	// consult environment variables.
	_ = godotenv.Load()
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("readcache"),
		kong.Description("Operator CLI for the pi read-cache object store and session logs."),
		kong.UsageOnError(),
		kongVars(),
	)

	if err := rclog.Init(cli.LogLevel, cli.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "readcache: failed to initialize logging: %v\n", err)
		os.Exit(1)
	}

	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
