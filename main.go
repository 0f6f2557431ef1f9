// Command recrypt migrates stored media from legacy tokens to the unified chunked format.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/idelchi/recrypt/internal/commands"
	"github.com/idelchi/recrypt/internal/config"
)

// Set by the build.
var version = "unknown - unofficial & generated by unknown"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	cfg := &config.Config{}
	root := commands.NewRootCommand(cfg, version)

	err := root.ExecuteContext(ctx)

	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)

		os.Exit(1)
	}
}
