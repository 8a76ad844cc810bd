// Command songbird plays sound effects on request. It serves the Songbird
// operations to MCP hosts and, optionally, to a Discord guild, and offers
// one-shot subcommands for scripting.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "songbird: %v\n", err)
		return 1
	}
	return 0
}
