// Command foldstack turns DTrace ustack() aggregations into folded stacks.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

var version = "dev" // overwritten by ldflags

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCmd(os.Stdin, os.Stdout, os.Stderr)
	if err := cmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
