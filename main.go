package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Norgate-AV/runcache/cmd"
)

func main() {
	// An interrupt cancels the command context, which kills a running
	// child process. A canceled run is never persisted.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd.Execute(ctx)
}
