// Singlebase CLI - command-line client for the Singlebase API.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/singlebase/singlebase-go/cli/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := commands.Execute(ctx)
	stop()
	os.Exit(commands.ExitCode(err))
}
