package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"slidecast/internal/services"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCommand()
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return
	}
	if errors.Is(err, services.ErrCancelled) || errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "cancelled")
		stop()
		os.Exit(services.ExitCancelled)
	}
	fmt.Fprintln(os.Stderr, err)
	stop()
	os.Exit(services.ExitCode(err))
}
