// Command tenderctl fetches and aggregates TED notices without running the service.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/tenderwatch/ted-adapter/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}
