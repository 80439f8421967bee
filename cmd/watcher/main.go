package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := &cobra.Command{
		Use:           "watcher",
		Short:         "Watch the upload bucket and schedule a post for every new image",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(runCmd(), onceCmd(), ledgerCmd(), tokenCmd())

	if err := root.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("Watcher stopped")
		stop()
		os.Exit(1)
	}
}
