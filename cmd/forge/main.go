package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/docforge/docforge/cmd/forge/commands"
	"github.com/docforge/docforge/pkg/wizard"
)

// Version information (set via ldflags during build)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	// Create context that cancels on interrupt signals
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	if err := commands.Execute(ctx, Version, Commit, BuildDate); err != nil {
		if errors.Is(err, wizard.ErrInterrupted) {
			log.Warn().Msg("Setup interrupted, progress has been saved. Run forge setup again to resume.")
			os.Exit(130)
		}
		log.Error().Err(err).Msg("Command execution failed")
		os.Exit(1)
	}
}
