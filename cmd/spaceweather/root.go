package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/couchcryptid/space-weather-etl/internal/config"
	"github.com/couchcryptid/space-weather-etl/internal/observability"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// cli carries state resolved once in the root pre-run.
type cli struct {
	envFile string
	cfg     *config.Config
	logger  *slog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "spaceweather",
		Short: "Ingest NASA DONKI space-weather events and correlate flare and storm activity",
		Long: `spaceweather pulls solar flare (FLR) and geomagnetic storm (GST) events from
the NASA DONKI API, stores them relationally in PostgreSQL, and rebuilds the
flare/storm severity series for side-by-side comparison.`,
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
	}
	root.PersistentFlags().StringVar(&c.envFile, "env-file", ".env", "optional dotenv file loaded before reading the environment")

	root.AddCommand(
		newIngestCmd(c),
		newBackfillCmd(c),
		newCorrelateCmd(c),
		newServeCmd(c),
	)
	return root
}

func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(c.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", c.envFile, err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return err
	}
	c.cfg = cfg

	// The server logs to stdout like the other services; one-shot commands
	// keep stdout for their JSON output.
	if cmd.Name() == "serve" {
		c.logger = sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	} else {
		c.logger = observability.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
		slog.SetDefault(c.logger)
	}
	return nil
}
