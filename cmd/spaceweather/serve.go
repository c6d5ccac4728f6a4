package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/couchcryptid/space-weather-etl/internal/adapter/httpadapter"
	"github.com/couchcryptid/space-weather-etl/internal/pipeline"
	"github.com/spf13/cobra"
)

func newServeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server and, when INGEST_INTERVAL is set, scheduled ingestion",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), c)
		},
	}
}

func serve(ctx context.Context, c *cli) error {
	cfg, logger := c.cfg, c.logger

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}

	feeds := a.feeds()
	ready := httpadapter.Readiness{a.gateway}

	var scheduler *pipeline.Scheduler
	if cfg.IngestInterval > 0 {
		scheduler = pipeline.NewScheduler(a.ingester, []pipeline.Feed{feeds["flares"], feeds["storms"]},
			cfg.IngestWindowDays, cfg.IngestInterval, nil, logger)
		ready = append(ready, scheduler)
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, ready, logger)
	srv.HandleIngest(a.ingester, feeds, cfg.IngestWindowDays, nil)
	srv.HandleCorrelation(a.reconstructor)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start scheduled ingestion.
	schedulerDone := make(chan struct{})
	if scheduler != nil {
		go func() {
			defer close(schedulerDone)
			if err := scheduler.Run(ctx); err != nil {
				logger.Error("scheduler error", "error", err)
			}
		}()
	} else {
		close(schedulerDone)
		logger.Info("scheduled ingestion disabled")
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	select {
	case <-schedulerDone:
	case <-shutdownCtx.Done():
		logger.Warn("scheduled ingestion did not stop before the shutdown timeout")
	}
	a.close()

	logger.Info("shutdown complete")
	return nil
}
