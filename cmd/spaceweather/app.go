package main

import (
	"log/slog"

	"github.com/couchcryptid/space-weather-etl/internal/adapter/donki"
	kafkaadapter "github.com/couchcryptid/space-weather-etl/internal/adapter/kafka"
	"github.com/couchcryptid/space-weather-etl/internal/audit"
	"github.com/couchcryptid/space-weather-etl/internal/config"
	"github.com/couchcryptid/space-weather-etl/internal/correlate"
	"github.com/couchcryptid/space-weather-etl/internal/observability"
	"github.com/couchcryptid/space-weather-etl/internal/pipeline"
	"github.com/couchcryptid/space-weather-etl/internal/store"
)

// app is the wired component graph shared by every command.
type app struct {
	cfg           *config.Config
	logger        *slog.Logger
	gateway       *store.Gateway
	writer        *kafkaadapter.Writer
	ingester      *pipeline.Ingester
	reconstructor *correlate.Reconstructor
}

func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	metrics := observability.NewMetrics()

	gateway, err := store.Open(cfg.DatabaseURL, store.Options{
		Conflict:     cfg.ConflictPolicy,
		QueryTimeout: cfg.DBQueryTimeout,
	})
	if err != nil {
		return nil, err
	}

	auditor := audit.New(gateway, nil, logger, metrics)
	client := donki.NewClient(cfg.NASAAPIKey, cfg.DONKIBaseURL, cfg.FetchTimeout, cfg.FetchRetryMax, auditor, logger, metrics)

	a := &app{cfg: cfg, logger: logger, gateway: gateway}

	var notifier pipeline.Notifier
	if cfg.NoticesEnabled() {
		a.writer = kafkaadapter.NewWriter(cfg, logger)
		notifier = a.writer
		logger.Info("ingestion notices enabled", "topic", cfg.KafkaEventsTopic, "brokers", cfg.KafkaBrokers)
	}

	a.ingester = pipeline.NewIngester(client, gateway, notifier, logger, metrics, cfg.IngestWorkers)
	a.reconstructor = correlate.New(gateway, nil, cfg.CorrelationWindowMonths, logger, metrics)
	return a, nil
}

// feeds maps CLI and route names to feed definitions.
func (a *app) feeds() map[string]pipeline.Feed {
	return map[string]pipeline.Feed{
		"flares": pipeline.FlareFeed(),
		"storms": pipeline.StormFeed(a.cfg.MissingKpPolicy),
	}
}

func (a *app) close() {
	if a.writer != nil {
		if err := a.writer.Close(); err != nil {
			a.logger.Error("kafka writer close error", "error", err)
		}
	}
	if err := a.gateway.Close(); err != nil {
		a.logger.Error("database close error", "error", err)
	}
}
