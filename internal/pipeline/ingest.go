package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/space-weather-etl/internal/domain"
	"github.com/couchcryptid/space-weather-etl/internal/observability"
	"github.com/couchcryptid/space-weather-etl/internal/store"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Fetcher retrieves a DONKI feed. It reports false when no usable data came back.
type Fetcher interface {
	Fetch(ctx context.Context, path string, params url.Values) (json.RawMessage, bool)
}

// Inserter writes a single row.
type Inserter interface {
	Insert(ctx context.Context, table string, fields map[string]any) (store.Result, error)
}

// Notifier announces ingested records to downstream consumers.
type Notifier interface {
	Publish(ctx context.Context, notices []domain.EventNotice) error
}

// RowFailure is one row that could not be written.
type RowFailure struct {
	EventID string `json:"event_id"`
	Table   string `json:"table"`
	Error   string `json:"error"`
}

// Report summarizes one ingestion run.
type Report struct {
	RunID        string       `json:"run_id"`
	Feed         string       `json:"feed"`
	Window       string       `json:"window"`
	Fetched      bool         `json:"fetched"`
	Records      int          `json:"records"`
	Rejected     int          `json:"rejected"`
	RowsInserted int          `json:"rows_inserted"`
	RowsSkipped  int          `json:"rows_skipped"`
	RowsFailed   int          `json:"rows_failed"`
	Failures     []RowFailure `json:"failures,omitempty"`
}

// recordResult is the outcome of writing one top-level record.
type recordResult struct {
	decomposition *domain.Decomposition
	rejected      bool
	inserted      int
	skipped       int
	failures      []RowFailure
}

// Ingester runs fetch, decompose and insert for a feed.
type Ingester struct {
	fetcher  Fetcher
	store    Inserter
	notifier Notifier
	logger   *slog.Logger
	metrics  *observability.Metrics
	workers  int
}

// NewIngester creates an Ingester. notifier may be nil. workers bounds how many
// top-level records are written concurrently; values below 1 mean sequential.
func NewIngester(f Fetcher, s Inserter, n Notifier, logger *slog.Logger, metrics *observability.Metrics, workers int) *Ingester {
	if workers < 1 {
		workers = 1
	}
	return &Ingester{
		fetcher:  f,
		store:    s,
		notifier: n,
		logger:   logger,
		metrics:  metrics,
		workers:  workers,
	}
}

// Run ingests feed over window. Row failures are absorbed into the report; the
// returned error is non-nil only when the run was aborted by ErrAbortRun or
// context cancellation. Rows written before an abort are kept.
func (i *Ingester) Run(ctx context.Context, feed Feed, window Window) (Report, error) {
	start := time.Now()
	i.metrics.IngestRunning.Inc()
	defer i.metrics.IngestRunning.Dec()
	defer func() {
		i.metrics.IngestRunSeconds.WithLabelValues(feed.Name).Observe(time.Since(start).Seconds())
	}()

	report := Report{RunID: uuid.NewString(), Feed: feed.Name, Window: window.String()}
	logger := i.logger.With("feed", feed.Name, "run_id", report.RunID)
	logger.Info("ingestion started", "window", report.Window, "workers", i.workers)

	body, ok := i.fetcher.Fetch(ctx, feed.Path, window.Params())
	if !ok {
		logger.Info("no data returned, nothing written")
		i.metrics.IngestRuns.WithLabelValues(feed.Name, "no_data").Inc()
		return report, nil
	}

	var records []json.RawMessage
	if err := json.Unmarshal(body, &records); err != nil {
		logger.Warn("feed body is not an array, nothing written", "error", err)
		i.metrics.IngestRuns.WithLabelValues(feed.Name, "no_data").Inc()
		return report, nil
	}
	report.Fetched = true
	report.Records = len(records)

	results := make([]recordResult, len(records))
	runErr := i.writeRecords(ctx, logger, feed, records, results)

	var notices []domain.EventNotice
	for _, res := range results {
		report.RowsInserted += res.inserted
		report.RowsSkipped += res.skipped
		report.RowsFailed += len(res.failures)
		report.Failures = append(report.Failures, res.failures...)
		if res.rejected {
			report.Rejected++
		}
		if res.decomposition == nil {
			continue
		}
		notices = append(notices, domain.NewEventNotice(report.RunID, *res.decomposition, res.inserted, len(res.failures)))
	}
	i.publish(ctx, logger, notices)

	outcome := "completed"
	if runErr != nil {
		outcome = "aborted"
		logger.Error("ingestion aborted", "error", runErr)
	}
	i.metrics.IngestRuns.WithLabelValues(feed.Name, outcome).Inc()
	logger.Info("ingestion finished",
		"records", report.Records,
		"rejected", report.Rejected,
		"rows_inserted", report.RowsInserted,
		"rows_skipped", report.RowsSkipped,
		"rows_failed", report.RowsFailed,
		"duration", time.Since(start),
	)
	return report, runErr
}

// writeRecords writes every record, at most i.workers at a time. A record's
// parent insert is always attempted before its children. Records are started
// in feed order and no new record starts once the run is aborted.
func (i *Ingester) writeRecords(ctx context.Context, logger *slog.Logger, feed Feed, records []json.RawMessage, results []recordResult) error {
	var (
		g       errgroup.Group
		aborted atomic.Bool
	)
	g.SetLimit(i.workers)

	for idx, raw := range records {
		if aborted.Load() {
			break
		}
		if err := ctx.Err(); err != nil {
			_ = g.Wait()
			return fmt.Errorf("ingest %s: %w", feed.Name, err)
		}
		g.Go(func() error {
			if aborted.Load() {
				return nil
			}
			d, err := feed.Decompose(raw)
			if err != nil {
				results[idx].rejected = true
				if errors.Is(err, ErrAbortRun) {
					aborted.Store(true)
					return err
				}
				logger.Error("record rejected", "index", idx, "error", err)
				i.metrics.RecordsRejected.WithLabelValues(feed.Name).Inc()
				return nil
			}
			results[idx] = i.writeRecord(ctx, logger, d)
			return nil
		})
	}
	return g.Wait()
}

// writeRecord attempts every row of d in order. A failed row never prevents the
// remaining rows from being attempted.
func (i *Ingester) writeRecord(ctx context.Context, logger *slog.Logger, d domain.Decomposition) recordResult {
	res := recordResult{decomposition: &d}
	for _, row := range d.Rows() {
		r, err := i.store.Insert(ctx, row.Table, row.Fields)
		switch {
		case err != nil:
			logger.Warn("row insert failed", "event_id", d.EventID, "table", row.Table, "error", err)
			i.metrics.RowInsertErrors.WithLabelValues(row.Table).Inc()
			res.failures = append(res.failures, RowFailure{EventID: d.EventID, Table: row.Table, Error: err.Error()})
		case r.Skipped:
			logger.Debug("row already present", "event_id", d.EventID, "table", row.Table)
			i.metrics.RowsSkipped.WithLabelValues(row.Table).Inc()
			res.skipped++
		default:
			i.metrics.RowsInserted.WithLabelValues(row.Table).Inc()
			res.inserted++
		}
	}
	return res
}

func (i *Ingester) publish(ctx context.Context, logger *slog.Logger, notices []domain.EventNotice) {
	if i.notifier == nil || len(notices) == 0 {
		return
	}
	if err := i.notifier.Publish(ctx, notices); err != nil {
		logger.Warn("publish ingestion notices failed", "error", err, "notices", len(notices))
		i.metrics.NoticeFailures.Inc()
	}
}
