// Package audit records every outbound DONKI request and its outcome,
// independently of whether the response was ingested.
package audit

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/couchcryptid/space-weather-etl/internal/domain"
	"github.com/couchcryptid/space-weather-etl/internal/observability"
	"github.com/couchcryptid/space-weather-etl/internal/store"
	"github.com/jonboulle/clockwork"
)

// StatusNetworkError is recorded when no HTTP response was received.
const StatusNetworkError = 0

// Inserter persists one row.
type Inserter interface {
	Insert(ctx context.Context, table string, fields map[string]any) (store.Result, error)
}

// Auditor writes api_requests rows. It never returns an error: a failed audit
// is logged and counted so it cannot block ingestion.
type Auditor struct {
	store   Inserter
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates an Auditor. A nil clock uses real time.
func New(s Inserter, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Auditor {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Auditor{store: s, clock: clock, logger: logger, metrics: metrics}
}

// Record persists one audit row. content is the response body: JSON text for a
// parsed response, raw text otherwise, or the error text when the request failed.
func (a *Auditor) Record(ctx context.Context, endpoint string, status int, content string) {
	_, err := a.store.Insert(ctx, domain.TableAPIRequests, map[string]any{
		"endpoint":         endpoint,
		"request_time":     a.clock.Now().UTC().Format(domain.StorageTimeLayout),
		"response_status":  strconv.Itoa(status),
		"response_content": content,
	})
	if err != nil {
		a.metrics.AuditFailures.Inc()
		a.logger.Warn("request audit failed",
			"endpoint", endpoint,
			"status", status,
			"error", err,
		)
	}
}
