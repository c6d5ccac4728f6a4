// Package correlate rebuilds the flare and storm severity series for a
// trailing window so the two kinds of activity can be compared over time.
package correlate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/space-weather-etl/internal/domain"
	"github.com/couchcryptid/space-weather-etl/internal/observability"
	"github.com/huandu/go-sqlbuilder"
	"github.com/jonboulle/clockwork"
)

// Series labels.
const (
	FlareSeriesLabel = "Solar Flares"
	StormSeriesLabel = "Geomagnetic Storms"
)

var (
	// ErrStoreUnavailable means the store could not be reached.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrStoreRead means a read against a reachable store failed.
	ErrStoreRead = errors.New("store read failed")
)

// Store is the read side of the persistence gateway.
type Store interface {
	Ping(ctx context.Context) error
	Query(ctx context.Context, query string, args []any, scan func(*sql.Rows) error) error
}

// Point is one scored event.
type Point struct {
	Time     time.Time `json:"time"`
	Severity float64   `json:"severity"`
}

// Series is a time-ordered list of points under one label.
type Series struct {
	Label  string  `json:"label"`
	Points []Point `json:"points"`
}

// Chart holds both series. They are independently ordered and never merged.
type Chart struct {
	Title  string    `json:"title"`
	XLabel string    `json:"x_label"`
	YLabel string    `json:"y_label"`
	Since  time.Time `json:"since"`
	Flares Series    `json:"flares"`
	Storms Series    `json:"storms"`
}

// Reconstructor reads stored events and scores them onto the common scale.
type Reconstructor struct {
	store   Store
	clock   clockwork.Clock
	months  int
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates a Reconstructor over the trailing months before the clock's
// now. A nil clock uses real time.
func New(s Store, clock clockwork.Clock, months int, logger *slog.Logger, metrics *observability.Metrics) *Reconstructor {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Reconstructor{store: s, clock: clock, months: months, logger: logger, metrics: metrics}
}

// Build reads and scores both series. Any store failure is returned and no
// partial chart is produced.
func (r *Reconstructor) Build(ctx context.Context) (Chart, error) {
	if err := r.store.Ping(ctx); err != nil {
		return Chart{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	since := subtractMonths(r.clock.Now().UTC(), r.months)

	flares, err := r.flarePoints(ctx, since)
	if err != nil {
		return Chart{}, fmt.Errorf("%w: solar flares: %w", ErrStoreRead, err)
	}
	storms, err := r.stormPoints(ctx, since)
	if err != nil {
		return Chart{}, fmt.Errorf("%w: kp indices: %w", ErrStoreRead, err)
	}

	r.metrics.CorrelationPoints.WithLabelValues(FlareSeriesLabel).Set(float64(len(flares)))
	r.metrics.CorrelationPoints.WithLabelValues(StormSeriesLabel).Set(float64(len(storms)))
	r.logger.Info("correlation series built", "since", since, "flares", len(flares), "storms", len(storms))

	return Chart{
		Title:  "Solar Flare and Geomagnetic Storm Activity",
		XLabel: "Dates",
		YLabel: "Activity Level",
		Since:  since,
		Flares: Series{Label: FlareSeriesLabel, Points: flares},
		Storms: Series{Label: StormSeriesLabel, Points: storms},
	}, nil
}

// subtractMonths steps t back n calendar months, clamping the day to the end
// of the target month (May 31 minus 3 months is Feb 29 in a leap year).
func subtractMonths(t time.Time, n int) time.Time {
	first := time.Date(t.Year(), t.Month()-time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	lastDay := first.AddDate(0, 1, -1).Day()
	day := t.Day()
	if day > lastDay {
		day = lastDay
	}
	return first.AddDate(0, 0, day-1)
}

// Render builds the chart and hands it to renderer.
func (r *Reconstructor) Render(ctx context.Context, renderer Renderer) error {
	chart, err := r.Build(ctx)
	if err != nil {
		return err
	}
	if err := renderer.Render(chart); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}

func (r *Reconstructor) flarePoints(ctx context.Context, since time.Time) ([]Point, error) {
	query, args := windowQuery(domain.TableSolarFlares, "class_type", "peak_time", since)

	points := []Point{}
	err := r.store.Query(ctx, query, args, func(rows *sql.Rows) error {
		var (
			class sql.NullString
			peak  sql.NullTime
		)
		if err := rows.Scan(&class, &peak); err != nil {
			return err
		}
		if !peak.Valid {
			r.logger.Warn("skipping flare without peak time", "class_type", class.String)
			return nil
		}
		sev, ok := domain.FlareSeverity(class.String)
		if !ok {
			r.logger.Warn("skipping flare with unscorable class", "class_type", class.String, "peak_time", peak.Time)
			return nil
		}
		points = append(points, Point{Time: peak.Time, Severity: sev})
		return nil
	})
	return points, err
}

func (r *Reconstructor) stormPoints(ctx context.Context, since time.Time) ([]Point, error) {
	query, args := windowQuery(domain.TableStormKpIndices, "kp_index", "observed_time", since)

	points := []Point{}
	err := r.store.Query(ctx, query, args, func(rows *sql.Rows) error {
		var (
			kp       sql.NullFloat64
			observed sql.NullTime
		)
		if err := rows.Scan(&kp, &observed); err != nil {
			return err
		}
		if !kp.Valid || !observed.Valid {
			r.logger.Warn("skipping incomplete kp reading")
			return nil
		}
		points = append(points, Point{Time: observed.Time, Severity: domain.StormSeverity(kp.Float64)})
		return nil
	})
	return points, err
}

// windowQuery selects value and timeCol from table where timeCol falls on or
// after since, oldest first.
func windowQuery(table, value, timeCol string, since time.Time) (string, []any) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(value, timeCol).
		From(table).
		Where(sb.GreaterEqualThan(timeCol, since)).
		OrderBy(timeCol).Asc()
	return sb.Build()
}
