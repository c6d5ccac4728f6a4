// Package store is the persistence gateway: single-row parameterized inserts
// and selects against PostgreSQL. Every call commits on its own; there are no
// multi-row transactions.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/couchcryptid/space-weather-etl/internal/domain"
	"github.com/huandu/go-sqlbuilder"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
)

const sqlFlavor = sqlbuilder.PostgreSQL

// ConflictPolicy decides what happens when an insert collides with an
// existing primary key, e.g. when an overlapping window is re-ingested.
type ConflictPolicy string

const (
	// ConflictInsert issues plain inserts; a duplicate key surfaces as a failed row.
	ConflictInsert ConflictPolicy = "insert"
	// ConflictIgnore adds ON CONFLICT DO NOTHING; a duplicate is reported as skipped.
	ConflictIgnore ConflictPolicy = "ignore"
)

// ParseConflictPolicy validates a policy name.
func ParseConflictPolicy(s string) (ConflictPolicy, error) {
	switch p := ConflictPolicy(s); p {
	case ConflictInsert, ConflictIgnore:
		return p, nil
	default:
		return "", fmt.Errorf("unknown conflict policy %q", s)
	}
}

// generatedKeyTables have a BIGSERIAL id column returned on insert. Parent
// tables are keyed by the upstream identifier instead.
var generatedKeyTables = map[string]bool{
	domain.TableFlareInstruments:  true,
	domain.TableFlareLinkedEvents: true,
	domain.TableStormKpIndices:    true,
	domain.TableStormLinkedEvents: true,
	domain.TableAPIRequests:       true,
}

// Result describes a completed insert. ID is the generated key for tables
// that have one. Skipped is set when a conflict left the table unchanged.
type Result struct {
	ID      int64
	Skipped bool
}

// Options configures a Gateway.
type Options struct {
	Conflict     ConflictPolicy
	QueryTimeout time.Duration
}

// Gateway executes inserts and selects against a *sql.DB.
type Gateway struct {
	db       *sql.DB
	conflict ConflictPolicy
	timeout  time.Duration
}

// Open connects to PostgreSQL using the pgx driver. The connection is lazy;
// use Ping to verify reachability.
func Open(dsn string, opts Options) (*Gateway, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return New(db, opts), nil
}

// New wraps an existing database handle.
func New(db *sql.DB, opts Options) *Gateway {
	if opts.Conflict == "" {
		opts.Conflict = ConflictInsert
	}
	return &Gateway{db: db, conflict: opts.Conflict, timeout: opts.QueryTimeout}
}

// Insert writes one row. Columns are emitted in sorted order so the generated
// SQL is stable. A nil field value is written as NULL.
func (g *Gateway) Insert(ctx context.Context, table string, fields map[string]any) (Result, error) {
	if len(fields) == 0 {
		return Result{}, fmt.Errorf("insert into %s: no fields", table)
	}

	query, args := g.buildInsert(table, fields)

	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	if generatedKeyTables[table] {
		var id int64
		err := g.db.QueryRowContext(ctx, query+" RETURNING id", args...).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return Result{Skipped: true}, nil
		}
		if err != nil {
			return Result{}, fmt.Errorf("insert into %s: %w", table, err)
		}
		return Result{ID: id}, nil
	}

	res, err := g.db.ExecContext(ctx, query, args...)
	if err != nil {
		return Result{}, fmt.Errorf("insert into %s: %w", table, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return Result{}, fmt.Errorf("insert into %s: %w", table, err)
	}
	return Result{Skipped: affected == 0}, nil
}

func (g *Gateway) buildInsert(table string, fields map[string]any) (string, []any) {
	cols := make([]string, 0, len(fields))
	for col := range fields {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	values := make([]any, len(cols))
	for i, col := range cols {
		values[i] = fields[col]
	}

	ib := sqlFlavor.NewInsertBuilder()
	ib.InsertInto(table)
	ib.Cols(cols...)
	ib.Values(values...)
	query, args := ib.Build()

	if g.conflict == ConflictIgnore {
		query += " ON CONFLICT DO NOTHING"
	}
	return query, args
}

// Query runs a select and hands each row to scan. The rows are closed before
// Query returns, and iteration errors are reported.
func (g *Gateway) Query(ctx context.Context, query string, args []any, scan func(*sql.Rows) error) error {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	rows, err := g.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate rows: %w", err)
	}
	return nil
}

// Ping verifies the database is reachable.
func (g *Gateway) Ping(ctx context.Context) error {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()
	return g.db.PingContext(ctx)
}

// CheckReadiness reports whether the database is reachable.
func (g *Gateway) CheckReadiness(ctx context.Context) error {
	if err := g.Ping(ctx); err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (g *Gateway) Close() error {
	return g.db.Close()
}

func (g *Gateway) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.timeout)
}
