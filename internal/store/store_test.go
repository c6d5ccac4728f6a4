package store

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockGateway(t *testing.T, policy ConflictPolicy) (*Gateway, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return New(db, Options{Conflict: policy, QueryTimeout: time.Second}), mock
}

func exact(query string) string {
	return "^" + regexp.QuoteMeta(query) + "$"
}

func TestGateway_InsertParentRow(t *testing.T) {
	g, mock := newMockGateway(t, ConflictInsert)

	mock.ExpectExec(exact("INSERT INTO solar_flares (active_region_num, begin_time, class_type, data_source, end_time, flr_id, peak_time, source_location) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)")).
		WithArgs(nil, "2024-05-10 16:36:00", "X3.9", "NASA", nil, "FLR1", "2024-05-10 16:51:00", "").
		WillReturnResult(sqlmock.NewResult(0, 1))

	res, err := g.Insert(context.Background(), "solar_flares", map[string]any{
		"flr_id":            "FLR1",
		"begin_time":        "2024-05-10 16:36:00",
		"peak_time":         "2024-05-10 16:51:00",
		"end_time":          nil,
		"class_type":        "X3.9",
		"source_location":   "",
		"active_region_num": nil,
		"data_source":       "NASA",
	})
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
}

func TestGateway_InsertReturnsGeneratedID(t *testing.T) {
	g, mock := newMockGateway(t, ConflictInsert)

	mock.ExpectQuery(exact("INSERT INTO flare_instruments (display_name, flr_id) VALUES ($1, $2) RETURNING id")).
		WithArgs("GOES-R: SUVI", "FLR1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))

	res, err := g.Insert(context.Background(), "flare_instruments", map[string]any{
		"flr_id":       "FLR1",
		"display_name": "GOES-R: SUVI",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), res.ID)
	assert.False(t, res.Skipped)
}

func TestGateway_InsertIgnoreConflicts(t *testing.T) {
	t.Run("parent duplicate", func(t *testing.T) {
		g, mock := newMockGateway(t, ConflictIgnore)

		mock.ExpectExec(exact("INSERT INTO geomagnetic_storms (gst_id) VALUES ($1) ON CONFLICT DO NOTHING")).
			WithArgs("GST1").
			WillReturnResult(sqlmock.NewResult(0, 0))

		res, err := g.Insert(context.Background(), "geomagnetic_storms", map[string]any{"gst_id": "GST1"})
		require.NoError(t, err)
		assert.True(t, res.Skipped)
	})

	t.Run("child duplicate", func(t *testing.T) {
		g, mock := newMockGateway(t, ConflictIgnore)

		mock.ExpectQuery(exact("INSERT INTO storm_linked_events (activity_id, gst_id) VALUES ($1, $2) ON CONFLICT DO NOTHING RETURNING id")).
			WithArgs("CME1", "GST1").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		res, err := g.Insert(context.Background(), "storm_linked_events", map[string]any{"gst_id": "GST1", "activity_id": "CME1"})
		require.NoError(t, err)
		assert.True(t, res.Skipped)
	})
}

func TestGateway_InsertFailure(t *testing.T) {
	g, mock := newMockGateway(t, ConflictInsert)

	mock.ExpectExec(exact("INSERT INTO solar_flares (flr_id) VALUES ($1)")).
		WithArgs("FLR1").
		WillReturnError(errors.New("duplicate key value violates unique constraint"))

	_, err := g.Insert(context.Background(), "solar_flares", map[string]any{"flr_id": "FLR1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert into solar_flares")
	assert.Contains(t, err.Error(), "duplicate key")
}

func TestGateway_InsertNoFields(t *testing.T) {
	g, _ := newMockGateway(t, ConflictInsert)

	_, err := g.Insert(context.Background(), "solar_flares", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no fields")
}

func TestGateway_Query(t *testing.T) {
	g, mock := newMockGateway(t, ConflictInsert)

	mock.ExpectQuery(exact("SELECT kp_index FROM storm_kp_indices WHERE gst_id = $1")).
		WithArgs("GST1").
		WillReturnRows(sqlmock.NewRows([]string{"kp_index"}).AddRow(5.0).AddRow(7.33))

	var got []float64
	err := g.Query(context.Background(), "SELECT kp_index FROM storm_kp_indices WHERE gst_id = $1", []any{"GST1"},
		func(rows *sql.Rows) error {
			var kp float64
			if err := rows.Scan(&kp); err != nil {
				return err
			}
			got = append(got, kp)
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, []float64{5.0, 7.33}, got)
}

func TestGateway_QueryErrors(t *testing.T) {
	t.Run("query fails", func(t *testing.T) {
		g, mock := newMockGateway(t, ConflictInsert)
		mock.ExpectQuery("SELECT").WillReturnError(errors.New("relation does not exist"))

		err := g.Query(context.Background(), "SELECT 1", nil, func(*sql.Rows) error { return nil })
		require.Error(t, err)
		assert.Contains(t, err.Error(), "relation does not exist")
	})

	t.Run("scan fails", func(t *testing.T) {
		g, mock := newMockGateway(t, ConflictInsert)
		mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))

		err := g.Query(context.Background(), "SELECT 1", nil, func(*sql.Rows) error { return errors.New("bad row") })
		require.Error(t, err)
		assert.Contains(t, err.Error(), "scan: bad row")
	})

	t.Run("iteration fails", func(t *testing.T) {
		g, mock := newMockGateway(t, ConflictInsert)
		mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1).RowError(0, errors.New("connection reset")))

		err := g.Query(context.Background(), "SELECT 1", nil, func(*sql.Rows) error { return nil })
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection reset")
	})
}

func TestGateway_PingAndReadiness(t *testing.T) {
	g, mock := newMockGateway(t, ConflictInsert)

	mock.ExpectPing()
	require.NoError(t, g.CheckReadiness(context.Background()))

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	err := g.CheckReadiness(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database unreachable")
}

func TestParseConflictPolicy(t *testing.T) {
	p, err := ParseConflictPolicy("ignore")
	require.NoError(t, err)
	assert.Equal(t, ConflictIgnore, p)

	p, err = ParseConflictPolicy("insert")
	require.NoError(t, err)
	assert.Equal(t, ConflictInsert, p)

	_, err = ParseConflictPolicy("upsert")
	assert.Error(t, err)
}
