package store

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/laundrydesk/internal/models"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(MemoryDSN)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestMigrate_Idempotent(t *testing.T) {
	s := setupTestStore(t)

	require.NoError(t, s.Migrate())

	version, err := s.MigrationVersion()
	require.NoError(t, err)
	assert.Equal(t, len(migrations), version)
}

func TestFetchRun_Success(t *testing.T) {
	s := setupTestStore(t)

	run, err := s.StartFetchRun("supabase")
	require.NoError(t, err)
	require.NotZero(t, run.ID)

	require.NoError(t, s.CompleteFetchRun(run, 42, nil))

	runs, err := s.RecentFetchRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.True(t, runs[0].Success)
	assert.Equal(t, "supabase", runs[0].Source)
	assert.Equal(t, sql.NullInt64{Int64: 42, Valid: true}, runs[0].Rows)
	assert.True(t, runs[0].FinishedAt.Valid)
	assert.False(t, runs[0].ErrorMessage.Valid)
}

func TestFetchRun_Failure(t *testing.T) {
	s := setupTestStore(t)

	run, err := s.StartFetchRun("ftp")
	require.NoError(t, err)
	require.NoError(t, s.CompleteFetchRun(run, 0, errors.New("ftp dial: refused")))

	runs, err := s.RecentFetchRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.False(t, runs[0].Success)
	assert.False(t, runs[0].Rows.Valid)
	assert.Equal(t, "ftp dial: refused", runs[0].ErrorMessage.String)
}

func TestCompleteFetchRun_Nil(t *testing.T) {
	s := setupTestStore(t)
	assert.NoError(t, s.CompleteFetchRun(nil, 1, nil))
}

func TestDailyRevenue_ReplaceAndGet(t *testing.T) {
	s := setupTestStore(t)

	first := []models.Observation{
		{Date: day(2025, 10, 2), Revenue: 200},
		{Date: day(2025, 10, 1), Revenue: 100},
	}
	require.NoError(t, s.ReplaceDailyRevenue(first))

	got, err := s.GetDailyRevenue()
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, day(2025, 10, 1), got[0].Date)
	assert.Equal(t, 100.0, got[0].Revenue)
	assert.Equal(t, day(2025, 10, 2), got[1].Date)

	second := []models.Observation{{Date: day(2025, 11, 5), Revenue: 50}}
	require.NoError(t, s.ReplaceDailyRevenue(second))

	got, err = s.GetDailyRevenue()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, day(2025, 11, 5), got[0].Date)
}

func TestModelRuns_LatestFirst(t *testing.T) {
	s := setupTestStore(t)

	latest, err := s.GetLatestModelRun()
	require.NoError(t, err)
	assert.Nil(t, latest)

	base := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)
	older := models.ModelRun{
		ID: "run-1", Strategy: "linear", TrainedAt: base, DataSize: 30,
		MAE: 10, RMSE: 12, R2: sql.NullFloat64{Float64: 0.8, Valid: true},
		ErrorMetric: "mape", ErrorValue: 5,
	}
	newer := models.ModelRun{
		ID: "run-2", Strategy: "seasonal", TrainedAt: base.Add(time.Hour), DataSize: 31,
		MAE: 8, RMSE: 9, ErrorMetric: "wmape", ErrorValue: 4,
	}
	require.NoError(t, s.InsertModelRun(older))
	require.NoError(t, s.InsertModelRun(newer))

	latest, err = s.GetLatestModelRun()
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "run-2", latest.ID)
	assert.Equal(t, "seasonal", latest.Strategy)
	assert.False(t, latest.R2.Valid)

	runs, err := s.GetModelRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-1", runs[1].ID)
	assert.InDelta(t, 0.8, runs[1].R2.Float64, 1e-9)
}
