package store

import (
	"database/sql"

	"github.com/lox/laundrydesk/internal/models"
)

// StartFetchRun records the start of an upstream fetch for auditing.
func (s *Store) StartFetchRun(source string) (*models.FetchRun, error) {
	run := &models.FetchRun{
		Source:    source,
		StartedAt: s.now(),
	}

	result, err := s.db.Exec(`
		INSERT INTO fetch_runs (source, started_at, success)
		VALUES (?, ?, FALSE)
	`, run.Source, run.StartedAt)
	if err != nil {
		return nil, err
	}

	run.ID, err = result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return run, nil
}

// CompleteFetchRun stores the outcome of a run started with StartFetchRun.
func (s *Store) CompleteFetchRun(run *models.FetchRun, rows int, fetchErr error) error {
	if run == nil {
		return nil
	}

	run.FinishedAt = sql.NullTime{Time: s.now(), Valid: true}
	run.Success = fetchErr == nil
	run.Rows = sql.NullInt64{Int64: int64(rows), Valid: fetchErr == nil}
	if fetchErr != nil {
		run.ErrorMessage = sql.NullString{String: fetchErr.Error(), Valid: true}
	}

	_, err := s.db.Exec(`
		UPDATE fetch_runs SET
			finished_at = ?,
			success = ?,
			rows = ?,
			error_message = ?
		WHERE id = ?
	`, run.FinishedAt, run.Success, run.Rows, run.ErrorMessage, run.ID)
	return err
}

// RecentFetchRuns returns the latest runs, newest first.
func (s *Store) RecentFetchRuns(limit int) ([]models.FetchRun, error) {
	rows, err := s.db.Query(`
		SELECT id, source, started_at, finished_at, success, rows, error_message
		FROM fetch_runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []models.FetchRun
	for rows.Next() {
		var r models.FetchRun
		if err := rows.Scan(&r.ID, &r.Source, &r.StartedAt, &r.FinishedAt, &r.Success, &r.Rows, &r.ErrorMessage); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
