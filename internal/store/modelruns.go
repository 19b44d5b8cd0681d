package store

import (
	"github.com/lox/laundrydesk/internal/models"
)

func (s *Store) InsertModelRun(run models.ModelRun) error {
	_, err := s.db.Exec(`
		INSERT INTO model_runs (id, strategy, trained_at, data_size, mae, rmse, r2, error_metric, error_value)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Strategy, run.TrainedAt, run.DataSize, run.MAE, run.RMSE, run.R2, run.ErrorMetric, run.ErrorValue)
	return err
}

// GetLatestModelRun returns nil, nil when no model has been trained yet.
func (s *Store) GetLatestModelRun() (*models.ModelRun, error) {
	runs, err := s.GetModelRuns(1)
	if err != nil || len(runs) == 0 {
		return nil, err
	}
	return &runs[0], nil
}

// GetModelRuns returns up to limit runs, newest first.
func (s *Store) GetModelRuns(limit int) ([]models.ModelRun, error) {
	rows, err := s.db.Query(`
		SELECT id, strategy, trained_at, data_size, mae, rmse, r2, error_metric, error_value
		FROM model_runs
		ORDER BY trained_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.ModelRun
	for rows.Next() {
		var r models.ModelRun
		if err := rows.Scan(&r.ID, &r.Strategy, &r.TrainedAt, &r.DataSize, &r.MAE, &r.RMSE, &r.R2, &r.ErrorMetric, &r.ErrorValue); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
