package store

import (
	"fmt"
	"time"

	"github.com/lox/laundrydesk/internal/models"
)

// ReplaceDailyRevenue swaps the cached revenue series for obs.
func (s *Store) ReplaceDailyRevenue(obs []models.Observation) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM daily_revenue`); err != nil {
		return fmt.Errorf("clear daily revenue: %w", err)
	}

	now := s.now()
	for _, o := range obs {
		if _, err := tx.Exec(`
			INSERT INTO daily_revenue (date, revenue, fetched_at)
			VALUES (?, ?, ?)
			ON CONFLICT(date) DO UPDATE SET
				revenue = excluded.revenue,
				fetched_at = excluded.fetched_at
		`, o.Date.Format(time.DateOnly), o.Revenue, now); err != nil {
			return fmt.Errorf("insert %s: %w", o.Date.Format(time.DateOnly), err)
		}
	}
	return tx.Commit()
}

// GetDailyRevenue returns the cached series ordered by date.
func (s *Store) GetDailyRevenue() ([]models.Observation, error) {
	rows, err := s.db.Query(`SELECT date, revenue FROM daily_revenue ORDER BY date ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var obs []models.Observation
	for rows.Next() {
		var date string
		var o models.Observation
		if err := rows.Scan(&date, &o.Revenue); err != nil {
			return nil, err
		}
		o.Date, err = parseDate(date)
		if err != nil {
			return nil, fmt.Errorf("parse cached date %q: %w", date, err)
		}
		obs = append(obs, o)
	}
	return obs, rows.Err()
}

// parseDate accepts the plain date we write and the timestamp form the
// driver may hand back for DATE columns.
func parseDate(s string) (time.Time, error) {
	if len(s) >= len(time.DateOnly) {
		return time.Parse(time.DateOnly, s[:len(time.DateOnly)])
	}
	return time.Parse(time.DateOnly, s)
}
