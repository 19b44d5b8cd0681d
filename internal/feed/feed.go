// Package feed produces the daily revenue series the forecaster trains on.
package feed

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/lox/laundrydesk/internal/models"
)

// DefaultMaxGapDays is the longest silence tolerated inside a training window.
const DefaultMaxGapDays = 21

// ErrNoData is returned when a source yields no usable income rows.
var ErrNoData = errors.New("no revenue data available")

// Source yields daily revenue observations sorted by date.
type Source interface {
	Name() string
	Observations(ctx context.Context) ([]models.Observation, error)
}

// Aggregate keeps income rows, sums them per calendar day and sorts by date.
// Rows whose date cannot be parsed are dropped.
func Aggregate(records []models.FinancialRecord) []models.Observation {
	byDay := make(map[time.Time]float64)
	for _, r := range records {
		if r.Tipe != models.TipeIncome {
			continue
		}
		d, ok := ParseTanggal(r.Tanggal)
		if !ok {
			continue
		}
		byDay[d] += r.Jumlah
	}

	out := make([]models.Observation, 0, len(byDay))
	for d, rev := range byDay {
		out = append(out, models.Observation{Date: d, Revenue: rev})
	}
	slices.SortFunc(out, func(a, b models.Observation) int {
		return a.Date.Compare(b.Date)
	})
	return out
}

// ParseTanggal reads the date part of a YYYY-MM-DD or ISO timestamp string.
func ParseTanggal(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "T "); i >= 0 {
		s = s[:i]
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// TrimBeforeGap drops all history before the last gap between consecutive
// observations longer than maxGapDays. obs must be sorted. A maxGapDays of
// zero or less disables trimming.
func TrimBeforeGap(obs []models.Observation, maxGapDays int) []models.Observation {
	if maxGapDays <= 0 || len(obs) < 2 {
		return obs
	}
	cutoff := 0
	for i := 1; i < len(obs); i++ {
		gap := obs[i].Date.Sub(obs[i-1].Date).Hours() / 24
		if gap > float64(maxGapDays) {
			cutoff = i
		}
	}
	return obs[cutoff:]
}

// Summary describes a revenue series for the historical view.
type Summary struct {
	TotalDays      int       `json:"total_days"`
	TotalRevenue   float64   `json:"total_revenue"`
	AverageRevenue float64   `json:"average_daily"`
	MinRevenue     float64   `json:"min_revenue"`
	MaxRevenue     float64   `json:"max_revenue"`
	From           time.Time `json:"-"`
	To             time.Time `json:"-"`
}

func Summarize(obs []models.Observation) Summary {
	if len(obs) == 0 {
		return Summary{}
	}
	s := Summary{
		TotalDays:  len(obs),
		MinRevenue: obs[0].Revenue,
		MaxRevenue: obs[0].Revenue,
		From:       obs[0].Date,
		To:         obs[0].Date,
	}
	for _, o := range obs {
		s.TotalRevenue += o.Revenue
		s.MinRevenue = min(s.MinRevenue, o.Revenue)
		s.MaxRevenue = max(s.MaxRevenue, o.Revenue)
		if o.Date.Before(s.From) {
			s.From = o.Date
		}
		if o.Date.After(s.To) {
			s.To = o.Date
		}
	}
	s.AverageRevenue = s.TotalRevenue / float64(len(obs))
	return s
}
