package feed

import (
	"context"
	"fmt"

	"github.com/lox/laundrydesk/internal/models"
	"github.com/lox/laundrydesk/internal/supabase"
)

// Selector is the subset of the table API the feed needs.
type Selector interface {
	Select(ctx context.Context, table string, q supabase.Query, dst any) error
}

// SupabaseSource reads the financials table.
type SupabaseSource struct {
	db Selector
}

func NewSupabaseSource(db Selector) *SupabaseSource {
	return &SupabaseSource{db: db}
}

func (s *SupabaseSource) Name() string { return "supabase" }

func (s *SupabaseSource) Observations(ctx context.Context) ([]models.Observation, error) {
	var records []models.FinancialRecord
	err := s.db.Select(ctx, "financials", supabase.Query{
		Select: "tanggal,tipe,jumlah",
		Order:  "tanggal",
	}, &records)
	if err != nil {
		return nil, fmt.Errorf("fetch financials: %w", err)
	}
	obs := Aggregate(records)
	if len(obs) == 0 {
		return nil, ErrNoData
	}
	return obs, nil
}
