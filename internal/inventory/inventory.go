// Package inventory estimates how long consumable stock will last from recent
// order volume and each service's bill of materials.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"

	"github.com/lox/laundrydesk/internal/logging"
	"github.com/lox/laundrydesk/internal/models"
	"github.com/lox/laundrydesk/internal/supabase"
)

const (
	// RecentTransactions is how many of the latest transactions feed the load
	// estimate.
	RecentTransactions = 100

	// NoUsageDays is reported when an item is effectively unused.
	NoUsageDays = 999
	minUsage    = 0.0001

	criticalDays = 3
	warningDays  = 7
)

// ErrNoTransactions means there is no order history to estimate from.
var ErrNoTransactions = errors.New("no transactions available for prediction")

type Status string

const (
	StatusCritical Status = "critical"
	StatusWarning  Status = "warning"
	StatusSafe     Status = "safe"
)

// Thresholds are the safety stock levels for a unit of measure.
type Thresholds struct {
	Min      float64
	Critical float64
}

// ThresholdsFor returns the safety stock levels for unit.
func ThresholdsFor(unit string) Thresholds {
	switch unit {
	case "Tabung":
		return Thresholds{Min: 3, Critical: 1}
	case "Liter", "Kg":
		return Thresholds{Min: 5, Critical: 2}
	}
	return Thresholds{Min: 10, Critical: 5}
}

// Prediction is the supply outlook for one inventory item.
type Prediction struct {
	Name       string  `json:"nama_barang"`
	Stock      float64 `json:"stok_sekarang"`
	DailyUsage float64 `json:"pemakaian_harian_rata2"`
	Unit       string  `json:"satuan"`
	DaysLeft   int     `json:"estimasi_hari"`
	Status     Status  `json:"status"`
	Reason     string  `json:"reason"`
}

// DailyLoad averages units ordered per service over the days on which that
// service had at least one transaction.
func DailyLoad(txs []models.Transaction) map[int64]float64 {
	type key struct {
		date    string
		service int64
	}
	perDay := make(map[key]float64)
	for _, tx := range txs {
		date := tx.TanggalMasuk
		if i := strings.IndexAny(date, "T "); i >= 0 {
			date = date[:i]
		}
		var qty float64
		if tx.JumlahUnit != nil {
			qty = *tx.JumlahUnit
		}
		perDay[key{date, tx.ServiceID}] += qty
	}

	totals := make(map[int64]float64)
	days := make(map[int64]int)
	for k, qty := range perDay {
		totals[k.service] += qty
		days[k.service]++
	}
	out := make(map[int64]float64, len(totals))
	for svc, total := range totals {
		out[svc] = total / float64(days[svc])
	}
	return out
}

// Estimate joins service load to the bill of materials and classifies every
// item that at least one active service consumes. Items appear in the order
// they are first seen in bom.
func Estimate(load map[int64]float64, bom []models.BOMEntry) []Prediction {
	type usage struct {
		stock float64
		daily float64
		unit  string
	}
	var order []string
	byName := make(map[string]*usage)

	for _, entry := range bom {
		if entry.Item == nil {
			continue
		}
		daily, ok := load[entry.ServiceID]
		if !ok {
			continue
		}
		var rate float64
		if entry.UsagePerUnit != nil {
			rate = *entry.UsagePerUnit
		}
		u, seen := byName[entry.Item.Name]
		if !seen {
			var stock float64
			if entry.Item.StockLeft != nil {
				stock = *entry.Item.StockLeft
			}
			u = &usage{stock: stock, unit: entry.Item.Unit}
			byName[entry.Item.Name] = u
			order = append(order, entry.Item.Name)
		}
		u.daily += daily * rate
	}

	out := make([]Prediction, 0, len(order))
	for _, name := range order {
		u := byName[name]
		days := daysLeft(u.stock, u.daily)
		status, reason := classify(u.stock, days, ThresholdsFor(u.unit))
		out = append(out, Prediction{
			Name:       name,
			Stock:      round(u.stock, 2),
			DailyUsage: round(u.daily, 4),
			Unit:       u.unit,
			DaysLeft:   int(days),
			Status:     status,
			Reason:     reason,
		})
	}
	return out
}

func daysLeft(stock, daily float64) float64 {
	if daily > minUsage {
		return stock / daily
	}
	return NoUsageDays
}

// classify checks days of supply before the absolute stock floor.
func classify(stock, days float64, th Thresholds) (Status, string) {
	switch {
	case days < criticalDays:
		return StatusCritical, fmt.Sprintf("runs out in under %d days", criticalDays)
	case days < warningDays:
		return StatusWarning, fmt.Sprintf("runs out in under %d days", warningDays)
	case stock <= th.Critical:
		return StatusCritical, "stock at or below critical level"
	case stock <= th.Min:
		return StatusWarning, "stock running low"
	}
	return StatusSafe, "sufficient stock"
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// Selector is the subset of the table API the estimator needs.
type Selector interface {
	Select(ctx context.Context, table string, q supabase.Query, dst any) error
}

// Predictor loads transactions and the bill of materials from Supabase.
type Predictor struct {
	db  Selector
	log zerolog.Logger
}

func NewPredictor(db Selector) *Predictor {
	return &Predictor{db: db, log: logging.Component("inventory")}
}

func (p *Predictor) Predict(ctx context.Context) ([]Prediction, error) {
	var txs []models.Transaction
	err := p.db.Select(ctx, "transactions", supabase.Query{
		Select: "tanggal_masuk,service_id,jumlah_unit",
		Order:  "tanggal_masuk",
		Desc:   true,
		Limit:  RecentTransactions,
	}, &txs)
	if err != nil {
		return nil, fmt.Errorf("fetch transactions: %w", err)
	}
	if len(txs) == 0 {
		return nil, ErrNoTransactions
	}

	var bom []models.BOMEntry
	err = p.db.Select(ctx, "service_bom", supabase.Query{
		Select: "service_id,jumlah_dipakai_per_unit,inventory_items(id_inventory_item,nama_barang,stok_sisa,unit)",
	}, &bom)
	if err != nil {
		return nil, fmt.Errorf("fetch service bom: %w", err)
	}

	preds := Estimate(DailyLoad(txs), bom)
	p.log.Debug().Int("transactions", len(txs)).Int("items", len(preds)).Msg("inventory estimated")
	return preds, nil
}
