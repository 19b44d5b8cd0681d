package models

import (
	"database/sql"
	"time"
)

// Observation is one calendar day's aggregated income.
type Observation struct {
	Date    time.Time `json:"date"`
	Revenue float64   `json:"revenue"`
}

// FinancialRecord is a raw row of the financials table.
type FinancialRecord struct {
	ID      int64   `json:"id_financial"`
	Tanggal string  `json:"tanggal"`
	Tipe    string  `json:"tipe"`
	Jumlah  float64 `json:"jumlah"`
}

const (
	TipeIncome  = "Pemasukan"
	TipeExpense = "Pengeluaran"
)

type Transaction struct {
	TanggalMasuk string   `json:"tanggal_masuk"`
	ServiceID    int64    `json:"service_id"`
	JumlahUnit   *float64 `json:"jumlah_unit"`
}

type InventoryItem struct {
	ID        int64    `json:"id_inventory_item"`
	Name      string   `json:"nama_barang"`
	StockLeft *float64 `json:"stok_sisa"`
	Unit      string   `json:"unit"`
}

// BOMEntry joins a service to one inventory item it consumes.
type BOMEntry struct {
	ServiceID    int64          `json:"service_id"`
	UsagePerUnit *float64       `json:"jumlah_dipakai_per_unit"`
	Item         *InventoryItem `json:"inventory_items"`
}

type FAQ struct {
	ID       int64  `json:"id_faq"`
	Question string `json:"pertanyaan"`
	Answer   string `json:"jawaban"`
}

type ModelRun struct {
	ID          string
	Strategy    string
	TrainedAt   time.Time
	DataSize    int
	MAE         float64
	RMSE        float64
	R2          sql.NullFloat64
	ErrorMetric string // "mape" or "wmape"
	ErrorValue  float64
}

type FetchRun struct {
	ID           int64
	Source       string
	StartedAt    time.Time
	FinishedAt   sql.NullTime
	Success      bool
	Rows         sql.NullInt64
	ErrorMessage sql.NullString
}
