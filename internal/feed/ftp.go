package feed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/lox/laundrydesk/internal/models"
)

// FTPConfig locates a CSV export of the financials table.
type FTPConfig struct {
	Addr     string // host:port
	User     string
	Password string
	Path     string
	Timeout  time.Duration
}

// FTPSource reads a tanggal,tipe,jumlah CSV from an FTP server.
type FTPSource struct {
	cfg FTPConfig
}

func NewFTPSource(cfg FTPConfig) *FTPSource {
	if cfg.User == "" {
		cfg.User = "anonymous"
		cfg.Password = "anonymous"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &FTPSource{cfg: cfg}
}

func (s *FTPSource) Name() string { return "ftp" }

func (s *FTPSource) Observations(ctx context.Context) ([]models.Observation, error) {
	conn, err := ftp.Dial(s.cfg.Addr, ftp.DialWithTimeout(s.cfg.Timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("ftp dial: %w", err)
	}
	defer conn.Quit()

	if err := conn.Login(s.cfg.User, s.cfg.Password); err != nil {
		return nil, fmt.Errorf("ftp login: %w", err)
	}

	resp, err := conn.Retr(s.cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("ftp retr: %w", err)
	}
	defer resp.Close()

	records, err := ParseCSV(resp)
	if err != nil {
		return nil, err
	}
	obs := Aggregate(records)
	if len(obs) == 0 {
		return nil, ErrNoData
	}
	return obs, nil
}

// ParseCSV reads financial rows with a header naming at least the tanggal,
// tipe and jumlah columns. Rows with an unparsable amount are skipped.
func ParseCSV(r io.Reader) ([]models.FinancialRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := map[string]int{}
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, want := range []string{"tanggal", "tipe", "jumlah"} {
		if _, ok := cols[want]; !ok {
			return nil, fmt.Errorf("csv missing column %q", want)
		}
	}

	var out []models.FinancialRecord
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if len(row) <= max(cols["tanggal"], cols["tipe"], cols["jumlah"]) {
			continue
		}
		amount, err := strconv.ParseFloat(strings.TrimSpace(row[cols["jumlah"]]), 64)
		if err != nil {
			continue
		}
		out = append(out, models.FinancialRecord{
			Tanggal: row[cols["tanggal"]],
			Tipe:    strings.TrimSpace(row[cols["tipe"]]),
			Jumlah:  amount,
		})
	}
	return out, nil
}
