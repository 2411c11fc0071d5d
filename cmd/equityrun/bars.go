package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/sawpanic/equityrun/internal/domain"
)

// loadBarsCSV reads OHLCV bars from a CSV with a header row:
// timestamp,open,high,low,close,volume. Timestamps are RFC3339 or
// YYYY-MM-DD.
func loadBarsCSV(path string) ([]domain.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bars file: %w", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse bars csv: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("bars file %s has no data rows", path)
	}

	bars := make([]domain.Bar, 0, len(records)-1)
	for i, rec := range records[1:] {
		if len(rec) < 6 {
			return nil, fmt.Errorf("bars row %d: want 6 columns, got %d", i+2, len(rec))
		}
		ts, err := parseBarTime(rec[0])
		if err != nil {
			return nil, fmt.Errorf("bars row %d: %w", i+2, err)
		}
		vals := make([]float64, 5)
		for j, s := range rec[1:6] {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("bars row %d col %d: %w", i+2, j+2, err)
			}
			vals[j] = v
		}
		bars = append(bars, domain.Bar{
			Timestamp: ts,
			Open:      vals[0],
			High:      vals[1],
			Low:       vals[2],
			Close:     vals[3],
			Volume:    vals[4],
		})
	}
	return bars, nil
}

func parseBarTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	ts, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad timestamp %q", s)
	}
	return ts, nil
}
