package writer

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rxtech-lab/market-downloader/internal/types"
	"github.com/shopspring/decimal"
)

// FullPrecision disables decimal truncation in CSV output.
const FullPrecision = -1

// csvHeader is the column order of every CSV file this package writes.
var csvHeader = []string{"ticker", "timestamp", "open", "high", "low", "close", "volume"}

// CSVWriter writes bars as CSV, either to a single file or split into one
// file per UTC calendar day under a year/month directory layout.
type CSVWriter struct {
	path        string
	splitDir    string
	header      bool
	maxDecimals int
}

// NewCSVWriter creates a writer producing a single CSV file at path.
// maxDecimals truncates numeric fields to that many decimal places;
// FullPrecision keeps them untouched.
func NewCSVWriter(path string, header bool, maxDecimals int) *CSVWriter {
	return &CSVWriter{
		path:        path,
		header:      header,
		maxDecimals: maxDecimals,
	}
}

// NewSplitCSVWriter creates a writer producing one CSV file per calendar
// day at {dir}/{year}/{month}/{ticker}_{day}.csv.
func NewSplitCSVWriter(dir string, header bool, maxDecimals int) *CSVWriter {
	return &CSVWriter{
		splitDir:    dir,
		header:      header,
		maxDecimals: maxDecimals,
	}
}

// Write serializes the bars and returns the written paths.
func (w *CSVWriter) Write(bars []types.Bar) ([]string, error) {
	if w.splitDir != "" {
		return w.writeSplit(bars)
	}

	err := atomicWrite(w.path, func(out io.Writer) error {
		return w.writeCSV(out, bars)
	})
	if err != nil {
		return nil, err
	}

	return []string{w.path}, nil
}

// writeSplit groups bars by UTC calendar day, preserving fetch order, and
// writes one file per day that has data.
func (w *CSVWriter) writeSplit(bars []types.Bar) ([]string, error) {
	var days []time.Time

	groups := make(map[time.Time][]types.Bar)

	for _, bar := range bars {
		day := bar.Day()
		if _, seen := groups[day]; !seen {
			days = append(days, day)
		}

		groups[day] = append(groups[day], bar)
	}

	paths := make([]string, 0, len(days))

	for _, day := range days {
		group := groups[day]
		path := filepath.Join(
			w.splitDir,
			day.Format("2006"),
			day.Format("01"),
			fmt.Sprintf("%s_%s.csv", group[0].Ticker, day.Format("2006-01-02")))

		err := atomicWrite(path, func(out io.Writer) error {
			return w.writeCSV(out, group)
		})
		if err != nil {
			return nil, err
		}

		paths = append(paths, path)
	}

	return paths, nil
}

func (w *CSVWriter) writeCSV(out io.Writer, bars []types.Bar) error {
	csvWriter := csv.NewWriter(out)

	if w.header {
		if err := csvWriter.Write(csvHeader); err != nil {
			return err
		}
	}

	for _, bar := range bars {
		record := []string{
			bar.Ticker,
			bar.Time.UTC().Format(time.RFC3339),
			w.formatNumber(bar.Open),
			w.formatNumber(bar.High),
			w.formatNumber(bar.Low),
			w.formatNumber(bar.Close),
			w.formatNumber(bar.Volume),
		}
		if err := csvWriter.Write(record); err != nil {
			return err
		}
	}

	csvWriter.Flush()

	return csvWriter.Error()
}

// formatNumber renders a numeric field, truncated to the configured
// decimal-place count unless full precision is requested.
func (w *CSVWriter) formatNumber(value float64) string {
	if w.maxDecimals < 0 {
		return strconv.FormatFloat(value, 'f', -1, 64)
	}

	return decimal.NewFromFloat(value).Truncate(int32(w.maxDecimals)).String()
}
