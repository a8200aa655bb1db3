package marketdata

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

// CSVProvider serves bars from per-symbol CSV files on disk. Files are named
// <symbol>.csv with a time,open,high,low,close,volume header.
type CSVProvider struct {
	dir    string
	logger *logrus.Logger
}

// NewCSVProvider creates a CSV-backed provider rooted at dir.
func NewCSVProvider(dir string, logger *logrus.Logger) (*CSVProvider, error) {
	if dir == "" {
		return nil, fmt.Errorf("csv provider requires a data directory")
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &CSVProvider{dir: dir, logger: logger}, nil
}

// Name returns the name of the provider
func (p *CSVProvider) Name() string {
	return "csv"
}

// Bars loads the symbol file and returns bars within [start, end) in time order.
func (p *CSVProvider) Bars(ctx context.Context, symbol string, start, end time.Time) ([]Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := filepath.Join(p.dir, symbol+".csv")
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NewProviderError(p.Name(), ErrCodeNotFound, fmt.Sprintf("no data file for symbol %s", symbol), err)
		}
		return nil, NewProviderError(p.Name(), ErrCodeInvalidData, "failed to open data file", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, NewProviderError(p.Name(), ErrCodeInvalidData, "failed to parse CSV", err)
	}
	if len(records) < 2 {
		return nil, NewProviderError(p.Name(), ErrCodeInvalidData, "data file has no rows", nil)
	}

	bars := make([]Bar, 0, len(records)-1)
	for i, row := range records[1:] {
		bar, err := parseBarRow(row)
		if err != nil {
			p.logger.WithFields(logrus.Fields{
				"file": path,
				"row":  i + 2,
			}).WithError(err).Warn("Skipping malformed bar row")
			continue
		}
		if bar.Time.Before(start) || !bar.Time.Before(end) {
			continue
		}
		bars = append(bars, bar)
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return bars, nil
}

func parseBarRow(row []string) (Bar, error) {
	if len(row) < 6 {
		return Bar{}, fmt.Errorf("expected 6 columns, got %d", len(row))
	}

	ts, err := parseBarTime(row[0])
	if err != nil {
		return Bar{}, fmt.Errorf("invalid time %q: %w", row[0], err)
	}

	fields := make([]float64, 5)
	for i := 0; i < 5; i++ {
		v, err := strconv.ParseFloat(row[i+1], 64)
		if err != nil {
			return Bar{}, fmt.Errorf("invalid numeric field %q: %w", row[i+1], err)
		}
		fields[i] = v
	}

	bar := Bar{
		Time:   ts,
		Open:   fields[0],
		High:   fields[1],
		Low:    fields[2],
		Close:  fields[3],
		Volume: fields[4],
	}
	if bar.High < bar.Low || bar.Open <= 0 || bar.Close <= 0 {
		return Bar{}, fmt.Errorf("inconsistent OHLC values")
	}
	return bar, nil
}

func parseBarTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts.UTC(), nil
	}
	return time.Parse("2006-01-02", s)
}
