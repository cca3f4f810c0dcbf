// Package marketdata reads, writes and resamples bar files.
package marketdata

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"longbtc-go/internal/market"
)

// TimeLayout is the timestamp format written to bar files.
const TimeLayout = "2006-01-02 15:04:05"

var timeLayouts = []string{
	TimeLayout,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04",
}

// Stats counts what the loader kept and dropped.
type Stats struct {
	Rows       int
	Kept       int
	Dropped    int
	Duplicates int
}

type columns struct {
	time, open, high, low, close, volume int
}

func findColumns(header []string) (columns, error) {
	cols := columns{-1, -1, -1, -1, -1, -1}
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))) {
		case "datetime", "timestamp", "time", "date", "open time", "open_time":
			if cols.time < 0 {
				cols.time = i
			}
		case "open":
			cols.open = i
		case "high":
			cols.high = i
		case "low":
			cols.low = i
		case "close":
			cols.close = i
		case "volume":
			cols.volume = i
		}
	}
	switch {
	case cols.time < 0:
		return cols, errors.New("missing Datetime column")
	case cols.open < 0 || cols.high < 0 || cols.low < 0 || cols.close < 0:
		return cols, errors.New("missing one of Open, High, Low, Close columns")
	}
	return cols, nil
}

// ParseTime accepts the layouts found in exported bar files and unix
// milliseconds. Zone-less timestamps are taken as UTC.
func ParseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", raw)
}

// ReadCSV parses Datetime,Open,High,Low,Close[,Volume] rows. Rows with
// unparsable or non-finite values are dropped and counted, as are repeated
// timestamps; the first occurrence wins. Order is otherwise preserved.
func ReadCSV(r io.Reader) (*market.Series, Stats, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, Stats{}, fmt.Errorf("read header: %w", err)
	}
	cols, err := findColumns(header)
	if err != nil {
		return nil, Stats{}, err
	}

	var (
		stats Stats
		bars  []market.Bar
		seen  = make(map[int64]struct{})
	)
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, stats, fmt.Errorf("read row %d: %w", stats.Rows+1, err)
		}
		stats.Rows++
		bar, ok := parseRow(rec, cols)
		if !ok {
			stats.Dropped++
			continue
		}
		key := bar.Time.UnixNano()
		if _, dup := seen[key]; dup {
			stats.Duplicates++
			continue
		}
		seen[key] = struct{}{}
		bars = append(bars, bar)
	}
	stats.Kept = len(bars)
	return market.NewSeries(bars), stats, nil
}

func parseRow(rec []string, cols columns) (market.Bar, bool) {
	field := func(i int) (float64, bool) {
		if i < 0 || i >= len(rec) {
			return 0, false
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[i]), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return v, true
	}
	if cols.time >= len(rec) {
		return market.Bar{}, false
	}
	ts, err := ParseTime(rec[cols.time])
	if err != nil {
		return market.Bar{}, false
	}
	bar := market.Bar{Time: ts}
	var ok bool
	if bar.Open, ok = field(cols.open); !ok {
		return market.Bar{}, false
	}
	if bar.High, ok = field(cols.high); !ok {
		return market.Bar{}, false
	}
	if bar.Low, ok = field(cols.low); !ok {
		return market.Bar{}, false
	}
	if bar.Close, ok = field(cols.close); !ok {
		return market.Bar{}, false
	}
	if cols.volume >= 0 {
		if bar.Volume, ok = field(cols.volume); !ok {
			return market.Bar{}, false
		}
	}
	return bar, bar.Finite()
}

// LoadCSV opens path and reads it with ReadCSV.
func LoadCSV(path string) (*market.Series, Stats, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("open bars: %w", err)
	}
	defer file.Close()
	return ReadCSV(file)
}

// WriteCSV writes bars with a Datetime,Open,High,Low,Close,Volume header.
func WriteCSV(w io.Writer, bars []market.Bar) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Datetime", "Open", "High", "Low", "Close", "Volume"}); err != nil {
		return err
	}
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	for _, b := range bars {
		if err := cw.Write([]string{b.Time.UTC().Format(TimeLayout), f(b.Open), f(b.High), f(b.Low), f(b.Close), f(b.Volume)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// SaveCSV writes bars to path, creating or truncating it along with its directory.
func SaveCSV(path string, bars []market.Bar) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create bars directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create bars: %w", err)
	}
	if err := WriteCSV(file, bars); err != nil {
		file.Close()
		return fmt.Errorf("write bars: %w", err)
	}
	return file.Close()
}
