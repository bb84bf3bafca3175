// Package report writes ranked restock scores as CSV.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/guarzo/mtgautobuy/internal/ips"
)

// Header is the column order of a results file.
var Header = []string{
	"rank", "scryfall_id", "card_name", "score",
	"stock_factor", "substitution_factor", "seasonal_multiplier", "market_signal",
}

// EscapeCell prefixes a quote to text a spreadsheet would evaluate as a
// formula. Card names such as "+2 Mace" are real and still need it.
func EscapeCell(value string) string {
	if value == "" {
		return value
	}
	switch value[0] {
	case '=', '+', '-', '@', '|', '%', '\t', '\r', '\n':
		return "'" + value
	}
	return value
}

// WriteResults writes results in rank order. Text columns are escaped; the
// numeric ones are formatted with four decimals.
func WriteResults(w io.Writer, results []ips.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, r := range results {
		row := []string{
			strconv.Itoa(i + 1),
			EscapeCell(r.CardID),
			EscapeCell(r.CardName),
			formatFloat(r.Score),
			formatFloat(r.Components.StockFactor),
			formatFloat(r.Components.SubstitutionFactor),
			formatFloat(r.Components.SeasonalMultiplier),
			formatFloat(r.Components.MarketSignal),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// FileSink writes each run to <dir>/autobuy-<date>.csv.
type FileSink struct {
	Dir string
}

// Path returns the file a run for date is written to.
func (s FileSink) Path(date time.Time) string {
	return filepath.Join(s.Dir, "autobuy-"+date.Format("2006-01-02")+".csv")
}

// Write stores results for date, replacing an earlier file for that day.
func (s FileSink) Write(date time.Time, results []ips.Result) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}

	path := s.Path(date)
	tmp, err := os.CreateTemp(s.Dir, ".autobuy-*.csv")
	if err != nil {
		return "", fmt.Errorf("create report: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteResults(tmp, results); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close report: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("move report into place: %w", err)
	}
	return path, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 4, 64)
}
