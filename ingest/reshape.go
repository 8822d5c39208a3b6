package ingest

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/viktsys/tdingest/models"
	"github.com/xuri/excelize/v2"
)

// WideTable is a sheet as read from the workbook. Column 0 identifies the
// row, column 1 holds the period and every other column is a value series.
// Date1904 selects the workbook's 1904 date system for serial periods.
type WideTable struct {
	Header   []string
	Rows     [][]string
	Date1904 bool
}

// LongRow is a single (period, series) cell of a WideTable.
type LongRow struct {
	Periodo time.Time
	Serie   string
	Valor   string
}

// SkippedRow is a data row dropped because its period could not be read.
type SkippedRow struct {
	Line   int
	Reason string
}

type ReshapeReport struct {
	Rows    int
	Series  int
	Skipped []SkippedRow
}

// Reshape pivots a wide table into one LongRow per row and series. Periods
// are normalized to the first day of their month. Rows with an unreadable
// period are reported and skipped; every other cell yields exactly one row,
// empty when the source row is short.
func Reshape(t WideTable) ([]LongRow, ReshapeReport, error) {
	var report ReshapeReport
	if len(t.Header) < 3 {
		return nil, report, fmt.Errorf("expected at least 3 columns (id, period, series...), got %d", len(t.Header))
	}

	series := make([]string, len(t.Header)-2)
	for i, h := range t.Header[2:] {
		series[i] = CleanLabel(h)
	}
	report.Series = len(series)

	out := make([]LongRow, 0, len(t.Rows)*len(series))
	for i, row := range t.Rows {
		report.Rows++
		periodo, err := parsePeriod(cell(row, 1), t.Date1904)
		if err != nil {
			// +2: one for the header, one for 1-based sheet lines.
			report.Skipped = append(report.Skipped, SkippedRow{Line: i + 2, Reason: err.Error()})
			continue
		}
		for j, s := range series {
			out = append(out, LongRow{Periodo: periodo, Serie: s, Valor: cell(row, j+2)})
		}
	}
	return out, report, nil
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

var periodLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"02/01/2006",
	"01/2006",
	"2006-01",
	"01-02-06",
}

var monthAbbr = map[string]time.Month{
	"jan": time.January, "fev": time.February, "mar": time.March,
	"abr": time.April, "mai": time.May, "jun": time.June,
	"jul": time.July, "ago": time.August, "set": time.September,
	"out": time.October, "nov": time.November, "dez": time.December,
}

// ParsePeriod reads a period label and returns the first day of its month.
// Excel serial numbers, ISO and Brazilian dates, and "jan/2020" style labels
// are understood. Serials use the 1900 date system.
func ParsePeriod(s string) (time.Time, error) {
	return parsePeriod(s, false)
}

func parsePeriod(s string, date1904 bool) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty period")
	}

	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		if serial <= 0 {
			return time.Time{}, fmt.Errorf("invalid period serial %q", s)
		}
		t, err := excelize.ExcelDateToTime(serial, date1904)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid period serial %q: %w", s, err)
		}
		return models.MonthStart(t), nil
	}

	for _, layout := range periodLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return models.MonthStart(t), nil
		}
	}

	if name, year, ok := strings.Cut(strings.ToLower(s), "/"); ok {
		if month, known := monthAbbr[name]; known {
			y, err := strconv.Atoi(year)
			if err == nil && len(year) == 2 {
				y += 2000
			}
			if err == nil && y > 0 {
				return models.PeriodOf(y, int(month)), nil
			}
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized period %q", s)
}
