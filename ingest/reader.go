package ingest

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ReadWorkbook loads the first sheet of an xlsx file as a WideTable. The
// first non-empty row is the header. Cells are read raw, so dates arrive as
// Excel serial numbers and amounts without display formatting.
func ReadWorkbook(path string) (WideTable, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return WideTable{}, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return WideTable{}, fmt.Errorf("workbook %s has no sheets", path)
	}

	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return WideTable{}, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}

	props, err := f.GetWorkbookProps()
	if err != nil {
		return WideTable{}, fmt.Errorf("failed to read workbook properties: %w", err)
	}
	date1904 := props.Date1904 != nil && *props.Date1904

	for i, row := range rows {
		if isBlank(row) {
			continue
		}
		return WideTable{Header: row, Rows: rows[i+1:], Date1904: date1904}, nil
	}
	return WideTable{}, fmt.Errorf("sheet %q is empty", sheets[0])
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
