package ingest

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// writeWorkbook saves rows (header first) to a fresh xlsx file in a temp
// directory and returns its path.
func writeWorkbook(t *testing.T, dir, name string, rows [][]interface{}) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	path := filepath.Join(dir, name)
	require.NoError(t, f.SaveAs(path))
	return path
}

var seriesHeader = []interface{}{
	"",
	"Data",
	"Nome da série: Vendas - Tesouro Direto - LFT Periodicidade: Mensal Unidade: R$ (milhões)",
	"Nome da série: Resgates - Tesouro Direto - LFT Periodicidade: Mensal Unidade: R$ (milhões)",
	"Nome da série: Vendas - Tesouro Direto - NTN-B Principal Unidade: R$ (milhões)",
	"Nome da série: Vendas - Tesouro Direto - Tesouro Educa+ Unidade: R$ (milhões)",
}
