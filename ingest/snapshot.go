package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/viktsys/tdingest/models"
)

const snapshotDateLayout = "2006-01-02"

// snapshotRow is the on-disk layout of a cleaned row.
type snapshotRow struct {
	TituloID        int64   `parquet:"titulo_id"`
	CategoriaTitulo string  `parquet:"categoria_titulo"`
	Periodo         string  `parquet:"periodo"`
	Ano             int64   `parquet:"ano"`
	Mes             int64   `parquet:"mes"`
	Acao            string  `parquet:"acao"`
	ValorMilhoes    float64 `parquet:"valor_milhoes"`
	ValorReais      float64 `parquet:"valor_reais"`
}

// WriteSnapshot stores cleaned rows as a Parquet file.
func WriteSnapshot(path string, rows []Row) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	out := make([]snapshotRow, len(rows))
	for i, r := range rows {
		out[i] = snapshotRow{
			TituloID:        int64(r.TituloID),
			CategoriaTitulo: r.CategoriaTitulo,
			Periodo:         r.Periodo.Format(snapshotDateLayout),
			Ano:             int64(r.Ano),
			Mes:             int64(r.Mes),
			Acao:            string(r.Acao),
			ValorMilhoes:    r.ValorMilhoes,
			ValorReais:      r.ValorReais,
		}
	}

	if err := parquet.WriteFile(path, out); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// ReadSnapshot loads a file written by WriteSnapshot. Periods are normalized
// to the first of the month and amounts re-derived from valor_milhoes.
func ReadSnapshot(path string) ([]Row, error) {
	in, err := parquet.ReadFile[snapshotRow](path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	rows := make([]Row, 0, len(in))
	for i, s := range in {
		periodo, err := time.Parse(snapshotDateLayout, s.Periodo)
		if err != nil {
			return nil, fmt.Errorf("snapshot row %d: invalid periodo %q: %w", i, s.Periodo, err)
		}
		acao, err := models.ParseAction(s.Acao)
		if err != nil {
			return nil, fmt.Errorf("snapshot row %d: %w", i, err)
		}
		periodo = models.MonthStart(periodo)
		rows = append(rows, Row{
			TituloID:        int(s.TituloID),
			CategoriaTitulo: s.CategoriaTitulo,
			Periodo:         periodo,
			Ano:             periodo.Year(),
			Mes:             int(periodo.Month()),
			Acao:            acao,
			ValorMilhoes:    s.ValorMilhoes,
			ValorReais:      s.ValorMilhoes * models.ReaisPerMillion,
		})
	}
	return rows, nil
}
