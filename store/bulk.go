package store

import (
	"context"
	"fmt"

	"github.com/viktsys/tdingest/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BulkResult struct {
	Rows       int
	Duplicates int
}

// BulkLoad writes a full snapshot. Each movement replaces whatever is stored
// at its natural key; when the input repeats a key the last occurrence wins.
// Everything is written in one transaction, batchSize rows per statement.
func (s *Store) BulkLoad(ctx context.Context, movements []models.Movement, batchSize int) (BulkResult, error) {
	if batchSize <= 0 {
		batchSize = len(movements)
	}

	rows := make([]models.Movement, 0, len(movements))
	index := make(map[naturalKey]int, len(movements))
	for i, m := range movements {
		if _, ok := s.instruments.ByID(m.TituloID); !ok {
			return BulkResult{}, models.InvalidArgument("titulo_id", m.TituloID, fmt.Sprintf("row %d: unknown instrument", i))
		}
		if !m.Acao.Valid() {
			return BulkResult{}, models.InvalidArgument("acao", string(m.Acao), fmt.Sprintf("row %d: invalid action", i))
		}
		if m.ValorMilhoes < 0 {
			return BulkResult{}, models.InvalidArgument("valor_milhoes", m.ValorMilhoes, fmt.Sprintf("row %d: negative amount", i))
		}

		periodo := models.MonthStart(m.Periodo)
		row := models.Movement{TituloID: m.TituloID, Acao: m.Acao}
		row.SetPeriod(periodo.Year(), int(periodo.Month()))
		row.SetMillions(m.ValorMilhoes)

		key := keyOf(row)
		if at, dup := index[key]; dup {
			rows[at] = row
			continue
		}
		index[key] = len(rows)
		rows = append(rows, row)
	}

	result := BulkResult{Rows: len(rows), Duplicates: len(movements) - len(rows)}
	if len(rows) == 0 {
		return result, nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Omit(clause.Associations).
			Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "titulo_id"}, {Name: "periodo"}, {Name: "acao"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"valor_milhoes", "valor_reais", "ano", "mes", "updated_at",
				}),
			}).
			CreateInBatches(&rows, batchSize).Error
	})
	if err != nil {
		return BulkResult{}, fmt.Errorf("failed to bulk load movements: %w", err)
	}

	s.log.Info().
		Int("rows", result.Rows).
		Int("duplicates", result.Duplicates).
		Msg("bulk load committed")
	return result, nil
}
