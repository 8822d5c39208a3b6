package database

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/viktsys/tdingest/models"
	"gorm.io/gorm"
)

// movementIndexes are the indexes declared on models.Movement. The natural
// key index comes first: nothing may be written without it.
var movementIndexes = []string{
	"uq_mov_unico",
	"idx_mov_titulo_periodo",
	"idx_mov_acao_periodo",
}

// EnsureIndexes creates any movement index that is missing, which happens
// when the table predates the gorm tags (for instance a database created by
// an older loader).
func EnsureIndexes(db *gorm.DB, log zerolog.Logger) error {
	m := db.Migrator()
	for _, name := range movementIndexes {
		if m.HasIndex(&models.Movement{}, name) {
			continue
		}
		if err := m.CreateIndex(&models.Movement{}, name); err != nil {
			return fmt.Errorf("failed to create index %s: %w", name, err)
		}
		log.Warn().Str("index", name).Msg("created missing index")
	}
	return nil
}
