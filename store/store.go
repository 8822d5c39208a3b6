// Package store maintains movements under the (titulo_id, periodo, acao)
// uniqueness rule. Incremental writes accumulate into an existing movement,
// bulk loads replace it.
package store

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"github.com/viktsys/tdingest/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const naturalKeyWhere = "titulo_id = ? AND periodo = ? AND acao = ?"

type Store struct {
	db          *gorm.DB
	instruments models.InstrumentTable
	locks       *keyLocks
	log         zerolog.Logger
}

func New(db *gorm.DB, instruments models.InstrumentTable, log zerolog.Logger) *Store {
	return &Store{
		db:          db,
		instruments: instruments,
		locks:       newKeyLocks(),
		log:         log.With().Str("component", "store").Logger(),
	}
}

// WriteRequest is an observed flow to be added to a monthly total. Valor is
// in reais.
type WriteRequest struct {
	Categoria string
	Ano       int
	Mes       int
	Acao      models.Action
	Valor     float64
}

type WriteResult struct {
	MovementID uint
	Created    bool
}

// Operation is "created" or "merged".
func (r WriteResult) Operation() string {
	if r.Created {
		return "created"
	}
	return "merged"
}

// Record adds req.Valor to the movement at the request's natural key,
// creating it when absent.
func (s *Store) Record(ctx context.Context, req WriteRequest) (WriteResult, error) {
	in, ok := s.instruments.ByName(req.Categoria)
	if !ok {
		return WriteResult{}, models.InvalidCategory(req.Categoria)
	}
	if err := validateFields(&req.Ano, &req.Mes, &req.Acao, &req.Valor); err != nil {
		return WriteResult{}, err
	}

	key := naturalKey{tituloID: in.ID, ano: req.Ano, mes: req.Mes, acao: req.Acao}
	unlock := s.locks.lock(key)
	defer unlock()

	res, err := s.record(ctx, key, req.Valor)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// Another process created the key between our read and insert.
		res, err = s.record(ctx, key, req.Valor)
	}
	if err != nil {
		return WriteResult{}, fmt.Errorf("failed to record movement: %w", err)
	}

	s.log.Debug().
		Uint("movement_id", res.MovementID).
		Str("operation", res.Operation()).
		Int("titulo_id", in.ID).
		Int("ano", req.Ano).
		Int("mes", req.Mes).
		Str("acao", string(req.Acao)).
		Msg("movement recorded")
	return res, nil
}

func (s *Store) record(ctx context.Context, key naturalKey, valor float64) (WriteResult, error) {
	var res WriteResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m models.Movement
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where(naturalKeyWhere, key.tituloID, key.periodo(), key.acao).
			Take(&m).Error

		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			m = models.Movement{TituloID: key.tituloID, Acao: key.acao}
			m.SetPeriod(key.ano, key.mes)
			m.SetReais(valor)
			if err := tx.Omit(clause.Associations).Create(&m).Error; err != nil {
				return err
			}
			res = WriteResult{MovementID: m.ID, Created: true}
		case err != nil:
			return err
		default:
			m.SetReais(m.ValorReais + valor)
			if err := tx.Omit(clause.Associations).Save(&m).Error; err != nil {
				return err
			}
			res = WriteResult{MovementID: m.ID}
		}
		return nil
	})
	return res, err
}

// UpdateRequest holds the fields to change; nil fields are left alone. Valor
// replaces the amount in reais.
type UpdateRequest struct {
	Ano   *int
	Mes   *int
	Acao  *models.Action
	Valor *float64
}

// Update applies req to movement id. The natural key is checked against the
// other movements only after every field has been applied.
func (s *Store) Update(ctx context.Context, id uint, req UpdateRequest) (models.Movement, error) {
	if err := validateFields(req.Ano, req.Mes, req.Acao, req.Valor); err != nil {
		return models.Movement{}, err
	}

	var m models.Movement
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Take(&m, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NotFound("movement", id)
			}
			return err
		}

		if req.Ano != nil || req.Mes != nil {
			ano, mes := m.Ano, m.Mes
			if req.Ano != nil {
				ano = *req.Ano
			}
			if req.Mes != nil {
				mes = *req.Mes
			}
			m.SetPeriod(ano, mes)
		}
		if req.Acao != nil {
			m.Acao = *req.Acao
		}
		if req.Valor != nil {
			m.SetReais(*req.Valor)
		}

		var taken int64
		err := tx.Model(&models.Movement{}).
			Where(naturalKeyWhere, m.TituloID, m.Periodo, m.Acao).
			Where("id <> ?", m.ID).
			Count(&taken).Error
		if err != nil {
			return err
		}
		if taken > 0 {
			return models.Conflict(m)
		}

		if err := tx.Omit(clause.Associations).Save(&m).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return models.Conflict(m)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return models.Movement{}, wrap("update", err)
	}

	s.log.Debug().Uint("movement_id", m.ID).Msg("movement updated")
	return m, nil
}

// Delete removes movement id.
func (s *Store) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.Movement{}, id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete movement: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NotFound("movement", id)
	}
	s.log.Debug().Uint("movement_id", id).Msg("movement deleted")
	return nil
}

func (s *Store) Get(ctx context.Context, id uint) (models.Movement, error) {
	var m models.Movement
	if err := s.db.WithContext(ctx).Take(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return m, models.NotFound("movement", id)
		}
		return m, fmt.Errorf("failed to get movement: %w", err)
	}
	return m, nil
}

// validateFields checks whichever of the fields are non-nil.
func validateFields(ano, mes *int, acao *models.Action, valor *float64) error {
	if mes != nil && (*mes < 1 || *mes > 12) {
		return models.InvalidMonth(*mes)
	}
	if ano != nil && (*ano < 1 || *ano > 9999) {
		return models.InvalidArgument("ano", *ano, "year must be between 1 and 9999")
	}
	if acao != nil && !acao.Valid() {
		return models.InvalidArgument("acao", string(*acao), "action must be venda or resgate")
	}
	if valor != nil && (*valor < 0 || math.IsNaN(*valor) || math.IsInf(*valor, 0)) {
		return models.InvalidArgument("valor", *valor, "amount must be a finite value >= 0")
	}
	return nil
}

// wrap leaves domain errors untouched and annotates everything else.
func wrap(op string, err error) error {
	var domainErr *models.Error
	if errors.As(err, &domainErr) {
		return err
	}
	return fmt.Errorf("failed to %s movement: %w", op, err)
}
