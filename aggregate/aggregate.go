// Package aggregate answers grouped queries over movements.
package aggregate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/viktsys/tdingest/models"
	"gorm.io/gorm"
)

type GroupBy string

const (
	GroupByMonth GroupBy = ""
	GroupByYear  GroupBy = "ano"
)

// ParseGroupBy accepts "", "mes", "none" for monthly buckets and "ano",
// "year" for yearly ones.
func ParseGroupBy(s string) (GroupBy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "mes", "none":
		return GroupByMonth, nil
	case "ano", "year":
		return GroupByYear, nil
	}
	return "", models.InvalidArgument("agrupar", s, "group_by must be none or ano")
}

// Filter restricts a query to an inclusive period range. Nil bounds are open.
type Filter struct {
	Inicio  *time.Time
	Fim     *time.Time
	GroupBy GroupBy
}

func (f Filter) validate() error {
	if f.GroupBy != GroupByMonth && f.GroupBy != GroupByYear {
		return models.InvalidArgument("agrupar", string(f.GroupBy), "group_by must be none or ano")
	}
	if f.Inicio != nil && f.Fim != nil && f.Inicio.After(*f.Fim) {
		return models.InvalidArgument("data_inicio", f.Inicio.Format("2006-01-02"), "start date is after end date")
	}
	return nil
}

type Service struct {
	db          *gorm.DB
	instruments models.InstrumentTable
	log         zerolog.Logger
}

func New(db *gorm.DB, instruments models.InstrumentTable, log zerolog.Logger) *Service {
	return &Service{
		db:          db,
		instruments: instruments,
		log:         log.With().Str("component", "aggregate").Logger(),
	}
}

// Instruments lists the fixed instrument table ordered by id.
func (s *Service) Instruments() []models.Instrument {
	return s.instruments.All()
}

// History sums sales and redemptions of one instrument per bucket. Both
// totals are always present, zero when there was no movement.
func (s *Service) History(ctx context.Context, tituloID int, f Filter) ([]models.HistoryBucket, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	if err := s.checkInstruments([]int{tituloID}); err != nil {
		return nil, err
	}

	rows, err := s.load(ctx, []int{tituloID}, "", f)
	if err != nil {
		return nil, err
	}
	return groupHistory(rows, f.GroupBy), nil
}

// Compare returns, per bucket, the totals of each instrument that moved in
// it. Instruments without movements in a bucket are left out of that bucket.
func (s *Service) Compare(ctx context.Context, ids []int, f Filter) ([]models.ComparisonBucket, error) {
	ids = distinct(ids)
	if len(ids) < 2 {
		return nil, models.InvalidArgument("titulos", ids, "comparison needs at least two instruments")
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	if err := s.checkInstruments(ids); err != nil {
		return nil, err
	}

	rows, err := s.load(ctx, ids, "", f)
	if err != nil {
		return nil, err
	}
	return groupComparison(rows, f.GroupBy, s.instruments), nil
}

// Series sums a single action per bucket. No ids means every instrument.
func (s *Service) Series(ctx context.Context, acao models.Action, ids []int, f Filter) ([]models.SeriesBucket, error) {
	if !acao.Valid() {
		return nil, models.InvalidArgument("acao", string(acao), "action must be venda or resgate")
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	ids = distinct(ids)
	if err := s.checkInstruments(ids); err != nil {
		return nil, err
	}

	rows, err := s.load(ctx, ids, acao, f)
	if err != nil {
		return nil, err
	}
	return groupSeries(rows, f.GroupBy), nil
}

func (s *Service) checkInstruments(ids []int) error {
	for _, id := range ids {
		if _, ok := s.instruments.ByID(id); !ok {
			return models.NotFound("instrument", id)
		}
	}
	return nil
}

// load reads the filtered movements in a single statement.
func (s *Service) load(ctx context.Context, ids []int, acao models.Action, f Filter) ([]models.Movement, error) {
	q := s.db.WithContext(ctx).
		Model(&models.Movement{}).
		Select("titulo_id", "ano", "mes", "acao", "valor_reais")
	if len(ids) > 0 {
		q = q.Where("titulo_id IN ?", ids)
	}
	if acao != "" {
		q = q.Where("acao = ?", acao)
	}
	if f.Inicio != nil {
		q = q.Where("periodo >= ?", f.Inicio.UTC())
	}
	if f.Fim != nil {
		q = q.Where("periodo <= ?", f.Fim.UTC())
	}

	var rows []models.Movement
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load movements: %w", err)
	}
	s.log.Debug().Ints("titulos", ids).Str("acao", string(acao)).Int("rows", len(rows)).Msg("movements loaded")
	return rows, nil
}

func distinct(ids []int) []int {
	seen := make(map[int]bool, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
