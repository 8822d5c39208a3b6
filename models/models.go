package models

import (
	"fmt"
	"strings"
	"time"
)

// ReaisPerMillion converts valor_milhoes into valor_reais.
const ReaisPerMillion = 1_000_000

// Action is the direction of a movement. Stored values are Portuguese.
type Action string

const (
	ActionSale       Action = "venda"
	ActionRedemption Action = "resgate"
)

// ParseAction accepts the stored values and their English aliases.
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "venda", "sale":
		return ActionSale, nil
	case "resgate", "redemption":
		return ActionRedemption, nil
	}
	return "", fmt.Errorf("unknown action %q", s)
}

func (a Action) Valid() bool {
	return a == ActionSale || a == ActionRedemption
}

// Instrument representa um título do Tesouro Direto
type Instrument struct {
	ID              int    `gorm:"primaryKey;autoIncrement:false" json:"id"`
	CategoriaTitulo string `gorm:"size:40;not null;uniqueIndex" json:"categoria_titulo"`
}

func (Instrument) TableName() string { return "titulos" }

// Movement é o valor vendido ou resgatado de um título em um mês
type Movement struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	TituloID     int        `gorm:"not null;uniqueIndex:uq_mov_unico,priority:1;index:idx_mov_titulo_periodo,priority:1" json:"titulo_id"`
	Titulo       Instrument `gorm:"foreignKey:TituloID;constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT" json:"-"`
	Periodo      time.Time  `gorm:"type:date;not null;uniqueIndex:uq_mov_unico,priority:2;index:idx_mov_titulo_periodo,priority:2;index:idx_mov_acao_periodo,priority:2" json:"periodo"`
	Ano          int        `gorm:"not null" json:"ano"`
	Mes          int        `gorm:"not null" json:"mes"`
	Acao         Action     `gorm:"size:10;not null;check:ck_acao,acao IN ('venda','resgate');uniqueIndex:uq_mov_unico,priority:3;index:idx_mov_acao_periodo,priority:1" json:"acao"`
	ValorMilhoes float64    `gorm:"not null" json:"valor_milhoes"`
	ValorReais   float64    `gorm:"not null" json:"valor_reais"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (Movement) TableName() string { return "titulos_movimentos" }

// SetPeriod sets Periodo, Ano and Mes together.
func (m *Movement) SetPeriod(year, month int) {
	m.Periodo = PeriodOf(year, month)
	m.Ano = year
	m.Mes = month
}

// SetReais sets ValorReais and recomputes ValorMilhoes.
func (m *Movement) SetReais(v float64) {
	m.ValorReais = v
	m.ValorMilhoes = v / ReaisPerMillion
}

// SetMillions sets ValorMilhoes and recomputes ValorReais.
func (m *Movement) SetMillions(v float64) {
	m.ValorMilhoes = v
	m.ValorReais = v * ReaisPerMillion
}

// PeriodOf returns the first day of the given month in UTC.
func PeriodOf(year, month int) time.Time {
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
}

// MonthStart truncates t to the first day of its month in UTC.
func MonthStart(t time.Time) time.Time {
	return PeriodOf(t.Year(), int(t.Month()))
}

// ActionTotals são as somas em reais de vendas e resgates de um bucket
type ActionTotals struct {
	ValorVenda   float64 `json:"valor_venda"`
	ValorResgate float64 `json:"valor_resgate"`
}

// Add accumulates v into the total for action a.
func (t *ActionTotals) Add(a Action, v float64) {
	switch a {
	case ActionSale:
		t.ValorVenda += v
	case ActionRedemption:
		t.ValorResgate += v
	}
}

// HistoryBucket é um ponto do histórico de um título. Mes fica nil no
// agrupamento anual.
type HistoryBucket struct {
	Ano int  `json:"ano"`
	Mes *int `json:"mes,omitempty"`
	ActionTotals
}

// InstrumentTotals são os totais de um título dentro de um bucket
type InstrumentTotals struct {
	TituloID        int    `json:"titulo_id"`
	CategoriaTitulo string `json:"categoria_titulo"`
	ActionTotals
}

// ComparisonBucket agrupa os totais de vários títulos em um mesmo período
type ComparisonBucket struct {
	Ano     int                `json:"ano"`
	Mes     *int               `json:"mes,omitempty"`
	Titulos []InstrumentTotals `json:"titulos"`
}

// SeriesBucket é o total de uma única ação em um período
type SeriesBucket struct {
	Ano   int     `json:"ano"`
	Mes   *int    `json:"mes,omitempty"`
	Valor float64 `json:"valor"`
}
