package ingest

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/viktsys/tdingest/models"
)

// Row is one cleaned observation, ready for the bulk loader.
type Row struct {
	TituloID        int
	CategoriaTitulo string
	Periodo         time.Time
	Ano             int
	Mes             int
	Acao            models.Action
	ValorMilhoes    float64
	ValorReais      float64
}

func (r Row) Movement() models.Movement {
	return models.Movement{
		TituloID:     r.TituloID,
		Periodo:      r.Periodo,
		Ano:          r.Ano,
		Mes:          r.Mes,
		Acao:         r.Acao,
		ValorMilhoes: r.ValorMilhoes,
		ValorReais:   r.ValorReais,
	}
}

type FilterReport struct {
	Input           int
	Kept            int
	UnknownCategory int
	Unmapped        int
	Negative        int
	Coerced         int
}

// Clean classifies, coerces and filters long rows. Unknown categories and
// negative amounts are dropped; unreadable amounts become zero. It never
// fails on a single bad cell.
func Clean(rows []LongRow, classifier *Classifier, instruments models.InstrumentTable) ([]Row, FilterReport) {
	report := FilterReport{Input: len(rows)}
	seen := make(map[string]Classification)

	out := make([]Row, 0, len(rows))
	for _, lr := range rows {
		cl, ok := seen[lr.Serie]
		if !ok {
			cl = classifier.Classify(lr.Serie)
			seen[lr.Serie] = cl
		}
		if cl.Status != Recognized {
			report.UnknownCategory++
			continue
		}

		milhoes, parsed := ParseValue(lr.Valor)
		if !parsed {
			report.Coerced++
		}

		in, ok := instruments.ByName(cl.Category)
		if !ok {
			report.Unmapped++
			continue
		}
		if milhoes < 0 {
			report.Negative++
			continue
		}

		out = append(out, Row{
			TituloID:        in.ID,
			CategoriaTitulo: in.CategoriaTitulo,
			Periodo:         lr.Periodo,
			Ano:             lr.Periodo.Year(),
			Mes:             int(lr.Periodo.Month()),
			Acao:            cl.Action,
			ValorMilhoes:    milhoes,
			ValorReais:      milhoes * models.ReaisPerMillion,
		})
	}
	report.Kept = len(out)
	return out, report
}

// ParseValue reads a numeric cell. The boolean is false when the cell was
// blank or unreadable and zero was substituted.
func ParseValue(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	if strings.Contains(s, ",") {
		// Brazilian format: "1.234,56". Any other use of the comma is
		// ambiguous and coerced.
		intPart, frac, _ := strings.Cut(s, ",")
		if strings.Contains(frac, ",") || strings.Contains(frac, ".") || !thousandsGrouped(intPart) {
			return 0, false
		}
		s = strings.ReplaceAll(intPart, ".", "") + "." + frac
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// thousandsGrouped reports whether every dot in s separates 3-digit groups,
// as in "1.234.567". A string without dots qualifies.
func thousandsGrouped(s string) bool {
	groups := strings.Split(strings.TrimPrefix(s, "-"), ".")
	if len(groups) == 1 {
		return true
	}
	if len(groups[0]) == 0 || len(groups[0]) > 3 {
		return false
	}
	for _, g := range groups[1:] {
		if len(g) != 3 {
			return false
		}
	}
	return true
}
