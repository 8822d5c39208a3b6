package aggregate

import (
	"sort"

	"github.com/viktsys/tdingest/models"
)

// bucketKey identifies a time bucket. mes is zero in yearly grouping.
type bucketKey struct {
	ano int
	mes int
}

func bucketOf(m models.Movement, g GroupBy) bucketKey {
	if g == GroupByYear {
		return bucketKey{ano: m.Ano}
	}
	return bucketKey{ano: m.Ano, mes: m.Mes}
}

func (k bucketKey) less(o bucketKey) bool {
	if k.ano != o.ano {
		return k.ano < o.ano
	}
	return k.mes < o.mes
}

func (k bucketKey) month(g GroupBy) *int {
	if g == GroupByYear {
		return nil
	}
	mes := k.mes
	return &mes
}

// accumulator maps grouping keys to running totals and remembers every key
// it has seen so the output can be sorted once at the end.
type accumulator[K comparable, V any] struct {
	keys []K
	vals map[K]*V
}

func newAccumulator[K comparable, V any]() *accumulator[K, V] {
	return &accumulator[K, V]{vals: make(map[K]*V)}
}

func (a *accumulator[K, V]) at(k K) *V {
	v, ok := a.vals[k]
	if !ok {
		v = new(V)
		a.vals[k] = v
		a.keys = append(a.keys, k)
	}
	return v
}

func (a *accumulator[K, V]) sorted(less func(x, y K) bool) []K {
	sort.Slice(a.keys, func(i, j int) bool { return less(a.keys[i], a.keys[j]) })
	return a.keys
}

func groupHistory(rows []models.Movement, g GroupBy) []models.HistoryBucket {
	acc := newAccumulator[bucketKey, models.ActionTotals]()
	for _, m := range rows {
		acc.at(bucketOf(m, g)).Add(m.Acao, m.ValorReais)
	}

	out := make([]models.HistoryBucket, 0, len(acc.keys))
	for _, k := range acc.sorted(bucketKey.less) {
		out = append(out, models.HistoryBucket{
			Ano:          k.ano,
			Mes:          k.month(g),
			ActionTotals: *acc.vals[k],
		})
	}
	return out
}

type comparisonKey struct {
	bucket   bucketKey
	tituloID int
}

func (k comparisonKey) less(o comparisonKey) bool {
	if k.bucket != o.bucket {
		return k.bucket.less(o.bucket)
	}
	return k.tituloID < o.tituloID
}

func groupComparison(rows []models.Movement, g GroupBy, instruments models.InstrumentTable) []models.ComparisonBucket {
	acc := newAccumulator[comparisonKey, models.ActionTotals]()
	for _, m := range rows {
		acc.at(comparisonKey{bucket: bucketOf(m, g), tituloID: m.TituloID}).Add(m.Acao, m.ValorReais)
	}

	out := make([]models.ComparisonBucket, 0)
	var current *models.ComparisonBucket
	var prev bucketKey
	for _, k := range acc.sorted(comparisonKey.less) {
		if current == nil || k.bucket != prev {
			out = append(out, models.ComparisonBucket{Ano: k.bucket.ano, Mes: k.bucket.month(g)})
			current = &out[len(out)-1]
			prev = k.bucket
		}
		in, _ := instruments.ByID(k.tituloID)
		current.Titulos = append(current.Titulos, models.InstrumentTotals{
			TituloID:        k.tituloID,
			CategoriaTitulo: in.CategoriaTitulo,
			ActionTotals:    *acc.vals[k],
		})
	}
	return out
}

func groupSeries(rows []models.Movement, g GroupBy) []models.SeriesBucket {
	acc := newAccumulator[bucketKey, float64]()
	for _, m := range rows {
		*acc.at(bucketOf(m, g)) += m.ValorReais
	}

	out := make([]models.SeriesBucket, 0, len(acc.keys))
	for _, k := range acc.sorted(bucketKey.less) {
		out = append(out, models.SeriesBucket{Ano: k.ano, Mes: k.month(g), Valor: *acc.vals[k]})
	}
	return out
}
