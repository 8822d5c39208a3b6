package models

import "sort"

// DefaultInstruments is the canonical Tesouro Direto category mapping.
func DefaultInstruments() InstrumentTable {
	return NewInstrumentTable([]Instrument{
		{ID: 1, CategoriaTitulo: "LTN"},
		{ID: 2, CategoriaTitulo: "LFT"},
		{ID: 3, CategoriaTitulo: "NTN-B"},
		{ID: 4, CategoriaTitulo: "NTN-B Principal"},
		{ID: 5, CategoriaTitulo: "NTN-C"},
		{ID: 6, CategoriaTitulo: "NTN-F"},
	})
}

// InstrumentTable is an immutable lookup of instruments by id and name.
// Build it once at startup and pass it to whatever needs it.
type InstrumentTable struct {
	all    []Instrument
	byID   map[int]Instrument
	byName map[string]Instrument
}

// NewInstrumentTable copies list; later duplicates of an id or name win.
func NewInstrumentTable(list []Instrument) InstrumentTable {
	t := InstrumentTable{
		byID:   make(map[int]Instrument, len(list)),
		byName: make(map[string]Instrument, len(list)),
	}
	for _, in := range list {
		t.byID[in.ID] = in
		t.byName[in.CategoriaTitulo] = in
	}
	t.all = make([]Instrument, 0, len(t.byID))
	for _, in := range t.byID {
		t.all = append(t.all, in)
	}
	sort.Slice(t.all, func(i, j int) bool { return t.all[i].ID < t.all[j].ID })
	return t
}

func (t InstrumentTable) ByName(name string) (Instrument, bool) {
	in, ok := t.byName[name]
	return in, ok
}

func (t InstrumentTable) ByID(id int) (Instrument, bool) {
	in, ok := t.byID[id]
	return in, ok
}

// All returns the instruments ordered by id.
func (t InstrumentTable) All() []Instrument {
	out := make([]Instrument, len(t.all))
	copy(out, t.all)
	return out
}

func (t InstrumentTable) Len() int { return len(t.all) }
