package models

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCategory = errors.New("invalid category")
	ErrInvalidMonth    = errors.New("invalid month")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
)

// Error carries the failing field alongside one of the sentinel kinds above.
// Use errors.Is(err, ErrNotFound) and friends to classify it.
type Error struct {
	Kind    error
	Field   string
	Value   interface{}
	Message string
}

func (e *Error) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%v: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%v: %s: %s", e.Kind, e.Field, e.Message)
}

func (e *Error) Unwrap() error { return e.Kind }

func InvalidCategory(name string) error {
	return &Error{Kind: ErrInvalidCategory, Field: "categoria_titulo", Value: name,
		Message: fmt.Sprintf("unknown instrument category %q", name)}
}

func InvalidMonth(month int) error {
	return &Error{Kind: ErrInvalidMonth, Field: "mes", Value: month,
		Message: fmt.Sprintf("month %d is outside 1..12", month)}
}

func InvalidArgument(field string, value interface{}, msg string) error {
	return &Error{Kind: ErrInvalidArgument, Field: field, Value: value, Message: msg}
}

func NotFound(resource string, id interface{}) error {
	return &Error{Kind: ErrNotFound, Field: "id", Value: id,
		Message: fmt.Sprintf("%s %v not found", resource, id)}
}

func Conflict(m Movement) error {
	return &Error{Kind: ErrConflict, Field: "periodo", Value: m.Periodo.Format("2006-01"),
		Message: fmt.Sprintf("a %s movement for instrument %d in %04d-%02d already exists",
			m.Acao, m.TituloID, m.Ano, m.Mes)}
}
