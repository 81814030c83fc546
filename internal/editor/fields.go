package editor

import (
	"fmt"
	"strconv"
	"strings"

	"romgrid/pkg/layout"
)

// ValueKind classifies how a field's raw text is parsed and validated.
type ValueKind int

const (
	// KindText is free-form text with a length bound.
	KindText ValueKind = iota
	// KindAddress is a numeric absolute address.
	KindAddress
	// KindSize is a numeric span within the 16-bit size bounds.
	KindSize
	// KindIndex is an optional non-negative ordering hint.
	KindIndex
	// KindClassifier is a part type, optionally constrained to a candidate
	// list supplied at editor construction.
	KindClassifier
)

// FieldSpec describes one editable column: how it parses, which row kinds it
// applies to, and whether it is required. The table drives cell validation
// and keyboard navigation alike, so field-specific behavior stays in one
// place.
type FieldSpec struct {
	Key      Field
	Kind     ValueKind
	Required bool
	Rows     []RowKind
}

// fieldTable enumerates editable fields in display order per row kind.
var fieldTable = []FieldSpec{
	{Key: FieldName, Kind: KindText, Required: true, Rows: []RowKind{RowBlock, RowPart}},
	{Key: FieldGroup, Kind: KindText, Rows: []RowKind{RowBlock}},
	{Key: FieldLocation, Kind: KindAddress, Required: true, Rows: []RowKind{RowPart}},
	{Key: FieldSize, Kind: KindSize, Required: true, Rows: []RowKind{RowPart}},
	{Key: FieldEnd, Kind: KindAddress, Required: true, Rows: []RowKind{RowPart}},
	{Key: FieldType, Kind: KindClassifier, Rows: []RowKind{RowPart}},
	{Key: FieldIndex, Kind: KindIndex, Rows: []RowKind{RowPart}},
}

func (s FieldSpec) appliesTo(kind RowKind) bool {
	for _, k := range s.Rows {
		if k == kind {
			return true
		}
	}
	return false
}

func fieldsFor(kind RowKind) []FieldSpec {
	out := make([]FieldSpec, 0, len(fieldTable))
	for _, s := range fieldTable {
		if s.appliesTo(kind) {
			out = append(out, s)
		}
	}
	return out
}

func fieldSpecFor(kind RowKind, f Field) (FieldSpec, bool) {
	for _, s := range fieldTable {
		if s.Key == f && s.appliesTo(kind) {
			return s, true
		}
	}
	return FieldSpec{}, false
}

// parseNumber parses an address or size. Accepts 0x and $ hex prefixes or
// plain decimal, the conventions ROM tooling uses.
func parseNumber(raw string) (int64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("empty")
	}
	if strings.HasPrefix(s, "$") {
		s = "0x" + s[1:]
	}
	v, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number")
	}
	return v, nil
}

func formatAddress(v int64) string { return fmt.Sprintf("0x%06X", v) }
func formatSize(v int64) string    { return fmt.Sprintf("0x%04X", v) }

func formatIndex(idx *int) string {
	if idx == nil {
		return ""
	}
	return strconv.Itoa(*idx)
}

// validateField checks a raw cell value against its spec. partTypes, when
// non-empty, constrains the classifier field to that candidate list.
func validateField(spec FieldSpec, raw string, partTypes []string) error {
	trimmed := strings.TrimSpace(raw)
	switch spec.Kind {
	case KindText:
		if spec.Required && trimmed == "" {
			return ValidationError{Field: spec.Key, Message: "required"}
		}
		if len(trimmed) > layout.NameMaxLen {
			return ValidationError{Field: spec.Key, Message: fmt.Sprintf("longer than %d characters", layout.NameMaxLen)}
		}
	case KindAddress:
		if trimmed == "" {
			if spec.Required {
				return ValidationError{Field: spec.Key, Message: "required"}
			}
			return nil
		}
		v, err := parseNumber(trimmed)
		if err != nil {
			return ValidationError{Field: spec.Key, Message: "must be numeric"}
		}
		max := layout.LocationMax
		if spec.Key == FieldEnd {
			max = layout.EndMax
		}
		if v < 0 || v > max {
			return ValidationError{Field: spec.Key, Message: fmt.Sprintf("out of range [0x0, 0x%X]", max)}
		}
	case KindSize:
		if trimmed == "" {
			if spec.Required {
				return ValidationError{Field: spec.Key, Message: "required"}
			}
			return nil
		}
		v, err := parseNumber(trimmed)
		if err != nil {
			return ValidationError{Field: spec.Key, Message: "must be numeric"}
		}
		if v < layout.SizeMin || v > layout.SizeMax {
			return ValidationError{Field: spec.Key, Message: fmt.Sprintf("out of range [0x%X, 0x%X]", layout.SizeMin, layout.SizeMax)}
		}
	case KindIndex:
		if trimmed == "" {
			return nil
		}
		v, err := strconv.Atoi(trimmed)
		if err != nil || v < 0 {
			return ValidationError{Field: spec.Key, Message: "must be a non-negative integer"}
		}
	case KindClassifier:
		if len(partTypes) == 0 {
			return nil
		}
		if trimmed == "" {
			return ValidationError{Field: spec.Key, Message: "selection required"}
		}
		for _, t := range partTypes {
			if t == trimmed {
				return nil
			}
		}
		return ValidationError{Field: spec.Key, Message: "not a known type"}
	}
	return nil
}

// Cell addresses one editable (row, field) pair.
type Cell struct {
	RowID string
	Field Field
}

// cells enumerates every editable cell in stable order: row order from the
// projection, field order from the per-kind field table.
func (e *Editor) cells() []Cell {
	rows := e.Rows()
	out := make([]Cell, 0, len(rows)*3)
	for _, r := range rows {
		for _, spec := range fieldsFor(r.Kind) {
			out = append(out, Cell{RowID: r.ID, Field: spec.Key})
		}
	}
	return out
}

// NextCell returns the cell after cur, wrapping past the end. ok is false
// when there are no editable cells at all. An unknown cur starts from the
// first cell.
func (e *Editor) NextCell(cur Cell) (Cell, bool) {
	cells := e.cells()
	if len(cells) == 0 {
		return Cell{}, false
	}
	for i, c := range cells {
		if c == cur {
			return cells[(i+1)%len(cells)], true
		}
	}
	return cells[0], true
}

// PrevCell returns the cell before cur, wrapping past the start.
func (e *Editor) PrevCell(cur Cell) (Cell, bool) {
	cells := e.cells()
	if len(cells) == 0 {
		return Cell{}, false
	}
	for i, c := range cells {
		if c == cur {
			return cells[(i-1+len(cells))%len(cells)], true
		}
	}
	return cells[0], true
}

// FocusNext moves to the next cell and opens an edit session on arrival if
// one is not already active for that field.
func (e *Editor) FocusNext(cur Cell) (Cell, error) {
	next, ok := e.NextCell(cur)
	if !ok {
		return Cell{}, ErrRowNotFound
	}
	if err := e.BeginEdit(next.RowID, next.Field); err != nil {
		return next, err
	}
	return next, nil
}

// FocusPrev moves to the previous cell, opening an edit session on arrival.
func (e *Editor) FocusPrev(cur Cell) (Cell, error) {
	prev, ok := e.PrevCell(cur)
	if !ok {
		return Cell{}, ErrRowNotFound
	}
	if err := e.BeginEdit(prev.RowID, prev.Field); err != nil {
		return prev, err
	}
	return prev, nil
}
