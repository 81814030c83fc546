package editor

import "testing"

func TestParseNumberConventions(t *testing.T) {
	cases := []struct {
		raw  string
		want int64
		bad  bool
	}{
		{raw: "0x8000", want: 0x8000},
		{raw: "$8000", want: 0x8000},
		{raw: "32768", want: 32768},
		{raw: " 0x10 ", want: 16},
		{raw: "", bad: true},
		{raw: "0x", bad: true},
		{raw: "bank", bad: true},
	}
	for _, tc := range cases {
		got, err := parseNumber(tc.raw)
		if tc.bad {
			if err == nil {
				t.Fatalf("%q: expected error", tc.raw)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q: %v", tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("%q: expected %d, got %d", tc.raw, tc.want, got)
		}
	}
}

func TestFormatHelpers(t *testing.T) {
	if got := formatAddress(0x8000); got != "0x008000" {
		t.Fatalf("address: got %q", got)
	}
	if got := formatSize(0xC00); got != "0x0C00" {
		t.Fatalf("size: got %q", got)
	}
	if got := formatIndex(nil); got != "" {
		t.Fatalf("nil index: got %q", got)
	}
	three := 3
	if got := formatIndex(&three); got != "3" {
		t.Fatalf("index: got %q", got)
	}
}

func TestFieldsForRowKinds(t *testing.T) {
	blockFields := fieldsFor(RowBlock)
	if len(blockFields) != 2 || blockFields[0].Key != FieldName || blockFields[1].Key != FieldGroup {
		t.Fatalf("unexpected block fields %+v", blockFields)
	}
	partFields := fieldsFor(RowPart)
	if len(partFields) != 6 {
		t.Fatalf("expected 6 part fields, got %d", len(partFields))
	}
	if _, ok := fieldSpecFor(RowBlock, FieldLocation); ok {
		t.Fatalf("location must not apply to block rows")
	}
}

func TestCellNavigationWraps(t *testing.T) {
	f := newFixture(t)
	f.ed.Expand(f.code.ID)
	cells := f.ed.cells()
	if len(cells) != 2+6+6 {
		t.Fatalf("expected 14 cells, got %d", len(cells))
	}
	first := cells[0]
	last := cells[len(cells)-1]
	if next, ok := f.ed.NextCell(last); !ok || next != first {
		t.Fatalf("expected wrap to first cell, got %+v", next)
	}
	if prev, ok := f.ed.PrevCell(first); !ok || prev != last {
		t.Fatalf("expected wrap to last cell, got %+v", prev)
	}
}

func TestFocusNextOpensSession(t *testing.T) {
	f := newFixture(t)
	cells := f.ed.cells()
	next, err := f.ed.FocusNext(cells[0])
	if err != nil {
		t.Fatalf("focus next: %v", err)
	}
	if next != cells[1] {
		t.Fatalf("expected %+v, got %+v", cells[1], next)
	}
	sess := f.ed.state.sessions[next.RowID]
	if sess == nil || !sess.editing[next.Field] {
		t.Fatalf("expected editing session on arrival")
	}
}
