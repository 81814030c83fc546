package editor

import (
	"context"
	"errors"
	"testing"
)

func TestBeginEditSnapshotsOriginals(t *testing.T) {
	f := newFixture(t)
	if err := f.ed.BeginEdit(f.intro.ID, FieldLocation); err != nil {
		t.Fatalf("begin edit: %v", err)
	}
	sess := f.ed.state.sessions[f.intro.ID]
	if sess == nil {
		t.Fatalf("expected a session")
	}
	if got := sess.original[FieldLocation]; got != "0x008000" {
		t.Fatalf("expected snapshot 0x008000, got %q", got)
	}
	if got := sess.original[FieldEnd]; got != "0x008C00" {
		t.Fatalf("expected derived end snapshot 0x008C00, got %q", got)
	}
}

func TestUpdateValueCascadesEndFromLocation(t *testing.T) {
	f := newFixture(t)
	if err := f.ed.UpdateValue(f.intro.ID, FieldLocation, "0x9000"); err != nil {
		t.Fatalf("update: %v", err)
	}
	end, ok := f.ed.PendingValue(f.intro.ID, FieldEnd)
	if !ok || end != "0x009C00" {
		t.Fatalf("expected cascaded end 0x009C00, got %q ok=%v", end, ok)
	}
	// The stored part is untouched until save.
	if _, p, _ := f.ed.state.part(f.intro.ID); p.Location != 0x008000 {
		t.Fatalf("stored location mutated before save")
	}
}

func TestUpdateValueBackComputesSizeFromEnd(t *testing.T) {
	f := newFixture(t)
	if err := f.ed.UpdateValue(f.intro.ID, FieldEnd, "$9000"); err != nil {
		t.Fatalf("update: %v", err)
	}
	size, ok := f.ed.PendingValue(f.intro.ID, FieldSize)
	if !ok || size != "0x1000" {
		t.Fatalf("expected back-computed size 0x1000, got %q ok=%v", size, ok)
	}
}

func TestEndBeforeLocationSuppressedAndRejected(t *testing.T) {
	f := newFixture(t)
	if err := f.ed.UpdateValue(f.intro.ID, FieldEnd, "0x0500"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if size, ok := f.ed.PendingValue(f.intro.ID, FieldSize); ok && size != "0x0C00" {
		t.Fatalf("negative span must not rewrite size, got %q", size)
	}
	ok, errs := f.ed.Validate(f.intro.ID)
	if ok {
		t.Fatalf("expected validation failure")
	}
	if msg := errs[FieldEnd]; msg != "must not precede location" {
		t.Fatalf("unexpected end error %q", msg)
	}
}

func TestPartialNumericInputLeavesDependentAlone(t *testing.T) {
	f := newFixture(t)
	if err := f.ed.UpdateValue(f.intro.ID, FieldLocation, "0x9000"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if end, _ := f.ed.PendingValue(f.intro.ID, FieldEnd); end != "0x009C00" {
		t.Fatalf("unexpected cascade result %q", end)
	}
	// "0x" does not parse; the cascade is skipped and the previous result
	// stays buffered.
	if err := f.ed.UpdateValue(f.intro.ID, FieldLocation, "0x"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if end, _ := f.ed.PendingValue(f.intro.ID, FieldEnd); end != "0x009C00" {
		t.Fatalf("mid-typing input must not rewrite the dependent, got %q", end)
	}
}

func TestValidateRequiredAndBounds(t *testing.T) {
	f := newFixture(t)
	if err := f.ed.UpdateValue(f.intro.ID, FieldName, "  "); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := f.ed.UpdateValue(f.intro.ID, FieldSize, "0x10000"); err != nil {
		t.Fatalf("update: %v", err)
	}
	ok, errs := f.ed.Validate(f.intro.ID)
	if ok {
		t.Fatalf("expected validation failure")
	}
	if _, found := errs[FieldName]; !found {
		t.Fatalf("blank name must fail")
	}
	if _, found := errs[FieldSize]; !found {
		t.Fatalf("oversized span must fail")
	}
	if msg, found := f.ed.ValidationMessage(f.intro.ID, FieldName); !found || msg == "" {
		t.Fatalf("expected inline error on name")
	}
	// Correcting the field clears its inline error.
	if err := f.ed.UpdateValue(f.intro.ID, FieldName, "intro"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, found := f.ed.ValidationMessage(f.intro.ID, FieldName); found {
		t.Fatalf("corrected field still carries an error")
	}
}

func TestClassifierConstrainedToCandidates(t *testing.T) {
	f := newFixture(t)
	ed, err := New(Config{ProjectID: testProject, Actor: "tester", Store: f.store, PartTypes: []string{"code", "data"}})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := ed.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := ed.UpdateValue(f.intro.ID, FieldType, "graphics"); err != nil {
		t.Fatalf("update: %v", err)
	}
	ok, errs := ed.Validate(f.intro.ID)
	if ok {
		t.Fatalf("expected classifier failure")
	}
	if errs[FieldType] != "not a known type" {
		t.Fatalf("unexpected type error %q", errs[FieldType])
	}
}

func TestCancelDiscardsPendingEdits(t *testing.T) {
	f := newFixture(t)
	if err := f.ed.UpdateValue(f.intro.ID, FieldName, "scratch"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := f.ed.Cancel(f.intro.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if f.ed.IsDirty(f.intro.ID) {
		t.Fatalf("row still dirty after cancel")
	}
	if v, _ := f.ed.CellValue(f.intro.ID, FieldName); v != "intro" {
		t.Fatalf("expected stored value restored, got %q", v)
	}
}

func TestCancelPendingCreateRemovesRow(t *testing.T) {
	f := newFixture(t)
	part, err := f.ed.AddPart(f.code.ID)
	if err != nil {
		t.Fatalf("add part: %v", err)
	}
	if err := f.ed.UpdateValue(part.ID, FieldName, "doomed"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := f.ed.Cancel(part.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, _, ok := f.ed.state.part(part.ID); ok {
		t.Fatalf("cancelled unpersisted part still in hierarchy")
	}
	if got := f.ed.PendingParts(); len(got) != 0 {
		t.Fatalf("expected no pending parts, got %v", got)
	}
}

func TestEditsRejectedWhileSaving(t *testing.T) {
	f := newFixture(t)
	if err := f.ed.UpdateValue(f.intro.ID, FieldName, "intro_v2"); err != nil {
		t.Fatalf("update: %v", err)
	}
	f.ed.state.sessions[f.intro.ID].saving = true
	if err := f.ed.UpdateValue(f.intro.ID, FieldName, "x"); !errors.Is(err, ErrRowSaving) {
		t.Fatalf("expected ErrRowSaving, got %v", err)
	}
	if err := f.ed.BeginEdit(f.intro.ID, FieldName); !errors.Is(err, ErrRowSaving) {
		t.Fatalf("expected ErrRowSaving, got %v", err)
	}
	if err := f.ed.Cancel(f.intro.ID); !errors.Is(err, ErrRowSaving) {
		t.Fatalf("expected ErrRowSaving, got %v", err)
	}
}

func TestFieldNotEditableForRowKind(t *testing.T) {
	f := newFixture(t)
	err := f.ed.BeginEdit(f.code.ID, FieldLocation)
	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := f.ed.BeginEdit("missing-row", FieldName); !errors.Is(err, ErrRowNotFound) {
		t.Fatalf("expected ErrRowNotFound, got %v", err)
	}
}

func TestBlockSessionSnapshotsGroup(t *testing.T) {
	f := newFixture(t)
	if err := f.ed.UpdateValue(f.code.ID, FieldGroup, "engine"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if v, _ := f.ed.CellValue(f.code.ID, FieldGroup); v != "engine" {
		t.Fatalf("expected pending group, got %q", v)
	}
	if sess := f.ed.state.sessions[f.code.ID]; sess.original[FieldGroup] != "code" {
		t.Fatalf("expected original group snapshot")
	}
}
