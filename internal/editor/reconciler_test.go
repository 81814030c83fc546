package editor

import (
	"context"
	"errors"
	"testing"

	"romgrid/pkg/layout"
)

// flakyStore wraps a remote store and fails part updates on demand.
type flakyStore struct {
	inner    layout.RemoteStore
	failPart bool
}

type flakyParts struct {
	layout.PartStore
	store *flakyStore
}

func (f *flakyStore) Blocks() layout.BlockStore { return f.inner.Blocks() }
func (f *flakyStore) Parts() layout.PartStore   { return flakyParts{f.inner.Parts(), f} }

func (p flakyParts) Update(ctx context.Context, id string, patch layout.PartPatch, actor string) (layout.Part, error) {
	if p.store.failPart {
		return layout.Part{}, errors.New("backend unavailable")
	}
	return p.PartStore.Update(ctx, id, patch, actor)
}

func TestSavePartialUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.ed.UpdateValue(f.intro.ID, FieldName, "intro_v2"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := f.ed.Save(ctx, f.intro.ID); err != nil {
		t.Fatalf("save: %v", err)
	}
	if f.ed.IsDirty(f.intro.ID) {
		t.Fatalf("row still dirty after save")
	}
	parts, err := f.store.Parts().GetByProject(ctx, testProject)
	if err != nil {
		t.Fatalf("get parts: %v", err)
	}
	for _, p := range parts {
		if p.ID != f.intro.ID {
			continue
		}
		if p.Name != "intro_v2" {
			t.Fatalf("expected renamed part, got %q", p.Name)
		}
		if p.Location != 0x008000 || p.Size != 0x0C00 {
			t.Fatalf("untouched fields changed: %+v", p)
		}
		return
	}
	t.Fatalf("part %s missing from store", f.intro.ID)
}

func TestSaveEndEditTravelsAsSize(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.ed.UpdateValue(f.intro.ID, FieldEnd, "0x9000"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := f.ed.Save(ctx, f.intro.ID); err != nil {
		t.Fatalf("save: %v", err)
	}
	_, p, ok := f.ed.state.part(f.intro.ID)
	if !ok {
		t.Fatalf("part missing")
	}
	if p.Size != 0x1000 {
		t.Fatalf("expected persisted size 0x1000, got 0x%X", p.Size)
	}
	if p.End() != 0x009000 {
		t.Fatalf("expected derived end 0x009000, got 0x%06X", p.End())
	}
}

func TestSaveBlockRename(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.ed.UpdateValue(f.code.ID, FieldName, "engine_code"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := f.ed.Save(ctx, f.code.ID); err != nil {
		t.Fatalf("save: %v", err)
	}
	b, ok := f.ed.state.block(f.code.ID)
	if !ok || b.Name != "engine_code" {
		t.Fatalf("expected renamed block, got %+v", b)
	}
	if len(b.Parts) != 2 {
		t.Fatalf("block update must preserve the local part list, got %d parts", len(b.Parts))
	}
}

func TestSavePendingCreatePromotesIdentity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	part, err := f.ed.AddPart(f.code.ID)
	if err != nil {
		t.Fatalf("add part: %v", err)
	}
	if err := f.ed.UpdateValue(part.ID, FieldName, "new_chunk"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := f.ed.Save(ctx, part.ID); err != nil {
		t.Fatalf("save: %v", err)
	}
	if got := f.ed.PendingParts(); len(got) != 0 {
		t.Fatalf("expected no pending parts after save, got %v", got)
	}
	if _, _, ok := f.ed.state.part(part.ID); ok {
		t.Fatalf("placeholder identity still present after promotion")
	}
	b, _ := f.ed.state.block(f.code.ID)
	var promoted *layout.Part
	for i := range b.Parts {
		if b.Parts[i].Name == "new_chunk" {
			promoted = &b.Parts[i]
		}
	}
	if promoted == nil {
		t.Fatalf("created part missing from hierarchy")
	}
	if layout.IsPendingID(promoted.ID) || promoted.ID == "" {
		t.Fatalf("expected server identity, got %q", promoted.ID)
	}
	if promoted.Location != 0x009000 || promoted.Size != layout.SizeMin {
		t.Fatalf("defaulted fields lost in promotion: %+v", promoted)
	}
}

func TestSaveUnnamedPendingCreateRejected(t *testing.T) {
	f := newFixture(t)
	part, err := f.ed.AddPart(f.code.ID)
	if err != nil {
		t.Fatalf("add part: %v", err)
	}
	err = f.ed.Save(context.Background(), part.ID)
	var verr ValidationError
	if !errors.As(err, &verr) || verr.Field != FieldName {
		t.Fatalf("expected name validation error, got %v", err)
	}
	if got := f.ed.PendingParts(); len(got) != 1 {
		t.Fatalf("rejected part must remain pending, got %v", got)
	}
}

func TestSaveFailureRetainsEditsForRetry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	flaky := &flakyStore{inner: f.store, failPart: true}
	ed, err := New(Config{ProjectID: testProject, Actor: "tester", Store: flaky})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := ed.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := ed.UpdateValue(f.intro.ID, FieldName, "intro_v3"); err != nil {
		t.Fatalf("update: %v", err)
	}
	err = ed.Save(ctx, f.intro.ID)
	var perr PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("expected persistence error, got %v", err)
	}
	if !ed.IsDirty(f.intro.ID) {
		t.Fatalf("failed save must retain pending edits")
	}
	if ed.IsSaving(f.intro.ID) {
		t.Fatalf("saving flag must clear on failure")
	}
	if _, ok := ed.ValidationMessage(f.intro.ID, FieldName); !ok {
		t.Fatalf("expected inline failure message")
	}
	// Backend recovers; the retry succeeds with the retained edits.
	flaky.failPart = false
	if err := ed.Save(ctx, f.intro.ID); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if v, _ := ed.CellValue(f.intro.ID, FieldName); v != "intro_v3" {
		t.Fatalf("expected saved name, got %q", v)
	}
}

func TestSaveNoopWhenClean(t *testing.T) {
	f := newFixture(t)
	before := len(f.store.Audit())
	if err := f.ed.Save(context.Background(), f.intro.ID); err != nil {
		t.Fatalf("save: %v", err)
	}
	if after := len(f.store.Audit()); after != before {
		t.Fatalf("clean save must not hit the store (%d -> %d mutations)", before, after)
	}
}

func TestSaveUnknownRow(t *testing.T) {
	f := newFixture(t)
	if err := f.ed.Save(context.Background(), "nope"); !errors.Is(err, ErrRowNotFound) {
		t.Fatalf("expected ErrRowNotFound, got %v", err)
	}
}
