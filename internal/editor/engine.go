// Package editor implements the collaborative grid-editing engine for ROM
// memory-layout metadata: it projects the block/part hierarchy into editable
// rows, tracks per-row edit sessions, reconciles saves against the remote
// store, and merges asynchronous remote change events into local state.
//
// The engine follows a cooperative single-goroutine model: all mutations
// happen synchronously inside the owner's event handling, so the state
// carries no locks. Sharing an Editor across goroutines is the caller's
// responsibility.
package editor

import (
	"context"
	"fmt"
	"sort"
	"time"

	"romgrid/pkg/layout"
)

// Config assembles an Editor. Store and ProjectID are required; everything
// else is optional.
type Config struct {
	ProjectID string
	Actor     string
	Store     layout.RemoteStore
	Push      layout.PushChannel
	// PartTypes, when non-empty, constrains the part type field to this
	// candidate list.
	PartTypes []string
	Metrics   MetricsRecorder
	Tracer    Tracer
}

// Editor is one user's editing surface over a shared project.
type Editor struct {
	state     *EditorState
	store     layout.RemoteStore
	push      layout.PushChannel
	sub       layout.Subscription
	actor     string
	partTypes []string

	metrics MetricsRecorder
	tracer  Tracer
	nowFn   func() time.Time

	realtime    bool
	staleEvents int
}

// New constructs an editor for a project. Call Load to hydrate the hierarchy
// and Subscribe to attach the push channel.
func New(cfg Config) (*Editor, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("editor: store is required")
	}
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("editor: project id is required")
	}
	return &Editor{
		state:     newEditorState(cfg.ProjectID),
		store:     cfg.Store,
		push:      cfg.Push,
		actor:     cfg.Actor,
		partTypes: append([]string(nil), cfg.PartTypes...),
		metrics:   cfg.Metrics,
		tracer:    cfg.Tracer,
		nowFn:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (e *Editor) now() time.Time { return e.nowFn() }

func (e *Editor) observe(ctx context.Context, op string, start time.Time, err error) {
	if e.metrics != nil {
		e.metrics.Observe(ctx, op, err == nil, e.now().Sub(start))
	}
}

// ProjectID returns the project this editor operates on.
func (e *Editor) ProjectID() string { return e.state.projectID }

// Load hydrates the in-memory hierarchy from the remote store, replacing any
// previous state including edit sessions.
func (e *Editor) Load(ctx context.Context) error {
	start := e.now()
	err := e.load(ctx)
	e.observe(ctx, "load", start, err)
	return err
}

func (e *Editor) load(ctx context.Context) error {
	if e.state.closed {
		return ErrEditorClosed
	}
	blocks, err := e.store.Blocks().GetByProject(ctx, e.state.projectID)
	if err != nil {
		return PersistenceError{Op: "load blocks", Err: err}
	}
	parts, err := e.store.Parts().GetByProject(ctx, e.state.projectID)
	if err != nil {
		return PersistenceError{Op: "load parts", Err: err}
	}
	fresh := newEditorState(e.state.projectID)
	fresh.bank = e.state.bank
	fresh.bankSet = e.state.bankSet
	e.state = fresh
	for _, b := range blocks {
		e.state.upsertBlock(b)
	}
	for _, p := range parts {
		e.state.upsertPart(p)
	}
	return nil
}

// Subscribe attaches the push channel. Setup failure degrades to a
// non-real-time session: it is traced but does not block editing.
func (e *Editor) Subscribe(ctx context.Context) error {
	if e.push == nil || e.sub != nil {
		return nil
	}
	var span TraceSpan
	if e.tracer != nil {
		_, span = e.tracer.Start(ctx, "subscribe")
	}
	sub, err := e.push.Subscribe(ctx, e.state.projectID, e.HandleEvent)
	if span != nil {
		span.End(err)
	}
	if err != nil {
		e.realtime = false
		return nil
	}
	e.sub = sub
	e.realtime = true
	return nil
}

// Realtime reports whether the push channel is attached.
func (e *Editor) Realtime() bool { return e.realtime }

// Close tears the editor down. The closed flag is set before unsubscribing
// so an event already queued for delivery at teardown time is dropped rather
// than mutating unobserved state.
func (e *Editor) Close() {
	if e.state.closed {
		return
	}
	e.state.closed = true
	e.realtime = false
	if e.sub != nil {
		e.sub.Unsubscribe()
		e.sub = nil
	}
}

// AddBlock creates a block in the remote store and inserts it locally. The
// write's echo on the push channel is absorbed by identity.
func (e *Editor) AddBlock(ctx context.Context, name, group string) (Block, error) {
	start := e.now()
	block, err := e.addBlock(ctx, name, group)
	e.observe(ctx, "add_block", start, err)
	return block, err
}

func (e *Editor) addBlock(ctx context.Context, name, group string) (Block, error) {
	if e.state.closed {
		return Block{}, ErrEditorClosed
	}
	created, err := e.store.Blocks().Create(ctx, Block{
		ProjectID: e.state.projectID,
		Name:      name,
		Group:     group,
	}, e.actor)
	if err != nil {
		return Block{}, PersistenceError{Op: "create block", Err: err}
	}
	e.state.upsertBlock(created)
	return created, nil
}

// AddPart creates a local part under a block with a placeholder identity.
// The part exists only in memory until saved; its location defaults to the
// block's current end address. The owning block is expanded so the new row
// is visible.
func (e *Editor) AddPart(blockID string) (Part, error) {
	b, ok := e.state.block(blockID)
	if !ok {
		return Part{}, layout.NotFoundError{Entity: EntityBlock, ID: blockID}
	}
	if e.state.closed {
		return Part{}, ErrEditorClosed
	}
	location := int64(0)
	if _, end, ok := b.Range(); ok {
		location = end
	}
	part := Part{
		Base:      layout.Base{ID: layout.NewPendingID()},
		ProjectID: e.state.projectID,
		BlockID:   blockID,
		Location:  location,
		Size:      layout.SizeMin,
	}
	e.state.upsertPart(part)
	e.Expand(blockID)
	return layout.ClonePart(part), nil
}

// DeleteBlock soft-deletes a block remotely and removes it, its parts, and
// any of their edit sessions locally.
func (e *Editor) DeleteBlock(ctx context.Context, id string) error {
	start := e.now()
	err := e.deleteBlock(ctx, id)
	e.observe(ctx, "delete_block", start, err)
	return err
}

func (e *Editor) deleteBlock(ctx context.Context, id string) error {
	if e.state.closed {
		return ErrEditorClosed
	}
	if _, ok := e.state.block(id); !ok {
		return layout.NotFoundError{Entity: EntityBlock, ID: id}
	}
	if e.IsSaving(id) {
		return ErrRowSaving
	}
	if err := e.store.Blocks().SoftDelete(ctx, id, e.actor); err != nil {
		return PersistenceError{Op: "delete block", Err: err}
	}
	for _, partID := range e.state.removeBlock(id) {
		e.state.dropSession(partID)
	}
	e.state.dropSession(id)
	return nil
}

// DeletePart soft-deletes a part remotely and removes it locally. A part
// that was never persisted is removed locally only; the server does not know
// it exists.
func (e *Editor) DeletePart(ctx context.Context, id string) error {
	start := e.now()
	err := e.deletePart(ctx, id)
	e.observe(ctx, "delete_part", start, err)
	return err
}

func (e *Editor) deletePart(ctx context.Context, id string) error {
	if e.state.closed {
		return ErrEditorClosed
	}
	if _, _, ok := e.state.part(id); !ok {
		return layout.NotFoundError{Entity: EntityPart, ID: id}
	}
	if e.IsSaving(id) {
		return ErrRowSaving
	}
	if !layout.IsPendingID(id) {
		if err := e.store.Parts().SoftDelete(ctx, id, e.actor); err != nil {
			return PersistenceError{Op: "delete part", Err: err}
		}
	}
	e.state.removePart(id)
	e.state.dropSession(id)
	return nil
}

// DirtyRows returns the ids of rows holding unsaved edits, sorted.
func (e *Editor) DirtyRows() []string {
	var out []string
	for id, sess := range e.state.sessions {
		if sess.Dirty() {
			out = append(out, id)
		}
	}
	for id := range e.state.partOwner {
		if layout.IsPendingID(id) {
			if _, tracked := e.state.sessions[id]; !tracked {
				out = append(out, id)
			}
		}
	}
	sort.Strings(out)
	return out
}

// PendingParts returns the placeholder ids of parts not yet persisted.
func (e *Editor) PendingParts() []string {
	var out []string
	for id := range e.state.partOwner {
		if layout.IsPendingID(id) {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Hierarchy returns a finalized clone of the block hierarchy for downstream
// consumers, sorted by bank and start address with parts in canonical order.
// It fails while any row still has unsaved edits or an unpersisted part, so
// no inconsistent or orphaned state ever reaches a build.
func (e *Editor) Hierarchy() ([]Block, error) {
	dirty := e.DirtyRows()
	pending := e.PendingParts()
	if len(dirty) > 0 || len(pending) > 0 {
		return nil, UnsavedRowsError{Dirty: dirty, Pending: pending}
	}
	out := make([]Block, 0, len(e.state.blocks))
	for _, b := range e.state.blocks {
		out = append(out, layout.CloneBlock(*b))
	}
	sort.SliceStable(out, func(i, j int) bool {
		bi, bj := out[i].Bank(), out[j].Bank()
		if bi != bj {
			return bi < bj
		}
		si, _, _ := out[i].Range()
		sj, _, _ := out[j].Range()
		if si != sj {
			return si < sj
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
