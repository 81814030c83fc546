// Package memory provides an in-memory implementation of the remote layout
// store and its push channel, used for tests and ephemeral environments. It
// plays the server role: it assigns identities, stamps timestamps, applies
// soft deletes, and fans change events out to subscribers — including the
// echo of a writer's own mutation.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"romgrid/pkg/layout"
)

// Compile-time contract assertions.
var (
	_ layout.RemoteStore = (*Store)(nil)
	_ layout.PushChannel = (*Store)(nil)
)

// AuditEntry records one attributed mutation.
type AuditEntry struct {
	Entity layout.EntityType
	Action layout.EventType
	ID     string
	Actor  string
	At     time.Time
}

// Store holds blocks and parts for any number of projects and implements
// both the remote store and the push channel.
type Store struct {
	mu      sync.RWMutex
	blocks  map[string]layout.Block
	parts   map[string]layout.Part
	subs    map[int]*subscription
	nextSub int
	audit   []AuditEntry
	nowFn   func() time.Time
	idFn    func() string
}

// NewStore constructs an empty in-memory store.
func NewStore() *Store {
	return &Store{
		blocks: make(map[string]layout.Block),
		parts:  make(map[string]layout.Part),
		subs:   make(map[int]*subscription),
		nowFn:  func() time.Time { return time.Now().UTC() },
		idFn:   uuid.NewString,
	}
}

// Blocks returns the block persistence contract.
func (s *Store) Blocks() layout.BlockStore { return blockStore{s} }

// Parts returns the part persistence contract.
func (s *Store) Parts() layout.PartStore { return partStore{s} }

// Audit returns a copy of the attributed mutation log.
func (s *Store) Audit() []AuditEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]AuditEntry, len(s.audit))
	copy(out, s.audit)
	return out
}

type subscription struct {
	store     *Store
	id        int
	projectID string
	fn        layout.EventHandler
	once      sync.Once
}

// Unsubscribe detaches the handler. It is safe to call more than once.
func (sub *subscription) Unsubscribe() {
	sub.once.Do(func() {
		sub.store.mu.Lock()
		delete(sub.store.subs, sub.id)
		sub.store.mu.Unlock()
	})
}

// Subscribe registers a handler for change events of one project. Delivery
// is synchronous on the mutating goroutine, after the mutation committed.
func (s *Store) Subscribe(_ context.Context, projectID string, fn layout.EventHandler) (layout.Subscription, error) {
	if fn == nil {
		return nil, fmt.Errorf("memory store: nil event handler")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSub++
	sub := &subscription{store: s, id: s.nextSub, projectID: projectID, fn: fn}
	s.subs[sub.id] = sub
	return sub, nil
}

// dispatch fans events out to matching subscribers. Called without the lock
// held so handlers may call back into the store.
func (s *Store) dispatch(projectID string, events []layout.Event) {
	s.mu.RLock()
	var targets []layout.EventHandler
	for _, sub := range s.subs {
		if sub.projectID == projectID {
			targets = append(targets, sub.fn)
		}
	}
	s.mu.RUnlock()
	for _, fn := range targets {
		for _, ev := range events {
			fn(ev)
		}
	}
}

func (s *Store) record(entity layout.EntityType, action layout.EventType, id, actor string) {
	s.audit = append(s.audit, AuditEntry{Entity: entity, Action: action, ID: id, Actor: actor, At: s.nowFn()})
}

// --- blocks ----------------------------------------------------------------

type blockStore struct{ s *Store }

func (b blockStore) GetByProject(_ context.Context, projectID string) ([]layout.Block, error) {
	b.s.mu.RLock()
	defer b.s.mu.RUnlock()
	var out []layout.Block
	for _, blk := range b.s.blocks {
		if blk.ProjectID == projectID && blk.DeletedAt == nil {
			out = append(out, layout.CloneBlock(blk))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (b blockStore) Create(_ context.Context, block layout.Block, actor string) (layout.Block, error) {
	if block.ProjectID == "" {
		return layout.Block{}, fmt.Errorf("block project id required")
	}
	if block.Name == "" {
		return layout.Block{}, fmt.Errorf("block name required")
	}
	s := b.s
	s.mu.Lock()
	block.ID = s.idFn()
	now := s.nowFn()
	block.CreatedAt = now
	block.UpdatedAt = now
	block.DeletedAt = nil
	block.Parts = nil
	s.blocks[block.ID] = layout.CloneBlock(block)
	s.record(layout.EntityBlock, layout.EventInsert, block.ID, actor)
	s.mu.Unlock()

	created := layout.CloneBlock(block)
	s.dispatch(block.ProjectID, []layout.Event{{
		Type: layout.EventInsert, Entity: layout.EntityBlock, After: layout.CloneBlock(block),
	}})
	return created, nil
}

func (b blockStore) Update(_ context.Context, id string, patch layout.BlockPatch, actor string) (layout.Block, error) {
	s := b.s
	s.mu.Lock()
	current, ok := s.blocks[id]
	if !ok || current.DeletedAt != nil {
		s.mu.Unlock()
		return layout.Block{}, layout.NotFoundError{Entity: layout.EntityBlock, ID: id}
	}
	before := layout.CloneBlock(current)
	if patch.Name != nil {
		if *patch.Name == "" {
			s.mu.Unlock()
			return layout.Block{}, fmt.Errorf("block name required")
		}
		current.Name = *patch.Name
	}
	if patch.Group != nil {
		current.Group = *patch.Group
	}
	current.UpdatedAt = s.nowFn()
	s.blocks[id] = layout.CloneBlock(current)
	s.record(layout.EntityBlock, layout.EventUpdate, id, actor)
	s.mu.Unlock()

	updated := layout.CloneBlock(current)
	s.dispatch(current.ProjectID, []layout.Event{{
		Type: layout.EventUpdate, Entity: layout.EntityBlock, Before: before, After: layout.CloneBlock(current),
	}})
	return updated, nil
}

func (b blockStore) SoftDelete(_ context.Context, id string, actor string) error {
	s := b.s
	s.mu.Lock()
	current, ok := s.blocks[id]
	if !ok || current.DeletedAt != nil {
		s.mu.Unlock()
		return layout.NotFoundError{Entity: layout.EntityBlock, ID: id}
	}
	before := layout.CloneBlock(current)
	now := s.nowFn()
	current.DeletedAt = &now
	current.UpdatedAt = now
	s.blocks[id] = layout.CloneBlock(current)
	s.record(layout.EntityBlock, layout.EventDelete, id, actor)
	s.mu.Unlock()

	s.dispatch(current.ProjectID, []layout.Event{{
		Type: layout.EventDelete, Entity: layout.EntityBlock, Before: before,
	}})
	return nil
}

// --- parts -----------------------------------------------------------------

type partStore struct{ s *Store }

func validatePartBounds(p layout.Part) error {
	if p.Location < 0 || p.Location > layout.LocationMax {
		return fmt.Errorf("part location 0x%X out of range", p.Location)
	}
	if p.Size < layout.SizeMin || p.Size > layout.SizeMax {
		return fmt.Errorf("part size 0x%X out of range", p.Size)
	}
	return nil
}

func (p partStore) GetByProject(_ context.Context, projectID string) ([]layout.Part, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()
	var out []layout.Part
	for _, part := range p.s.parts {
		if part.ProjectID == projectID && part.DeletedAt == nil {
			out = append(out, layout.ClonePart(part))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (p partStore) Create(_ context.Context, part layout.Part, actor string) (layout.Part, error) {
	if part.Name == "" {
		return layout.Part{}, fmt.Errorf("part name required")
	}
	if err := validatePartBounds(part); err != nil {
		return layout.Part{}, err
	}
	s := p.s
	s.mu.Lock()
	owner, ok := s.blocks[part.BlockID]
	if !ok || owner.DeletedAt != nil {
		s.mu.Unlock()
		return layout.Part{}, layout.NotFoundError{Entity: layout.EntityBlock, ID: part.BlockID}
	}
	part.ProjectID = owner.ProjectID
	part.ID = s.idFn()
	now := s.nowFn()
	part.CreatedAt = now
	part.UpdatedAt = now
	part.DeletedAt = nil
	s.parts[part.ID] = layout.ClonePart(part)
	s.record(layout.EntityPart, layout.EventInsert, part.ID, actor)
	s.mu.Unlock()

	created := layout.ClonePart(part)
	s.dispatch(part.ProjectID, []layout.Event{{
		Type: layout.EventInsert, Entity: layout.EntityPart, After: layout.ClonePart(part),
	}})
	return created, nil
}

func (p partStore) Update(_ context.Context, id string, patch layout.PartPatch, actor string) (layout.Part, error) {
	s := p.s
	s.mu.Lock()
	current, ok := s.parts[id]
	if !ok || current.DeletedAt != nil {
		s.mu.Unlock()
		return layout.Part{}, layout.NotFoundError{Entity: layout.EntityPart, ID: id}
	}
	before := layout.ClonePart(current)
	if patch.Name != nil {
		if *patch.Name == "" {
			s.mu.Unlock()
			return layout.Part{}, fmt.Errorf("part name required")
		}
		current.Name = *patch.Name
	}
	if patch.Location != nil {
		current.Location = *patch.Location
	}
	if patch.Size != nil {
		current.Size = *patch.Size
	}
	if patch.Type != nil {
		current.Type = *patch.Type
	}
	if patch.Index != nil {
		idx := *patch.Index
		current.Index = &idx
	}
	if err := validatePartBounds(current); err != nil {
		s.mu.Unlock()
		return layout.Part{}, err
	}
	current.UpdatedAt = s.nowFn()
	s.parts[id] = layout.ClonePart(current)
	s.record(layout.EntityPart, layout.EventUpdate, id, actor)
	s.mu.Unlock()

	updated := layout.ClonePart(current)
	s.dispatch(current.ProjectID, []layout.Event{{
		Type: layout.EventUpdate, Entity: layout.EntityPart, Before: before, After: layout.ClonePart(current),
	}})
	return updated, nil
}

func (p partStore) SoftDelete(_ context.Context, id string, actor string) error {
	s := p.s
	s.mu.Lock()
	current, ok := s.parts[id]
	if !ok || current.DeletedAt != nil {
		s.mu.Unlock()
		return layout.NotFoundError{Entity: layout.EntityPart, ID: id}
	}
	before := layout.ClonePart(current)
	now := s.nowFn()
	current.DeletedAt = &now
	current.UpdatedAt = now
	s.parts[id] = layout.ClonePart(current)
	s.record(layout.EntityPart, layout.EventDelete, id, actor)
	s.mu.Unlock()

	s.dispatch(current.ProjectID, []layout.Event{{
		Type: layout.EventDelete, Entity: layout.EntityPart, Before: before,
	}})
	return nil
}

// --- snapshots -------------------------------------------------------------

// Snapshot captures a point-in-time clone of the store state for durable
// backends.
type Snapshot struct {
	Blocks map[string]layout.Block `json:"blocks"`
	Parts  map[string]layout.Part  `json:"parts"`
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		Blocks: make(map[string]layout.Block, len(s.blocks)),
		Parts:  make(map[string]layout.Part, len(s.parts)),
	}
	for id, b := range s.blocks {
		snap.Blocks[id] = layout.CloneBlock(b)
	}
	for id, p := range s.parts {
		snap.Parts[id] = layout.ClonePart(p)
	}
	return snap
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks = make(map[string]layout.Block, len(snap.Blocks))
	s.parts = make(map[string]layout.Part, len(snap.Parts))
	for id, b := range snap.Blocks {
		s.blocks[id] = layout.CloneBlock(b)
	}
	for id, p := range snap.Parts {
		s.parts[id] = layout.ClonePart(p)
	}
}

// SetNowFunc overrides the clock for tests.
func (s *Store) SetNowFunc(fn func() time.Time) {
	if fn != nil {
		s.nowFn = fn
	}
}

// SetIDFunc overrides identity generation for tests.
func (s *Store) SetIDFunc(fn func() string) {
	if fn != nil {
		s.idFn = fn
	}
}
