package editor

import "romgrid/pkg/layout"

// EditorState is the single shared mutable resource of the engine: the
// in-memory block/part hierarchy plus per-row edit sessions and view state.
// It is owned by one Editor and mutated only through Editor operations; the
// engine follows a cooperative single-goroutine model, so the state carries
// no lock of its own.
type EditorState struct {
	projectID string

	blocks    map[string]*Block
	partOwner map[string]string // part id -> owning block id

	sessions map[string]*EditSession
	expanded map[string]bool

	bank    int
	bankSet bool

	closed bool

	// gen increments on every mutation that can affect the row projection;
	// it is the memoization key for Rows.
	gen      uint64
	memoRows []Row
	memoGen  uint64
	memoBank int
}

func newEditorState(projectID string) *EditorState {
	return &EditorState{
		projectID: projectID,
		blocks:    make(map[string]*Block),
		partOwner: make(map[string]string),
		sessions:  make(map[string]*EditSession),
		expanded:  make(map[string]bool),
	}
}

func (s *EditorState) touch() { s.gen++ }

// block returns the stored block, if any.
func (s *EditorState) block(id string) (*Block, bool) {
	b, ok := s.blocks[id]
	return b, ok
}

// part locates a stored part and its owning block.
func (s *EditorState) part(id string) (*Block, *Part, bool) {
	blockID, ok := s.partOwner[id]
	if !ok {
		return nil, nil, false
	}
	b, ok := s.blocks[blockID]
	if !ok {
		return nil, nil, false
	}
	for i := range b.Parts {
		if b.Parts[i].ID == id {
			return b, &b.Parts[i], true
		}
	}
	return nil, nil, false
}

// upsertBlock inserts or replaces a block's own fields. The stored part list
// is preserved on replace; block payloads from the store or the push channel
// never carry parts.
func (s *EditorState) upsertBlock(b Block) {
	if existing, ok := s.blocks[b.ID]; ok {
		b.Parts = existing.Parts
	} else {
		b.Parts = nil
	}
	stored := layout.CloneBlock(b)
	s.blocks[b.ID] = &stored
	s.touch()
}

// removeBlock drops a block and the ownership entries of its parts. The
// caller is responsible for discarding edit sessions.
func (s *EditorState) removeBlock(id string) []string {
	b, ok := s.blocks[id]
	if !ok {
		return nil
	}
	removed := make([]string, 0, len(b.Parts))
	for _, p := range b.Parts {
		removed = append(removed, p.ID)
		delete(s.partOwner, p.ID)
	}
	delete(s.blocks, id)
	s.touch()
	return removed
}

// upsertPart inserts or replaces a part under its owning block, keeping the
// block's parts sorted. It reports whether the part is new to the hierarchy.
// Parts whose owning block is unknown are ignored.
func (s *EditorState) upsertPart(p Part) (inserted, ok bool) {
	b, okBlock := s.blocks[p.BlockID]
	if !okBlock {
		return false, false
	}
	stored := layout.ClonePart(p)
	replaced := false
	for i := range b.Parts {
		if b.Parts[i].ID == p.ID {
			b.Parts[i] = stored
			replaced = true
			break
		}
	}
	if !replaced {
		b.Parts = append(b.Parts, stored)
	}
	s.partOwner[p.ID] = p.BlockID
	layout.SortParts(b.Parts)
	s.touch()
	return !replaced, true
}

// removePart drops a part from its owning block.
func (s *EditorState) removePart(id string) bool {
	b, _, ok := s.part(id)
	if !ok {
		return false
	}
	for i := range b.Parts {
		if b.Parts[i].ID == id {
			b.Parts = append(b.Parts[:i], b.Parts[i+1:]...)
			break
		}
	}
	delete(s.partOwner, id)
	s.touch()
	return true
}

// replacePartID swaps a placeholder part identity for the server-assigned
// record after a successful create, updating ownership indices and any view
// state keyed by the old identity.
func (s *EditorState) replacePartID(oldID string, created Part) {
	s.removePart(oldID)
	s.upsertPart(created)
	if s.expanded[oldID] {
		delete(s.expanded, oldID)
		s.expanded[created.ID] = true
	}
	s.touch()
}

// dropSession discards the edit session for a row, if any.
func (s *EditorState) dropSession(rowID string) {
	if _, ok := s.sessions[rowID]; ok {
		delete(s.sessions, rowID)
		s.touch()
	}
}
