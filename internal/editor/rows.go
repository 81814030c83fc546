package editor

import "romgrid/pkg/layout"

// RowKind discriminates the two row variants of the flattened grid.
type RowKind string

const (
	// RowBlock is a top-level block row at nesting level 0.
	RowBlock RowKind = "block"
	// RowPart is a part row nested under its block at level 1.
	RowPart RowKind = "part"
)

// Row is one display-ready line of the grid: a tagged union over block and
// part rows carrying a snapshot of the entity's stored fields. Pending edit
// overrides are not baked in here; cell rendering reads them through
// CellValue so in-flight edits survive asynchronous recomputation.
type Row struct {
	Kind    RowKind
	ID      string
	BlockID string // owning block for part rows; the row's own id for blocks
	Level   int

	Name  string
	Group string

	// Part fields. End is derived from Location+Size.
	Location int64
	Size     int64
	End      int64
	Type     string
	Index    *int

	// Block fields, defined only when HasRange is true.
	Start    int64
	EndAddr  int64
	HasRange bool
	Bank     int

	Dirty bool
}

// Rows projects the active bank's blocks, and the parts of expanded blocks,
// into a flat ordered row list. The projection is memoized on the state
// generation and active bank; any hierarchy, session, or expand mutation
// invalidates it.
func (e *Editor) Rows() []Row {
	bank := e.CurrentBank()
	if e.state.memoRows != nil && e.state.memoGen == e.state.gen && e.state.memoBank == bank {
		return e.state.memoRows
	}
	blocks := e.BlocksInBank(bank)
	rows := make([]Row, 0, len(blocks)*2)
	for _, b := range blocks {
		start, end, ok := b.Range()
		rows = append(rows, Row{
			Kind:     RowBlock,
			ID:       b.ID,
			BlockID:  b.ID,
			Level:    0,
			Name:     b.Name,
			Group:    b.Group,
			Start:    start,
			EndAddr:  end,
			HasRange: ok,
			Bank:     b.Bank(),
			Dirty:    e.rowDirty(b.ID),
		})
		if !e.state.expanded[b.ID] {
			continue
		}
		for _, p := range b.Parts {
			rows = append(rows, Row{
				Kind:     RowPart,
				ID:       p.ID,
				BlockID:  b.ID,
				Level:    1,
				Name:     p.Name,
				Location: p.Location,
				Size:     p.Size,
				End:      p.End(),
				Type:     p.Type,
				Index:    p.Index,
				Dirty:    e.rowDirty(p.ID),
			})
		}
	}
	e.state.memoRows = rows
	e.state.memoGen = e.state.gen
	e.state.memoBank = bank
	return rows
}

func (e *Editor) rowDirty(rowID string) bool {
	if layout.IsPendingID(rowID) {
		return true
	}
	if sess, ok := e.state.sessions[rowID]; ok {
		return sess.Dirty()
	}
	return false
}

// IsExpanded reports whether a block's parts are shown.
func (e *Editor) IsExpanded(blockID string) bool { return e.state.expanded[blockID] }

// Expand shows a block's part rows.
func (e *Editor) Expand(blockID string) {
	if !e.state.expanded[blockID] {
		e.state.expanded[blockID] = true
		e.state.touch()
	}
}

// Collapse hides a block's part rows.
func (e *Editor) Collapse(blockID string) {
	if e.state.expanded[blockID] {
		delete(e.state.expanded, blockID)
		e.state.touch()
	}
}

// ToggleExpand flips a block's expansion.
func (e *Editor) ToggleExpand(blockID string) {
	if e.state.expanded[blockID] {
		e.Collapse(blockID)
	} else {
		e.Expand(blockID)
	}
}

// ExpandAll expands every block in the hierarchy.
func (e *Editor) ExpandAll() {
	for id := range e.state.blocks {
		e.state.expanded[id] = true
	}
	e.state.touch()
}

// CollapseAll collapses every block.
func (e *Editor) CollapseAll() {
	e.state.expanded = make(map[string]bool)
	e.state.touch()
}
