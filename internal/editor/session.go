package editor

import "romgrid/pkg/layout"

// EditSession tracks one row's editing burst: the original snapshot captured
// when the burst began, raw pending overrides per field, per-field validation
// errors, and the saving flag that suspends edits while a save is in flight.
type EditSession struct {
	original map[Field]string
	pending  map[Field]string
	editing  map[Field]bool
	errors   map[Field]string
	saving   bool
}

func newEditSession() *EditSession {
	return &EditSession{
		original: make(map[Field]string),
		pending:  make(map[Field]string),
		editing:  make(map[Field]bool),
		errors:   make(map[Field]string),
	}
}

// Dirty reports whether the session holds unsaved overrides.
func (s *EditSession) Dirty() bool { return len(s.pending) > 0 }

func (e *Editor) rowKind(rowID string) (RowKind, bool) {
	if _, ok := e.state.blocks[rowID]; ok {
		return RowBlock, true
	}
	if _, ok := e.state.partOwner[rowID]; ok {
		return RowPart, true
	}
	return "", false
}

// storedValue formats a row's stored field for display. For part rows the
// end field is derived on the fly.
func (e *Editor) storedValue(rowID string, field Field) (string, bool) {
	if b, ok := e.state.block(rowID); ok {
		switch field {
		case FieldName:
			return b.Name, true
		case FieldGroup:
			return b.Group, true
		}
		return "", false
	}
	if _, p, ok := e.state.part(rowID); ok {
		switch field {
		case FieldName:
			return p.Name, true
		case FieldLocation:
			return formatAddress(p.Location), true
		case FieldSize:
			return formatSize(p.Size), true
		case FieldEnd:
			return formatAddress(p.End()), true
		case FieldType:
			return p.Type, true
		case FieldIndex:
			return formatIndex(p.Index), true
		}
	}
	return "", false
}

// CellValue returns a cell's effective display value: the pending override
// when one exists, otherwise the stored value. Rendering and edit snapshots
// both read through here so that edits in one field are never lost when the
// underlying data is recomputed while another field is being edited.
func (e *Editor) CellValue(rowID string, field Field) (string, bool) {
	if sess, ok := e.state.sessions[rowID]; ok {
		if v, ok := sess.pending[field]; ok {
			return v, true
		}
	}
	return e.storedValue(rowID, field)
}

// BeginEdit opens an editing burst on a cell. The first edit on a row
// snapshots the row's effective values as the session original. Rows with a
// save in flight reject new edits until the save resolves.
func (e *Editor) BeginEdit(rowID string, field Field) error {
	if e.state.closed {
		return ErrEditorClosed
	}
	kind, ok := e.rowKind(rowID)
	if !ok {
		return ErrRowNotFound
	}
	if _, ok := fieldSpecFor(kind, field); !ok {
		return ValidationError{Field: field, Message: "not editable for this row"}
	}
	sess := e.state.sessions[rowID]
	if sess != nil && sess.saving {
		return ErrRowSaving
	}
	if sess == nil {
		sess = newEditSession()
		for _, spec := range fieldsFor(kind) {
			if v, ok := e.CellValue(rowID, spec.Key); ok {
				sess.original[spec.Key] = v
			}
		}
		e.state.sessions[rowID] = sess
	}
	sess.editing[field] = true
	if _, ok := sess.pending[field]; !ok {
		if v, ok := e.CellValue(rowID, field); ok {
			sess.pending[field] = v
		}
	}
	e.state.touch()
	return nil
}

// UpdateValue buffers a field edit, marks the row dirty, clears the field's
// validation error, and cascades the dependent-field recomputation for part
// address fields.
func (e *Editor) UpdateValue(rowID string, field Field, value string) error {
	if e.state.closed {
		return ErrEditorClosed
	}
	kind, ok := e.rowKind(rowID)
	if !ok {
		return ErrRowNotFound
	}
	if _, ok := fieldSpecFor(kind, field); !ok {
		return ValidationError{Field: field, Message: "not editable for this row"}
	}
	sess := e.state.sessions[rowID]
	if sess != nil && sess.saving {
		return ErrRowSaving
	}
	if sess == nil {
		if err := e.BeginEdit(rowID, field); err != nil {
			return err
		}
		sess = e.state.sessions[rowID]
	}
	sess.pending[field] = value
	delete(sess.errors, field)
	if kind == RowPart {
		e.cascadeDependent(rowID, sess, field)
	}
	e.state.touch()
	return nil
}

// cascadeDependent applies the dependent-field resolver to a part row's
// pending values. Recomputation only fires when all three address fields
// parse to non-negative numbers; partial input leaves dependents untouched.
func (e *Editor) cascadeDependent(rowID string, sess *EditSession, edited Field) {
	if edited != FieldLocation && edited != FieldSize && edited != FieldEnd {
		return
	}
	loc, err1 := e.cellNumber(rowID, sess, FieldLocation)
	size, err2 := e.cellNumber(rowID, sess, FieldSize)
	end, err3 := e.cellNumber(rowID, sess, FieldEnd)
	if err1 != nil || err2 != nil || err3 != nil {
		return
	}
	dep, value, ok := layout.ResolveDependent(edited, loc, size, end)
	if !ok {
		return
	}
	switch dep {
	case FieldEnd:
		sess.pending[FieldEnd] = formatAddress(value)
	case FieldSize:
		sess.pending[FieldSize] = formatSize(value)
	}
	delete(sess.errors, dep)
}

func (e *Editor) cellNumber(rowID string, sess *EditSession, field Field) (int64, error) {
	raw, ok := sess.pending[field]
	if !ok {
		raw, _ = e.storedValue(rowID, field)
	}
	return parseNumber(raw)
}

// EndEdit closes active editing on a field. The pending value stays buffered;
// nothing is committed to storage.
func (e *Editor) EndEdit(rowID string, field Field) {
	if sess, ok := e.state.sessions[rowID]; ok {
		delete(sess.editing, field)
	}
}

// Validate runs every applicable field validator against the row's effective
// values and populates the session's validation errors. It reports whether
// the row is saveable.
func (e *Editor) Validate(rowID string) (bool, map[Field]string) {
	kind, ok := e.rowKind(rowID)
	if !ok {
		return false, map[Field]string{FieldName: "row no longer exists"}
	}
	sess := e.state.sessions[rowID]
	if sess == nil {
		return true, nil
	}
	errs := make(map[Field]string)
	for _, spec := range fieldsFor(kind) {
		raw, _ := e.CellValue(rowID, spec.Key)
		if err := validateField(spec, raw, e.partTypes); err != nil {
			var verr ValidationError
			if v, ok := err.(ValidationError); ok {
				verr = v
			} else {
				verr = ValidationError{Field: spec.Key, Message: err.Error()}
			}
			errs[verr.Field] = verr.Message
		}
	}
	if kind == RowPart {
		locRaw, _ := e.CellValue(rowID, FieldLocation)
		endRaw, _ := e.CellValue(rowID, FieldEnd)
		loc, lerr := parseNumber(locRaw)
		end, eerr := parseNumber(endRaw)
		if lerr == nil && eerr == nil && end < loc {
			if _, taken := errs[FieldEnd]; !taken {
				errs[FieldEnd] = "must not precede location"
			}
		}
	}
	sess.errors = errs
	e.state.touch()
	return len(errs) == 0, errs
}

// Cancel discards a row's editing burst. Cancelling a locally created part
// that was never persisted removes it from the hierarchy entirely.
func (e *Editor) Cancel(rowID string) error {
	sess, ok := e.state.sessions[rowID]
	if !ok {
		return nil
	}
	if sess.saving {
		return ErrRowSaving
	}
	e.state.dropSession(rowID)
	if layout.IsPendingID(rowID) {
		e.state.removePart(rowID)
	}
	e.state.touch()
	return nil
}

// IsDirty reports whether the row has unsaved local edits. Unpersisted parts
// are always dirty.
func (e *Editor) IsDirty(rowID string) bool { return e.rowDirty(rowID) }

// IsSaving reports whether the row has a save in flight.
func (e *Editor) IsSaving(rowID string) bool {
	sess, ok := e.state.sessions[rowID]
	return ok && sess.saving
}

// PendingValue returns the buffered override for a field, if any.
func (e *Editor) PendingValue(rowID string, field Field) (string, bool) {
	sess, ok := e.state.sessions[rowID]
	if !ok {
		return "", false
	}
	v, ok := sess.pending[field]
	return v, ok
}

// ValidationMessage returns the inline error attached to a field, if any.
func (e *Editor) ValidationMessage(rowID string, field Field) (string, bool) {
	sess, ok := e.state.sessions[rowID]
	if !ok {
		return "", false
	}
	msg, ok := sess.errors[field]
	return msg, ok
}
