package editor

import (
	"context"
	"strconv"
	"strings"

	"romgrid/pkg/layout"
)

// Save validates and commits a row's pending edits to the remote store.
// Existing rows submit only the edited fields as a partial update; locally
// created parts submit the full field set as a create and have their
// placeholder identity replaced by the server-assigned one. On failure the
// pending edits are retained and the failure surfaces as an inline error on
// the name field so the user can retry.
func (e *Editor) Save(ctx context.Context, rowID string) error {
	start := e.now()
	err := e.save(ctx, rowID)
	e.observe(ctx, "save", start, err)
	return err
}

func (e *Editor) save(ctx context.Context, rowID string) error {
	if e.state.closed {
		return ErrEditorClosed
	}
	kind, ok := e.rowKind(rowID)
	if !ok {
		return ErrRowNotFound
	}
	sess := e.state.sessions[rowID]
	pendingCreate := kind == RowPart && layout.IsPendingID(rowID)
	if sess == nil {
		if !pendingCreate {
			return nil
		}
		sess = newEditSession()
		e.state.sessions[rowID] = sess
	}
	if sess.saving {
		return ErrRowSaving
	}
	if !sess.Dirty() && !pendingCreate {
		return nil
	}

	if ok, errs := e.Validate(rowID); !ok {
		return firstValidationError(kind, errs)
	}

	sess.saving = true
	e.state.touch()

	var saveErr error
	switch {
	case kind == RowBlock:
		patch := e.blockPatch(sess)
		if patch.Empty() {
			break
		}
		var updated Block
		updated, saveErr = e.store.Blocks().Update(ctx, rowID, patch, e.actor)
		if saveErr == nil {
			e.state.upsertBlock(updated)
		}
	case pendingCreate:
		part, buildErr := e.buildPart(rowID, sess)
		if buildErr != nil {
			saveErr = buildErr
			break
		}
		var created Part
		created, saveErr = e.store.Parts().Create(ctx, part, e.actor)
		if saveErr == nil {
			e.state.replacePartID(rowID, created)
		}
	default:
		patch, buildErr := e.partPatch(rowID, sess)
		if buildErr != nil {
			saveErr = buildErr
			break
		}
		if patch.Empty() {
			break
		}
		var updated Part
		updated, saveErr = e.store.Parts().Update(ctx, rowID, patch, e.actor)
		if saveErr == nil {
			e.state.upsertPart(updated)
		}
	}

	if saveErr != nil {
		sess.saving = false
		sess.errors[FieldName] = saveErr.Error()
		e.state.touch()
		return PersistenceError{Op: "save " + string(kind), Err: saveErr}
	}
	e.state.dropSession(rowID)
	e.state.touch()
	return nil
}

// blockPatch maps a session's pending fields onto a partial block update.
func (e *Editor) blockPatch(sess *EditSession) layout.BlockPatch {
	var patch layout.BlockPatch
	if v, ok := sess.pending[FieldName]; ok {
		name := strings.TrimSpace(v)
		patch.Name = &name
	}
	if v, ok := sess.pending[FieldGroup]; ok {
		group := strings.TrimSpace(v)
		patch.Group = &group
	}
	return patch
}

// partPatch maps a session's pending fields onto a partial part update. The
// derived end field never travels; an end edit reaches the store as the
// back-computed size already cascaded into pending.
func (e *Editor) partPatch(rowID string, sess *EditSession) (layout.PartPatch, error) {
	var patch layout.PartPatch
	if v, ok := sess.pending[FieldName]; ok {
		name := strings.TrimSpace(v)
		patch.Name = &name
	}
	if v, ok := sess.pending[FieldLocation]; ok {
		loc, err := parseNumber(v)
		if err != nil {
			return patch, ValidationError{Field: FieldLocation, Message: "must be numeric"}
		}
		patch.Location = &loc
	}
	if v, ok := sess.pending[FieldSize]; ok {
		size, err := parseNumber(v)
		if err != nil {
			return patch, ValidationError{Field: FieldSize, Message: "must be numeric"}
		}
		patch.Size = &size
	}
	if v, ok := sess.pending[FieldType]; ok {
		typ := strings.TrimSpace(v)
		patch.Type = &typ
	}
	if v, ok := sess.pending[FieldIndex]; ok {
		trimmed := strings.TrimSpace(v)
		if trimmed != "" {
			idx, err := strconv.Atoi(trimmed)
			if err != nil {
				return patch, ValidationError{Field: FieldIndex, Message: "must be an integer"}
			}
			patch.Index = &idx
		}
	}
	return patch, nil
}

// buildPart assembles the full field set for a pending-create part from the
// stored defaults merged with pending overrides.
func (e *Editor) buildPart(rowID string, sess *EditSession) (Part, error) {
	_, stored, ok := e.state.part(rowID)
	if !ok {
		return Part{}, ErrRowNotFound
	}
	part := layout.ClonePart(*stored)
	part.ID = "" // server assigns identity
	patch, err := e.partPatch(rowID, sess)
	if err != nil {
		return Part{}, err
	}
	if patch.Name != nil {
		part.Name = *patch.Name
	}
	if patch.Location != nil {
		part.Location = *patch.Location
	}
	if patch.Size != nil {
		part.Size = *patch.Size
	}
	if patch.Type != nil {
		part.Type = *patch.Type
	}
	if patch.Index != nil {
		part.Index = patch.Index
	}
	return part, nil
}

// firstValidationError picks the error to return from a failed validation,
// in field display order for determinism.
func firstValidationError(kind RowKind, errs map[Field]string) error {
	for _, spec := range fieldsFor(kind) {
		if msg, ok := errs[spec.Key]; ok {
			return ValidationError{Field: spec.Key, Message: msg}
		}
	}
	for f, msg := range errs {
		return ValidationError{Field: f, Message: msg}
	}
	return nil
}
