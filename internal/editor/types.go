package editor

import "romgrid/pkg/layout"

type (
	// Block aliases layout.Block for engine operations.
	Block = layout.Block
	// Part aliases layout.Part.
	Part = layout.Part
	// Field aliases layout.Field.
	Field = layout.Field
	// Event aliases layout.Event received from the push channel.
	Event = layout.Event
	// EntityType aliases layout.EntityType.
	EntityType = layout.EntityType
	// ValidationError aliases layout.ValidationError.
	ValidationError = layout.ValidationError
	// PersistenceError aliases layout.PersistenceError.
	PersistenceError = layout.PersistenceError
)

const (
	FieldName     = layout.FieldName
	FieldGroup    = layout.FieldGroup
	FieldLocation = layout.FieldLocation
	FieldSize     = layout.FieldSize
	FieldEnd      = layout.FieldEnd
	FieldType     = layout.FieldType
	FieldIndex    = layout.FieldIndex
)

const (
	EntityBlock = layout.EntityBlock
	EntityPart  = layout.EntityPart
)

const (
	EventInsert = layout.EventInsert
	EventUpdate = layout.EventUpdate
	EventDelete = layout.EventDelete
)
