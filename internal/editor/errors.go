package editor

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrRowSaving is returned when an edit targets a row whose save is in
	// flight. Editing resumes once the save resolves.
	ErrRowSaving = errors.New("editor: row save in flight")
	// ErrRowNotFound is returned when an operation targets an unknown row.
	ErrRowNotFound = errors.New("editor: row not found")
	// ErrEditorClosed is returned by operations on a torn-down editor.
	ErrEditorClosed = errors.New("editor: closed")
)

// UnsavedRowsError reports rows that still hold unsaved or unpersisted state
// when a finalized hierarchy was requested.
type UnsavedRowsError struct {
	Dirty   []string
	Pending []string
}

func (e UnsavedRowsError) Error() string {
	var parts []string
	if len(e.Dirty) > 0 {
		parts = append(parts, fmt.Sprintf("%d dirty row(s)", len(e.Dirty)))
	}
	if len(e.Pending) > 0 {
		parts = append(parts, fmt.Sprintf("%d unpersisted row(s)", len(e.Pending)))
	}
	return "editor: " + strings.Join(parts, ", ")
}
