// Package layout defines the persistent entities, value types, and remote
// contracts for ROM memory-layout metadata: named blocks partitioned into
// ordered parts, grouped into banks by high-order address bits.
package layout

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EntityType identifies the type of record referenced by change events and
// persistence buckets.
type EntityType string

const (
	// EntityBlock identifies a top-level memory region record.
	EntityBlock EntityType = "block"
	// EntityPart identifies a sub-region record owned by a block.
	EntityPart EntityType = "part"
)

// Field names a single editable attribute of a block or part.
type Field string

// Editable fields. FieldEnd is a derived proxy over location+size.
const (
	FieldName     Field = "name"
	FieldGroup    Field = "group"
	FieldLocation Field = "location"
	FieldSize     Field = "size"
	FieldEnd      Field = "end"
	FieldType     Field = "type"
	FieldIndex    Field = "index"
)

// Address and size bounds for parts.
const (
	// LocationMax is the highest addressable part location (24-bit space).
	LocationMax int64 = 0xFFFFFF
	// SizeMin is the smallest valid part size.
	SizeMin int64 = 1
	// SizeMax is the largest valid part size (16-bit span).
	SizeMax int64 = 0xFFFF
	// EndMax is the highest reachable end address (location + size).
	EndMax = LocationMax + SizeMax
	// NameMaxLen bounds block and part names.
	NameMaxLen = 64
)

// Base carries identity and audit fields shared by all entities. Timestamps
// are assigned by the remote store; DeletedAt marks a soft-deleted record.
type Base struct {
	ID        string     `json:"id"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Block is a named top-level memory region composed of ordered parts. Its
// address range is never stored; it is always derived from the parts.
type Block struct {
	Base
	ProjectID string `json:"project_id"`
	Name      string `json:"name"`
	Group     string `json:"group,omitempty"`
	Parts     []Part `json:"parts,omitempty"`
}

// Part is a contiguous sub-region of a block. End is derived as
// Location + Size and never stored independently.
type Part struct {
	Base
	ProjectID string `json:"project_id"`
	BlockID   string `json:"block_id"`
	Name      string `json:"name"`
	Location  int64  `json:"location"`
	Size      int64  `json:"size"`
	Type      string `json:"type,omitempty"`
	Index     *int   `json:"index,omitempty"`
}

// End returns the exclusive end address of the part.
func (p Part) End() int64 { return p.Location + p.Size }

// Range returns the block's derived address range: the minimum part location
// and the maximum part end. ok is false when the block has no parts, in which
// case both addresses are undefined.
func (b Block) Range() (start, end int64, ok bool) {
	if len(b.Parts) == 0 {
		return 0, 0, false
	}
	start = b.Parts[0].Location
	end = b.Parts[0].End()
	for _, p := range b.Parts[1:] {
		if p.Location < start {
			start = p.Location
		}
		if e := p.End(); e > end {
			end = e
		}
	}
	return start, end, true
}

// Bank returns the bank number a start address falls into.
func Bank(start int64) int { return int((start & 0xFF0000) >> 16) }

// Bank returns the block's bank membership, defaulting to bank 0 when the
// block has no computed start address.
func (b Block) Bank() int {
	start, _, ok := b.Range()
	if !ok {
		return 0
	}
	return Bank(start)
}

// SortParts orders parts by explicit index ascending (missing index sorts
// last), ties broken by location ascending.
func SortParts(parts []Part) {
	sort.SliceStable(parts, func(i, j int) bool {
		a, b := parts[i], parts[j]
		switch {
		case a.Index != nil && b.Index != nil:
			if *a.Index != *b.Index {
				return *a.Index < *b.Index
			}
		case a.Index != nil:
			return true
		case b.Index != nil:
			return false
		}
		return a.Location < b.Location
	})
}

// ClonePart returns a deep copy of the part.
func ClonePart(p Part) Part {
	cp := p
	if p.Index != nil {
		idx := *p.Index
		cp.Index = &idx
	}
	if p.DeletedAt != nil {
		at := *p.DeletedAt
		cp.DeletedAt = &at
	}
	return cp
}

// CloneBlock returns a deep copy of the block including its parts.
func CloneBlock(b Block) Block {
	cp := b
	if b.DeletedAt != nil {
		at := *b.DeletedAt
		cp.DeletedAt = &at
	}
	if b.Parts != nil {
		cp.Parts = make([]Part, len(b.Parts))
		for i, p := range b.Parts {
			cp.Parts[i] = ClonePart(p)
		}
	}
	return cp
}

// PendingIDPrefix marks locally created parts that have no server identity
// yet. The remote store never assigns ids with this prefix.
const PendingIDPrefix = "pending-"

// NewPendingID generates a placeholder identity for a locally created part.
func NewPendingID() string { return PendingIDPrefix + uuid.NewString() }

// IsPendingID reports whether id is a local placeholder identity.
func IsPendingID(id string) bool { return strings.HasPrefix(id, PendingIDPrefix) }
