package layout

// ResolveDependent recomputes the field that depends on the one just edited,
// keeping end == location + size. It returns the dependent field and its new
// value; ok is false when no recomputation applies. The caller applies the
// result; nothing is mutated here.
//
// Editing location or size recomputes end. Editing end back-computes size;
// when that would produce a negative size the recomputation is suppressed and
// the stale size is left for validation to reject.
func ResolveDependent(edited Field, location, size, end int64) (Field, int64, bool) {
	if location < 0 || size < 0 || end < 0 {
		return "", 0, false
	}
	switch edited {
	case FieldLocation, FieldSize:
		return FieldEnd, location + size, true
	case FieldEnd:
		if end < location {
			return "", 0, false
		}
		return FieldSize, end - location, true
	}
	return "", 0, false
}
