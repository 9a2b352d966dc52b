// Package ident is the single place identifiers change representation.
// Every component outside the relationship store works with the portable
// string form; the store converts at its boundary through this package.
package ident

import "github.com/google/uuid"

// ID is the storage-native identifier. Identifiers that do not parse as a
// canonical UUID are carried verbatim so lookups against them degrade to
// "not found" instead of erroring.
type ID struct {
	uid   uuid.UUID
	raw   string
	valid bool
}

// New mints a fresh identifier.
func New() ID {
	return ID{uid: uuid.New(), valid: true}
}

// ToNative converts a portable identifier into its native form. It never
// fails: non-canonical input is wrapped as a raw passthrough ID.
func ToNative(s string) ID {
	u, err := uuid.Parse(s)
	// uuid.Parse accepts several spellings (braces, urn: prefix). Only the
	// canonical form round-trips, so anything else stays raw.
	if err != nil || u.String() != s {
		return ID{raw: s}
	}
	return ID{uid: u, valid: true}
}

// ToPortable converts an identifier back to its portable string form.
// Total and lossless: ToPortable(ToNative(s)) == s for any s.
func ToPortable(id ID) string {
	if !id.valid {
		return id.raw
	}
	return id.uid.String()
}

// String implements fmt.Stringer.
func (id ID) String() string {
	return ToPortable(id)
}

// Valid reports whether the identifier parsed as a canonical UUID.
func (id ID) Valid() bool {
	return id.valid
}

// Key returns the byte form used for storage keys. Raw identifiers keep
// their original bytes so equality stays deterministic.
func (id ID) Key() []byte {
	return []byte(ToPortable(id))
}
