// Package uuid wraps github.com/google/uuid with UUIDv7 as the default
// version so that identifiers sort by creation time.
package uuid

import (
	"github.com/google/uuid"
)

// UUID represents a UUID, aliased from github.com/google/uuid.UUID
type UUID = uuid.UUID

// NullUUID is a UUID that may be SQL NULL.
type NullUUID = uuid.NullUUID

// Nil is the zero UUID value.
var Nil = uuid.Nil

// New returns a new UUIDv7. Panics if UUID generation fails.
func New() UUID {
	uuidv7, err := uuid.NewV7()
	if err != nil {
		panic(err)
	}
	return uuidv7
}

// Parse parses a UUID string into a UUID value.
func Parse(s string) (UUID, error) {
	return uuid.Parse(s)
}

// MustParse parses a UUID string and panics if the string is not a valid UUID.
func MustParse(s string) UUID {
	return uuid.MustParse(s)
}

// ParseAll parses every string of ids, stopping at the first invalid one.
func ParseAll(ids []string) ([]UUID, error) {
	out := make([]UUID, 0, len(ids))
	for _, s := range ids {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

// Strings returns the canonical string form of ids.
func Strings(ids []UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

// Null converts an optional id to its SQL form.
func Null(id *UUID) NullUUID {
	if id == nil {
		return NullUUID{}
	}
	return NullUUID{UUID: *id, Valid: true}
}

// Ptr converts a NullUUID back to an optional id.
func Ptr(n NullUUID) *UUID {
	if !n.Valid {
		return nil
	}
	id := n.UUID
	return &id
}

// IsUUIDv7 reports whether the given UUID is a valid UUIDv7.
func IsUUIDv7(id UUID) bool {
	return id.Version() == uuid.Version(7)
}
