// Package entity provides the tracked-entity identity types shared by the
// snapshot, change, watch, and digest domains.
package entity

import "fmt"

// Type identifies a kind of tracked record.
type Type string

// Type values.
const (
	TypeDrug    Type = "drug"
	TypeTrial   Type = "trial"
	TypeCompany Type = "company"
	TypeFiling  Type = "filing"
)

// AllTypes returns every known entity type.
func AllTypes() []Type {
	return []Type{TypeDrug, TypeTrial, TypeCompany, TypeFiling}
}

// Valid reports whether the type is a known entity type.
func (t Type) Valid() bool {
	switch t {
	case TypeDrug, TypeTrial, TypeCompany, TypeFiling:
		return true
	default:
		return false
	}
}

// String returns the type name.
func (t Type) String() string { return string(t) }

// ParseType converts a string to a Type.
func ParseType(s string) (Type, error) {
	t := Type(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown entity type %q", s)
	}
	return t, nil
}

// Ref identifies one tracked entity.
type Ref struct {
	entityType Type
	id         string
	name       string
}

// NewRef creates an entity reference.
func NewRef(entityType Type, id, name string) Ref {
	return Ref{entityType: entityType, id: id, name: name}
}

// Type returns the entity type.
func (r Ref) Type() Type { return r.entityType }

// ID returns the entity identifier.
func (r Ref) ID() string { return r.id }

// Name returns the display name, falling back to the ID when unnamed.
func (r Ref) Name() string {
	if r.name == "" {
		return r.id
	}
	return r.name
}

// String returns "type/id".
func (r Ref) String() string {
	return fmt.Sprintf("%s/%s", r.entityType, r.id)
}
