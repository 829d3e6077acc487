package change

import "fmt"

// Kind categorizes a detected change for subscription matching.
type Kind string

// Kind values.
const (
	// KindNewEntity marks the first observation of an entity (no field diff).
	KindNewEntity Kind = "new_entity"
	// KindPhaseChange marks a development phase transition.
	KindPhaseChange Kind = "phase_change"
	// KindStatusChange marks a trial or record status transition.
	KindStatusChange Kind = "status_change"
	// KindScoreChange marks a numeric score moving beyond tolerance.
	KindScoreChange Kind = "score_change"
	// KindFiling marks a change to related legal or IP filings.
	KindFiling Kind = "filing"
	// KindFieldChange covers every other field-level difference.
	KindFieldChange Kind = "field_change"
)

// AllKinds returns every change kind.
func AllKinds() []Kind {
	return []Kind{
		KindNewEntity,
		KindPhaseChange,
		KindStatusChange,
		KindScoreChange,
		KindFiling,
		KindFieldChange,
	}
}

// Valid reports whether the kind is known.
func (k Kind) Valid() bool {
	switch k {
	case KindNewEntity, KindPhaseChange, KindStatusChange, KindScoreChange, KindFiling, KindFieldChange:
		return true
	default:
		return false
	}
}

// String returns the kind name.
func (k Kind) String() string { return string(k) }

// ParseKind converts a string to a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown change kind %q", s)
	}
	return k, nil
}
