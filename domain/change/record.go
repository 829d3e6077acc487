package change

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/trialpulse/trialpulse/domain/entity"
)

// Record is an immutable fact describing one detected field-level
// difference between two snapshots (or the first observation of an
// entity). Records are only ever appended, never updated or deleted.
type Record struct {
	id           int64
	ref          entity.Ref
	kind         Kind
	field        string
	oldValue     string
	newValue     string
	significance Significance
	source       string
	detectedAt   time.Time
	dedupKey     string
}

// NewRecord creates a Record for a field-level difference. The dedup key
// makes a re-run of the same detection cycle append-idempotent: one key
// per (entity, field, detection day).
func NewRecord(
	ref entity.Ref,
	kind Kind,
	field string,
	oldValue, newValue any,
	significance Significance,
	source string,
	detectedAt time.Time,
) Record {
	return Record{
		ref:          ref,
		kind:         kind,
		field:        field,
		oldValue:     FormatValue(oldValue),
		newValue:     FormatValue(newValue),
		significance: significance,
		source:       source,
		detectedAt:   detectedAt,
		dedupKey: fmt.Sprintf("%s:%s:%s:%s",
			ref.Type(), ref.ID(), field, detectedAt.UTC().Format("2006-01-02")),
	}
}

// NewEntityRecord creates the single Record emitted when an entity is
// observed for the first time.
func NewEntityRecord(ref entity.Ref, significance Significance, source string, detectedAt time.Time) Record {
	return NewRecord(ref, KindNewEntity, "", nil, nil, significance, source, detectedAt)
}

// Reconstruct rebuilds a Record from stored fields (used by persistence).
func Reconstruct(
	id int64,
	ref entity.Ref,
	kind Kind,
	field string,
	oldValue, newValue string,
	significance Significance,
	source string,
	detectedAt time.Time,
	dedupKey string,
) Record {
	return Record{
		id:           id,
		ref:          ref,
		kind:         kind,
		field:        field,
		oldValue:     oldValue,
		newValue:     newValue,
		significance: significance,
		source:       source,
		detectedAt:   detectedAt,
		dedupKey:     dedupKey,
	}
}

// ID returns the record ID.
func (r Record) ID() int64 { return r.id }

// Entity returns the entity reference.
func (r Record) Entity() entity.Ref { return r.ref }

// Kind returns the change kind.
func (r Record) Kind() Kind { return r.kind }

// Field returns the changed field name (empty for new_entity records).
func (r Record) Field() string { return r.field }

// OldValue returns the prior value rendered as text ("" when absent).
func (r Record) OldValue() string { return r.oldValue }

// NewValue returns the new value rendered as text ("" when absent).
func (r Record) NewValue() string { return r.newValue }

// Significance returns the classified tier.
func (r Record) Significance() Significance { return r.significance }

// Source returns the upstream data source label.
func (r Record) Source() string { return r.source }

// DetectedAt returns when the difference was detected.
func (r Record) DetectedAt() time.Time { return r.detectedAt }

// DedupKey returns the append-idempotency key.
func (r Record) DedupKey() string { return r.dedupKey }

// WithID returns a copy of the record with the given ID.
func (r Record) WithID(id int64) Record {
	r.id = id
	return r
}

// Summary returns a short human-readable description of the change.
func (r Record) Summary() string {
	switch r.kind {
	case KindNewEntity:
		return fmt.Sprintf("New %s tracked: %s", r.ref.Type(), r.ref.Name())
	default:
		return fmt.Sprintf("%s: %s changed from %s to %s",
			r.ref.Name(), r.field, orAbsent(r.oldValue), orAbsent(r.newValue))
	}
}

func orAbsent(v string) string {
	if v == "" {
		return "(absent)"
	}
	return v
}

// FormatValue renders a payload value as stable text for storage and
// display. Absent values render as the empty string.
func FormatValue(v any) string {
	switch typed := v.(type) {
	case nil:
		return ""
	case string:
		return typed
	case float64:
		// Trim the trailing ".0" JSON gives whole numbers.
		if typed == float64(int64(typed)) {
			return fmt.Sprintf("%d", int64(typed))
		}
		return fmt.Sprintf("%g", typed)
	case int:
		return fmt.Sprintf("%d", typed)
	case int64:
		return fmt.Sprintf("%d", typed)
	case bool:
		return fmt.Sprintf("%t", typed)
	default:
		raw, err := json.Marshal(typed)
		if err != nil {
			return fmt.Sprintf("%v", typed)
		}
		return string(raw)
	}
}
