package change

import (
	"fmt"
	"math"
	"sort"
	"strconv"
)

// CompareKind selects the comparison semantics for one field.
type CompareKind string

// CompareKind values.
const (
	// CompareExact matches identifiers, enums, and free text character for
	// character.
	CompareExact CompareKind = "exact"
	// CompareNumeric treats values within the field's tolerance as equal,
	// suppressing score noise.
	CompareNumeric CompareKind = "numeric"
	// CompareSet compares array-valued fields by set equality, ignoring
	// order and duplicates.
	CompareSet CompareKind = "set"
)

// Valid reports whether the compare kind is known.
func (c CompareKind) Valid() bool {
	switch c {
	case CompareExact, CompareNumeric, CompareSet:
		return true
	default:
		return false
	}
}

// FieldChange is one detected difference between two payloads for a single
// schema field. A field missing from one side is a present/absent
// difference, not a skipped comparison.
type FieldChange struct {
	field      string
	kind       Kind
	oldValue   any
	newValue   any
	oldPresent bool
	newPresent bool
}

// Field returns the schema field name.
func (f FieldChange) Field() string { return f.field }

// Kind returns the change kind assigned by the field's schema rule.
func (f FieldChange) Kind() Kind { return f.kind }

// OldValue returns the prior value (nil when absent).
func (f FieldChange) OldValue() any { return f.oldValue }

// NewValue returns the new value (nil when absent).
func (f FieldChange) NewValue() any { return f.newValue }

// OldPresent reports whether the prior snapshot carried the field.
func (f FieldChange) OldPresent() bool { return f.oldPresent }

// NewPresent reports whether the new snapshot carries the field.
func (f FieldChange) NewPresent() bool { return f.newPresent }

// Diff compares two payloads field by field under the schema's comparator
// rules and returns one FieldChange per differing field, in schema order.
func Diff(schema Schema, oldPayload, newPayload map[string]any) []FieldChange {
	var changes []FieldChange
	for _, rule := range schema.Fields() {
		oldVal, oldOK := oldPayload[rule.Name()]
		newVal, newOK := newPayload[rule.Name()]

		if !oldOK && !newOK {
			continue
		}
		if oldOK != newOK {
			changes = append(changes, FieldChange{
				field:      rule.Name(),
				kind:       rule.Kind(),
				oldValue:   oldVal,
				newValue:   newVal,
				oldPresent: oldOK,
				newPresent: newOK,
			})
			continue
		}
		if !rule.Equal(oldVal, newVal) {
			changes = append(changes, FieldChange{
				field:      rule.Name(),
				kind:       rule.Kind(),
				oldValue:   oldVal,
				newValue:   newVal,
				oldPresent: true,
				newPresent: true,
			})
		}
	}
	return changes
}

func equalExact(oldVal, newVal any) bool {
	return FormatValue(oldVal) == FormatValue(newVal)
}

func equalNumeric(oldVal, newVal any, tolerance float64) bool {
	oldNum, oldOK := toFloat(oldVal)
	newNum, newOK := toFloat(newVal)
	if !oldOK || !newOK {
		// Unparseable values fall back to exact comparison.
		return equalExact(oldVal, newVal)
	}
	return math.Abs(oldNum-newNum) <= tolerance
}

func equalSet(oldVal, newVal any) bool {
	oldSet, oldOK := toStringSet(oldVal)
	newSet, newOK := toStringSet(newVal)
	if !oldOK || !newOK {
		return equalExact(oldVal, newVal)
	}
	if len(oldSet) != len(newSet) {
		return false
	}
	for i := range oldSet {
		if oldSet[i] != newSet[i] {
			return false
		}
	}
	return true
}

func toFloat(v any) (float64, bool) {
	switch typed := v.(type) {
	case float64:
		return typed, true
	case float32:
		return float64(typed), true
	case int:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case string:
		f, err := strconv.ParseFloat(typed, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// toStringSet renders an array value as sorted, deduplicated member strings.
func toStringSet(v any) ([]string, bool) {
	items, ok := v.([]any)
	if !ok {
		if strs, strOK := v.([]string); strOK {
			items = make([]any, len(strs))
			for i, s := range strs {
				items[i] = s
			}
		} else {
			return nil, false
		}
	}

	seen := make(map[string]bool, len(items))
	members := make([]string, 0, len(items))
	for _, item := range items {
		s := fmt.Sprintf("%v", item)
		if !seen[s] {
			seen[s] = true
			members = append(members, s)
		}
	}
	sort.Strings(members)
	return members, true
}
