package change

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trialpulse/trialpulse/domain/entity"
)

func TestDefaultRegistry_CoversAllEntityTypes(t *testing.T) {
	r := DefaultRegistry(DefaultScoreTolerance)
	assert.ElementsMatch(t, entity.AllTypes(), r.Types())
}

func TestSchema_Validate(t *testing.T) {
	s := testSchema()

	full := map[string]any{"name": "x", "phase": "2", "score": 1.0, "targets": []any{}}
	assert.NoError(t, s.Validate(full))

	partial := map[string]any{"name": "x", "phase": "2"}
	err := s.Validate(partial)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "score")
	assert.Contains(t, err.Error(), "targets")
}

func TestSchema_Name(t *testing.T) {
	s := testSchema()
	assert.Equal(t, "Lecanemab", s.Name(map[string]any{"name": "Lecanemab"}))
	assert.Equal(t, "", s.Name(map[string]any{}))
}

func TestLoadRegistry(t *testing.T) {
	raw := []byte(`entities:
  - type: trial
    name_field: title
    source: registry-feed
    fields:
      - name: title
      - name: phase
        kind: phase_change
      - name: enrollment
        compare: numeric
        tolerance: 10
`)

	r, err := LoadRegistry(raw)
	require.NoError(t, err)

	s, ok := r.Schema(entity.TypeTrial)
	require.True(t, ok)
	assert.Equal(t, "registry-feed", s.Source())

	fields := s.Fields()
	require.Len(t, fields, 3)
	// Omitted compare and kind default to exact and field_change.
	assert.Equal(t, CompareExact, fields[0].Compare())
	assert.Equal(t, KindFieldChange, fields[0].Kind())
	assert.Equal(t, KindPhaseChange, fields[1].Kind())
	assert.Equal(t, CompareNumeric, fields[2].Compare())
	assert.Equal(t, 10.0, fields[2].Tolerance())
}

func TestLoadRegistry_Invalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"unknown entity type", "entities:\n  - type: gadget\n"},
		{"unknown compare", "entities:\n  - type: drug\n    fields:\n      - name: x\n        compare: fuzzy\n"},
		{"unknown kind", "entities:\n  - type: drug\n    fields:\n      - name: x\n        kind: explosion\n"},
		{"malformed yaml", "entities: ["},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadRegistry([]byte(tt.raw))
			assert.Error(t, err)
		})
	}
}
