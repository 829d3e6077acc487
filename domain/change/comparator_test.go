package change

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trialpulse/trialpulse/domain/entity"
)

func testSchema() Schema {
	return NewSchema(entity.TypeDrug, "name", "test-feed", []FieldRule{
		NewFieldRule("name", CompareExact, 0, KindFieldChange),
		NewFieldRule("phase", CompareExact, 0, KindPhaseChange),
		NewFieldRule("score", CompareNumeric, 1.0, KindScoreChange),
		NewFieldRule("targets", CompareSet, 0, KindFieldChange),
	})
}

func TestDiff_ExactFieldChange(t *testing.T) {
	old := map[string]any{"name": "Lecanemab", "phase": "2"}
	updated := map[string]any{"name": "Lecanemab", "phase": "3"}

	changes := Diff(testSchema(), old, updated)

	require.Len(t, changes, 1)
	assert.Equal(t, "phase", changes[0].Field())
	assert.Equal(t, KindPhaseChange, changes[0].Kind())
	assert.Equal(t, "2", changes[0].OldValue())
	assert.Equal(t, "3", changes[0].NewValue())
}

func TestDiff_NumericTolerance(t *testing.T) {
	tests := []struct {
		name    string
		old     float64
		updated float64
		changed bool
	}{
		{"within tolerance", 62, 62.9, false},
		{"at tolerance boundary", 62, 63, false},
		{"beyond tolerance", 62, 64.5, true},
		{"large jump", 62, 75, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			changes := Diff(testSchema(),
				map[string]any{"score": tt.old},
				map[string]any{"score": tt.updated},
			)
			if tt.changed {
				require.Len(t, changes, 1)
				assert.Equal(t, KindScoreChange, changes[0].Kind())
			} else {
				assert.Empty(t, changes)
			}
		})
	}
}

func TestDiff_SetComparison(t *testing.T) {
	t.Run("reorder and duplicates are not a change", func(t *testing.T) {
		changes := Diff(testSchema(),
			map[string]any{"targets": []any{"amyloid-beta", "tau"}},
			map[string]any{"targets": []any{"tau", "amyloid-beta", "tau"}},
		)
		assert.Empty(t, changes)
	})

	t.Run("membership change is detected", func(t *testing.T) {
		changes := Diff(testSchema(),
			map[string]any{"targets": []any{"amyloid-beta"}},
			map[string]any{"targets": []any{"amyloid-beta", "tau"}},
		)
		require.Len(t, changes, 1)
		assert.Equal(t, "targets", changes[0].Field())
	})
}

func TestDiff_PresentAbsent(t *testing.T) {
	changes := Diff(testSchema(),
		map[string]any{"name": "Lecanemab"},
		map[string]any{"name": "Lecanemab", "phase": "2"},
	)

	require.Len(t, changes, 1)
	assert.Equal(t, "phase", changes[0].Field())
	assert.False(t, changes[0].OldPresent())
	assert.True(t, changes[0].NewPresent())
}

func TestDiff_IgnoresUnlistedFields(t *testing.T) {
	changes := Diff(testSchema(),
		map[string]any{"name": "Lecanemab", "internal_rev": "a"},
		map[string]any{"name": "Lecanemab", "internal_rev": "b"},
	)
	assert.Empty(t, changes)
}

func TestDiff_NumericUnparseableFallsBackToExact(t *testing.T) {
	changes := Diff(testSchema(),
		map[string]any{"score": "n/a"},
		map[string]any{"score": "n/a"},
	)
	assert.Empty(t, changes)

	changes = Diff(testSchema(),
		map[string]any{"score": "n/a"},
		map[string]any{"score": "pending"},
	)
	assert.Len(t, changes, 1)
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil is empty", nil, ""},
		{"string passes through", "active", "active"},
		{"whole float drops decimal", 62.0, "62"},
		{"fractional float keeps digits", 62.5, "62.5"},
		{"int", 7, "7"},
		{"bool", true, "true"},
		{"slice renders as json", []any{"a", "b"}, `["a","b"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatValue(tt.in))
		})
	}
}
