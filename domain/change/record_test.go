package change

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/trialpulse/trialpulse/domain/entity"
)

func TestRecord_DedupKey(t *testing.T) {
	ref := entity.NewRef(entity.TypeDrug, "DB001", "Lecanemab")
	morning := time.Date(2026, 8, 30, 6, 0, 0, 0, time.UTC)
	evening := time.Date(2026, 8, 30, 22, 0, 0, 0, time.UTC)
	nextDay := time.Date(2026, 8, 31, 6, 0, 0, 0, time.UTC)

	a := NewRecord(ref, KindPhaseChange, "phase", "2", "3", SignificanceCritical, "feed", morning)
	b := NewRecord(ref, KindPhaseChange, "phase", "2", "3", SignificanceCritical, "feed", evening)
	c := NewRecord(ref, KindPhaseChange, "phase", "2", "3", SignificanceCritical, "feed", nextDay)

	assert.Equal(t, a.DedupKey(), b.DedupKey())
	assert.NotEqual(t, a.DedupKey(), c.DedupKey())

	otherField := NewRecord(ref, KindStatusChange, "status", "x", "y", SignificanceLow, "feed", morning)
	assert.NotEqual(t, a.DedupKey(), otherField.DedupKey())
}

func TestRecord_Summary(t *testing.T) {
	ref := entity.NewRef(entity.TypeDrug, "DB001", "Lecanemab")
	at := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

	fieldRec := NewRecord(ref, KindPhaseChange, "phase", "2", "3", SignificanceCritical, "feed", at)
	assert.Equal(t, "Lecanemab: phase changed from 2 to 3", fieldRec.Summary())

	newRec := NewEntityRecord(ref, SignificanceMedium, "feed", at)
	assert.Equal(t, "New drug tracked: Lecanemab", newRec.Summary())

	absentRec := NewRecord(ref, KindFieldChange, "status", nil, "active", SignificanceLow, "feed", at)
	assert.Equal(t, "Lecanemab: status changed from (absent) to active", absentRec.Summary())
}

func TestRecord_UnnamedEntityFallsBackToID(t *testing.T) {
	ref := entity.NewRef(entity.TypeTrial, "NCT001", "")
	at := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

	rec := NewEntityRecord(ref, SignificanceMedium, "feed", at)
	assert.Equal(t, "New trial tracked: NCT001", rec.Summary())
}
