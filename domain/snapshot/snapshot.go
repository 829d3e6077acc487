// Package snapshot provides dated entity state captures and their store contract.
package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"maps"
	"time"

	"github.com/trialpulse/trialpulse/domain/entity"
)

// Snapshot is one immutable capture of an entity's state on a given day.
// Exactly one snapshot exists per (entity type, entity id, date); writes
// are idempotent upserts keyed on that triple.
type Snapshot struct {
	id          int64
	entityType  entity.Type
	entityID    string
	date        time.Time
	payload     map[string]any
	contentHash string
	createdAt   time.Time
}

// New creates a Snapshot for the given entity and day. The content hash is
// computed over the allowlisted hash fields so stores can short-circuit
// equality checks without deep comparison.
func New(entityType entity.Type, entityID string, date time.Time, payload map[string]any, hashFields []string) Snapshot {
	p := copyPayload(payload)
	return Snapshot{
		entityType:  entityType,
		entityID:    entityID,
		date:        Day(date),
		payload:     p,
		contentHash: ContentHash(p, hashFields),
	}
}

// Reconstruct rebuilds a Snapshot from stored fields (used by persistence).
func Reconstruct(
	id int64,
	entityType entity.Type,
	entityID string,
	date time.Time,
	payload map[string]any,
	contentHash string,
	createdAt time.Time,
) Snapshot {
	return Snapshot{
		id:          id,
		entityType:  entityType,
		entityID:    entityID,
		date:        Day(date),
		payload:     copyPayload(payload),
		contentHash: contentHash,
		createdAt:   createdAt,
	}
}

// ID returns the snapshot ID.
func (s Snapshot) ID() int64 { return s.id }

// EntityType returns the entity type.
func (s Snapshot) EntityType() entity.Type { return s.entityType }

// EntityID returns the entity identifier.
func (s Snapshot) EntityID() string { return s.entityID }

// Date returns the capture day (UTC midnight).
func (s Snapshot) Date() time.Time { return s.date }

// Payload returns a copy of the captured state.
func (s Snapshot) Payload() map[string]any { return copyPayload(s.payload) }

// Field returns a single payload value and whether it was captured.
func (s Snapshot) Field(name string) (any, bool) {
	v, ok := s.payload[name]
	return v, ok
}

// ContentHash returns the hash over the allowlisted fields.
func (s Snapshot) ContentHash() string { return s.contentHash }

// CreatedAt returns when the snapshot row was first written.
func (s Snapshot) CreatedAt() time.Time { return s.createdAt }

// Day normalizes a timestamp to its UTC calendar day.
func Day(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// DayString formats a day as YYYY-MM-DD, the canonical column encoding.
func DayString(t time.Time) string {
	return Day(t).Format("2006-01-02")
}

// ContentHash computes a deterministic hash over the named payload fields.
// Absent fields contribute nothing, so a payload that gains a field hashes
// differently from one that never had it.
func ContentHash(payload map[string]any, fields []string) string {
	subset := make(map[string]any, len(fields))
	for _, f := range fields {
		if v, ok := payload[f]; ok {
			subset[f] = v
		}
	}
	// json.Marshal sorts map keys, giving a canonical encoding.
	raw, err := json.Marshal(subset)
	if err != nil {
		raw = []byte{}
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func copyPayload(payload map[string]any) map[string]any {
	if payload == nil {
		return make(map[string]any)
	}
	result := make(map[string]any, len(payload))
	maps.Copy(result, payload)
	return result
}
