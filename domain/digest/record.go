package digest

import "time"

// DeliveryStatus is the outcome of handing a compiled digest to its
// channel sender.
type DeliveryStatus string

// DeliveryStatus values.
const (
	DeliverySent   DeliveryStatus = "sent"
	DeliveryFailed DeliveryStatus = "failed"
)

// Record is the audit trail of one compiled digest: exactly which change
// records it included and whether the handoff to the channel succeeded.
// One record exists per (subscriber, digest type, period), enforced by
// the idempotency key.
type Record struct {
	id             int64
	userID         string
	digestType     Cadence
	periodKey      string
	idempotencyKey string
	changeIDs      []int64
	sentAt         time.Time
	status         DeliveryStatus
}

// NewRecord creates a digest Record.
func NewRecord(userID string, digestType Cadence, periodKey, idempotencyKey string, changeIDs []int64, sentAt time.Time, status DeliveryStatus) Record {
	ids := make([]int64, len(changeIDs))
	copy(ids, changeIDs)
	return Record{
		userID:         userID,
		digestType:     digestType,
		periodKey:      periodKey,
		idempotencyKey: idempotencyKey,
		changeIDs:      ids,
		sentAt:         sentAt,
		status:         status,
	}
}

// ReconstructRecord rebuilds a Record from stored fields.
func ReconstructRecord(
	id int64,
	userID string,
	digestType Cadence,
	periodKey, idempotencyKey string,
	changeIDs []int64,
	sentAt time.Time,
	status DeliveryStatus,
) Record {
	r := NewRecord(userID, digestType, periodKey, idempotencyKey, changeIDs, sentAt, status)
	r.id = id
	return r
}

// ID returns the record ID.
func (r Record) ID() int64 { return r.id }

// UserID returns the subscriber.
func (r Record) UserID() string { return r.userID }

// DigestType returns the cadence the digest was compiled for.
func (r Record) DigestType() Cadence { return r.digestType }

// PeriodKey returns the period the digest covers.
func (r Record) PeriodKey() string { return r.periodKey }

// IdempotencyKey returns the (subscriber, digest type, period) key.
func (r Record) IdempotencyKey() string { return r.idempotencyKey }

// ChangeIDs returns the included change record ids.
func (r Record) ChangeIDs() []int64 {
	ids := make([]int64, len(r.changeIDs))
	copy(ids, r.changeIDs)
	return ids
}

// SentAt returns when the digest was compiled.
func (r Record) SentAt() time.Time { return r.sentAt }

// Status returns the delivery outcome.
func (r Record) Status() DeliveryStatus { return r.status }

// WithID returns a copy with the given ID.
func (r Record) WithID(id int64) Record {
	r.id = id
	return r
}

// WithStatus returns a copy with the delivery status replaced.
func (r Record) WithStatus(s DeliveryStatus) Record {
	r.status = s
	return r
}
