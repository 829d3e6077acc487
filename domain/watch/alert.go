package watch

import (
	"errors"
	"fmt"
	"time"

	"github.com/trialpulse/trialpulse/domain/change"
)

// ErrInvalidTransition indicates an alert status change that the state
// machine forbids.
var ErrInvalidTransition = errors.New("invalid alert status transition")

// Status is the alert delivery state. pending → sent is driven by the
// router; sent → read|dismissed is user-driven and terminal.
type Status string

// Status values.
const (
	StatusPending   Status = "pending"
	StatusSent      Status = "sent"
	StatusRead      Status = "read"
	StatusDismissed Status = "dismissed"
)

// Valid reports whether the status is known.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusSent, StatusRead, StatusDismissed:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status accepts no further transitions.
func (s Status) Terminal() bool {
	return s == StatusRead || s == StatusDismissed
}

// String returns the status name.
func (s Status) String() string { return string(s) }

// Alert is one candidate notification produced by matching a change
// record against a subscription.
type Alert struct {
	id             int64
	changeID       int64
	subscriptionID int64
	userID         string
	title          string
	body           string
	significance   change.Significance
	status         Status
	createdAt      time.Time
	sentAt         time.Time
}

// NewAlert creates a pending Alert.
func NewAlert(changeID, subscriptionID int64, userID, title, body string, significance change.Significance) Alert {
	return Alert{
		changeID:       changeID,
		subscriptionID: subscriptionID,
		userID:         userID,
		title:          title,
		body:           body,
		significance:   significance,
		status:         StatusPending,
	}
}

// ReconstructAlert rebuilds an Alert from stored fields (used by persistence).
func ReconstructAlert(
	id, changeID, subscriptionID int64,
	userID, title, body string,
	significance change.Significance,
	status Status,
	createdAt, sentAt time.Time,
) Alert {
	return Alert{
		id:             id,
		changeID:       changeID,
		subscriptionID: subscriptionID,
		userID:         userID,
		title:          title,
		body:           body,
		significance:   significance,
		status:         status,
		createdAt:      createdAt,
		sentAt:         sentAt,
	}
}

// ID returns the alert ID.
func (a Alert) ID() int64 { return a.id }

// ChangeID returns the underlying change record ID.
func (a Alert) ChangeID() int64 { return a.changeID }

// SubscriptionID returns the matched subscription ID.
func (a Alert) SubscriptionID() int64 { return a.subscriptionID }

// UserID returns the recipient.
func (a Alert) UserID() string { return a.userID }

// Title returns the rendered title.
func (a Alert) Title() string { return a.title }

// Body returns the rendered body.
func (a Alert) Body() string { return a.body }

// Significance returns the tier of the underlying change.
func (a Alert) Significance() change.Significance { return a.significance }

// Status returns the delivery state.
func (a Alert) Status() Status { return a.status }

// CreatedAt returns when the alert was created.
func (a Alert) CreatedAt() time.Time { return a.createdAt }

// SentAt returns when the alert was dispatched (zero until sent).
func (a Alert) SentAt() time.Time { return a.sentAt }

// WithID returns a copy with the given ID.
func (a Alert) WithID(id int64) Alert {
	a.id = id
	return a
}

// MarkSent transitions pending → sent, recording the dispatch time.
func (a Alert) MarkSent(at time.Time) (Alert, error) {
	if a.status != StatusPending {
		return a, fmt.Errorf("%w: %s → sent", ErrInvalidTransition, a.status)
	}
	a.status = StatusSent
	a.sentAt = at
	return a, nil
}

// MarkRead transitions sent → read (user action).
func (a Alert) MarkRead() (Alert, error) {
	if a.status != StatusSent {
		return a, fmt.Errorf("%w: %s → read", ErrInvalidTransition, a.status)
	}
	a.status = StatusRead
	return a, nil
}

// MarkDismissed transitions sent → dismissed (user action).
func (a Alert) MarkDismissed() (Alert, error) {
	if a.status != StatusSent {
		return a, fmt.Errorf("%w: %s → dismissed", ErrInvalidTransition, a.status)
	}
	a.status = StatusDismissed
	return a, nil
}
