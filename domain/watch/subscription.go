// Package watch provides watch subscriptions and the alerts they produce.
package watch

import (
	"maps"
	"time"

	"github.com/trialpulse/trialpulse/domain/change"
	"github.com/trialpulse/trialpulse/domain/entity"
	"github.com/trialpulse/trialpulse/domain/notify"
)

// Subscription is one user's declared interest in an entity: which change
// kinds should notify them and over which channels. Subscriptions are
// managed by the user-facing surface and read-only to the pipeline.
type Subscription struct {
	id        int64
	userID    string
	ref       entity.Ref
	kinds     map[change.Kind]bool
	channels  map[notify.Channel]bool
	createdAt time.Time
	updatedAt time.Time
}

// NewSubscription creates a Subscription with the given kind and channel
// flags. Nil maps mean "nothing enabled".
func NewSubscription(userID string, ref entity.Ref, kinds map[change.Kind]bool, channels map[notify.Channel]bool) Subscription {
	return Subscription{
		userID:   userID,
		ref:      ref,
		kinds:    copyFlags(kinds),
		channels: copyFlags(channels),
	}
}

// Reconstruct rebuilds a Subscription from stored fields (used by persistence).
func Reconstruct(
	id int64,
	userID string,
	ref entity.Ref,
	kinds map[change.Kind]bool,
	channels map[notify.Channel]bool,
	createdAt, updatedAt time.Time,
) Subscription {
	return Subscription{
		id:        id,
		userID:    userID,
		ref:       ref,
		kinds:     copyFlags(kinds),
		channels:  copyFlags(channels),
		createdAt: createdAt,
		updatedAt: updatedAt,
	}
}

// ID returns the subscription ID.
func (s Subscription) ID() int64 { return s.id }

// UserID returns the owning subscriber.
func (s Subscription) UserID() string { return s.userID }

// Entity returns the watched entity.
func (s Subscription) Entity() entity.Ref { return s.ref }

// WantsKind reports whether the subscription's flag for the change kind is
// enabled.
func (s Subscription) WantsKind(k change.Kind) bool { return s.kinds[k] }

// Kinds returns a copy of the per-change-kind flags.
func (s Subscription) Kinds() map[change.Kind]bool { return copyFlags(s.kinds) }

// WantsChannel reports whether the channel flag is enabled.
func (s Subscription) WantsChannel(c notify.Channel) bool { return s.channels[c] }

// Channels returns a copy of the per-channel flags.
func (s Subscription) Channels() map[notify.Channel]bool { return copyFlags(s.channels) }

// CreatedAt returns when the subscription was created.
func (s Subscription) CreatedAt() time.Time { return s.createdAt }

// UpdatedAt returns when the subscription was last updated.
func (s Subscription) UpdatedAt() time.Time { return s.updatedAt }

// WithID returns a copy with the given ID.
func (s Subscription) WithID(id int64) Subscription {
	s.id = id
	return s
}

// WithFlags returns a copy with replaced kind and channel flags.
func (s Subscription) WithFlags(kinds map[change.Kind]bool, channels map[notify.Channel]bool) Subscription {
	s.kinds = copyFlags(kinds)
	s.channels = copyFlags(channels)
	return s
}

// AllKindsEnabled returns flags enabling every change kind.
func AllKindsEnabled() map[change.Kind]bool {
	flags := make(map[change.Kind]bool, len(change.AllKinds()))
	for _, k := range change.AllKinds() {
		flags[k] = true
	}
	return flags
}

func copyFlags[K comparable](flags map[K]bool) map[K]bool {
	if flags == nil {
		return make(map[K]bool)
	}
	result := make(map[K]bool, len(flags))
	maps.Copy(result, flags)
	return result
}
