// Package notify defines the notification channel and rendering contracts.
// Transports and templates live behind these interfaces; the pipeline only
// hands over rendered content and records the outcome.
package notify

import (
	"context"
	"fmt"

	"github.com/trialpulse/trialpulse/domain/change"
)

// Channel identifies a delivery channel.
type Channel string

// Channel values.
const (
	ChannelPush  Channel = "push"
	ChannelEmail Channel = "email"
)

// AllChannels returns every known channel.
func AllChannels() []Channel {
	return []Channel{ChannelPush, ChannelEmail}
}

// Valid reports whether the channel is known.
func (c Channel) Valid() bool {
	switch c {
	case ChannelPush, ChannelEmail:
		return true
	default:
		return false
	}
}

// String returns the channel name.
func (c Channel) String() string { return string(c) }

// Message is one rendered notification handed to a channel sender.
type Message struct {
	recipient    string
	title        string
	body         string
	significance change.Significance
}

// NewMessage creates a Message.
func NewMessage(recipient, title, body string, significance change.Significance) Message {
	return Message{recipient: recipient, title: title, body: body, significance: significance}
}

// Recipient returns the subscriber the message addresses.
func (m Message) Recipient() string { return m.recipient }

// Title returns the rendered title.
func (m Message) Title() string { return m.title }

// Body returns the rendered body.
func (m Message) Body() string { return m.body }

// Significance returns the tier of the underlying change.
func (m Message) Significance() change.Significance { return m.significance }

// Sender delivers messages over one or more channels. Send failures are
// non-fatal to the pipeline; retry and backoff are the sender's concern.
type Sender interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// Renderer produces notification bodies. Rendering is an external
// collaborator; PlainRenderer is the built-in fallback.
type Renderer interface {
	RenderAlert(rec change.Record) (title, body string)
	RenderDigest(userID string, groups []DigestGroup) (title, body string)
}

// DigestGroup is one significance tier's worth of records in a digest.
type DigestGroup struct {
	Significance change.Significance
	Records      []change.Record
}

// PlainRenderer renders plain-text notification content.
type PlainRenderer struct{}

// RenderAlert renders a single change record as an alert.
func (PlainRenderer) RenderAlert(rec change.Record) (string, string) {
	title := fmt.Sprintf("[%s] %s", rec.Significance(), rec.Entity().Name())
	return title, rec.Summary()
}

// RenderDigest renders grouped records as a digest body.
func (PlainRenderer) RenderDigest(userID string, groups []DigestGroup) (string, string) {
	total := 0
	for _, g := range groups {
		total += len(g.Records)
	}
	title := fmt.Sprintf("%d change(s) on your watched entities", total)

	body := ""
	for _, g := range groups {
		body += fmt.Sprintf("%s:\n", g.Significance)
		for _, rec := range g.Records {
			body += fmt.Sprintf("  - %s\n", rec.Summary())
		}
	}
	return title, body
}
